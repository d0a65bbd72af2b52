package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startS3Server emulates the path-style subset of the S3 API used by S3.
func startS3Server(t *testing.T, bucket string, objects map[string]httpFile) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimPrefix(r.URL.Path, "/")
		if p == bucket || p == bucket+"/" {
			listObjects(w, r, bucket, objects)
			return
		}
		key := strings.TrimPrefix(p, bucket+"/")
		obj, ok := objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Last-Modified", obj.mtime.UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Length", fmt.Sprint(len(obj.content)))
		w.Header().Set("ETag", `"etag"`)
		if r.Method == http.MethodHead {
			return
		}
		fmt.Fprint(w, obj.content)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func listObjects(w http.ResponseWriter, r *http.Request, bucket string, objects map[string]httpFile) {
	prefix := r.URL.Query().Get("prefix")
	var keys []string
	for key := range objects {
		rest, ok := strings.CutPrefix(key, prefix)
		if ok && !strings.Contains(rest, "/") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&b, "<Name>%s</Name><Prefix>%s</Prefix><Delimiter>/</Delimiter>", bucket, prefix)
	fmt.Fprintf(&b, "<KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>", len(keys))
	for _, key := range keys {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><LastModified>%s</LastModified><ETag>&quot;etag&quot;</ETag><Size>%d</Size><StorageClass>STANDARD</StorageClass></Contents>",
			key, objects[key].mtime.UTC().Format("2006-01-02T15:04:05.000Z"), len(objects[key].content))
	}
	b.WriteString("</ListBucketResult>")

	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprint(w, b.String())
}

func dialTestS3(t *testing.T, srv *httptest.Server, location string) Transport {
	t.Helper()
	none := filepath.Join(t.TempDir(), "none")
	t.Setenv("AWS_CONFIG_FILE", none)
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", none)

	tr, err := Dial(context.Background(), &Options{
		Kind:     KindS3,
		Location: location,
		Username: "AKIDEXAMPLE",
		Password: "secret",
		Endpoint: srv.URL,
	})
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func TestS3_ProbesAndFetch(t *testing.T) {
	ctx := context.Background()
	mtime := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	srv := startS3Server(t, "refdata", map[string]httpFile{
		"dbdata/lookup.csv.gz":  {content: "gzipped", mtime: mtime},
		"dbdata/lookup.info":    {content: "info", mtime: mtime},
		"dbdata/ref/ref.csv":    {content: "id\n", mtime: mtime},
		"dbdata/ref/ref.csv.gz": {content: "gz", mtime: mtime},
	})

	tr := dialTestS3(t, srv, "s3://refdata/dbdata")
	assert.Equal(t, KindS3, tr.Kind())
	assert.Equal(t, "/dbdata", tr.Root())

	ok, err := tr.Exists(ctx, "lookup.csv.gz")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tr.Exists(ctx, "lookup.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	size, err := tr.Size(ctx, "lookup.csv.gz")
	require.NoError(t, err)
	assert.EqualValues(t, 7, size)

	got, err := tr.ModTime(ctx, "lookup.csv.gz")
	require.NoError(t, err)
	assert.True(t, got.Equal(mtime), "got %s", got)

	require.NoError(t, tr.Chdir(ctx, "/dbdata/ref"))
	dst := filepath.Join(t.TempDir(), "ref.csv")
	require.NoError(t, tr.Fetch(ctx, "ref.csv", dst, ModeText))
	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "id\n", string(content))

	names, err := tr.List(ctx, "*.gz")
	require.NoError(t, err)
	assert.Equal(t, []string{"ref.csv.gz"}, names)
}
