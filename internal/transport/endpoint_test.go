package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpoint(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		raw  string
		host string
		port int
		path string
	}{
		{"ftp-full", KindFTP, "ftp://ftp.example.org:2121/pub/dbdata", "ftp.example.org", 2121, "/pub/dbdata"},
		{"ftp-no-scheme", KindFTP, "ftp.example.org/pub", "ftp.example.org", 21, "/pub"},
		{"ftp-host-only", KindFTP, "ftp.example.org", "ftp.example.org", 21, ""},
		{"ftp-upper-scheme", KindFTP, "FTP://ftp.example.org", "ftp.example.org", 21, ""},
		{"sftp-default-port", KindSFTP, "sftp://10.0.0.5/home/data", "10.0.0.5", 22, "/home/data"},
		{"sftp-port", KindSFTP, "sftp://10.0.0.5:2222", "10.0.0.5", 2222, ""},
		{"https", KindHTTPS, "https://data.example.org/dbdata/", "data.example.org", 443, "/dbdata/"},
		{"s3", KindS3, "s3://reference-data/dbdata", "reference-data", 0, "/dbdata"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ep, err := ParseEndpoint(c.kind, c.raw)
			require.NoError(t, err)
			assert.Equal(t, c.host, ep.Host)
			assert.Equal(t, c.port, ep.Port)
			assert.Equal(t, c.path, ep.Path)
			assert.Equal(t, c.raw, ep.Raw)
		})
	}
}

func TestParseEndpoint_Invalid(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		raw  string
	}{
		{"empty", KindFTP, ""},
		{"blank", KindSFTP, "   "},
		{"wrong-scheme", KindFTP, "sftp://host/x"},
		{"http-for-https", KindHTTPS, "http://host/x"},
		{"bad-port", KindFTP, "ftp://host:99999"},
		{"s3-port", KindS3, "s3://bucket:9000/x"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseEndpoint(c.kind, c.raw)
			assert.ErrorIs(t, err, ErrInvalidEndpoint)
		})
	}
}

func TestEndpointAddr(t *testing.T) {
	ep, err := ParseEndpoint(KindSFTP, "sftp://10.0.0.5/x")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:22", ep.Addr())
	assert.Equal(t, "sftp://10.0.0.5:22/x", ep.String())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" SFTP ")
	require.NoError(t, err)
	assert.Equal(t, KindSFTP, k)
	assert.True(t, k.IsRemote())
	assert.False(t, KindLocal.IsRemote())

	_, err = ParseKind("gopher")
	assert.Error(t, err)
}
