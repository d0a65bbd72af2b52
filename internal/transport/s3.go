package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/openmined/dbsync/internal/utils"
)

const defaultS3Region = "us-east-1"

// S3 is a read-only session on a bucket. The endpoint host is the bucket name
// and its path the key prefix acting as root directory.
type S3 struct {
	client *s3.Client
	bucket string
	root   string
	cwd    string
	logger *slog.Logger
}

var _ Transport = (*S3)(nil)

// DialS3 builds an S3 client for ep. Username and Password are used as static
// access key and secret; without them the default AWS credential chain applies.
func DialS3(ctx context.Context, ep *Endpoint, opts *Options) (*S3, error) {
	region := opts.Region
	if region == "" {
		region = defaultS3Region
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		Timeout: opts.timeout(),
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithHTTPClient(httpClient),
	}
	if opts.Username != "" && opts.Password != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.Username, opts.Password, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, &ConnectError{Kind: KindS3, Addr: ep.Host, Err: err}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	root := strings.TrimSuffix(ep.Path, "/")
	if root == "" {
		root = "/"
	}
	return &S3{
		client: client,
		bucket: ep.Host,
		root:   root,
		cwd:    root,
		logger: opts.logger(),
	}, nil
}

func (s *S3) Kind() Kind {
	return KindS3
}

func (s *S3) Root() string {
	return s.root
}

func (s *S3) Getwd() string {
	return s.cwd
}

func (s *S3) Chdir(_ context.Context, dir string) error {
	s.cwd = utils.FixFilename(dir)
	return nil
}

func (s *S3) key(name string) string {
	p := utils.FixFilename(name)
	if !strings.HasPrefix(p, "/") {
		p = utils.JoinRemote(s.cwd, p)
	}
	return strings.TrimPrefix(p, "/")
}

func isS3NotFound(err error) bool {
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}

func (s *S3) head(ctx context.Context, name string) (*s3.HeadObjectOutput, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return nil, fmt.Errorf("s3: head %s/%s: %w", s.bucket, s.key(name), err)
	}
	return out, nil
}

func (s *S3) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.head(ctx, name)
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, err
}

func (s *S3) Size(ctx context.Context, name string) (int64, error) {
	out, err := s.head(ctx, name)
	if err != nil {
		return 0, err
	}
	return aws.ToInt64(out.ContentLength), nil
}

func (s *S3) ModTime(ctx context.Context, name string) (time.Time, error) {
	out, err := s.head(ctx, name)
	if err != nil {
		return time.Time{}, err
	}
	return aws.ToTime(out.LastModified), nil
}

func (s *S3) Fetch(ctx context.Context, name, localPath string, _ Mode) error {
	if err := utils.EnsureParent(localPath); err != nil {
		return err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return fmt.Errorf("s3: get %s/%s: %w", s.bucket, s.key(name), err)
	}
	defer out.Body.Close()
	return utils.WriteFileFrom(localPath, out.Body)
}

// List matches pattern against the object names directly below the working
// directory.
func (s *S3) List(ctx context.Context, pattern string) ([]string, error) {
	prefix := s.key("")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var names []string
	pager := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3: list %s/%s: %w", s.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			name := path.Base(aws.ToString(obj.Key))
			if ok, _ := doublestar.Match(pattern, name); ok {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

func (s *S3) Close() error {
	return nil
}
