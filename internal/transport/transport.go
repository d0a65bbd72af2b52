// Package transport provides a uniform read-side contract over the storage
// mediums a data tree can be mirrored from: the local filesystem, FTP, SFTP,
// HTTPS and S3.
//
// A Transport is a session rooted at one location. It caches its working
// directory and resolves every probe and fetch relative to it, so callers
// change directory once per folder and then address files by name.
package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Kind selects the transport implementation.
type Kind string

const (
	KindLocal Kind = "local"
	KindFTP   Kind = "ftp"
	KindSFTP  Kind = "sftp"
	KindHTTPS Kind = "https"
	KindS3    Kind = "s3"
)

// Kinds lists every supported source kind in display order.
var Kinds = []Kind{KindLocal, KindFTP, KindSFTP, KindHTTPS, KindS3}

// ParseKind converts a configuration string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown transport kind %q", s)
}

// IsRemote reports whether files of this kind live on another machine.
func (k Kind) IsRemote() bool {
	return k != KindLocal
}

// Mode is the transfer mode of a fetch.
type Mode int

const (
	// ModeBinary copies bytes exactly.
	ModeBinary Mode = iota
	// ModeText applies the protocol's native line ending conversion. Transports
	// without such a notion treat it like ModeBinary.
	ModeText
)

func (m Mode) String() string {
	if m == ModeText {
		return "text"
	}
	return "binary"
}

// Transport is a session against one root location.
type Transport interface {
	io.Closer

	Kind() Kind

	// Root is the directory the session was opened at.
	Root() string

	// Getwd returns the cached working directory without a round trip.
	Getwd() string

	// Chdir changes the working directory used to resolve file names.
	Chdir(ctx context.Context, dir string) error

	// Exists reports whether name is a file in the working directory. A missing
	// or inaccessible file is (false, nil); only failures of the session itself
	// are returned as errors.
	Exists(ctx context.Context, name string) (bool, error)

	Size(ctx context.Context, name string) (int64, error)

	ModTime(ctx context.Context, name string) (time.Time, error)

	// Fetch downloads name into localPath, replacing any existing file.
	Fetch(ctx context.Context, name, localPath string, mode Mode) error

	// List returns the names in the working directory matching pattern.
	List(ctx context.Context, pattern string) ([]string, error)
}

// Writer is the write side of a session. Sources are mirrored one way only,
// so the read-only transports implement it to report ErrUnsupported.
type Writer interface {
	MkdirAll(ctx context.Context, dir string) error
	Upload(ctx context.Context, localPath, name string) error
}

// Options describe how to open a session.
type Options struct {
	Kind Kind

	// Location is a local directory for KindLocal and an endpoint of the form
	// scheme://host[:port][/path] for every other kind. The scheme is optional.
	Location string

	Username string
	Password string

	// KnownHostsFile enables host key verification for SFTP.
	KnownHostsFile string
	// UseAgent adds ssh-agent authentication for SFTP.
	UseAgent bool

	// Insecure disables TLS certificate verification for HTTPS.
	Insecure bool

	// Region and Endpoint configure S3. Endpoint switches to path-style
	// addressing for S3 compatible stores.
	Region   string
	Endpoint string

	Timeout time.Duration
	Logger  *slog.Logger
}

const defaultTimeout = 30 * time.Second

func (o *Options) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return defaultTimeout
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Dial opens a session of the kind selected by opts. Connection failures are
// returned as *ConnectError.
func Dial(ctx context.Context, opts *Options) (Transport, error) {
	if opts == nil {
		return nil, fmt.Errorf("transport: %w", ErrNoOptions)
	}

	if opts.Kind == KindLocal {
		local, err := NewLocal(opts.Location)
		if err != nil {
			return nil, &ConnectError{Kind: KindLocal, Addr: opts.Location, Err: err}
		}
		return local, nil
	}

	ep, err := ParseEndpoint(opts.Kind, opts.Location)
	if err != nil {
		return nil, err
	}

	switch opts.Kind {
	case KindFTP:
		return DialFTP(ctx, ep, opts)
	case KindSFTP:
		return DialSFTP(ctx, ep, opts)
	case KindHTTPS:
		return DialHTTPS(ctx, ep, opts)
	case KindS3:
		return DialS3(ctx, ep, opts)
	default:
		return nil, fmt.Errorf("transport: unknown kind %q", opts.Kind)
	}
}
