package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/textproto"
	"path"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jlaffaye/ftp"
	"github.com/openmined/dbsync/internal/utils"
)

// ftpConn is the subset of *ftp.ServerConn used by FTP.
type ftpConn interface {
	Login(user, password string) error
	ChangeDir(path string) error
	CurrentDir() (string, error)
	FileSize(path string) (int64, error)
	GetTime(path string) (time.Time, error)
	Type(transferType ftp.TransferType) error
	NameList(path string) ([]string, error)
	Quit() error
	retr(path string) (io.ReadCloser, error)
}

type serverConn struct {
	*ftp.ServerConn
}

func (c serverConn) retr(path string) (io.ReadCloser, error) {
	return c.Retr(path)
}

var dialFTP = func(ctx context.Context, addr string, timeout time.Duration) (ftpConn, error) {
	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(timeout))
	if err != nil {
		return nil, err
	}
	return serverConn{conn}, nil
}

// FTP is a session on an FTP server.
type FTP struct {
	conn   ftpConn
	addr   string
	root   string
	cwd    string
	logger *slog.Logger
}

var _ Transport = (*FTP)(nil)

// DialFTP logs in to ep and changes to its path. Missing credentials log in
// anonymously.
func DialFTP(ctx context.Context, ep *Endpoint, opts *Options) (*FTP, error) {
	connErr := func(err error) error {
		return &ConnectError{Kind: KindFTP, Addr: ep.Addr(), Err: err}
	}

	conn, err := dialFTP(ctx, ep.Addr(), opts.timeout())
	if err != nil {
		return nil, connErr(err)
	}

	user, pass := opts.Username, opts.Password
	if user == "" {
		user, pass = "anonymous", "anonymous"
	}
	if err := conn.Login(user, pass); err != nil {
		conn.Quit()
		return nil, connErr(fmt.Errorf("login as %q: %w", user, err))
	}

	if ep.Path != "" {
		if err := conn.ChangeDir(ep.Path); err != nil {
			conn.Quit()
			return nil, connErr(fmt.Errorf("change to %q: %w", ep.Path, err))
		}
	}

	cwd, err := conn.CurrentDir()
	if err != nil {
		conn.Quit()
		return nil, connErr(err)
	}

	f := &FTP{
		conn:   conn,
		addr:   ep.Addr(),
		root:   cwd,
		cwd:    cwd,
		logger: opts.logger(),
	}
	f.logger.Debug("ftp connected", "addr", f.addr, "user", user, "cwd", cwd)
	return f, nil
}

func (f *FTP) Kind() Kind {
	return KindFTP
}

func (f *FTP) Root() string {
	return f.root
}

func (f *FTP) Getwd() string {
	return f.cwd
}

func (f *FTP) Chdir(_ context.Context, dir string) error {
	if err := f.conn.ChangeDir(dir); err != nil {
		return fmt.Errorf("ftp: cd %s: %w", dir, err)
	}
	f.cwd = dir
	return nil
}

// isReplyError reports whether err is a negative server reply rather than a
// broken connection.
func isReplyError(err error) bool {
	var tpErr *textproto.Error
	return errors.As(err, &tpErr)
}

// Exists probes name with SIZE. Any negative reply means not found.
func (f *FTP) Exists(_ context.Context, name string) (bool, error) {
	_, err := f.conn.FileSize(name)
	if err == nil {
		return true, nil
	}
	if isReplyError(err) {
		return false, nil
	}
	return false, fmt.Errorf("ftp: size %s: %w", name, err)
}

func (f *FTP) Size(_ context.Context, name string) (int64, error) {
	size, err := f.conn.FileSize(name)
	if err != nil {
		return 0, fmt.Errorf("ftp: size %s: %w", name, err)
	}
	return size, nil
}

func (f *FTP) ModTime(_ context.Context, name string) (time.Time, error) {
	mtime, err := f.conn.GetTime(name)
	if err != nil {
		return time.Time{}, fmt.Errorf("ftp: mdtm %s: %w", name, err)
	}
	return mtime, nil
}

// Fetch retrieves name. ModeText uses TYPE A and rewrites the server's CRLF
// line endings to the local convention. The session is left in binary mode.
func (f *FTP) Fetch(_ context.Context, name, localPath string, mode Mode) error {
	if err := utils.EnsureParent(localPath); err != nil {
		return err
	}

	if mode == ModeText {
		if err := f.conn.Type(ftp.TransferTypeASCII); err != nil {
			return fmt.Errorf("ftp: type A: %w", err)
		}
		defer func() {
			if err := f.conn.Type(ftp.TransferTypeBinary); err != nil {
				f.logger.Warn("ftp restore binary mode", "error", err)
			}
		}()
	}

	body, err := f.conn.retr(name)
	if err != nil {
		return fmt.Errorf("ftp: retr %s: %w", name, err)
	}
	defer body.Close()

	var r io.Reader = body
	if mode == ModeText {
		r = newLineEndingReader(body)
	}
	return utils.WriteFileFrom(localPath, r)
}

func (f *FTP) List(_ context.Context, pattern string) ([]string, error) {
	entries, err := f.conn.NameList(f.cwd)
	if err != nil {
		return nil, fmt.Errorf("ftp: nlst %s: %w", f.cwd, err)
	}
	var names []string
	for _, entry := range entries {
		name := path.Base(entry)
		if ok, _ := doublestar.Match(pattern, name); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func (f *FTP) Close() error {
	return f.conn.Quit()
}
