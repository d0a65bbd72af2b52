package transport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/openmined/dbsync/internal/utils"
)

// Local is a session on the local filesystem. It never fails transiently, so
// Chdir is a plain string update.
type Local struct {
	root string
	cwd  string
}

var _ Transport = (*Local)(nil)

// NewLocal opens a session at root, which must be an existing directory.
func NewLocal(root string) (*Local, error) {
	abs, err := utils.ResolvePath(root)
	if err != nil {
		return nil, err
	}
	if !utils.DirExists(abs) {
		return nil, fmt.Errorf("local root %q is not a directory", abs)
	}
	slashed := filepath.ToSlash(abs)
	return &Local{root: slashed, cwd: slashed}, nil
}

func (l *Local) Kind() Kind {
	return KindLocal
}

func (l *Local) Root() string {
	return l.root
}

func (l *Local) Getwd() string {
	return l.cwd
}

func (l *Local) Chdir(_ context.Context, dir string) error {
	l.cwd = utils.FixFilename(dir)
	return nil
}

// resolve maps a name to a native path. Absolute names ignore the working
// directory.
func (l *Local) resolve(name string) string {
	name = utils.FixFilename(name)
	if path.IsAbs(name) || filepath.IsAbs(utils.ToNative(name)) {
		return utils.ToNative(name)
	}
	return utils.ToNative(utils.JoinRemote(l.cwd, name))
}

func (l *Local) Exists(_ context.Context, name string) (bool, error) {
	info, err := os.Stat(l.resolve(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

func (l *Local) Size(_ context.Context, name string) (int64, error) {
	info, err := os.Stat(l.resolve(name))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (l *Local) ModTime(_ context.Context, name string) (time.Time, error) {
	return utils.FileModTime(l.resolve(name))
}

// Fetch copies name to localPath. Line endings are never rewritten.
func (l *Local) Fetch(_ context.Context, name, localPath string, _ Mode) error {
	return utils.CopyFile(l.resolve(name), localPath)
}

func (l *Local) List(_ context.Context, pattern string) ([]string, error) {
	return doublestar.Glob(os.DirFS(utils.ToNative(l.cwd)), pattern, doublestar.WithFilesOnly())
}

// MkdirAll creates dir below the working directory. The engine uses it to
// lay out the target tree.
func (l *Local) MkdirAll(_ context.Context, dir string) error {
	return utils.EnsureDir(l.resolve(dir))
}

func (l *Local) Close() error {
	return nil
}
