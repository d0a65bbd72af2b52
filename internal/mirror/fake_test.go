package mirror

import (
	"context"
	"errors"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/openmined/dbsync/internal/transport"
)

var errFlaky = errors.New("connection reset by peer")

type fakeFile struct {
	content []byte
	mtime   time.Time
}

// fakeServer is the remote side shared by all sessions dialed from it.
type fakeServer struct {
	kind  transport.Kind
	root  string
	files map[string]fakeFile

	// failExists and failRedial make the next n calls fail. The first dial of
	// a run always succeeds.
	failExists int
	failRedial int
	fetchErr   error

	dials   int
	probed  []string
	fetched []string
	modes   []transport.Mode
}

func newFakeServer(kind transport.Kind, root string) *fakeServer {
	return &fakeServer{kind: kind, root: root, files: map[string]fakeFile{}}
}

func (s *fakeServer) put(p string, content []byte, mtime time.Time) {
	s.files[p] = fakeFile{content: content, mtime: mtime}
}

func (s *fakeServer) dial(_ context.Context, opts *transport.Options) (transport.Transport, error) {
	s.dials++
	if s.dials > 1 && s.failRedial > 0 {
		s.failRedial--
		return nil, &transport.ConnectError{Kind: s.kind, Addr: opts.Location, Err: errFlaky}
	}
	return &fakeSession{srv: s, cwd: s.root}, nil
}

func (s *fakeServer) probedAny(suffix string) bool {
	for _, p := range s.probed {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

type fakeSession struct {
	srv    *fakeServer
	cwd    string
	closed bool
}

func (f *fakeSession) abs(name string) string {
	if path.IsAbs(name) {
		return name
	}
	return path.Join(f.cwd, name)
}

func (f *fakeSession) Kind() transport.Kind { return f.srv.kind }
func (f *fakeSession) Root() string         { return f.srv.root }
func (f *fakeSession) Getwd() string        { return f.cwd }

func (f *fakeSession) Chdir(_ context.Context, dir string) error {
	f.cwd = dir
	return nil
}

func (f *fakeSession) Exists(_ context.Context, name string) (bool, error) {
	if f.closed {
		return false, errors.New("use of closed session")
	}
	if f.srv.failExists > 0 {
		f.srv.failExists--
		return false, errFlaky
	}
	f.srv.probed = append(f.srv.probed, f.abs(name))
	_, ok := f.srv.files[f.abs(name)]
	return ok, nil
}

func (f *fakeSession) file(name string) (fakeFile, error) {
	file, ok := f.srv.files[f.abs(name)]
	if !ok {
		return fakeFile{}, os.ErrNotExist
	}
	return file, nil
}

func (f *fakeSession) Size(_ context.Context, name string) (int64, error) {
	file, err := f.file(name)
	return int64(len(file.content)), err
}

func (f *fakeSession) ModTime(_ context.Context, name string) (time.Time, error) {
	file, err := f.file(name)
	return file.mtime, err
}

func (f *fakeSession) Fetch(_ context.Context, name, localPath string, mode transport.Mode) error {
	if f.srv.fetchErr != nil {
		return f.srv.fetchErr
	}
	file, err := f.file(name)
	if err != nil {
		return err
	}
	f.srv.fetched = append(f.srv.fetched, f.abs(name))
	f.srv.modes = append(f.srv.modes, mode)
	return os.WriteFile(localPath, file.content, 0o644)
}

func (f *fakeSession) List(_ context.Context, _ string) ([]string, error) {
	var names []string
	for p := range f.srv.files {
		if path.Dir(p) == f.cwd {
			names = append(names, path.Base(p))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}
