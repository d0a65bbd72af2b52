// Package workspace manages the local target tree of a sync run.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/openmined/dbsync/internal/transport"
	"github.com/openmined/dbsync/internal/utils"
)

const lockFile = ".dbsync.lock"

var (
	ErrWorkspaceLocked = errors.New("workspace locked by another process")
	ErrNotDirectory    = errors.New("target root is not an existing directory")
	ErrReadOnly        = errors.New("target root is not writable")
)

// Workspace is the local target root. The root must already exist.
type Workspace struct {
	Root string

	local *transport.Local
	flock *flock.Flock
}

func New(rootDir string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", rootDir, err)
	}
	if !utils.DirExists(root) {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}
	if !utils.IsWritable(root) {
		return nil, fmt.Errorf("%w: %s", ErrReadOnly, root)
	}

	local, err := transport.NewLocal(root)
	if err != nil {
		return nil, err
	}

	return &Workspace{
		Root:  root,
		local: local,
		flock: flock.New(filepath.Join(root, lockFile)),
	}, nil
}

// Lock takes the run lock on the tree without blocking.
func (w *Workspace) Lock() error {
	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock workspace: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}
	slog.Debug("workspace locked", "root", w.Root)
	return nil
}

func (w *Workspace) Unlock() error {
	// only the process holding the lock removes the file
	if !w.flock.Locked() {
		return nil
	}
	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock workspace: %w", err)
	}
	return os.Remove(w.flock.Path())
}

// Target returns the session used to probe and populate the tree.
func (w *Workspace) Target() *transport.Local {
	return w.local
}

// Resolve substitutes the data folder placeholder of descriptor with Root.
// The result uses forward slashes.
func (w *Workspace) Resolve(descriptor string) string {
	return utils.SubstituteDataFolder(descriptor, filepath.ToSlash(w.Root))
}

