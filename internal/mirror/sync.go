package mirror

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/openmined/dbsync/internal/transport"
	"github.com/openmined/dbsync/internal/utils"
)

// syncFile handles one descriptor without retrying.
func (e *Engine) syncFile(ctx context.Context, descriptor string, info bool) (Decision, int64, error) {
	from := utils.SubstituteDataFolder(descriptor, e.sourceRoot)

	ok, err := e.exists(ctx, e.source, from+gzExt)
	if err != nil {
		return 0, 0, err
	}
	if ok {
		return e.syncGzip(ctx, descriptor, from+gzExt)
	}

	ok, err = e.exists(ctx, e.source, from)
	if err != nil {
		return 0, 0, err
	}
	if ok {
		return e.syncPlain(ctx, descriptor, from)
	}

	switch {
	case info:
		e.logger.Debug("no info file", "file", from)
		return DecisionMissingTolerated, 0, nil
	case e.sc.ContinueOnMissing:
		e.logger.Warn("file not found", "file", from)
		e.report.Missing = append(e.report.Missing, from)
		return DecisionMissingTolerated, 0, nil
	default:
		return DecisionMissingFatal, 0, fmt.Errorf("%w: %s", ErrMissingSource, from)
	}
}

func (e *Engine) syncPlain(ctx context.Context, descriptor, from string) (Decision, int64, error) {
	to := utils.SubstituteDataFolder(descriptor, e.targetRoot)
	if err := e.target.MkdirAll(ctx, path.Dir(to)); err != nil {
		return 0, 0, err
	}

	current, err := e.upToDate(ctx, from, to)
	if err != nil {
		return 0, 0, err
	}
	if current {
		e.logger.Info("sync", "file", from, "status", StatusOK)
		return DecisionSkip, 0, nil
	}

	n, err := e.fetch(ctx, from, to, transport.ModeText)
	if err != nil {
		return 0, 0, err
	}
	return DecisionCopyPlain, n, nil
}

// syncGzip mirrors gzFrom next to the plain target and decompresses it.
// Both files are kept.
func (e *Engine) syncGzip(ctx context.Context, descriptor, gzFrom string) (Decision, int64, error) {
	to := utils.SubstituteDataFolder(descriptor, e.targetRoot)
	gzTo := to + gzExt
	if err := e.target.MkdirAll(ctx, path.Dir(to)); err != nil {
		return 0, 0, err
	}

	current, err := e.upToDate(ctx, gzFrom, gzTo, to)
	if err != nil {
		return 0, 0, err
	}
	if current {
		e.logger.Info("sync", "file", gzFrom, "status", StatusOK)
		return DecisionSkip, 0, nil
	}

	n, err := e.fetch(ctx, gzFrom, gzTo, transport.ModeBinary)
	if err != nil {
		return 0, 0, err
	}

	err = utils.Timed(e.logger, "unzipping", func() error {
		return gunzip(utils.ToNative(gzTo), utils.ToNative(to))
	}, "file", gzTo)
	if err != nil {
		return 0, 0, err
	}
	return DecisionCopyGzip, n, nil
}

// upToDate reports whether dst and every path in also exist on the target,
// dst has the size of src and the modification times agree.
func (e *Engine) upToDate(ctx context.Context, src, dst string, also ...string) (bool, error) {
	for _, p := range append([]string{dst}, also...) {
		ok, err := e.exists(ctx, e.target, p)
		if err != nil || !ok {
			return false, err
		}
	}

	srcSize, err := e.size(ctx, e.source, src)
	if err != nil {
		return false, err
	}
	dstSize, err := e.size(ctx, e.target, dst)
	if err != nil {
		return false, err
	}
	if srcSize != dstSize {
		return false, nil
	}

	srcTime, err := e.modTime(ctx, e.source, src)
	if err != nil {
		return false, err
	}
	dstTime, err := e.modTime(ctx, e.target, dst)
	if err != nil {
		return false, err
	}
	return e.sameTime(srcTime, dstTime), nil
}

// mtimeResolution is the finest precision modification times are compared
// at. Target filesystems may store less than the source reports.
const mtimeResolution = time.Second

// sameTime is the skip rule for modification times. Local sources need equal
// times. For remote sources a target that is not older is current.
func (e *Engine) sameTime(src, dst time.Time) bool {
	src, dst = src.Truncate(mtimeResolution), dst.Truncate(mtimeResolution)
	if !e.source.Kind().IsRemote() {
		return src.Equal(dst)
	}
	return !dst.Before(src)
}

// fetch transfers from to the local path to and stamps it with the source
// modification time. It returns the number of bytes written.
func (e *Engine) fetch(ctx context.Context, from, to string, mode transport.Mode) (int64, error) {
	mtime, err := e.modTime(ctx, e.source, from)
	if err != nil {
		return 0, err
	}

	name, err := e.locate(ctx, e.source, from)
	if err != nil {
		return 0, err
	}
	native := utils.ToNative(to)
	if err := e.source.Fetch(ctx, name, native, mode); err != nil {
		return 0, err
	}
	if err := utils.SetModTime(native, mtime); err != nil {
		return 0, err
	}

	n, err := e.size(ctx, e.target, to)
	if err != nil {
		return 0, err
	}

	status := StatusCopied
	if e.source.Kind().IsRemote() {
		status = StatusDownloaded
	}
	e.logger.Info("sync", "file", from, "status", status, "size", n)
	return n, nil
}

// locate changes t to the directory of p when needed and returns the file name.
func (e *Engine) locate(ctx context.Context, t transport.Transport, p string) (string, error) {
	dir, name := utils.SplitRemote(p)
	if t.Getwd() != dir {
		if err := t.Chdir(ctx, dir); err != nil {
			return "", err
		}
	}
	return name, nil
}

func (e *Engine) exists(ctx context.Context, t transport.Transport, p string) (bool, error) {
	name, err := e.locate(ctx, t, p)
	if err != nil {
		return false, err
	}
	return t.Exists(ctx, name)
}

func (e *Engine) size(ctx context.Context, t transport.Transport, p string) (int64, error) {
	name, err := e.locate(ctx, t, p)
	if err != nil {
		return 0, err
	}
	return t.Size(ctx, name)
}

func (e *Engine) modTime(ctx context.Context, t transport.Transport, p string) (time.Time, error) {
	name, err := e.locate(ctx, t, p)
	if err != nil {
		return time.Time{}, err
	}
	return t.ModTime(ctx, name)
}
