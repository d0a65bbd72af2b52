// Package mirror brings a local data tree up to date with a source tree.
//
// For every descriptor of a catalog, and then for its .info companion, the
// engine prefers a gzip variant on the source, skips files whose local copy is
// current, and otherwise fetches and, for gzip, decompresses them. Any failure
// of one file is retried on a fresh source session.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openmined/dbsync/internal/transport"
	"github.com/openmined/dbsync/internal/utils"
	"github.com/openmined/dbsync/internal/workspace"
)

const DefaultMaxAttempts = 5

// DialFunc opens a source session.
type DialFunc func(ctx context.Context, opts *transport.Options) (transport.Transport, error)

// SyncContext is everything a run needs.
type SyncContext struct {
	// Source is dialed at the start of a run and again before every retry.
	Source *transport.Options
	Target *workspace.Workspace

	// ContinueOnMissing logs a missing primary file instead of failing the run.
	ContinueOnMissing bool

	// MaxAttempts per file, including the first. Defaults to DefaultMaxAttempts.
	MaxAttempts int

	// Dial defaults to transport.Dial.
	Dial   DialFunc
	Logger *slog.Logger
}

func (sc *SyncContext) validate() error {
	if sc.Source == nil {
		return errors.New("source options missing")
	}
	if sc.Source.Kind == "" {
		return errors.New("source kind missing")
	}
	if strings.TrimSpace(sc.Source.Location) == "" {
		return fmt.Errorf("%s source location missing", sc.Source.Kind)
	}
	if sc.Target == nil {
		return errors.New("target workspace missing")
	}
	if sc.MaxAttempts < 0 {
		return fmt.Errorf("invalid max attempts %d", sc.MaxAttempts)
	}
	return nil
}

// Engine runs a sync. It is not safe for concurrent use.
type Engine struct {
	sc          SyncContext
	dial        DialFunc
	logger      *slog.Logger
	maxAttempts int

	source     transport.Transport
	sourceRoot string
	target     *transport.Local
	targetRoot string

	report *Report
}

func NewEngine(sc SyncContext) (*Engine, error) {
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("mirror: %w", err)
	}

	e := &Engine{
		sc:          sc,
		dial:        sc.Dial,
		logger:      sc.Logger,
		maxAttempts: sc.MaxAttempts,
		target:      sc.Target.Target(),
	}
	if e.dial == nil {
		e.dial = transport.Dial
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.maxAttempts == 0 {
		e.maxAttempts = DefaultMaxAttempts
	}
	e.targetRoot = strings.TrimSuffix(e.target.Root(), "/")
	return e, nil
}

// Run syncs descriptors in order. It stops at the first fatal error and
// checks ctx between descriptors. The report is never nil.
func (e *Engine) Run(ctx context.Context, descriptors []string) (*Report, error) {
	e.report = newReport()
	start := time.Now()
	defer func() { e.report.Elapsed = time.Since(start) }()

	if err := e.connect(ctx); err != nil {
		return e.report, err
	}
	defer e.disconnect()

	e.logger.Info("syncing", "from", e.sc.Source.Kind, "source", e.sourceRoot, "to", e.targetRoot, "files", len(descriptors))

	for _, descriptor := range descriptors {
		if err := ctx.Err(); err != nil {
			return e.report, err
		}

		if err := e.syncDescriptor(ctx, descriptor, false); err != nil {
			return e.report, err
		}
		if utils.IsInfoCompanion(descriptor) {
			continue
		}
		if err := e.syncDescriptor(ctx, utils.InfoCompanion(descriptor), true); err != nil {
			return e.report, err
		}
	}
	return e.report, nil
}

func (e *Engine) syncDescriptor(ctx context.Context, descriptor string, info bool) error {
	decision, n, err := e.syncWithRetry(ctx, descriptor, info)
	if err != nil {
		if errors.Is(err, ErrMissingSource) {
			e.report.record(DecisionMissingFatal, 0)
		}
		return err
	}
	e.report.record(decision, n)
	return nil
}

// syncWithRetry runs syncFile up to maxAttempts times, reconnecting the source
// before every retry. A failed reconnect uses up an attempt. The error of the
// last attempt is returned as is.
func (e *Engine) syncWithRetry(ctx context.Context, descriptor string, info bool) (Decision, int64, error) {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if attempt > 1 {
			e.report.Reconnects++
			if err := e.reconnect(ctx); err != nil {
				if ctx.Err() != nil {
					return 0, 0, err
				}
				e.logger.Warn("reconnect failed", "descriptor", descriptor, "attempt", attempt, "error", err)
				lastErr = err
				continue
			}
		}

		decision, n, err := e.syncFile(ctx, descriptor, info)
		if err == nil || !retryable(ctx, err) {
			return decision, n, err
		}
		e.logger.Warn("copy file failed", "descriptor", descriptor, "attempt", attempt, "error", err)
		lastErr = err
	}
	return 0, 0, lastErr
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, ErrMissingSource) && !errors.Is(err, transport.ErrUnsupported)
}

func (e *Engine) connect(ctx context.Context) error {
	source, err := e.dial(ctx, e.sc.Source)
	if err != nil {
		return err
	}
	e.source = source
	e.sourceRoot = strings.TrimSuffix(utils.FixFilename(source.Root()), "/")
	return nil
}

func (e *Engine) disconnect() {
	if e.source == nil {
		return
	}
	if err := e.source.Close(); err != nil {
		e.logger.Debug("disconnect", "error", err)
	}
	e.source = nil
}

func (e *Engine) reconnect(ctx context.Context) error {
	e.disconnect()
	return e.connect(ctx)
}
