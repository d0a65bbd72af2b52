package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/openmined/dbsync/internal/catalog"
	"github.com/openmined/dbsync/internal/config"
	"github.com/openmined/dbsync/internal/mirror"
	"github.com/openmined/dbsync/internal/workspace"
)

var errNoCatalog = errors.New("no catalog: pass a catalog file or --scan")

func runSync(ctx context.Context, cfg *config.Config, scanDir string, logger *slog.Logger) error {
	descriptors, err := loadDescriptors(cfg, scanDir)
	if err != nil {
		return err
	}

	ws, err := workspace.New(cfg.ToLocal)
	if err != nil {
		return err
	}
	if err := ws.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := ws.Unlock(); err != nil {
			logger.Warn("workspace unlock", "error", err)
		}
	}()

	source, err := cfg.SourceOptions(logger)
	if err != nil {
		return err
	}

	engine, err := mirror.NewEngine(mirror.SyncContext{
		Source:            source,
		Target:            ws,
		ContinueOnMissing: cfg.Continue,
		MaxAttempts:       cfg.MaxAttempts,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	report, err := engine.Run(ctx, descriptors)
	logger.Info("summary", "report", report)
	return err
}

// loadDescriptors reads the catalog file and the scanned load scripts, in that
// order, and applies the match patterns.
func loadDescriptors(cfg *config.Config, scanDir string) ([]string, error) {
	var all []string
	if cfg.Catalog != "" {
		c, err := catalog.Load(cfg.Catalog)
		if err != nil {
			return nil, err
		}
		all = append(all, c.Descriptors()...)
	}
	if scanDir != "" {
		c, err := catalog.Scan(scanDir, catalog.DefaultScanPattern)
		if err != nil {
			return nil, err
		}
		all = append(all, c.Descriptors()...)
	}
	if cfg.Catalog == "" && scanDir == "" {
		return nil, errNoCatalog
	}

	c, err := catalog.New(all...).Filter(cfg.Match...)
	if err != nil {
		return nil, err
	}
	if c.Len() == 0 {
		return nil, catalog.ErrEmpty
	}
	return c.Descriptors(), nil
}
