package utils

import (
	"log/slog"
	"time"
)

// Timed logs msg, runs fn and logs the elapsed time together with the outcome.
// The error of fn is returned unchanged.
func Timed(logger *slog.Logger, msg string, fn func() error, args ...any) error {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info(msg, args...)
	start := time.Now()
	err := fn()
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		logger.Error(msg+" failed", append(args, "elapsed", elapsed, "error", err)...)
		return err
	}
	logger.Info(msg+" done", append(args, "elapsed", elapsed)...)
	return nil
}
