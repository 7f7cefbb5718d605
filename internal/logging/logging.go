// Package logging configures the engine's structured logger: text output
// for terminals, JSON for daemon/file output, the way the teacher's call
// sites use log/slog (no single teacher file centralizes this, so the
// handler selection here follows the teacher's own JSON-vs-human output
// toggle convention seen throughout cmd/bd, e.g. the --json flag).
package logging

import (
	"log/slog"
	"os"
)

// Options configures the logger returned by New.
type Options struct {
	JSON    bool
	Verbose bool
}

// New constructs a *slog.Logger per Options.
func New(opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	return slog.New(handler)
}

// WithEntry returns logger with the request-scoped fields submissionId,
// configurationId and nodeRequestId attached (spec.md §6.1). The entry
// state machine and the cache aggregator do not log themselves, and no
// package in the engine calls WithEntry.
func WithEntry(logger *slog.Logger, submissionID, configurationID, nodeRequestID int) *slog.Logger {
	return logger.With(
		slog.Int("submissionId", submissionID),
		slog.Int("configurationId", configurationID),
		slog.Int("nodeRequestId", nodeRequestID),
	)
}
