// Package common holds process-wide helpers shared by every binary:
// the structured logger bootstrap and version metadata.
package common

import (
	"log/slog"
	"os"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0"

// LoggingOpts configures the process logger.
type LoggingOpts struct {
	// Debug lowers the log level to debug.
	Debug bool

	// JSON switches the handler to JSON output.
	JSON bool

	// Service is added as a "service" attribute to all records.
	Service string

	// Version is added as a "version" attribute to all records.
	Version string
}

// SetupLogger creates the process logger. All components receive this
// logger (or a child of it) through their constructors.
func SetupLogger(opts *LoggingOpts) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(handler)
	if opts.Service != "" {
		logger = logger.With(slog.String("service", opts.Service))
	}
	if opts.Version != "" {
		logger = logger.With(slog.String("version", opts.Version))
	}
	return logger
}
