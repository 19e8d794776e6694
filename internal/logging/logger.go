// Package logging defines the structured-logging interface used across
// GophNotes, with slog and zap implementations.
//
// Passphrases, key material and tokens must never be passed as log
// attributes.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "starting server", "addr", addr, "mode", mode)
type Logger interface {
	// Debug logs diagnostic details, usually disabled in production.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// Supported output formats for New.
const (
	FormatJSON = "json"
	FormatText = "text"
	FormatZap  = "zap"
)

// New builds a Logger writing to w. format selects the backend (json and
// text use slog, zap uses a zap production encoder); level is one of
// debug, info, warn, error.
func New(format, level string, w io.Writer) (Logger, error) {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		return NewSlogLogger(slog.New(slog.NewJSONHandler(w, handlerOptions(level)))), nil
	case FormatText:
		return NewSlogLogger(slog.New(slog.NewTextHandler(w, handlerOptions(level)))), nil
	case FormatZap:
		lvl, err := zapcore.ParseLevel(strings.ToLower(level))
		if err != nil {
			lvl = zapcore.InfoLevel
		}
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(w),
			lvl,
		)
		return NewZapLogger(zap.New(core)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return NewZapLogger(zap.NewNop())
}
