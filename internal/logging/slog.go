package logging

import (
	"context"
	"log/slog"
	"strings"
)

// redactedKeys name attributes whose values are dropped by the slog
// handlers built by New, as a backstop for accidental secret logging.
var redactedKeys = map[string]bool{
	"passphrase":    true,
	"kek":           true,
	"dek":           true,
	"verifier":      true,
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
}

const redacted = "[redacted]"

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if redactedKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}
	return a
}

func handlerOptions(level string) *slog.HandlerOptions {
	return &slog.HandlerOptions{Level: slogLevel(level), ReplaceAttr: redactAttr}
}

func slogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// SlogLogger adapts *slog.Logger to Logger. The context is handed to the
// handler so request-scoped handlers can pick up values from it.
type SlogLogger struct {
	l *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	s.l.DebugContext(ctx, msg, args...)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	s.l.InfoContext(ctx, msg, args...)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	s.l.WarnContext(ctx, msg, args...)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	s.l.ErrorContext(ctx, msg, args...)
}

func (s *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{l: s.l.With(args...)}
}
