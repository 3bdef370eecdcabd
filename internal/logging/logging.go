// Package logging builds the structured loggers of the CLI and the server.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// ErrInvalidLevel and ErrInvalidFormat report unknown settings.
var (
	ErrInvalidLevel  = errors.New("invalid log level")
	ErrInvalidFormat = errors.New("invalid log format")
)

// Format is a log output format.
type Format string

// Output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseLevel maps debug, info, warn and error to slog levels. Empty means
// info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: %q (want debug, info, warn or error)", ErrInvalidLevel, s)
}

// ParseFormat accepts text and json. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: %q (want text or json)", ErrInvalidFormat, s)
}

// New returns a logger writing to w. Timestamps are RFC3339.
func New(w io.Writer, level slog.Level, format Format) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// HTTPRequest logs one served request.
func HTTPRequest(l *slog.Logger, method, path string, status int, d time.Duration, args ...any) {
	all := append([]any{
		"method", method,
		"path", path,
		"status", status,
		"duration_ms", d.Milliseconds(),
	}, args...)
	l.Info("http request", all...)
}

// WebSocketEvent logs a connection event with the number of live clients.
func WebSocketEvent(l *slog.Logger, event string, clients int, args ...any) {
	all := append([]any{"event", event, "clients", clients}, args...)
	l.Info("websocket", all...)
}

// SecurityEvent logs a rejected request.
func SecurityEvent(l *slog.Logger, event string, args ...any) {
	all := append([]any{"event", event}, args...)
	l.Warn("security", all...)
}
