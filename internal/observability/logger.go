package observability

import (
	"io"
	"log/slog"
	"strings"

	"github.com/ppiankov/crisisfeed/internal/model"
)

// NewLogger constructs a logger writing to w. Logs go to stderr in the CLI so
// stdout stays clean for JSON output.
func NewLogger(w io.Writer, cfg model.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("service", "crisisfeed")
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
