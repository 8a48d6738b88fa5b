package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

func New(env, format, level string) *slog.Logger {
	return NewWriter(os.Stdout, env, format, level)
}

// NewWriter builds the process logger: JSON unless format is "text", Debug in
// dev unless level says otherwise.
func NewWriter(w io.Writer, env, format, level string) *slog.Logger {
	lvl := slog.LevelInfo
	if env == "dev" {
		lvl = slog.LevelDebug
	}
	if level != "" {
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(strings.ToUpper(level))); err == nil {
			lvl = parsed
		}
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	if format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}
