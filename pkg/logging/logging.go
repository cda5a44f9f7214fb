// Package logging provides the slog.Logger factory used by the exporter apps.
//
// Log format is controlled by the LOG_FORMAT environment variable:
//
//	LOG_FORMAT=json    structured JSON, suitable for log aggregators (default)
//	LOG_FORMAT=text    human-readable key=value pairs, for local development
//
// Log level is controlled by LOG_LEVEL (debug, info, warn, error; default info).
//
// When LOG_FILE is set, records are also written to that file, rotated at
// 10 MB with three compressed backups kept.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger configured from environment variables and tagged with
// the given app name.
func New(app string) *slog.Logger {
	return NewWithWriter(Output(os.Getenv("LOG_FILE")), app, os.Getenv("LOG_FORMAT"), os.Getenv("LOG_LEVEL"))
}

// Output returns stdout, teed into a rotating file when path is non-empty.
func Output(path string) io.Writer {
	if path == "" {
		return os.Stdout
	}
	return io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	})
}

// NewWithWriter builds a logger writing to w with an explicit format and level.
func NewWithWriter(w io.Writer, app, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text", "console":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	log := slog.New(handler)
	if app != "" {
		log = log.With("app", app)
	}
	return log
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
