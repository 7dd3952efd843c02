// Package logger builds the process-wide structured logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Proton-105/stepbot/pkg/config"
)

const bytesPerMegabyte = 1 << 20

// Options carries what New needs besides the logger section of the config.
type Options struct {
	Sentry  bool
	Secrets []string
	Stdout  io.Writer
}

// New creates the root slog.Logger: stdout plus an optional rotating file, secrets masked,
// errors mirrored to Sentry when enabled.
func New(cfg config.LoggerConfig, opts Options) *slog.Logger {
	level := ParseLevel(cfg.Level)
	if cfg.TraceRequests {
		level = slog.LevelDebug
	}

	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}
	if cfg.File != "" {
		out = io.MultiWriter(out, fileWriter(cfg))
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	if opts.Sentry {
		handler = newFanoutHandler(handler, slogsentry.Option{Level: slog.LevelError}.NewSentryHandler())
	}

	handler = NewMaskingHandler(newCorrelationHandler(handler), opts.Secrets...)

	return slog.New(handler)
}

func fileWriter(cfg config.LoggerConfig) io.Writer {
	maxSize := cfg.FileMaxBytes / bytesPerMegabyte
	if maxSize < 1 {
		maxSize = 1
	}

	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxSize,
		MaxBackups: cfg.FileBackupCount,
	}
}

// ParseLevel accepts debug, info, warn/warning and error in any case. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "critical":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
