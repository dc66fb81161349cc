package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"assist/internal/config"
	"assist/pkg/logging"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the process logger. With a log file configured, records
// go to stdout and to a size-rotated file.
func NewLogger(cfg config.Config) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.Logger.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Logger.File,
			MaxSize:    cfg.Logger.MaxSizeMB,
			MaxBackups: cfg.Logger.MaxBackups,
			MaxAge:     cfg.Logger.MaxAgeDays,
			Compress:   true,
		})
	}
	opts := &slog.HandlerOptions{
		Level:     logging.ParseLevel(cfg.Logger.Level),
		AddSource: true, // critical for incident debugging
	}
	var handler slog.Handler
	switch strings.ToUpper(cfg.Logger.Format) {
	case "TEXT":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}
	logger := slog.New(handler).With(
		slog.String("service", cfg.Service.Name),
		slog.String("env", cfg.Service.Env),
		slog.String("address", cfg.Service.Add),
		slog.Int("pid", os.Getpid()),
	)
	slog.SetDefault(logger)
	return logger
}
