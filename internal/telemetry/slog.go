// slog.go installs the process-wide structured logger from logging config.
package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/corebase/corebase/internal/config"
)

// levelNames maps configured level strings to slog levels. An unknown value
// falls back to info: a typo in config should log too much, not go silent.
var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// SetupLogger builds the logger described by cfg (JSON or text, level
// filtering, output target) and installs it as the slog default. The logger
// is also returned for callers that inject it explicitly rather than going
// through slog.Default.
func SetupLogger(cfg config.LoggingConfig) *slog.Logger {
	level, ok := levelNames[strings.ToLower(cfg.Level)]
	if !ok {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// file:line resolution is only worth its cost when debugging
		AddSource: level == slog.LevelDebug,
	}

	out := logOutput(cfg.Output)
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	logger.Info("logger initialised", "format", cfg.Format, "level", level.String(), "output", cfg.Output)
	return logger
}

// logOutput resolves the configured output target: "stdout" (also the
// default), "stderr", or a file path opened append-only. An unopenable file
// falls back to stdout; losing the log stream entirely is worse than writing
// it to the wrong place.
func logOutput(target string) io.Writer {
	switch target {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return os.Stdout
	}
	return f
}
