// Package observability provides logging, metrics and tracing wiring shared
// by the scheduler and worker binaries.
package observability

import (
	"log/slog"
	"os"
	"strings"

	"github.com/kacperzuk-neti/filplus-provider-benchmark/internal/config"
)

// SetupLogger configures a JSON slog logger with service fields. The level
// comes from LOG_LEVEL; dev environments default to debug.
func SetupLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	if cfg.IsDev() && cfg.LogLevel == "" {
		opts.Level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(h).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("env", cfg.AppEnv),
	)
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
