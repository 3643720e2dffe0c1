package observability

import (
	"log/slog"
	"os"

	"github.com/truecivic/ingestor/internal/config"
)

// SetupLogger builds the process-wide JSON slog.Logger, tagged with the
// service name and environment, with debug-level output in dev.
func SetupLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.IsDev() {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(handler).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("env", cfg.AppEnv),
	)
	slog.SetDefault(logger)
	return logger
}
