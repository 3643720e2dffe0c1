// Command run-hourly-scheduler starts the weekday-hourly in-process
// scheduler (C7) and serves the admin HTTP surface alongside it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/truecivic/ingestor/internal/adminserver"
	"github.com/truecivic/ingestor/internal/domain"
	"github.com/truecivic/ingestor/internal/scheduler"
	"github.com/truecivic/ingestor/internal/wiring"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := wiring.Build(ctx)
	if err != nil {
		slog.Error("failed to build app", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = app.Shutdown(context.Background()) }()
	defer app.Pool.Close()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.Config.AdminPort),
		Handler: adminserver.New(app.JobNames(), app.Checkpoints, app.Watermarks, app.Config.AdminTokenHash),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("admin server failed", slog.Any("error", err))
		}
	}()

	if app.Config.EnableETLScheduler {
		sched, err := scheduler.New(app.Config.ETLSchedulerTimeZone, func(runCtx domain.Context, window time.Time) {
			results := app.Coordinator.Run(runCtx, window)
			for name, r := range results {
				slog.Info("job result", slog.String("job", name), slog.String("status", string(r.Status)), slog.Int("attempt", r.Attempt))
			}
		})
		if err != nil {
			slog.Error("failed to build scheduler", slog.Any("error", err))
			os.Exit(1)
		}
		if err := sched.Start(ctx); err != nil {
			slog.Error("failed to start scheduler", slog.Any("error", err))
			os.Exit(1)
		}
		defer sched.Shutdown()
	}

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
