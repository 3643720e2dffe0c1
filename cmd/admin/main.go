// Command admin serves the read-only admin HTTP surface as a standalone
// process, separate from any scheduler or consumer — for deployments that
// run the admin surface on its own replica.
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

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
