// Command run-hourly-once runs the coordinator once for the current hourly
// window and exits non-zero if any job failed or was skipped.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/truecivic/ingestor/internal/wiring"
)

func main() {
	ctx := context.Background()
	app, err := wiring.Build(ctx)
	if err != nil {
		slog.Error("failed to build app", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = app.Shutdown(ctx) }()
	defer app.Pool.Close()

	window := wiring.Window(time.Now())
	results := app.Coordinator.Run(ctx, window)

	for name, r := range results {
		fmt.Printf("%-20s %-10s attempt=%d\n", name, r.Status, r.Attempt)
	}
	os.Exit(wiring.ExitCode(results))
}
