// Command run-kafka-fallback publishes the full job set to Kafka once, on
// demand, skipping weekends — the manual escape hatch for a missed or
// recovering weekday-hourly tick.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/truecivic/ingestor/internal/kafkadispatch"
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

	pub, err := kafkadispatch.NewPublisher(ctx, app.Config.KafkaBrokers, app.Config.KafkaClientID, app.Config.KafkaJobsTopic)
	if err != nil {
		slog.Error("failed to build kafka publisher", slog.Any("error", err))
		os.Exit(1)
	}
	defer pub.Close()

	published, err := kafkadispatch.RunFallback(ctx, pub, app.JobNames(), time.Now())
	if err != nil {
		slog.Error("fallback publish failed", slog.Any("error", err))
		os.Exit(1)
	}
	if !published {
		slog.Info("fallback skipped: weekend")
		return
	}
	slog.Info("fallback published", slog.Int("job_count", len(app.JobNames())))
}
