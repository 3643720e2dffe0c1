// Command run-kafka-consumer joins the Kafka consumer group and runs
// whichever job name each message names, using the same C5 job closures the
// in-process scheduler uses, for the current hourly window.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/truecivic/ingestor/internal/domain"
	"github.com/truecivic/ingestor/internal/kafkadispatch"
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

	byName := make(map[string]domain.Job, len(app.Jobs))
	for _, j := range app.Jobs {
		byName[j.Name] = j
	}

	handle := func(runCtx domain.Context, jobName string) error {
		job, ok := byName[jobName]
		if !ok {
			return fmt.Errorf("op=run_kafka_consumer.handle job=%s: %w", jobName, domain.ErrNotFound)
		}
		window := wiring.Window(time.Now())
		return job.Run(runCtx, window)
	}

	consumer, err := kafkadispatch.NewConsumer(app.Config.KafkaBrokers, app.Config.KafkaGroupID, app.Config.KafkaJobsTopic, handle)
	if err != nil {
		slog.Error("failed to build kafka consumer", slog.Any("error", err))
		os.Exit(1)
	}
	defer consumer.Close()

	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("consumer stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
