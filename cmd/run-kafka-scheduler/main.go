// Command run-kafka-scheduler runs the weekday-hourly tick but, instead of
// executing jobs in-process, publishes one message per job name to Kafka
// for a consumer group to pick up (C8's publisher half).
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/truecivic/ingestor/internal/domain"
	"github.com/truecivic/ingestor/internal/kafkadispatch"
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

	pub, err := kafkadispatch.NewPublisher(ctx, app.Config.KafkaBrokers, app.Config.KafkaClientID, app.Config.KafkaJobsTopic)
	if err != nil {
		slog.Error("failed to build kafka publisher", slog.Any("error", err))
		os.Exit(1)
	}
	defer pub.Close()

	jobNames := app.JobNames()
	sched, err := scheduler.New(app.Config.ETLSchedulerTimeZone, func(runCtx domain.Context, window time.Time) {
		if err := pub.PublishJobNames(runCtx, jobNames); err != nil {
			slog.Error("failed to publish job names", slog.Any("error", err))
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

	<-ctx.Done()
}
