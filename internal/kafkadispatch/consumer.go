package kafkadispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/truecivic/ingestor/internal/domain"
	"github.com/truecivic/ingestor/internal/observability"
)

// Handler maps job names to the domain.Job.Run closures registered for this
// process, so the consumer can invoke whichever job a message names.
type Handler func(ctx domain.Context, jobName string) error

// Consumer reads JobMessages from a consumer group with auto-commit
// disabled, invoking Handle for every message and committing only on
// success, per spec.md §4.7.
type Consumer struct {
	client *kgo.Client
	Handle Handler
	Logger *slog.Logger
}

// NewConsumer constructs a Consumer joining groupID, reading topic from the
// earliest offset, with auto-commit disabled.
func NewConsumer(brokers []string, groupID, topic string, handle Handler) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=kafkadispatch.new_consumer: %w", domain.ErrInvalidArgument)
	}
	tracer := kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))
	kotelSvc := kotel.NewKotel(kotel.WithTracer(tracer))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
		kgo.WithHooks(kotelSvc.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("op=kafkadispatch.new_consumer: %w", err)
	}
	return &Consumer{client: client, Handle: handle, Logger: slog.Default()}, nil
}

// Run polls until ctx is canceled, invoking Handle for every message and
// committing synchronously on success; on handler failure the offset is
// left uncommitted so the broker redelivers the message.
func (c *Consumer) Run(ctx domain.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, e := range errs {
				c.Logger.Error("kafka fetch error", slog.String("topic", e.Topic), slog.Any("error", e.Err))
			}
		}

		fetches.EachRecord(func(rec *kgo.Record) {
			var msg JobMessage
			if err := json.Unmarshal(rec.Value, &msg); err != nil {
				c.Logger.Error("malformed job message, acking", slog.Any("error", err))
				observability.KafkaConsumed.WithLabelValues("", "malformed").Inc()
				c.commit(ctx, rec)
				return
			}

			err := c.Handle(ctx, msg.Job)
			label, commit := classifyHandleOutcome(err)
			switch {
			case err == nil:
				// success path, nothing to log
			case errors.Is(err, domain.ErrNotFound):
				c.Logger.Error("unknown job name, acking", slog.String("job", msg.Job), slog.Any("error", err))
			default:
				c.Logger.Error("job handler failed, leaving uncommitted for redelivery",
					slog.String("job", msg.Job), slog.Any("error", err))
			}
			observability.KafkaConsumed.WithLabelValues(msg.Job, label).Inc()
			if commit {
				c.commit(ctx, rec)
			}
		})
	}
}

// classifyHandleOutcome decides, from a Handle call's error, what metrics
// label to record and whether the offset should be committed. An unknown
// job name (domain.ErrNotFound) is logged-and-acked exactly like a
// malformed message, per spec.md §4.7 — it can never succeed on redelivery,
// unlike a transient handler failure, which is left uncommitted so the
// broker redelivers it.
func classifyHandleOutcome(err error) (label string, commit bool) {
	switch {
	case err == nil:
		return "success", true
	case errors.Is(err, domain.ErrNotFound):
		return "unknown_job", true
	default:
		return "failed", false
	}
}

func (c *Consumer) commit(ctx domain.Context, rec *kgo.Record) {
	if err := c.client.CommitRecords(ctx, rec); err != nil {
		c.Logger.Error("commit failed", slog.Any("error", err))
	}
}

// Close releases the underlying client.
func (c *Consumer) Close() { c.client.Close() }
