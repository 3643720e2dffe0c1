// Package kafkadispatch implements the C8 Kafka-backed alternate dispatcher:
// a weekday-hourly publisher that fans job names out to a topic, and a
// consumer group that pulls them and invokes the same C5 job closures,
// adapted from the queue producer/consumer pair's franz-go wiring.
package kafkadispatch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/truecivic/ingestor/internal/domain"
	"github.com/truecivic/ingestor/internal/observability"
)

// JobMessage is the wire payload published for one job name.
type JobMessage struct {
	Job     string            `json:"job"`
	Payload map[string]string `json:"payload"`
}

// Publisher produces one JobMessage per job name to Topic, with an
// idempotent producer and snappy compression, per spec.md §4.7.
type Publisher struct {
	client *kgo.Client
	Topic  string
}

// NewPublisher constructs a Publisher and ensures topic exists (single
// partition by default, replication factor 1, suitable for a single-broker
// dev/staging cluster; production deployments should pre-create the topic
// with their own replication factor).
func NewPublisher(ctx domain.Context, brokers []string, clientID, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=kafkadispatch.new_publisher: %w", domain.ErrInvalidArgument)
	}
	tracer := kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))
	kotelSvc := kotel.NewKotel(kotel.WithTracer(tracer))

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RequestRetries(5),
		kgo.WithHooks(kotelSvc.Hooks()...),
		// Idempotent producer: enabled by default in franz-go unless an
		// explicit producer ID override disables it.
	)
	if err != nil {
		return nil, fmt.Errorf("op=kafkadispatch.new_publisher: %w", err)
	}
	if err := ensureTopic(ctx, client, topic, 1, 1); err != nil {
		client.Close()
		return nil, err
	}
	return &Publisher{client: client, Topic: topic}, nil
}

// PublishJobNames publishes one message per job name, synchronously, in the
// order given.
func (p *Publisher) PublishJobNames(ctx domain.Context, jobNames []string) error {
	for _, name := range jobNames {
		msg := JobMessage{Job: name, Payload: map[string]string{}}
		b, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("op=kafkadispatch.publish job=%s: %w", name, err)
		}
		record := &kgo.Record{Topic: p.Topic, Key: []byte(name), Value: b, Timestamp: time.Now()}
		res := p.client.ProduceSync(ctx, record)
		if err := res.FirstErr(); err != nil {
			return fmt.Errorf("op=kafkadispatch.publish job=%s: %w", name, err)
		}
		observability.KafkaPublished.WithLabelValues(name).Inc()
	}
	return nil
}

// Close releases the underlying client.
func (p *Publisher) Close() { p.client.Close() }
