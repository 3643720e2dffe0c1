package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the ingestion-domain Prometheus collectors: job
// attempts/durations, checkpoint transitions, adapter retry-by-class
// counters, circuit-breaker state, and Kafka publish/consume counts.
var (
	JobAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestor_job_attempts_total",
		Help: "Count of job attempts by job name and terminal status.",
	}, []string{"job", "status"})

	JobDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingestor_job_duration_seconds",
		Help:    "Per-attempt job execution duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	CheckpointTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestor_checkpoint_transitions_total",
		Help: "Count of checkpoint state transitions by job and resulting status.",
	}, []string{"job", "status"})

	AdapterRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestor_adapter_retries_total",
		Help: "Count of HTTP adapter retries by source and retry class (429, 5xx, other).",
	}, []string{"source", "class"})

	AdapterLatencyMS = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingestor_adapter_latency_ms",
		Help:    "Average adapter HTTP request latency in milliseconds over a call's attempts, observed once per call.",
		Buckets: prometheus.ExponentialBuckets(10, 2, 12),
	}, []string{"source"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ingestor_circuit_breaker_open",
		Help: "1 if the circuit breaker for a source is currently open, else 0.",
	}, []string{"source"})

	KafkaPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestor_kafka_messages_published_total",
		Help: "Count of job-dispatch messages published, by job name.",
	}, []string{"job"})

	KafkaConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestor_kafka_messages_consumed_total",
		Help: "Count of job-dispatch messages consumed, by job name and outcome.",
	}, []string{"job", "outcome"})
)
