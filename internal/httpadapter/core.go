// Package httpadapter implements the C3 HTTP adapter core shared by every
// C4 source adapter: rate limiting, conditional GET, retry-with-backoff,
// a circuit breaker, and structured telemetry.
package httpadapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/truecivic/ingestor/internal/domain"
	"github.com/truecivic/ingestor/internal/httpcache"
	"github.com/truecivic/ingestor/internal/observability"
)

var tracer = otel.Tracer("github.com/truecivic/ingestor/internal/httpadapter")

// Limiter is the C3 rate-limiting port.
type Limiter interface {
	Acquire() (waited bool)
}

// Breaker is the C3 circuit-breaker port.
type Breaker interface {
	Allow() bool
	RecordFailure()
	RecordSuccess()
}

// TelemetryFunc is an optional callback invoked with every call's metrics.
// Per spec.md §4.3, callback errors/panics must be logged and swallowed,
// never propagated to the caller.
type TelemetryFunc func(source string, status Status, m Metrics)

// Core is one adapter instance's shared HTTP machinery: one rate limiter,
// one circuit breaker, one cache-validator store, and one *http.Client,
// reused across every request the adapter issues (spec.md §5 "shared
// resources").
type Core struct {
	Source      string
	Client      *http.Client
	Limiter     Limiter
	Breaker     Breaker
	Cache       *httpcache.Store
	UserAgent   string
	MaxRetries  int
	Telemetry   TelemetryFunc
	Logger      *slog.Logger
	now         func() time.Time
	sleep       func(time.Duration)
}

// NewCore constructs a Core with sane defaults; MaxRetries defaults to 5.
func NewCore(source string, client *http.Client, limiter Limiter, breaker Breaker, userAgent string) *Core {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Core{
		Source:     source,
		Client:     client,
		Limiter:    limiter,
		Breaker:    breaker,
		Cache:      httpcache.NewStore(),
		UserAgent:  userAgent,
		MaxRetries: 5,
		Logger:     slog.Default(),
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// FetchResult is the raw outcome of one GET-with-retries call, before a
// source adapter parses the body into normalized records.
type FetchResult struct {
	StatusCode  int
	Body        []byte
	NotModified bool
	Metrics     Metrics
}

// Get performs a conditional GET against rawURL under cacheKey, applying
// rate limiting, the circuit breaker, and the retry loop described in
// spec.md §4.3. The caller owns turning the body into normalized records.
func (c *Core) Get(ctx context.Context, rawURL, cacheKey string) (result FetchResult, err error) {
	ctx, span := tracer.Start(ctx, "httpadapter.get", trace.WithAttributes(
		attribute.String("source", c.Source),
		attribute.String("url", rawURL),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	if !c.Breaker.Allow() {
		return FetchResult{}, fmt.Errorf("op=httpadapter.get source=%s: %w", c.Source, domain.ErrCircuitOpen)
	}

	var m Metrics
	var latencies []float64
	validator := c.Cache.Get(cacheKey)

	attempt := 0
	for {
		attempt++
		if c.Limiter.Acquire() {
			m.RateLimitHits++
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return FetchResult{}, fmt.Errorf("op=httpadapter.get source=%s: %w", c.Source, err)
		}
		if c.UserAgent != "" {
			req.Header.Set("User-Agent", c.UserAgent)
		}
		if validator.HasValidators() {
			validator.Apply(req)
		}

		start := c.now()
		resp, err := c.Client.Do(req)
		elapsed := c.now().Sub(start)
		latencies = append(latencies, float64(elapsed.Microseconds())/1000.0)
		m.HTTPRequestCount++

		if err != nil {
			if isRetryableException(err) && attempt <= c.MaxRetries {
				m.RetryCount++
				m.RetryOther++
				delay := exceptionRetryDelay(attempt)
				c.emitTelemetry(StatusFailure, m)
				c.sleep(delay)
				continue
			}
			c.Breaker.RecordFailure()
			m.Duration = sumDurations(latencies)
			m.LatencyAvgMS, m.LatencyP95MS = latencyStats(latencies)
			c.emitTelemetry(StatusFailure, m)
			return FetchResult{Metrics: m}, fmt.Errorf("op=httpadapter.get source=%s: %w", c.Source, err)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			c.Breaker.RecordFailure()
			m.LatencyAvgMS, m.LatencyP95MS = latencyStats(latencies)
			c.emitTelemetry(StatusFailure, m)
			return FetchResult{Metrics: m}, fmt.Errorf("op=httpadapter.get source=%s: %w", c.Source, readErr)
		}

		if resp.StatusCode == http.StatusNotModified {
			m.NotModifiedCount++
			c.Breaker.RecordSuccess()
			m.LatencyAvgMS, m.LatencyP95MS = latencyStats(latencies)
			c.emitTelemetry(StatusSuccess, m)
			return FetchResult{StatusCode: resp.StatusCode, NotModified: true, Metrics: m}, nil
		}

		if isRetryableStatus(resp.StatusCode) {
			class := retryClass(resp.StatusCode)
			switch class {
			case "429":
				m.Retry429++
			case "5xx":
				m.Retry5xx++
			default:
				m.RetryOther++
			}
			if attempt > c.MaxRetries {
				c.Breaker.RecordFailure()
				m.LatencyAvgMS, m.LatencyP95MS = latencyStats(latencies)
				c.emitTelemetry(StatusFailure, m)
				return FetchResult{StatusCode: resp.StatusCode, Metrics: m}, fmt.Errorf(
					"op=httpadapter.get source=%s status=%d: %w", c.Source, resp.StatusCode, domain.ErrRetryable)
			}
			m.RetryCount++
			delay := statusRetryDelay(resp.StatusCode, attempt, resp.Header.Get("Retry-After"))
			c.emitTelemetry(StatusRateLimited, m)
			c.sleep(delay)
			continue
		}

		// Non-retryable response: success path for the breaker regardless
		// of the HTTP status itself being 2xx/3xx/terminal-4xx, per the
		// resolved circuit-breaker Open Question in DESIGN.md.
		c.Breaker.RecordSuccess()
		validator.UpdateFromResponse(resp)
		c.Cache.Set(cacheKey, validator)
		m.LatencyAvgMS, m.LatencyP95MS = latencyStats(latencies)
		c.emitTelemetry(StatusSuccess, m)
		return FetchResult{StatusCode: resp.StatusCode, Body: body, Metrics: m}, nil
	}
}

func sumDurations(latenciesMS []float64) time.Duration {
	var sum float64
	for _, v := range latenciesMS {
		sum += v
	}
	return time.Duration(sum * float64(time.Millisecond))
}

func (c *Core) emitTelemetry(status Status, m Metrics) {
	if m.Retry429 > 0 {
		observability.AdapterRetries.WithLabelValues(c.Source, "429").Add(float64(m.Retry429))
	}
	if m.Retry5xx > 0 {
		observability.AdapterRetries.WithLabelValues(c.Source, "5xx").Add(float64(m.Retry5xx))
	}
	if m.RetryOther > 0 {
		observability.AdapterRetries.WithLabelValues(c.Source, "other").Add(float64(m.RetryOther))
	}
	if m.LatencyAvgMS > 0 {
		observability.AdapterLatencyMS.WithLabelValues(c.Source).Observe(m.LatencyAvgMS)
	}

	c.Logger.Info("adapter http call",
		slog.String("source", c.Source),
		slog.String("status", string(status)),
		slog.Int("http_request_count", m.HTTPRequestCount),
		slog.Int("retry_count", m.RetryCount),
		slog.Int("retry_429", m.Retry429),
		slog.Int("retry_5xx", m.Retry5xx),
		slog.Int("retry_other", m.RetryOther),
		slog.Int("not_modified_count", m.NotModifiedCount),
		slog.Float64("latency_avg_ms", m.LatencyAvgMS),
		slog.Float64("latency_p95_ms", m.LatencyP95MS),
	)
	if c.Telemetry == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.Logger.Error("telemetry callback panicked", slog.Any("recover", r))
		}
	}()
	c.Telemetry(c.Source, status, m)
}
