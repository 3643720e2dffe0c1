// Package circuitbreaker implements the C3 adapter circuit breaker: a
// closed/open two-state model (no half-open probing) gated on monotonic
// time, per spec.md §4.3.
package circuitbreaker

import (
	"sync"
	"time"

	"github.com/truecivic/ingestor/internal/observability"
)

// MonotonicClock abstracts monotonic time for injectable "cooperative
// sleeping" in tests, per the §9 design note.
type MonotonicClock func() time.Time

// Breaker tracks consecutive adapter failures and fails fast once the
// configured threshold is reached, for cooldown_seconds.
type Breaker struct {
	mu                  sync.Mutex
	source              string
	threshold           int
	cooldown            time.Duration
	consecutiveFailures int
	openUntil           time.Time
	now                 MonotonicClock
}

// New constructs a Breaker with the given threshold (>=1) and cooldown
// (>=5s, per spec.md's invariant on CircuitBreaker state). source labels the
// CircuitBreakerState gauge this instance reports.
func New(source string, threshold int, cooldown time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	if cooldown < 5*time.Second {
		cooldown = 5 * time.Second
	}
	observability.CircuitBreakerState.WithLabelValues(source).Set(0)
	return &Breaker{source: source, threshold: threshold, cooldown: cooldown, now: time.Now}
}

// WithClock overrides the breaker's monotonic clock, for deterministic tests.
func (b *Breaker) WithClock(clock MonotonicClock) *Breaker {
	b.now = clock
	return b
}

// Allow reports whether a new request may proceed. When the breaker is
// open and the cooldown has not elapsed it returns false; otherwise it
// clears any stale open state and returns true.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.openUntil.IsZero() {
		if b.now().Before(b.openUntil) {
			return false
		}
		b.openUntil = time.Time{}
		observability.CircuitBreakerState.WithLabelValues(b.source).Set(0)
	}
	return true
}

// RecordFailure registers a failed attempt (after retries exhausted, or a
// non-retryable exception). Once consecutive failures reach the threshold,
// the breaker opens for cooldown.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures++
	if b.consecutiveFailures >= b.threshold {
		b.openUntil = b.now().Add(b.cooldown)
		b.consecutiveFailures = 0
		observability.CircuitBreakerState.WithLabelValues(b.source).Set(1)
	}
}

// RecordSuccess clears both the failure counter and any open state. Per
// spec.md §4.3 and the resolved Open Question in DESIGN.md, this is called
// for any response that is not itself a retryable status/exception,
// including a terminal non-retryable 4xx — not only the very first one
// after an open period.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
	b.openUntil = time.Time{}
	observability.CircuitBreakerState.WithLabelValues(b.source).Set(0)
}
