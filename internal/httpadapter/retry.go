package httpadapter

import (
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// isRetryableStatus reports whether status is one of {408, 425, 429, 500–599}
// per spec.md §4.3/§7/GLOSSARY.
func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return status >= 500 && status <= 599
}

// retryClass buckets a retryable status into one of the three counters
// spec.md §4.3 tracks.
func retryClass(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return "429"
	case status >= 500 && status <= 599:
		return "5xx"
	default:
		return "other"
	}
}

// statusRetryDelay computes the retry delay for a retryable HTTP status.
// 429 honors Retry-After (if a nonnegative integer) plus jitter in
// [0.25, 0.75)s; otherwise exponential backoff min(0.5*2^(n-1),30) +
// uniform(0, 0.5)s, where n is the 1-based attempt number.
func statusRetryDelay(status int, attempt int, retryAfter string) time.Duration {
	if status == http.StatusTooManyRequests {
		if secs, ok := parseRetryAfter(retryAfter); ok && secs >= 0 {
			jitter := 0.25 + rand.Float64()*0.5
			return time.Duration((float64(secs) + jitter) * float64(time.Second))
		}
	}
	base := math.Min(0.5*math.Pow(2, float64(attempt-1)), 30)
	jitter := rand.Float64() * 0.5
	return time.Duration((base + jitter) * float64(time.Second))
}

func parseRetryAfter(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// exceptionRetryDelay computes the retry delay for a retryable transport
// error: min(1*2^(n-1),45) + uniform(0.25, 0.75)s.
func exceptionRetryDelay(attempt int) time.Duration {
	base := math.Min(1*math.Pow(2, float64(attempt-1)), 45)
	jitter := 0.25 + rand.Float64()*0.5
	return time.Duration((base + jitter) * float64(time.Second))
}

// isRetryableException reports whether err is a timeout, network-level, or
// protocol error that the retry loop should treat as transient, matching
// base_adapter.py's `_is_retryable_exception` (Timeout/NetworkError/
// RemoteProtocolError).
func isRetryableException(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return false
}
