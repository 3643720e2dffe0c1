package kafkadispatch

import (
	"fmt"
	"time"

	"github.com/truecivic/ingestor/internal/domain"
)

// RunFallback publishes the full job set synchronously on demand, skipping
// dispatch entirely on weekends, per spec.md §4.7's "run fallback" tool.
func RunFallback(ctx domain.Context, pub *Publisher, jobNames []string, now time.Time) (published bool, err error) {
	weekday := now.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return false, nil
	}
	if err := pub.PublishJobNames(ctx, jobNames); err != nil {
		return false, fmt.Errorf("op=kafkadispatch.run_fallback: %w", err)
	}
	return true, nil
}
