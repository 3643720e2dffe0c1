package kafkadispatch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/truecivic/ingestor/internal/domain"
)

func TestClassifyHandleOutcomeCommitsOnSuccess(t *testing.T) {
	label, commit := classifyHandleOutcome(nil)
	if label != "success" || !commit {
		t.Fatalf("expected success/commit, got label=%q commit=%v", label, commit)
	}
}

func TestClassifyHandleOutcomeAcksUnknownJobInsteadOfRedelivering(t *testing.T) {
	err := fmt.Errorf("op=run_kafka_consumer.handle job=bogus: %w", domain.ErrNotFound)
	label, commit := classifyHandleOutcome(err)
	if label != "unknown_job" || !commit {
		t.Fatalf("expected an unknown job name to be committed (acked), got label=%q commit=%v", label, commit)
	}
}

func TestClassifyHandleOutcomeLeavesRealFailureUncommitted(t *testing.T) {
	label, commit := classifyHandleOutcome(errors.New("boom"))
	if label != "failed" || commit {
		t.Fatalf("expected a real handler failure to be left uncommitted for redelivery, got label=%q commit=%v", label, commit)
	}
}
