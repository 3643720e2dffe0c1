package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSourceOverridesReturnsNilForEmptyPath(t *testing.T) {
	got, err := LoadSourceOverrides("")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", got, err)
	}
}

func TestLoadSourceOverridesReturnsNilForMissingFile(t *testing.T) {
	got, err := LoadSourceOverrides(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil) for a missing file, got (%v, %v)", got, err)
	}
}

func TestLoadSourceOverridesParsesPerSourceTuning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	content := `
sources:
  hansard:
    rate_limit_per_second: 1
    rate_limit_burst: 1
    max_retries: 2
    circuit_breaker_threshold: 3
    circuit_breaker_cooldown: 30s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	got, err := LoadSourceOverrides(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o, ok := got["hansard"]
	if !ok {
		t.Fatalf("expected a hansard override, got %+v", got)
	}
	if o.RateLimitPerSecond != 1 || o.RateLimitBurst != 1 || o.MaxRetries != 2 ||
		o.CircuitBreakerThreshold != 3 || o.CircuitBreakerCooldown != 30*time.Second {
		t.Fatalf("unexpected override values: %+v", o)
	}
}
