package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceOverride overrides the shared House* HTTP adapter defaults for one
// named source (e.g. "hansard" needs a tighter rate limit than "mps").
type SourceOverride struct {
	RateLimitPerSecond      float64       `yaml:"rate_limit_per_second"`
	RateLimitBurst          int           `yaml:"rate_limit_burst"`
	MaxRetries              int           `yaml:"max_retries"`
	CircuitBreakerThreshold int           `yaml:"circuit_breaker_threshold"`
	CircuitBreakerCooldown  time.Duration `yaml:"circuit_breaker_cooldown"`
}

// sourceOverridesYAML is the on-disk shape: a flat map keyed by source name.
type sourceOverridesYAML struct {
	Sources map[string]SourceOverride `yaml:"sources"`
}

// LoadSourceOverrides reads path (if non-empty and present on disk) and
// returns per-source overrides for the shared House* HTTP adapter tuning.
// A missing path is not an error: the caller falls back to Config's
// shared defaults for every source.
func LoadSourceOverrides(path string) (map[string]SourceOverride, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	// #nosec G304 -- path comes from operator-controlled configuration, not request input.
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("op=config.load_source_overrides path=%s: %w", path, err)
	}
	var parsed sourceOverridesYAML
	if err := yaml.Unmarshal(content, &parsed); err != nil {
		return nil, fmt.Errorf("op=config.load_source_overrides path=%s: %w", path, err)
	}
	return parsed.Sources, nil
}
