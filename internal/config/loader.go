package config

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "COVERGAP_"
	envFileVar = "COVERGAP_CONFIG"
)

var validTargets = map[string]bool{"population": true, "area": true, "incidents": true, "balanced": true}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if COVERGAP_CONFIG is set
//  3. env (prefix COVERGAP_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)
	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// COVERGAP_QUEUE_SIZE -> queue_size; underscores are kept to match the flat koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.IncidentQueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.GridDivisions <= 0:
		return fmt.Errorf("%w: grid_divisions must be positive", ErrInvalidConfig)
	case c.MaxGridPoints <= 0:
		return fmt.Errorf("%w: max_grid_points must be positive", ErrInvalidConfig)
	case !positive(c.ResponseTimeTargetMin):
		return fmt.Errorf("%w: response_time_target_min must be positive", ErrInvalidConfig)
	case c.TurnoutTimeMin < 0 || math.IsNaN(c.TurnoutTimeMin) || math.IsInf(c.TurnoutTimeMin, 0):
		return fmt.Errorf("%w: turnout_time_min must not be negative", ErrInvalidConfig)
	case !positive(c.TravelSpeedMph):
		return fmt.Errorf("%w: travel_speed_mph must be positive", ErrInvalidConfig)
	case !validTargets[strings.ToLower(c.OptimizationTarget)]:
		return fmt.Errorf("%w: unknown optimization_target %q", ErrInvalidConfig, c.OptimizationTarget)
	case c.MaxSuggestions <= 0:
		return fmt.Errorf("%w: max_suggestions must be positive", ErrInvalidConfig)
	case c.KafkaEnabled && (len(c.Brokers()) == 0 || c.KafkaTopic == ""):
		return fmt.Errorf("%w: kafka_brokers and kafka_topic are required when kafka is enabled", ErrInvalidConfig)
	case c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1:
		return fmt.Errorf("%w: tracing_sample_ratio must be within [0, 1]", ErrInvalidConfig)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
