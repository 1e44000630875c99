// Package config defines service configuration and its layered loader.
package config

import (
	"context"
	"runtime"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// IncidentQueueSize bounds the in-memory ingest queue.
	IncidentQueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of ingest workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize bounds how many incident IDs are remembered.
	DedupeSize int `koanf:"dedupe_size"`
	// MaxIncidents caps the incident store; zero is unbounded.
	MaxIncidents int `koanf:"max_incidents"`

	// GridDivisions is the number of longitude steps across the viewport.
	GridDivisions int `koanf:"grid_divisions"`
	// MaxGridPoints rejects viewports whose lattice would be larger.
	MaxGridPoints int `koanf:"max_grid_points"`
	// Default response parameters used when a request omits them.
	ResponseTimeTargetMin float64 `koanf:"response_time_target_min"`
	TurnoutTimeMin        float64 `koanf:"turnout_time_min"`
	TravelSpeedMph        float64 `koanf:"travel_speed_mph"`
	// OptimizationTarget is the default target: population, area, incidents or balanced.
	OptimizationTarget string `koanf:"optimization_target"`
	// MaxSuggestions caps the count accepted by the suggest endpoint.
	MaxSuggestions int `koanf:"max_suggestions"`

	// Kafka incident feed.
	KafkaEnabled bool   `koanf:"kafka_enabled"`
	KafkaBrokers string `koanf:"kafka_brokers"` // comma separated
	KafkaTopic   string `koanf:"kafka_topic"`
	KafkaGroupID string `koanf:"kafka_group_id"`

	// Tracing.
	TracingEnabled     bool    `koanf:"tracing_enabled"`
	TracingExporter    string  `koanf:"tracing_exporter"`
	TracingEndpoint    string  `koanf:"tracing_endpoint"`
	TracingSampleRatio float64 `koanf:"tracing_sample_ratio"`
}

// New returns a Config populated with defaults. Context is accepted first to
// follow the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		IncidentQueueSize:     10_000,
		WorkerCount:           runtime.NumCPU() * 2,
		DedupeSize:            100_000,
		MaxIncidents:          250_000,
		GridDivisions:         25,
		MaxGridPoints:         250_000,
		ResponseTimeTargetMin: 8,
		TurnoutTimeMin:        1,
		TravelSpeedMph:        35,
		OptimizationTarget:    "balanced",
		MaxSuggestions:        10,
		KafkaEnabled:          false,
		KafkaBrokers:          "localhost:9092",
		KafkaTopic:            "incidents",
		KafkaGroupID:          "covergap",
		TracingEnabled:        false,
		TracingExporter:       "stdout",
		TracingSampleRatio:    1,
	}
}

// Brokers splits KafkaBrokers into trimmed, non-empty addresses.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
