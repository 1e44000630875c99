// Package scenario drives a running covergap service through a synthetic
// jurisdiction and checks the heat map and suggestions it returns.
package scenario

import (
	"errors"
	"fmt"
	"time"

	"github.com/okian/covergap/internal/domain/geo"
)

// Sentinel error kinds.
var (
	ErrInvalidConfig = errors.New("invalid scenario config")
	ErrUnhealthy     = errors.New("service unhealthy")
	ErrRequest       = errors.New("request failed")
	ErrIngestTimeout = errors.New("incidents not ingested in time")
	ErrVerification  = errors.New("verification failed")
)

// Config holds the scenario parameters.
type Config struct {
	BaseURL   string        // Base URL of the service
	Center    geo.Point     // Jurisdiction center
	SpanDeg   float64       // Viewport width and height in degrees
	Stations  int           // Existing stations to place
	Incidents int           // Incidents to generate
	Clusters  int           // Incident hot spots
	Suggest   int           // Sites to request from suggest
	Target    string        // Optimization target
	Boundary  bool          // Upload a jurisdiction boundary
	Seed      uint64        // Generator seed; equal seeds give equal jurisdictions
	Workers   int           // Concurrent submit requests
	BatchSize int           // Incidents per submit request
	Timeout   time.Duration // HTTP request timeout
	Settle    time.Duration // How long to wait for ingestion
	Output    string        // Report file; empty skips writing
}

// DefaultConfig returns a small scenario around Austin, TX.
func DefaultConfig() Config {
	return Config{
		BaseURL:   "http://localhost:9080",
		Center:    geo.Point{Lat: 30.27, Lon: -97.74},
		SpanDeg:   0.2,
		Stations:  4,
		Incidents: 2000,
		Clusters:  5,
		Suggest:   3,
		Target:    "balanced",
		Boundary:  true,
		Seed:      1,
		Workers:   4,
		BatchSize: 250,
		Timeout:   30 * time.Second,
		Settle:    30 * time.Second,
	}
}

// Validate rejects configurations that cannot produce a scenario.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case !c.Center.Valid():
		return fmt.Errorf("%w: center %v is not a coordinate", ErrInvalidConfig, c.Center)
	case c.SpanDeg <= 0 || c.SpanDeg > 10:
		return fmt.Errorf("%w: span must be within (0, 10] degrees", ErrInvalidConfig)
	case c.Stations < 0 || c.Incidents < 0 || c.Clusters < 0:
		return fmt.Errorf("%w: counts must not be negative", ErrInvalidConfig)
	case c.Incidents > 0 && c.Clusters <= 0:
		return fmt.Errorf("%w: clusters must be positive", ErrInvalidConfig)
	case c.Suggest < 0:
		return fmt.Errorf("%w: suggest must not be negative", ErrInvalidConfig)
	case c.Workers <= 0 || c.BatchSize <= 0:
		return fmt.Errorf("%w: workers and batch size must be positive", ErrInvalidConfig)
	}
	return nil
}

// Bounds is the viewport the scenario scores.
func (c *Config) Bounds() geo.Bounds {
	half := c.SpanDeg / 2
	return geo.Bounds{
		South: c.Center.Lat - half,
		North: c.Center.Lat + half,
		West:  c.Center.Lon - half,
		East:  c.Center.Lon + half,
	}
}
