// Package coverage turns response-time parameters into coverage circles and
// answers whether a location is already served by an existing station.
package coverage

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/covergap/internal/domain/geo"
	"github.com/okian/covergap/internal/domain/model"
)

const (
	minutesPerHour = 60.0

	// CustomValue marks a parameter whose number comes from the companion custom field.
	CustomValue = "custom"

	DefaultResponseTimeMinutes = 8.0
	DefaultTurnoutTimeMinutes  = 1.0
	DefaultTravelSpeedMph      = 35.0
)

// Params are the validated response-time inputs.
type Params struct {
	ResponseTimeMinutes float64 `json:"response_time_min"`
	TurnoutTimeMinutes  float64 `json:"turnout_time_min"`
	TravelSpeedMph      float64 `json:"travel_speed_mph"`
}

// DefaultParams returns the 8 minute / 1 minute / 35 mph defaults.
func DefaultParams() Params {
	return Params{
		ResponseTimeMinutes: DefaultResponseTimeMinutes,
		TurnoutTimeMinutes:  DefaultTurnoutTimeMinutes,
		TravelSpeedMph:      DefaultTravelSpeedMph,
	}
}

// Validate rejects non-finite, non-positive response and speed values and negative turnout.
func (p Params) Validate() error {
	switch {
	case !finite(p.ResponseTimeMinutes) || p.ResponseTimeMinutes <= 0:
		return fmt.Errorf("%w: response_time must be a positive number, got %v", ErrInvalidConfig, p.ResponseTimeMinutes)
	case !finite(p.TurnoutTimeMinutes) || p.TurnoutTimeMinutes < 0:
		return fmt.Errorf("%w: turnout_time must be a non-negative number, got %v", ErrInvalidConfig, p.TurnoutTimeMinutes)
	case !finite(p.TravelSpeedMph) || p.TravelSpeedMph <= 0:
		return fmt.Errorf("%w: travel_speed must be a positive number, got %v", ErrInvalidConfig, p.TravelSpeedMph)
	}
	return nil
}

// RadiusMiles is the drivable distance inside the response window.
func (p Params) RadiusMiles() float64 {
	return RadiusMiles(p.ResponseTimeMinutes, p.TurnoutTimeMinutes, p.TravelSpeedMph)
}

// RadiusMiles computes max(0, response - turnout) minutes of travel at speed mph.
// A turnout at or above the response target yields zero, not an error.
func RadiusMiles(responseTimeMinutes, turnoutTimeMinutes, travelSpeedMph float64) float64 {
	travel := math.Max(0, responseTimeMinutes-turnoutTimeMinutes)
	return travel / minutesPerHour * travelSpeedMph
}

// RawParams carries parameters as the UI submits them: a numeric string or
// "custom" paired with a free-text custom value.
type RawParams struct {
	ResponseTime       string `json:"response_time"`
	ResponseTimeCustom string `json:"response_time_custom,omitempty"`
	TurnoutTime        string `json:"turnout_time"`
	TurnoutTimeCustom  string `json:"turnout_time_custom,omitempty"`
	TravelSpeed        string `json:"travel_speed"`
	TravelSpeedCustom  string `json:"travel_speed_custom,omitempty"`
}

// ParseParams resolves and validates raw parameters. Empty selections fall
// back to defaults; anything unparseable fails with an error naming the field.
func ParseParams(raw RawParams) (Params, error) {
	return ParseParamsWithDefaults(raw, DefaultParams())
}

// ParseParamsWithDefaults is ParseParams with caller supplied fallbacks.
func ParseParamsWithDefaults(raw RawParams, def Params) (Params, error) {
	rt, err := resolve("response_time", raw.ResponseTime, raw.ResponseTimeCustom, def.ResponseTimeMinutes)
	if err != nil {
		return Params{}, err
	}
	tt, err := resolve("turnout_time", raw.TurnoutTime, raw.TurnoutTimeCustom, def.TurnoutTimeMinutes)
	if err != nil {
		return Params{}, err
	}
	ts, err := resolve("travel_speed", raw.TravelSpeed, raw.TravelSpeedCustom, def.TravelSpeedMph)
	if err != nil {
		return Params{}, err
	}
	p := Params{ResponseTimeMinutes: rt, TurnoutTimeMinutes: tt, TravelSpeedMph: ts}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

func resolve(field, selected, custom string, fallback float64) (float64, error) {
	selected = strings.TrimSpace(selected)
	if selected == "" {
		return fallback, nil
	}
	if strings.EqualFold(selected, CustomValue) {
		selected = strings.TrimSpace(custom)
		if selected == "" {
			return 0, fmt.Errorf("%w: %s is custom but no custom value was given", ErrInvalidConfig, field)
		}
	}
	v, err := strconv.ParseFloat(selected, 64)
	if err != nil || !finite(v) {
		return 0, fmt.Errorf("%w: %s %q is not a number", ErrInvalidConfig, field, selected)
	}
	return v, nil
}

// Circle is the area a station reaches inside the response target.
type Circle struct {
	Center      geo.Point `json:"center"`
	RadiusMiles float64   `json:"radius_miles"`
}

// Contains reports whether p is within the circle, boundary inclusive.
func (c Circle) Contains(p geo.Point) bool {
	return geo.DistanceMiles(c.Center, p) <= c.RadiusMiles
}

// CirclesFromStations gives every station the same radius.
func CirclesFromStations(stations []model.Station, radiusMiles float64) []Circle {
	out := make([]Circle, len(stations))
	for i, s := range stations {
		out[i] = Circle{Center: s.Point, RadiusMiles: radiusMiles}
	}
	return out
}

// Covered reports whether any circle contains p.
func Covered(p geo.Point, circles []Circle) bool {
	for _, c := range circles {
		if c.Contains(p) {
			return true
		}
	}
	return false
}

// Summary counts how many incidents the circles already reach.
type Summary struct {
	IncidentsTotal   int     `json:"incidents_total"`
	IncidentsCovered int     `json:"incidents_covered"`
	CoveragePercent  float64 `json:"coverage_percent"`
}

// Summarize computes incident coverage for the given circles.
func Summarize(incidents []geo.Point, circles []Circle) Summary {
	s := Summary{IncidentsTotal: len(incidents)}
	for _, p := range incidents {
		if Covered(p, circles) {
			s.IncidentsCovered++
		}
	}
	if s.IncidentsTotal > 0 {
		s.CoveragePercent = float64(s.IncidentsCovered) / float64(s.IncidentsTotal) * 100
	}
	return s
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
