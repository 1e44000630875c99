package scoring

import (
	"fmt"
	"strings"
)

// Target selects how the three score components are weighted.
type Target string

// Supported optimization targets.
const (
	TargetPopulation Target = "population"
	TargetArea       Target = "area"
	TargetIncidents  Target = "incidents"
	TargetBalanced   Target = "balanced"
)

// Weights multiply the population, incident and area components.
type Weights struct {
	Population float64 `json:"population"`
	Incidents  float64 `json:"incidents"`
	Area       float64 `json:"area"`
}

var targetWeights = map[Target]Weights{
	TargetPopulation: {Population: 2, Incidents: 0.5, Area: 0.5},
	TargetArea:       {Population: 0.5, Incidents: 0.5, Area: 2},
	TargetIncidents:  {Population: 0.5, Incidents: 2, Area: 0.5},
	TargetBalanced:   {Population: 1, Incidents: 1, Area: 1},
}

var targetLabels = map[Target]string{
	TargetPopulation: "Population Coverage",
	TargetArea:       "Geographic Area",
	TargetIncidents:  "Incident Response",
	TargetBalanced:   "Balanced Approach",
}

// Targets lists the supported targets in display order.
func Targets() []Target {
	return []Target{TargetPopulation, TargetArea, TargetIncidents, TargetBalanced}
}

// ParseTarget accepts a target name case-insensitively. Empty means balanced.
func ParseTarget(s string) (Target, error) {
	t := Target(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return TargetBalanced, nil
	}
	if _, ok := targetWeights[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidTarget, s)
	}
	return t, nil
}

// Valid reports whether t is a supported target.
func (t Target) Valid() bool {
	_, ok := targetWeights[t]
	return ok
}

// Weights returns the component multipliers; unknown targets weigh like balanced.
func (t Target) Weights() Weights {
	if w, ok := targetWeights[t]; ok {
		return w
	}
	return targetWeights[TargetBalanced]
}

// Label is the human readable target name shown in the legend.
func (t Target) Label() string {
	if l, ok := targetLabels[t]; ok {
		return l
	}
	return targetLabels[TargetBalanced]
}
