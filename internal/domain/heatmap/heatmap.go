// Package heatmap maps candidate scores onto a blue to red color ramp and
// describes the matching legend.
package heatmap

import (
	"fmt"
	"math"

	"github.com/okian/covergap/internal/domain/scoring"
)

// RGB is an 8-bit color.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Hex renders the color as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// MarshalText lets RGB appear as a hex string in JSON.
func (c RGB) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// UnmarshalText parses a #rrggbb string.
func (c *RGB) UnmarshalText(text []byte) error {
	var r, g, b uint8
	if len(text) != 7 || text[0] != '#' {
		return fmt.Errorf("invalid color %q", text)
	}
	if _, err := fmt.Sscanf(string(text), "#%02x%02x%02x", &r, &g, &b); err != nil {
		return fmt.Errorf("invalid color %q: %w", text, err)
	}
	*c = RGB{R: r, G: g, B: b}
	return nil
}

// Ramp anchors.
var (
	Blue   = RGB{0, 0, 255}
	Cyan   = RGB{0, 255, 255}
	Green  = RGB{0, 255, 0}
	Yellow = RGB{255, 255, 0}
	Red    = RGB{255, 0, 0}
)

// Normalize maps a score into [0, 1] against the batch maximum. Negative scores
// count as zero and a non-positive maximum yields zero.
func Normalize(score, maxScore float64) float64 {
	if maxScore <= 0 || math.IsNaN(maxScore) {
		return 0
	}
	return math.Min(1, math.Max(0, score)/maxScore)
}

// Color interpolates the four segment ramp blue, cyan, green, yellow, red.
// Inputs outside [0, 1] are clamped.
func Color(n float64) RGB {
	if math.IsNaN(n) || n <= 0 {
		return Blue
	}
	if n >= 1 {
		return Red
	}
	switch {
	case n < 0.25:
		t := n / 0.25
		return RGB{0, channel(255 * t), 255}
	case n < 0.5:
		t := (n - 0.25) / 0.25
		return RGB{0, 255, channel(255 * (1 - t))}
	case n < 0.75:
		t := (n - 0.5) / 0.25
		return RGB{channel(255 * t), 255, 0}
	default:
		t := (n - 0.75) / 0.25
		return RGB{255, channel(255 * (1 - t)), 0}
	}
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}

// Cell is a scored point ready for display.
type Cell struct {
	scoring.Point
	Normalized float64 `json:"normalized"`
	Color      RGB     `json:"color"`
}

// Paint normalizes a batch against its own maximum and colors each point.
func Paint(points []scoring.Point) []Cell {
	maxScore := 0.0
	for _, p := range points {
		if p.Score > maxScore {
			maxScore = p.Score
		}
	}
	cells := make([]Cell, len(points))
	for i, p := range points {
		n := Normalize(p.Score, maxScore)
		cells[i] = Cell{Point: p, Normalized: n, Color: Color(n)}
	}
	return cells
}

// Stop is one legend entry.
type Stop struct {
	Position float64 `json:"position"`
	Color    RGB     `json:"color"`
	Label    string  `json:"label"`
}

// Legend describes the ramp for the current target.
type Legend struct {
	Title       string `json:"title"`
	Target      string `json:"target"`
	TargetLabel string `json:"target_label"`
	Stops       []Stop `json:"stops"`
}

// NewLegend builds the legend for a target.
func NewLegend(target scoring.Target) Legend {
	return Legend{
		Title:       "Optimal Station Placement",
		Target:      string(target),
		TargetLabel: target.Label(),
		Stops: []Stop{
			{Position: 1, Color: Red, Label: "High Priority"},
			{Position: 0.75, Color: Yellow, Label: "Medium Priority"},
			{Position: 0.5, Color: Green, Label: "Low Priority"},
			{Position: 0, Color: Blue, Label: "Minimal Need"},
		},
	}
}
