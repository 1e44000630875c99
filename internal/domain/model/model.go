// Package model contains the records exchanged between the store, the ingest
// pipeline and the coverage scorer.
package model

import (
	"time"

	"github.com/okian/covergap/internal/domain/geo"
)

// Station is an existing fire/EMS station.
type Station struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	geo.Point
}

// Incident is a historical call location. Only the coordinates matter to the
// scorer; the rest is carried for listing and export.
type Incident struct {
	ID         string    `json:"id,omitempty"`
	Type       string    `json:"type,omitempty"`
	Priority   string    `json:"priority,omitempty"`
	OccurredAt time.Time `json:"occurred_at,omitzero"`
	ReceivedAt time.Time `json:"received_at,omitzero"`
	geo.Point
}

// Points extracts the coordinates of a batch of incidents.
func Points(incidents []Incident) []geo.Point {
	out := make([]geo.Point, len(incidents))
	for i := range incidents {
		out[i] = incidents[i].Point
	}
	return out
}
