package scenario

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/okian/covergap/internal/domain/geo"
	"github.com/okian/covergap/internal/domain/model"
)

const (
	boundarySides    = 8
	boundaryInset    = 0.9 // boundary radius as a share of the half span
	clusterSpread    = 0.08
	incidentHistory  = 365 * 24 * time.Hour
	incidentTypeEMS  = "EMS"
	incidentTypeFire = "FIRE"
)

var priorities = []string{"P1", "P2", "P3"}

// Jurisdiction is a generated world: stations, incidents and an optional boundary.
type Jurisdiction struct {
	Bounds    geo.Bounds       `json:"bounds"`
	Stations  []model.Station  `json:"stations"`
	Incidents []model.Incident `json:"incidents"`
	Boundary  json.RawMessage  `json:"boundary,omitempty"`
}

// Generate builds a jurisdiction from cfg. The same seed always yields the
// same stations, incidents and ids.
func Generate(cfg *Config, now time.Time) (*Jurisdiction, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	b := cfg.Bounds()
	j := &Jurisdiction{Bounds: b}

	// Stations sit on the inner third of the viewport so gaps remain at the edges.
	for i := range cfg.Stations {
		p := geo.Point{
			Lat: b.South + b.LatSpan()*(1.0/3+rng.Float64()/3),
			Lon: b.West + b.LonSpan()*(1.0/3+rng.Float64()/3),
		}
		j.Stations = append(j.Stations, model.Station{
			ID:    fmt.Sprintf("station-%d", i+1),
			Name:  fmt.Sprintf("Station %d", i+1),
			Point: p,
		})
	}

	centers := make([]geo.Point, cfg.Clusters)
	for i := range centers {
		centers[i] = geo.Point{
			Lat: b.South + b.LatSpan()*rng.Float64(),
			Lon: b.West + b.LonSpan()*rng.Float64(),
		}
	}
	for i := range cfg.Incidents {
		c := centers[rng.IntN(len(centers))]
		p := geo.Point{
			Lat: clamp(c.Lat+rng.NormFloat64()*clusterSpread*b.LatSpan(), b.South, b.North),
			Lon: clamp(c.Lon+rng.NormFloat64()*clusterSpread*b.LonSpan(), b.West, b.East),
		}
		typ := incidentTypeEMS
		if rng.IntN(4) == 0 {
			typ = incidentTypeFire
		}
		j.Incidents = append(j.Incidents, model.Incident{
			ID:         uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "covergap/%d/%d", cfg.Seed, i)).String(),
			Type:       typ,
			Priority:   priorities[rng.IntN(len(priorities))],
			OccurredAt: now.Add(-time.Duration(rng.Int64N(int64(incidentHistory)))).UTC().Truncate(time.Second),
			Point:      p,
		})
	}

	if cfg.Boundary {
		data, err := boundaryPolygon(cfg)
		if err != nil {
			return nil, err
		}
		j.Boundary = data
	}
	return j, nil
}

// boundaryPolygon is a regular octagon inside the viewport, as GeoJSON.
func boundaryPolygon(cfg *Config) ([]byte, error) {
	r := cfg.SpanDeg / 2 * boundaryInset
	ring := make(orb.Ring, 0, boundarySides+1)
	for i := range boundarySides {
		a := 2 * math.Pi * float64(i) / boundarySides
		ring = append(ring, orb.Point{cfg.Center.Lon + r*math.Cos(a), cfg.Center.Lat + r*math.Sin(a)})
	}
	ring = append(ring, ring[0])
	data, err := geojson.NewGeometry(orb.Polygon{ring}).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal boundary: %w", err)
	}
	return data, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
