package scenario

import (
	"fmt"
	"reflect"

	service "github.com/okian/covergap/internal/app"
	"github.com/okian/covergap/internal/domain/geo"
	"github.com/okian/covergap/internal/domain/heatmap"
	"github.com/okian/covergap/internal/domain/model"
)

// Check is one verified property.
type Check struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Verify checks the returned heat map and suggestions against the jurisdiction.
// rescore must come from a second identical score call.
func Verify(j *Jurisdiction, boundary *geo.Boundary, score, rescore *service.ScoreResult, suggest *service.SuggestResult) []Check {
	checks := []Check{
		uncoveredOnly(j.Stations, score),
		bestIsRed(score),
		idempotent(score, rescore),
		insideBoundary(boundary, score),
	}
	if suggest != nil {
		checks = append(checks, suggestionsApart(suggest), coverageNotWorse(suggest))
	}
	return checks
}

// Failed returns the checks that did not pass.
func Failed(checks []Check) []Check {
	var out []Check
	for _, c := range checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

func uncoveredOnly(stations []model.Station, score *service.ScoreResult) Check {
	c := Check{Name: "scored points lie outside every station radius", Passed: true}
	for _, p := range score.Points {
		for _, s := range stations {
			if d := geo.DistanceMiles(p.Point.Point, s.Point); d <= score.RadiusMiles {
				c.Passed = false
				c.Detail = fmt.Sprintf("point (%.5f, %.5f) is %.3f mi from %s within radius %.3f",
					p.Lat, p.Lon, d, s.ID, score.RadiusMiles)
				return c
			}
		}
	}
	return c
}

func bestIsRed(score *service.ScoreResult) Check {
	c := Check{Name: "highest scoring point is red", Passed: true}
	if score.Best == nil {
		if len(score.Points) > 0 {
			c.Passed = false
			c.Detail = "points returned without a best point"
		}
		return c
	}
	if score.Best.Score > 0 && score.Best.Color != heatmap.Red {
		c.Passed = false
		c.Detail = fmt.Sprintf("best point color is %s", score.Best.Color.Hex())
	}
	for _, p := range score.Points {
		if p.Score > score.Best.Score {
			c.Passed = false
			c.Detail = fmt.Sprintf("point (%.5f, %.5f) outscores the best point", p.Lat, p.Lon)
			break
		}
	}
	return c
}

func idempotent(score, rescore *service.ScoreResult) Check {
	c := Check{Name: "rescoring the same input is identical", Passed: true}
	if !reflect.DeepEqual(score.Points, rescore.Points) {
		c.Passed = false
		c.Detail = fmt.Sprintf("first pass returned %d points, second %d", len(score.Points), len(rescore.Points))
	}
	return c
}

func insideBoundary(boundary *geo.Boundary, score *service.ScoreResult) Check {
	c := Check{Name: "scored points lie inside the boundary", Passed: true}
	if boundary == nil {
		c.Detail = "no boundary"
		return c
	}
	for _, p := range score.Points {
		if !boundary.Contains(p.Point.Point) {
			c.Passed = false
			c.Detail = fmt.Sprintf("point (%.5f, %.5f) is outside the boundary", p.Lat, p.Lon)
			return c
		}
	}
	return c
}

// suggestionsApart checks that each later site is outside the radius of earlier picks.
func suggestionsApart(suggest *service.SuggestResult) Check {
	c := Check{Name: "each suggested site is outside earlier picks", Passed: true}
	for i, a := range suggest.Sites {
		for _, b := range suggest.Sites[:i] {
			if geo.DistanceMiles(a.Point, b.Point) <= suggest.RadiusMiles {
				c.Passed = false
				c.Detail = fmt.Sprintf("%s is within the radius of %s", a.Name, b.Name)
				return c
			}
		}
	}
	return c
}

func coverageNotWorse(suggest *service.SuggestResult) Check {
	c := Check{Name: "suggested sites never reduce incident coverage", Passed: true}
	if suggest.After.IncidentsCovered < suggest.Before.IncidentsCovered {
		c.Passed = false
		c.Detail = fmt.Sprintf("covered %d before and %d after", suggest.Before.IncidentsCovered, suggest.After.IncidentsCovered)
	}
	return c
}
