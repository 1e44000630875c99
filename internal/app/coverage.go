package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/covergap/internal/adapters/export"
	"github.com/okian/covergap/internal/domain/coverage"
	"github.com/okian/covergap/internal/domain/geo"
	"github.com/okian/covergap/internal/domain/heatmap"
	"github.com/okian/covergap/internal/domain/model"
	"github.com/okian/covergap/internal/domain/scoring"
	"github.com/okian/covergap/internal/domain/selector"
	"github.com/okian/covergap/internal/observability"
	"github.com/okian/covergap/pkg/logger"
	"github.com/okian/covergap/pkg/metrics"
)

// CoverageRequest describes one scoring or suggestion call. Nil Stations,
// Incidents and Boundary fall back to the stored data; a nil Params or empty
// Target falls back to the configured defaults.
type CoverageRequest struct {
	Bounds    geo.Bounds
	Params    *coverage.RawParams
	Target    string
	Stations  []model.Station
	Incidents []geo.Point
	// Boundary is inline GeoJSON. A malformed boundary disables clipping for
	// this request and is reported as a warning instead of failing it.
	Boundary       []byte
	IgnoreBoundary bool
}

// ScoreResult is the heat map for one viewport.
type ScoreResult struct {
	Params      coverage.Params  `json:"params"`
	RadiusMiles float64          `json:"radius_miles"`
	Target      scoring.Target   `json:"target"`
	Bounds      geo.Bounds       `json:"bounds"`
	Points      []heatmap.Cell   `json:"points"`
	Best        *heatmap.Cell    `json:"best,omitempty"`
	Summary     scoring.Summary  `json:"summary"`
	Coverage    coverage.Summary `json:"coverage"`
	Legend      heatmap.Legend   `json:"legend"`
	Warnings    []string         `json:"warnings,omitempty"`
}

// SuggestResult is a ranked list of proposed stations.
type SuggestResult struct {
	Params      coverage.Params  `json:"params"`
	RadiusMiles float64          `json:"radius_miles"`
	Target      scoring.Target   `json:"target"`
	Sites       []selector.Site  `json:"sites"`
	Before      coverage.Summary `json:"coverage_before"`
	After       coverage.Summary `json:"coverage_after"`
	Warnings    []string         `json:"warnings,omitempty"`
}

// RadiusResult is the coverage radius for a parameter set.
type RadiusResult struct {
	Params      coverage.Params `json:"params"`
	RadiusMiles float64         `json:"radius_miles"`
}

// prepared is a request resolved against the store and defaults.
type prepared struct {
	input    scoring.Input
	params   coverage.Params
	warnings []string
}

var nullJSON = []byte("null")

// Radius resolves parameters and returns the drivable radius. It does not
// require the service to be started.
func (s *Service) Radius(raw *coverage.RawParams) (RadiusResult, error) {
	p, err := s.params(raw)
	if err != nil {
		return RadiusResult{}, err
	}
	return RadiusResult{Params: p, RadiusMiles: p.RadiusMiles()}, nil
}

// Score runs one scoring pass and colors the result.
func (s *Service) Score(ctx context.Context, req CoverageRequest) (ScoreResult, error) { //nolint:gocritic // hugeParam
	ctx, span := observability.Tracer().Start(ctx, "coverage.score")
	defer span.End()

	c, err := s.running()
	if err != nil {
		return ScoreResult{}, fail(span, err)
	}
	pr, err := s.prepare(ctx, c, req)
	if err != nil {
		return ScoreResult{}, fail(span, err)
	}

	start := time.Now()
	res, err := c.scorer.Score(ctx, pr.input)
	if err != nil {
		return ScoreResult{}, fail(span, scorerErr(err))
	}
	s.observePass(ctx, span, pr.input.Target, res.Summary, time.Since(start))
	if res.Summary.BoundaryFallback {
		pr.warnings = append(pr.warnings, boundaryFallbackWarning)
	}

	cells := heatmap.Paint(res.Points)
	out := ScoreResult{
		Params:      pr.params,
		RadiusMiles: pr.input.RadiusMiles,
		Target:      pr.input.Target,
		Bounds:      pr.input.Bounds,
		Points:      cells,
		Summary:     res.Summary,
		Coverage:    coverage.Summarize(pr.input.Incidents, pr.input.Circles),
		Legend:      heatmap.NewLegend(pr.input.Target),
		Warnings:    pr.warnings,
	}
	if best := res.Best(); best >= 0 {
		out.Best = &cells[best]
	}
	return out, nil
}

// Suggest greedily places count new stations.
func (s *Service) Suggest(ctx context.Context, req CoverageRequest, count int) (SuggestResult, error) { //nolint:gocritic // hugeParam
	ctx, span := observability.Tracer().Start(ctx, "coverage.suggest")
	defer span.End()

	c, err := s.running()
	if err != nil {
		return SuggestResult{}, fail(span, err)
	}
	if count < 1 || count > s.maxSuggestions {
		return SuggestResult{}, fail(span, fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidRequest, s.maxSuggestions))
	}
	pr, err := s.prepare(ctx, c, req)
	if err != nil {
		return SuggestResult{}, fail(span, err)
	}

	start := time.Now()
	res, err := c.selector.Suggest(ctx, pr.input, count)
	if err != nil {
		return SuggestResult{}, fail(span, scorerErr(err))
	}
	fellBack := false
	for _, p := range res.Passes {
		s.observePass(ctx, span, pr.input.Target, p.Summary, p.Took)
		fellBack = fellBack || p.Summary.BoundaryFallback
	}
	if fellBack {
		pr.warnings = append(pr.warnings, boundaryFallbackWarning)
	}
	metrics.RecordSuggestions(len(res.Sites))
	metrics.RecordSuggestRun(float64(time.Since(start).Microseconds()) / 1000)
	span.SetAttributes(
		attribute.Int("suggest.requested", count),
		attribute.Int("suggest.placed", len(res.Sites)),
		attribute.Int("suggest.passes", len(res.Passes)),
		attribute.Float64("coverage.after_percent", res.After.CoveragePercent),
	)

	return SuggestResult{
		Params:      pr.params,
		RadiusMiles: pr.input.RadiusMiles,
		Target:      pr.input.Target,
		Sites:       res.Sites,
		Before:      res.Before,
		After:       res.After,
		Warnings:    pr.warnings,
	}, nil
}

// Export scores the viewport, optionally runs suggestions, and returns an
// XLSX workbook. A zero suggestCount leaves the suggestions sheet empty.
func (s *Service) Export(ctx context.Context, req CoverageRequest, suggestCount int) ([]byte, error) { //nolint:gocritic // hugeParam
	scored, err := s.Score(ctx, req)
	if err != nil {
		return nil, err
	}
	report := export.Report{
		GeneratedAt: s.clock.Now(),
		Target:      scored.Target,
		Params:      scored.Params,
		RadiusMiles: scored.RadiusMiles,
		Bounds:      scored.Bounds,
		Summary:     scored.Summary,
		Cells:       scored.Points,
	}
	if suggestCount > 0 {
		sug, err := s.Suggest(ctx, req, suggestCount)
		if err != nil {
			return nil, err
		}
		report.Suggestions = &selector.Result{Sites: sug.Sites, Before: sug.Before, After: sug.After}
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, report); err != nil {
		metrics.RecordErrorByComponent("export", "xlsx")
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Service) params(raw *coverage.RawParams) (coverage.Params, error) {
	if raw == nil {
		return s.defaults, nil
	}
	p, err := coverage.ParseParamsWithDefaults(*raw, s.defaults)
	if err != nil {
		return coverage.Params{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return p, nil
}

// prepare resolves a request into scorer input. Inline data wins over stored data.
func (s *Service) prepare(ctx context.Context, c *components, req CoverageRequest) (prepared, error) { //nolint:gocritic // hugeParam
	if err := req.Bounds.Validate(); err != nil {
		return prepared{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	params, err := s.params(req.Params)
	if err != nil {
		return prepared{}, err
	}
	target := s.defaultTarget
	if req.Target != "" {
		if target, err = scoring.ParseTarget(req.Target); err != nil {
			return prepared{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}

	snap := c.store.Snapshot(ctx)
	stations := req.Stations
	if stations == nil {
		stations = snap.Stations
	}
	for i := range stations {
		if !stations[i].Valid() {
			return prepared{}, fmt.Errorf("%w: station %d has invalid coordinates", ErrInvalidRequest, i)
		}
	}
	incidents := req.Incidents
	if incidents == nil {
		incidents = model.Points(snap.Incidents)
	}
	for i, p := range incidents {
		if !p.Valid() {
			return prepared{}, fmt.Errorf("%w: incident %d has invalid coordinates", ErrInvalidRequest, i)
		}
	}

	radius := params.RadiusMiles()
	pr := prepared{
		params: params,
		input: scoring.Input{
			Bounds:      req.Bounds,
			Circles:     coverage.CirclesFromStations(stations, radius),
			Incidents:   incidents,
			RadiusMiles: radius,
			Target:      target,
		},
	}

	switch raw := bytes.TrimSpace(req.Boundary); {
	case req.IgnoreBoundary:
	case len(raw) > 0 && !bytes.Equal(raw, nullJSON):
		b, err := geo.ParseBoundary(raw)
		if err != nil {
			metrics.RecordBoundaryFallback()
			s.logger.Warn(ctx, "ignoring malformed boundary, scoring unrestricted", logger.Error(err))
			pr.warnings = append(pr.warnings, "boundary ignored: "+err.Error())
			break
		}
		pr.input.Boundary = b
	default:
		pr.input.Boundary = snap.Boundary
	}
	return pr, nil
}

const boundaryFallbackWarning = "boundary containment failed, scored unrestricted"

// observePass records one scorer pass. A suggestion run calls it once per round.
func (s *Service) observePass(ctx context.Context, span trace.Span, target scoring.Target, sum scoring.Summary, took time.Duration) { //nolint:gocritic // hugeParam
	metrics.RecordScoringPass(string(target), float64(took.Microseconds())/1000)
	metrics.RecordGridPoints(sum.GridPoints, sum.Excluded, sum.Scored)
	if sum.BoundaryFallback {
		metrics.RecordBoundaryFallback()
		s.logger.Warn(ctx, "boundary containment failed, scoring unrestricted",
			logger.String("target", string(target)),
			logger.Int("grid_points", sum.GridPoints))
	}
	span.SetAttributes(
		attribute.String("coverage.target", string(target)),
		attribute.Int("grid.points", sum.GridPoints),
		attribute.Int("grid.excluded", sum.Excluded),
		attribute.Int("grid.scored", sum.Scored),
		attribute.Bool("grid.boundary_applied", sum.BoundaryApplied),
	)
}

// scorerErr marks input errors surfaced by the scorer as invalid requests.
func scorerErr(err error) error {
	if errors.Is(err, geo.ErrInvalidBounds) ||
		errors.Is(err, scoring.ErrInvalidInput) ||
		errors.Is(err, scoring.ErrInvalidTarget) {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return err
}

func fail(span trace.Span, err error) error {
	if !errors.Is(err, ErrInvalidRequest) {
		metrics.RecordScoringError()
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
