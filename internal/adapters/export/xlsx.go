// Package export renders coverage results as spreadsheet workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/okian/covergap/internal/domain/coverage"
	"github.com/okian/covergap/internal/domain/geo"
	"github.com/okian/covergap/internal/domain/heatmap"
	"github.com/okian/covergap/internal/domain/scoring"
	"github.com/okian/covergap/internal/domain/selector"
)

// Sheet names in the generated workbook.
const (
	SheetScored     = "Scored Points"
	SheetSuggested  = "Suggested Sites"
	SheetParameters = "Parameters"
)

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	scoredHeader    = []any{"Latitude", "Longitude", "Score", "Population", "Incidents", "Area", "Normalized", "Color"}
	suggestedHeader = []any{"Rank", "Name", "Latitude", "Longitude", "Score", "Population", "Incidents", "Area", "Newly Covered Incidents"}
)

// Report is everything written to a workbook.
type Report struct {
	GeneratedAt time.Time
	Target      scoring.Target
	Params      coverage.Params
	RadiusMiles float64
	Bounds      geo.Bounds
	Summary     scoring.Summary
	Cells       []heatmap.Cell
	// Suggestions is optional; the sheet is written with headers only when nil.
	Suggestions *selector.Result
}

// WriteXLSX writes the report as an .xlsx workbook to w.
func WriteXLSX(w io.Writer, r Report) error { //nolint:gocritic // hugeParam: report is built once per request
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetScored); err != nil {
		return fmt.Errorf("%w: %w", ErrWorkbook, err)
	}
	for _, name := range []string{SheetSuggested, SheetParameters} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("%w: %w", ErrWorkbook, err)
		}
	}

	b := &builder{f: f, fills: make(map[string]int)}
	b.header(SheetScored, scoredHeader)
	for i, c := range r.Cells {
		row := i + 2
		b.row(SheetScored, row, []any{c.Lat, c.Lon, c.Score, c.PopulationScore, c.IncidentScore, c.AreaScore, c.Normalized, c.Color.Hex()})
		b.fill(SheetScored, len(scoredHeader), row, c.Color.Hex())
	}

	b.header(SheetSuggested, suggestedHeader)
	if r.Suggestions != nil {
		for i, s := range r.Suggestions.Sites {
			b.row(SheetSuggested, i+2, []any{s.Rank, s.Name, s.Lat, s.Lon, s.Score, s.PopulationScore, s.IncidentScore, s.AreaScore, s.NewlyCoveredIncidents})
		}
	}

	params := [][]any{
		{"Parameter", "Value"},
		{"Generated At", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Optimization Target", r.Target.Label()},
		{"Response Time Target (min)", r.Params.ResponseTimeMinutes},
		{"Turnout Time (min)", r.Params.TurnoutTimeMinutes},
		{"Travel Speed (mph)", r.Params.TravelSpeedMph},
		{"Coverage Radius (mi)", r.RadiusMiles},
		{"Bounds South", r.Bounds.South},
		{"Bounds North", r.Bounds.North},
		{"Bounds West", r.Bounds.West},
		{"Bounds East", r.Bounds.East},
		{"Grid Points", r.Summary.GridPoints},
		{"Excluded (Covered or Outside)", r.Summary.Excluded},
		{"Scored Points", r.Summary.Scored},
		{"Max Score", r.Summary.MaxScore},
		{"Boundary Applied", r.Summary.BoundaryApplied},
	}
	if r.Suggestions != nil {
		params = append(params,
			[]any{"Coverage Before (%)", r.Suggestions.Before.CoveragePercent},
			[]any{"Coverage After (%)", r.Suggestions.After.CoveragePercent},
		)
	}
	b.header(SheetParameters, params[0])
	for i, p := range params[1:] {
		b.row(SheetParameters, i+2, p)
	}

	if b.err != nil {
		return fmt.Errorf("%w: %w", ErrWorkbook, b.err)
	}
	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// builder keeps the first error so row writes stay linear.
type builder struct {
	f     *excelize.File
	fills map[string]int
	bold  int
	err   error
}

func (b *builder) header(sheet string, cols []any) {
	if b.err != nil {
		return
	}
	if b.bold == 0 {
		b.bold, b.err = b.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if b.err != nil {
			return
		}
	}
	b.row(sheet, 1, cols)
	last, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		b.err = err
		return
	}
	if b.err == nil {
		b.err = b.f.SetCellStyle(sheet, "A1", last, b.bold)
	}
}

func (b *builder) row(sheet string, row int, values []any) {
	if b.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		b.err = err
		return
	}
	b.err = b.f.SetSheetRow(sheet, cell, &values)
}

// fill shades a cell with its ramp color; one style is created per distinct color.
func (b *builder) fill(sheet string, col, row int, hex string) {
	if b.err != nil {
		return
	}
	style, ok := b.fills[hex]
	if !ok {
		style, b.err = b.f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{hex}, Pattern: 1},
		})
		if b.err != nil {
			return
		}
		b.fills[hex] = style
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		b.err = err
		return
	}
	b.err = b.f.SetCellStyle(sheet, cell, cell, style)
}
