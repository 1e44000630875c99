package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/covergap/internal/adapters/export"
	service "github.com/okian/covergap/internal/app"
	"github.com/okian/covergap/internal/domain/coverage"
	"github.com/okian/covergap/pkg/logger"
)

const (
	defaultSuggestCount = 3
	exportFilename      = "coverage-gaps.xlsx"
)

// CoverageDependencies defines the scoring operations the handlers call.
type CoverageDependencies interface {
	Score(ctx context.Context, req service.CoverageRequest) (service.ScoreResult, error)
	Suggest(ctx context.Context, req service.CoverageRequest, count int) (service.SuggestResult, error)
	Export(ctx context.Context, req service.CoverageRequest, suggestCount int) ([]byte, error)
	Radius(raw *coverage.RawParams) (service.RadiusResult, error)
}

// CoverageHandler serves the heat map, suggestion and export endpoints.
type CoverageHandler struct {
	deps CoverageDependencies
	log  logger.Logger
}

// NewCoverageHandler creates a new coverage handler.
func NewCoverageHandler(deps CoverageDependencies, log logger.Logger) *CoverageHandler {
	return &CoverageHandler{deps: deps, log: log}
}

// HandleScore handles POST /v1/coverage/score.
func (h *CoverageHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.coverage_score"
	var req coverageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.Score(r.Context(), req.toService())
	if err != nil {
		writeFailure(r.Context(), w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleSuggest handles POST /v1/coverage/suggest. count defaults to 3.
func (h *CoverageHandler) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	const op = "api.coverage_suggest"
	var req coverageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	count := defaultSuggestCount
	if req.Count != nil {
		count = *req.Count
	}
	res, err := h.deps.Suggest(r.Context(), req.toService(), count)
	if err != nil {
		writeFailure(r.Context(), w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleExport handles POST /v1/coverage/export. The workbook includes
// suggestions only when count is given.
func (h *CoverageHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.coverage_export"
	var req coverageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	count := 0
	if req.Count != nil {
		count = *req.Count
	}
	data, err := h.deps.Export(r.Context(), req.toService(), count)
	if err != nil {
		writeFailure(r.Context(), w, h.log, op, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandleRadius handles GET /v1/coverage/radius. Each parameter accepts a
// number or "custom" with a matching *_custom value.
func (h *CoverageHandler) HandleRadius(w http.ResponseWriter, r *http.Request) {
	const op = "api.coverage_radius"
	q := r.URL.Query()
	raw := coverage.RawParams{
		ResponseTime:       q.Get("response_time"),
		ResponseTimeCustom: q.Get("response_time_custom"),
		TurnoutTime:        q.Get("turnout_time"),
		TurnoutTimeCustom:  q.Get("turnout_time_custom"),
		TravelSpeed:        q.Get("travel_speed"),
		TravelSpeedCustom:  q.Get("travel_speed_custom"),
	}
	res, err := h.deps.Radius(&raw)
	if err != nil {
		writeFailure(r.Context(), w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
