package api

import (
	"context"
	"net/http"

	"github.com/okian/covergap/internal/domain/geo"
	"github.com/okian/covergap/pkg/logger"
)

// BoundaryDependencies defines jurisdiction boundary storage.
type BoundaryDependencies interface {
	Boundary(ctx context.Context) (*geo.Boundary, error)
	PutBoundary(ctx context.Context, data []byte) (*geo.Boundary, error)
	ClearBoundary(ctx context.Context) error
}

// BoundaryHandler serves the stored GeoJSON boundary.
type BoundaryHandler struct {
	deps BoundaryDependencies
	log  logger.Logger
}

// NewBoundaryHandler creates a new boundary handler.
func NewBoundaryHandler(deps BoundaryDependencies, log logger.Logger) *BoundaryHandler {
	return &BoundaryHandler{deps: deps, log: log}
}

type boundaryResponse struct {
	Polygons int        `json:"polygons"`
	Bounds   geo.Bounds `json:"bounds"`
}

// HandleGetBoundary handles GET /v1/boundary and returns GeoJSON.
func (h *BoundaryHandler) HandleGetBoundary(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_boundary"
	b, err := h.deps.Boundary(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, h.log, op, err)
		return
	}
	data, err := b.MarshalJSON()
	if err != nil {
		writeFailure(r.Context(), w, h.log, op, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandlePutBoundary handles PUT /v1/boundary with a GeoJSON Polygon,
// MultiPolygon, Feature or FeatureCollection body.
func (h *BoundaryHandler) HandlePutBoundary(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_boundary"
	data, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	b, err := h.deps.PutBoundary(r.Context(), data)
	if err != nil {
		writeFailure(r.Context(), w, h.log, op, err)
		return
	}
	writeJSON(w, http.StatusOK, boundaryResponse{Polygons: b.Polygons(), Bounds: b.Bounds()})
}

// HandleDeleteBoundary handles DELETE /v1/boundary.
func (h *BoundaryHandler) HandleDeleteBoundary(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_boundary"
	if err := h.deps.ClearBoundary(r.Context()); err != nil {
		writeFailure(r.Context(), w, h.log, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
