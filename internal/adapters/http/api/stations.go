package api

import (
	"context"
	"net/http"

	"github.com/okian/covergap/internal/domain/model"
	"github.com/okian/covergap/pkg/logger"
)

// StationDependencies defines station storage operations.
type StationDependencies interface {
	Stations(ctx context.Context) ([]model.Station, error)
	PutStations(ctx context.Context, stations []model.Station) error
}

// StationsHandler reads and replaces the station list.
type StationsHandler struct {
	deps StationDependencies
	log  logger.Logger
}

// NewStationsHandler creates a new stations handler.
func NewStationsHandler(deps StationDependencies, log logger.Logger) *StationsHandler {
	return &StationsHandler{deps: deps, log: log}
}

type stationList struct {
	Stations []model.Station `json:"stations"`
}

// HandleGetStations handles GET /v1/stations.
func (h *StationsHandler) HandleGetStations(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_stations"
	st, err := h.deps.Stations(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, h.log, op, err)
		return
	}
	if st == nil {
		st = []model.Station{}
	}
	writeJSON(w, http.StatusOK, stationList{Stations: st})
}

// HandlePutStations handles PUT /v1/stations, replacing every station.
func (h *StationsHandler) HandlePutStations(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_stations"
	var req stationList
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.PutStations(r.Context(), req.Stations); err != nil {
		writeFailure(r.Context(), w, h.log, op, err)
		return
	}
	if req.Stations == nil {
		req.Stations = []model.Station{}
	}
	writeJSON(w, http.StatusOK, req)
}
