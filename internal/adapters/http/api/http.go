// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	service "github.com/okian/covergap/internal/app"
	"github.com/okian/covergap/internal/domain/coverage"
	"github.com/okian/covergap/internal/domain/geo"
	"github.com/okian/covergap/internal/domain/model"
	"github.com/okian/covergap/pkg/logger"
)

const maxBodyBytes = 16 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	CoverageDependencies
	IncidentDependencies
	StationDependencies
	BoundaryDependencies
	ReadyChecker
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	coverageHandler  *CoverageHandler
	incidentsHandler *IncidentsHandler
	stationsHandler  *StationsHandler
	boundaryHandler  *BoundaryHandler
	log              logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{log: logger.Get().Named("http")}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.coverageHandler = NewCoverageHandler(deps, s.log)
	s.incidentsHandler = NewIncidentsHandler(deps, s.log)
	s.stationsHandler = NewStationsHandler(deps, s.log)
	s.boundaryHandler = NewBoundaryHandler(deps, s.log)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, instrument(endpoint, h))
	}

	route("GET /healthz", "healthz", s.healthHandler.HandleHealth)
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	route("POST /v1/coverage/score", "coverage_score", s.coverageHandler.HandleScore)
	route("POST /v1/coverage/suggest", "coverage_suggest", s.coverageHandler.HandleSuggest)
	route("POST /v1/coverage/export", "coverage_export", s.coverageHandler.HandleExport)
	route("GET /v1/coverage/radius", "coverage_radius", s.coverageHandler.HandleRadius)

	route("POST /v1/incidents", "incidents", s.incidentsHandler.HandlePostIncidents)
	route("GET /v1/incidents", "incidents", s.incidentsHandler.HandleListIncidents)
	route("DELETE /v1/incidents/{id}", "incident", s.incidentsHandler.HandleDeleteIncident)

	route("GET /v1/stations", "stations", s.stationsHandler.HandleGetStations)
	route("PUT /v1/stations", "stations", s.stationsHandler.HandlePutStations)

	route("GET /v1/boundary", "boundary", s.boundaryHandler.HandleGetBoundary)
	route("PUT /v1/boundary", "boundary", s.boundaryHandler.HandlePutBoundary)
	route("DELETE /v1/boundary", "boundary", s.boundaryHandler.HandleDeleteBoundary)
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger used by handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// coverageRequest mirrors the OpenAPI schema shared by the coverage endpoints.
// Omitted stations, incidents and boundary are read from the store.
type coverageRequest struct {
	Bounds         geo.Bounds          `json:"bounds"`
	Params         *coverage.RawParams `json:"params,omitempty"`
	Target         string              `json:"optimization_target,omitempty"`
	Stations       []model.Station     `json:"stations,omitempty"`
	Incidents      []geo.Point         `json:"incidents,omitempty"`
	Boundary       json.RawMessage     `json:"boundary,omitempty"`
	IgnoreBoundary bool                `json:"ignore_boundary,omitempty"`
	Count          *int                `json:"count,omitempty"`
}

func (c *coverageRequest) toService() service.CoverageRequest {
	return service.CoverageRequest{
		Bounds:         c.Bounds,
		Params:         c.Params,
		Target:         c.Target,
		Stations:       c.Stations,
		Incidents:      c.Incidents,
		Boundary:       c.Boundary,
		IgnoreBoundary: c.IgnoreBoundary,
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// readBody reads a bounded raw body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// failure maps a service error onto a status, code and API error kind.
func failure(op string, err error) (int, string, error) {
	switch {
	case errors.Is(err, coverage.ErrInvalidConfig):
		return http.StatusBadRequest, "invalid_config", WrapKind(op, ErrBadRequest, err)
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err)
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err)
	case errors.Is(err, service.ErrQueueFull):
		return http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err)
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "timeout", WrapKind(op, ErrUnavailable, err)
	default:
		return http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err)
	}
}

// writeFailure logs server-side failures and writes the mapped error.
func writeFailure(ctx context.Context, w http.ResponseWriter, log logger.Logger, op string, err error) {
	status, code, apiErr := failure(op, err)
	if status >= http.StatusInternalServerError && log != nil {
		log.Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
	}
	writeError(w, status, code, apiErr)
}
