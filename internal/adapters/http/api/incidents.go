package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/covergap/internal/app"
	"github.com/okian/covergap/internal/domain/model"
	"github.com/okian/covergap/pkg/logger"
)

const maxIncidentBatch = 10_000

// IncidentDependencies defines the ingest operations the handlers call.
type IncidentDependencies interface {
	SubmitIncident(ctx context.Context, inc model.Incident) (string, error)
	Incidents(ctx context.Context) ([]model.Incident, error)
	DeleteIncident(ctx context.Context, id string) error
}

// IncidentsHandler handles incident ingestion and listing.
type IncidentsHandler struct {
	deps IncidentDependencies
	log  logger.Logger
}

// NewIncidentsHandler creates a new incidents handler.
func NewIncidentsHandler(deps IncidentDependencies, log logger.Logger) *IncidentsHandler {
	return &IncidentsHandler{deps: deps, log: log}
}

type ackResponse struct {
	ID        string `json:"id,omitempty"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	Error     string `json:"error,omitempty"`
}

type batchResponse struct {
	Accepted   int           `json:"accepted"`
	Duplicates int           `json:"duplicates"`
	Rejected   int           `json:"rejected"`
	Results    []ackResponse `json:"results"`
}

type incidentList struct {
	Count     int              `json:"count"`
	Incidents []model.Incident `json:"incidents"`
}

// HandlePostIncidents handles POST /v1/incidents with a single incident or an
// array. Single: 202 accepted, 200 duplicate, 429 under backpressure. A batch
// stops at the first backpressure response and returns 429 with the partial results.
func (h *IncidentsHandler) HandlePostIncidents(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_incidents"
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("empty request body")))
		return
	}

	if trimmed[0] != '[' {
		var inc model.Incident
		if err := json.Unmarshal(trimmed, &inc); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		ack, err := h.submit(r.Context(), inc)
		switch {
		case err == nil && ack.Duplicate:
			writeJSON(w, http.StatusOK, ack)
		case err == nil:
			writeJSON(w, http.StatusAccepted, ack)
		default:
			writeFailure(r.Context(), w, h.log, op, err)
		}
		return
	}

	var batch []model.Incident
	if err := json.Unmarshal(trimmed, &batch); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(batch) > maxIncidentBatch {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", NewKind(op, ErrBadRequest))
		return
	}

	resp := batchResponse{Results: make([]ackResponse, 0, len(batch))}
	for _, inc := range batch {
		ack, err := h.submit(r.Context(), inc)
		switch {
		case err == nil && ack.Duplicate:
			resp.Duplicates++
		case err == nil:
			resp.Accepted++
		case errors.Is(err, service.ErrInvalidRequest):
			resp.Rejected++
			ack = ackResponse{ID: inc.ID, Status: "rejected", Error: err.Error()}
		default:
			status, _, _ := failure(op, err)
			resp.Results = append(resp.Results, ackResponse{ID: inc.ID, Status: "failed", Error: err.Error()})
			writeJSON(w, status, resp)
			return
		}
		resp.Results = append(resp.Results, ack)
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// submit maps a duplicate onto an acknowledgement instead of an error.
func (h *IncidentsHandler) submit(ctx context.Context, inc model.Incident) (ackResponse, error) { //nolint:gocritic // hugeParam
	id, err := h.deps.SubmitIncident(ctx, inc)
	switch {
	case errors.Is(err, service.ErrDuplicate):
		return ackResponse{ID: id, Status: "duplicate", Duplicate: true}, nil
	case err != nil:
		return ackResponse{}, err
	}
	return ackResponse{ID: id, Status: "accepted"}, nil
}

// HandleListIncidents handles GET /v1/incidents.
func (h *IncidentsHandler) HandleListIncidents(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_incidents"
	incs, err := h.deps.Incidents(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, h.log, op, err)
		return
	}
	if incs == nil {
		incs = []model.Incident{}
	}
	writeJSON(w, http.StatusOK, incidentList{Count: len(incs), Incidents: incs})
}

// HandleDeleteIncident handles DELETE /v1/incidents/{id}.
func (h *IncidentsHandler) HandleDeleteIncident(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_incident"
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing incident id")))
		return
	}
	if err := h.deps.DeleteIncident(r.Context(), id); err != nil {
		writeFailure(r.Context(), w, h.log, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
