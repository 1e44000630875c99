package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/covergap/pkg/metrics"
)

// ReadyChecker reports whether the service accepts traffic.
type ReadyChecker interface {
	Ready() bool
}

// HealthHandler handles health and metrics requests.
type HealthHandler struct {
	ready ReadyChecker
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(ready ReadyChecker) *HealthHandler {
	return &HealthHandler{ready: ready}
}

type healthResponse struct {
	Status string `json:"status"`
}

// HandleHealth handles GET /healthz. It returns 503 until the service is started.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	if h.ready != nil && !h.ready.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "starting"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// MetricsHandler serves the custom Prometheus registry.
func (h *HealthHandler) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
