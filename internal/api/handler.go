// Package api implements depviz's two HTTP-facing read surfaces: a
// pull endpoint (GET /graph) and a push endpoint (GET /ws), plus the
// ambient /ready and /metrics routes.
package api

import (
	"net/http"

	"github.com/go-kit/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/williewheeler/depviz/internal/aggregator"
)

// Snapshotter is the read-path dependency the API reads graph state
// through. aggregator.Aggregator satisfies it.
type Snapshotter interface {
	GetSnapshot(windowSec int) aggregator.Snapshot
}

// Handler serves depviz's HTTP API: the pull/push graph endpoints and the
// ambient readiness/metrics routes.
type Handler struct {
	agg      Snapshotter
	logger   log.Logger
	upgrader websocketUpgrader
}

// NewHandler constructs a Handler reading snapshots from agg.
func NewHandler(agg Snapshotter, logger log.Logger) *Handler {
	return &Handler{
		agg:      agg,
		logger:   logger,
		upgrader: newUpgrader(),
	}
}

// RegisterRoutes registers all of depviz's HTTP routes on r.
func (h *Handler) RegisterRoutes(r *mux.Router, registry *prometheus.Registry) {
	r.HandleFunc("/graph", h.PullHandler).Methods(http.MethodGet)
	r.HandleFunc("/ws", h.PushHandler).Methods(http.MethodGet)
	r.HandleFunc("/ready", h.ReadyHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

// ReadyHandler reports readiness. depviz has no external dependencies to
// check (no storage tier, no upstream to dial), so once the process is
// serving requests it is ready.
func (h *Handler) ReadyHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
