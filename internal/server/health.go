package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"

	readinessPingTimeout = 2 * time.Second
)

// Pinger verifies a dependency is reachable, used by the readiness
// probe to check the database.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker provides liveness and readiness endpoints for
// Kubernetes probes.
type HealthChecker struct {
	ready         atomic.Bool
	serverContext *ServerContext
	db            Pinger
	startTime     time.Time
}

// NewHealthChecker creates a health checker. The db pinger may be nil,
// in which case the readiness probe skips the database check.
func NewHealthChecker(sc *ServerContext, db Pinger) *HealthChecker {
	h := &HealthChecker{
		serverContext: sc,
		db:            db,
		startTime:     time.Now(),
	}
	h.ready.Store(true)
	return h
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// HealthResponse is the JSON body of the health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime,omitempty"`
	Checks map[string]string `json:"checks,omitempty"`
}

// RegisterHealthEndpoints mounts /healthz and /readyz on the mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("/healthz", h.LivenessHandler())
	mux.Handle("/readyz", h.ReadinessHandler())
}

// LivenessHandler serves /healthz. Liveness only says the process is
// running; dependency checks belong in readiness.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Status: healthStatusOK,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
		})
	})
}

// ReadinessHandler serves /readyz: ready flag, shutdown flag, and a
// database ping.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string)
		allOK := true

		if h.ready.Load() {
			checks["ready"] = healthStatusOK
		} else {
			checks["ready"] = healthStatusNotReady
			allOK = false
		}

		if h.serverContext != nil && h.serverContext.IsShutdown() {
			checks["shutdown"] = healthStatusShuttingDown
			allOK = false
		} else {
			checks["shutdown"] = healthStatusOK
		}

		if h.db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readinessPingTimeout)
			if err := h.db.Ping(ctx); err != nil {
				checks["database"] = err.Error()
				allOK = false
			} else {
				checks["database"] = healthStatusOK
			}
			cancel()
		}

		response := HealthResponse{Checks: checks}
		w.Header().Set("Content-Type", "application/json")
		if allOK {
			response.Status = healthStatusOK
			w.WriteHeader(http.StatusOK)
		} else {
			response.Status = healthStatusNotReady
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(response)
	})
}
