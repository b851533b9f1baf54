package rest

import (
	"encoding/json"
	"net/http"
	"time"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type HealthResponse struct {
	Status     HealthStatus          `json:"status"`
	CheckedAt  time.Time             `json:"checked_at"`
	Components map[string]CheckEntry `json:"components"`
}

type CheckEntry struct {
	Status     HealthStatus   `json:"status"`
	Message    string         `json:"message,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CheckedAt  time.Time      `json:"checked_at"`
	DurationMs int64          `json:"duration_ms"`
}

// StoreSize reports how many payment statuses are held in memory.
type StoreSize interface {
	Len() int
}

// GatewayState reports whether gateway credentials are present.
type GatewayState interface {
	Configured() bool
}

type HealthHandler struct {
	store   StoreSize
	gateway GatewayState
}

func NewHealthHandler(store StoreSize, gateway GatewayState) *HealthHandler {
	return &HealthHandler{store: store, gateway: gateway}
}

// PingHandler just says the service is up
func (h *HealthHandler) PingHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "OK"}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HealthCheckHandler reports the status store and gateway configuration.
// Missing credentials only degrade the service.
func (h *HealthHandler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	components := map[string]CheckEntry{}

	if h.store != nil {
		start := time.Now()
		n := h.store.Len()
		components["payment_status_store"] = CheckEntry{
			Status:     HealthHealthy,
			Details:    map[string]any{"records": n},
			CheckedAt:  time.Now(),
			DurationMs: time.Since(start).Milliseconds(),
		}
	}

	if h.gateway != nil {
		entry := CheckEntry{Status: HealthHealthy, CheckedAt: time.Now()}
		if !h.gateway.Configured() {
			entry.Status = HealthDegraded
			entry.Message = "Missing API credentials"
		}
		components["gateway"] = entry
	}

	overall := HealthHealthy
	for _, c := range components {
		switch c.Status {
		case HealthUnhealthy:
			overall = HealthUnhealthy
		case HealthDegraded:
			if overall == HealthHealthy {
				overall = HealthDegraded
			}
		}
	}

	statusCode := http.StatusOK
	if overall == HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:     overall,
		CheckedAt:  time.Now(),
		Components: components,
	})
}
