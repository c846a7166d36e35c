package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"
)

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
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

type HealthHandler struct {
	db           *sql.DB
	queueEnabled bool
}

func NewHealthHandler(db *sql.DB, queueEnabled bool) *HealthHandler {
	return &HealthHandler{db: db, queueEnabled: queueEnabled}
}

// HandleLiveness → just says service is up
func (h *HealthHandler) pingHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "OK"}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleReadiness → checks DB connection and reports queue mode
func (h *HealthHandler) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	start := time.Now()
	err := h.db.PingContext(ctx)

	dbEntry := CheckEntry{
		Status:     HealthHealthy,
		CheckedAt:  time.Now(),
		DurationMs: time.Since(start).Milliseconds(),
	}

	if err != nil {
		dbEntry.Status = HealthUnhealthy
		dbEntry.Message = err.Error()
	}

	// Disabled queue is a valid deployment mode, never unhealthy.
	queueEntry := CheckEntry{
		Status:    HealthHealthy,
		CheckedAt: time.Now(),
		Details:   map[string]any{"publishing_enabled": h.queueEnabled},
	}
	if !h.queueEnabled {
		queueEntry.Message = "event publishing disabled"
	}

	resp := HealthResponse{
		Status:    dbEntry.Status,
		CheckedAt: time.Now(),
		Components: map[string]CheckEntry{
			"postgres": dbEntry,
			"queue":    queueEntry,
		},
	}

	statusCode := http.StatusOK
	if dbEntry.Status == HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}
