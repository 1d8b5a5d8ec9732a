package server

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// HealthStatus represents operational status for the /healthz endpoint.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Uptime    string            `json:"uptime"`
	Details   map[string]string `json:"details,omitempty"`
}

const healthCheckTimeout = 2 * time.Second

// handleHealthCheck reports whether both stores answer a ping.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Database:  "ok",
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		health.Status = "unhealthy"
		health.Database = "error"
		health.Details = map[string]string{"database_error": err.Error()}
		s.logger.WithError(err).Warn("Health check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.WithError(err).Error("Failed to encode health status")
	}
}
