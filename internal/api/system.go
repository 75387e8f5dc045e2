package api

import (
	"context"
	"net/http"
	"time"
)

// statusTimeout bounds the dependency probes behind /health and /status.
const statusTimeout = 2 * time.Second

// handleHealth reports liveness. It returns 503 when the database is unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check failed", "component", "database", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":  "degraded",
				"code":    ErrCodeUnavailable,
				"version": s.version,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// statusResponse is the body of GET /status.
type statusResponse struct {
	Version       string         `json:"version"`
	Timestamp     time.Time      `json:"timestamp"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	MQTT          string         `json:"mqtt"`
	Subscribers   map[string]int `json:"subscribers"`
	Database      *databaseStats `json:"database,omitempty"`
}

type databaseStats struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleStatus reports broker state, live subscribers per channel and the
// database pool.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	resp := statusResponse{
		Version:       s.version,
		Timestamp:     now.In(s.loc),
		UptimeSeconds: int64(now.Sub(s.started).Seconds()),
		MQTT:          "unconfigured",
		Subscribers:   map[string]int{},
	}
	if s.broker != nil {
		resp.MQTT = string(s.broker.State())
	}

	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()
	counts, err := s.hub.Counts(ctx)
	if err != nil {
		s.logger.Warn("subscriber counts unavailable", "error", err)
	}
	for ch, n := range counts {
		resp.Subscribers[string(ch)] = n
	}

	if s.db != nil {
		stats := s.db.Stats()
		resp.Database = &databaseStats{
			OpenConnections: stats.OpenConnections,
			InUse:           stats.InUse,
			Idle:            stats.Idle,
			WaitCount:       stats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
