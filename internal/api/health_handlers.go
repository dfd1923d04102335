package api

import (
	"net/http"
	"time"

	"github.com/odvcencio/glenhance/internal/models"
)

type healthResponse struct {
	Status    string                `json:"status"`
	Timestamp time.Time             `json:"timestamp"`
	Ready     bool                  `json:"ready"`
	LastRun   *models.ResolutionRun `json:"last_run,omitempty"`
	Database  *healthDatabase       `json:"database,omitempty"`
}

type healthDatabase struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
	WaitDurationMS  int64 `json:"wait_duration_ms"`
}

// handleHealth always answers 200 while the process is serving; readiness is
// reported in the body.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "starting",
		Timestamp: time.Now().UTC(),
	}
	if p := s.resolver.Current(); p != nil {
		run := p.Run
		resp.Status = "ok"
		resp.Ready = true
		resp.LastRun = &run
	}
	if provider, ok := s.opts.DB.(dbStatsProvider); ok {
		stats := provider.DBStats()
		resp.Database = &healthDatabase{
			OpenConnections: stats.OpenConnections,
			InUse:           stats.InUse,
			Idle:            stats.Idle,
			WaitCount:       stats.WaitCount,
			WaitDurationMS:  stats.WaitDuration.Milliseconds(),
		}
	}
	jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.published(w, r) == nil {
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}
