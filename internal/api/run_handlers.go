package api

import (
	"net/http"

	"github.com/odvcencio/glenhance/internal/auth"
)

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	_, limit := parsePagination(r, 50, 500)
	runs, err := s.resolver.Runs(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		jsonResponse(w, http.StatusOK, []any{})
		return
	}
	jsonResponse(w, http.StatusOK, runs)
}

type refreshResponse struct {
	RunID                  string `json:"run_id"`
	Namespaces             int    `json:"namespaces"`
	Projects               int    `json:"projects"`
	Repositories           int    `json:"repositories"`
	UnresolvedProjects     int    `json:"unresolved_projects"`
	UnresolvedRepositories int    `json:"unresolved_repositories"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	p, err := s.resolver.Refresh(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			// The client went away; the pass keeps running detached.
			return
		}
		s.logger.Warn("refresh failed", "error", err)
		jsonError(w, "refresh failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if claims := auth.GetClaims(r.Context()); claims != nil {
		s.logger.Info("refresh requested", "subject", claims.Subject, "run_id", p.Run.ID)
	}
	jsonResponse(w, http.StatusOK, refreshResponse{
		RunID:                  p.Run.ID,
		Namespaces:             p.Run.Namespaces,
		Projects:               p.Run.Projects,
		Repositories:           p.Run.Repositories,
		UnresolvedProjects:     p.Run.UnresolvedProjects,
		UnresolvedRepositories: p.Run.UnresolvedRepositories,
	})
}
