package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/odvcencio/glenhance/internal/auth"
)

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		jsonError(w, "username and password are required", http.StatusBadRequest)
		return
	}
	token, err := s.authSvc.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrLoginDisabled):
		jsonError(w, err.Error(), http.StatusForbidden)
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	case err != nil:
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, tokenResponse{Token: token})
}
