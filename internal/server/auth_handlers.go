package server

import (
	"encoding/json"
	"net/http"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin authenticates a user and establishes a session cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.authService == nil {
		s.respondWithError(w, r, http.StatusNotFound, "Authentication is disabled", nil)
		return
	}
	if r.Method != http.MethodPost {
		s.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid login payload", err)
		return
	}

	session, err := s.authService.Login(w, sanitizeInput(req.Username), req.Password)
	if err != nil {
		s.respondWithError(w, r, http.StatusUnauthorized, "Invalid username or password", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	s.respondJSON(w, map[string]interface{}{
		"success":  true,
		"username": session.Username,
	})
}

// handleLogout tears down the current session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.authService == nil {
		s.respondWithError(w, r, http.StatusNotFound, "Authentication is disabled", nil)
		return
	}
	if r.Method != http.MethodPost {
		s.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	s.authService.Logout(w, r)
	w.Header().Set("Content-Type", "application/json")
	s.respondJSON(w, map[string]interface{}{"success": true})
}

// handleCurrentUser returns the authenticated user, if any.
func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	if s.authService == nil {
		s.respondWithError(w, r, http.StatusNotFound, "Authentication is disabled", nil)
		return
	}

	user := s.authService.CurrentUser(r)
	if user == nil {
		s.respondWithError(w, r, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	s.respondJSON(w, user)
}
