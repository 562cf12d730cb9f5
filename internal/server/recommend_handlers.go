package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"curator/internal/compat"
	"curator/internal/entropy"
	"curator/pkg/models"

	"github.com/sirupsen/logrus"
)

// recommendationRequest is the payload for POST /api/recommendations.
type recommendationRequest struct {
	SeedTrackID string   `json:"seedTrackId"`
	Entropy     float64  `json:"entropy"`
	Count       *int     `json:"count,omitempty"`
	ExcludeIDs  []string `json:"excludeIds,omitempty"`
}

// handleRecommendations builds a quantum-shuffled slate for a seed
// track. A dead entropy source maps to 503 with a machine-readable
// code so clients can distinguish it from "nothing compatible" (200
// with an empty list).
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	if s.engine == nil {
		s.respondEntropyUnavailable(w, r, "Quantum entropy source is not configured", nil)
		return
	}

	var req recommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid recommendation request", err)
		return
	}

	count := s.config.Recommend.DefaultCount
	if req.Count != nil {
		count = *req.Count
	}

	var validationErrors []ValidationError
	if vErr := s.validateTrackID(req.SeedTrackID); vErr != nil {
		vErr.Field = "seedTrackId"
		validationErrors = append(validationErrors, *vErr)
	}
	if vErr := s.validateEntropy(req.Entropy); vErr != nil {
		validationErrors = append(validationErrors, *vErr)
	}
	if vErr := s.validateCount(count); vErr != nil {
		validationErrors = append(validationErrors, *vErr)
	}
	if len(validationErrors) > 0 {
		s.respondWithValidationError(w, r, validationErrors)
		return
	}

	e, err := compat.NewEntropy(req.Entropy)
	if err != nil {
		s.respondWithValidationError(w, r, []ValidationError{{
			Field:   "entropy",
			Message: "Entropy must be between 0.0 and 1.0",
			Code:    "ENTROPY_OUT_OF_RANGE",
		}})
		return
	}

	seed, err := s.library.GetTrack(req.SeedTrackID)
	if err != nil {
		s.respondWithError(w, r, http.StatusNotFound, "Seed track not found", err)
		return
	}

	pool, err := s.library.Snapshot()
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Error reading library", err)
		return
	}
	if len(req.ExcludeIDs) > 0 {
		pool = filterExcluded(pool, req.ExcludeIDs)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	tracks, err := s.engine.Recommend(ctx, *seed, pool, e, count)
	if err != nil {
		if errors.Is(err, entropy.ErrUnavailable) {
			s.respondEntropyUnavailable(w, r, "Quantum entropy source unavailable", err)
			return
		}
		s.respondWithError(w, r, http.StatusInternalServerError, "Recommendation failed", err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"seed":    seed.ID,
		"entropy": req.Entropy,
		"count":   len(tracks),
	}).Info("Recommendation slate built")

	w.Header().Set("Content-Type", "application/json")
	s.respondJSON(w, map[string]interface{}{
		"seedTrackId": seed.ID,
		"entropy":     req.Entropy,
		"tracks":      tracks,
	})
}

// respondEntropyUnavailable reports the entropy source as down. There
// is no PRNG fallback, so this is a hard 503 for randomness-dependent
// requests.
func (s *Server) respondEntropyUnavailable(w http.ResponseWriter, r *http.Request, message string, err error) {
	logEntry := s.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	})
	if err != nil {
		logEntry = logEntry.WithError(err)
	}
	logEntry.Warn(message)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	s.respondJSON(w, map[string]interface{}{
		"error":   message,
		"code":    "ENTROPY_SOURCE_UNAVAILABLE",
		"success": false,
	})
}

// handleEntropyStatus probes the quantum entropy source.
func (s *Server) handleEntropyStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if s.entropyClient == nil {
		s.respondJSON(w, map[string]interface{}{
			"configured": false,
			"available":  false,
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	s.respondJSON(w, map[string]interface{}{
		"configured": true,
		"available":  s.entropyClient.Available(ctx),
	})
}

// filterExcluded drops tracks the client asked to leave out, typically
// the already-played portion of a set.
func filterExcluded(pool []models.Track, excludeIDs []string) []models.Track {
	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}

	filtered := pool[:0]
	for _, track := range pool {
		if !excluded[track.ID] {
			filtered = append(filtered, track)
		}
	}
	return filtered
}
