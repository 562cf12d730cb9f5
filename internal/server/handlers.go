package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"curator/pkg/models"
)

// respondJSON encodes v to the response, logging encode failures.
func (s *Server) respondJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// handleTracks serves the track collection: GET lists (optionally
// filtered by search), POST adds a track.
func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTracks(w, r)
	case http.MethodPost:
		s.handleAddTrack(w, r)
	default:
		s.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
	}
}

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	searchQuery := sanitizeInput(r.URL.Query().Get("search"))
	if vErr := s.validateSearchQuery(searchQuery); vErr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*vErr})
		return
	}

	var tracks []models.Track
	var err error
	if searchQuery != "" {
		tracks, err = s.library.Search(searchQuery)
	} else {
		tracks, err = s.library.Snapshot()
	}
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving tracks", err)
		return
	}
	if tracks == nil {
		tracks = []models.Track{}
	}

	s.respondJSON(w, tracks)
}

func (s *Server) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	var track models.Track
	if err := json.NewDecoder(r.Body).Decode(&track); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid track payload", err)
		return
	}

	var validationErrors []ValidationError
	if vErr := s.validateTrackTitle(track.Title); vErr != nil {
		validationErrors = append(validationErrors, *vErr)
	}
	if vErr := s.validateBPM(track.BPM); vErr != nil {
		validationErrors = append(validationErrors, *vErr)
	}
	if len(validationErrors) > 0 {
		s.respondWithValidationError(w, r, validationErrors)
		return
	}

	track.Title = sanitizeInput(track.Title)
	track.Artist = sanitizeInput(track.Artist)
	track.Album = sanitizeInput(track.Album)
	track.ID = "" // server-assigned
	track.SourcePath = ""

	added, err := s.library.AddTrack(track)
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Error storing track", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	s.respondJSON(w, added)
}

// handleTrackCount reports the library size without materializing the
// full track list on the client.
func (s *Server) handleTrackCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	tracks, err := s.library.Snapshot()
	if err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Error retrieving tracks", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	s.respondJSON(w, map[string]int{"count": len(tracks)})
}

// handleTrackByID routes /api/tracks/{id} and /api/tracks/{id}/enrich.
func (s *Server) handleTrackByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/tracks/")
	parts := strings.Split(rest, "/")
	trackID := parts[0]

	if vErr := s.validateTrackID(trackID); vErr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*vErr})
		return
	}

	if len(parts) == 2 && parts[1] == "enrich" {
		if r.Method != http.MethodPost {
			s.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
			return
		}
		s.handleEnrichTrack(w, r, trackID)
		return
	}
	if len(parts) > 1 {
		s.respondWithError(w, r, http.StatusNotFound, "Not found", nil)
		return
	}

	switch r.Method {
	case http.MethodGet:
		track, err := s.library.GetTrack(trackID)
		if err != nil {
			s.respondWithError(w, r, http.StatusNotFound, "Track not found", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		s.respondJSON(w, track)

	case http.MethodDelete:
		if err := s.library.RemoveTrack(trackID); err != nil {
			s.respondWithError(w, r, http.StatusNotFound, "Track not found", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		s.respondJSON(w, map[string]interface{}{"success": true})

	default:
		s.respondWithError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
	}
}

// handleEnrichTrack resolves genre tags for the track's artist through
// MusicBrainz and merges them into the stored track.
func (s *Server) handleEnrichTrack(w http.ResponseWriter, r *http.Request, trackID string) {
	if s.enricher == nil {
		s.respondWithError(w, r, http.StatusServiceUnavailable, "Metadata enrichment is disabled", nil)
		return
	}

	track, err := s.library.GetTrack(trackID)
	if err != nil {
		s.respondWithError(w, r, http.StatusNotFound, "Track not found", err)
		return
	}
	if track.Artist == "" || track.Artist == "Unknown Artist" {
		s.respondWithError(w, r, http.StatusUnprocessableEntity, "Track has no artist to enrich from", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	genres, err := s.enricher.ArtistGenres(ctx, track.Artist)
	if err != nil {
		s.respondWithError(w, r, http.StatusBadGateway, "Enrichment lookup failed", err)
		return
	}

	track.Genres = mergeGenres(track.Genres, genres)
	if err := s.library.UpdateTrack(*track); err != nil {
		s.respondWithError(w, r, http.StatusInternalServerError, "Error storing enriched track", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	s.respondJSON(w, track)
}

// mergeGenres appends new tags to existing ones, case-insensitively
// deduplicated, preserving the existing order.
func mergeGenres(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, g := range existing {
		key := strings.ToLower(g)
		if !seen[key] {
			seen[key] = true
			merged = append(merged, g)
		}
	}
	for _, g := range incoming {
		key := strings.ToLower(g)
		if !seen[key] {
			seen[key] = true
			merged = append(merged, g)
		}
	}
	return merged
}
