package server

import (
	"math"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// respondWithValidationError sends a structured validation error response
func (s *Server) respondWithValidationError(w http.ResponseWriter, r *http.Request, errors []ValidationError) {
	s.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"errors": errors,
	}).Warn("Validation failed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)

	result := ValidationResult{
		Valid:  false,
		Errors: errors,
	}

	s.respondJSON(w, result)
}

// respondWithError sends a structured error response
func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	logEntry := s.logger.WithFields(logrus.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": statusCode,
		"message":     message,
	})

	if err != nil {
		logEntry = logEntry.WithError(err)
	}

	if statusCode >= 500 {
		logEntry.Error("Server error")
	} else {
		logEntry.Warn("Client error")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := map[string]interface{}{
		"error":   message,
		"code":    statusCode,
		"success": false,
	}

	s.respondJSON(w, response)
}

// validateEntropy checks a requested entropy value. Out-of-range values
// are rejected, never clamped.
func (s *Server) validateEntropy(value float64) *ValidationError {
	if math.IsNaN(value) || value < 0.0 || value > 1.0 {
		return &ValidationError{
			Field:   "entropy",
			Message: "Entropy must be between 0.0 and 1.0",
			Code:    "ENTROPY_OUT_OF_RANGE",
		}
	}
	return nil
}

// validateCount checks a requested recommendation count against the
// configured maximum.
func (s *Server) validateCount(count int) *ValidationError {
	if count < 1 {
		return &ValidationError{
			Field:   "count",
			Message: "Count must be at least 1",
			Code:    "INVALID_COUNT",
		}
	}
	if count > s.config.Recommend.MaxCount {
		return &ValidationError{
			Field:   "count",
			Message: "Count exceeds the configured maximum",
			Code:    "COUNT_TOO_LARGE",
		}
	}
	return nil
}

// validateTrackID validates a track ID extracted from a URL path or
// request body.
func (s *Server) validateTrackID(trackID string) *ValidationError {
	if trackID == "" {
		return &ValidationError{
			Field:   "track_id",
			Message: "Track ID is required",
			Code:    "MISSING_TRACK_ID",
		}
	}

	if len(trackID) > 64 || strings.ContainsAny(trackID, "/\x00") {
		return &ValidationError{
			Field:   "track_id",
			Message: "Track ID contains invalid characters",
			Code:    "INVALID_TRACK_ID",
		}
	}

	return nil
}

// validateSearchQuery validates search query parameters
func (s *Server) validateSearchQuery(query string) *ValidationError {
	if len(query) > 1000 {
		return &ValidationError{
			Field:   "search",
			Message: "Search query too long (max 1000 characters)",
			Code:    "SEARCH_QUERY_TOO_LONG",
		}
	}

	// Check for potentially dangerous characters
	if strings.Contains(query, "\x00") {
		return &ValidationError{
			Field:   "search",
			Message: "Search query contains invalid characters",
			Code:    "INVALID_SEARCH_CHARACTERS",
		}
	}

	return nil
}

// validateTrackTitle validates a submitted track title
func (s *Server) validateTrackTitle(title string) *ValidationError {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{
			Field:   "title",
			Message: "Track title is required",
			Code:    "MISSING_TITLE",
		}
	}

	if len(title) > 512 {
		return &ValidationError{
			Field:   "title",
			Message: "Track title too long (max 512 characters)",
			Code:    "TITLE_TOO_LONG",
		}
	}

	return nil
}

// validateBPM validates a submitted tempo value
func (s *Server) validateBPM(bpm float64) *ValidationError {
	if bpm < 0 || bpm > 1000 || math.IsNaN(bpm) {
		return &ValidationError{
			Field:   "bpm",
			Message: "BPM must be between 0 and 1000",
			Code:    "INVALID_BPM",
		}
	}
	return nil
}

// sanitizeInput sanitizes user input to prevent injection attacks
func sanitizeInput(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Trim whitespace
	input = strings.TrimSpace(input)

	return input
}
