package server

import (
	"math"
	"path/filepath"
	"testing"

	"curator/internal/config"
	"curator/internal/library"
)

func newValidationServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "curator.db")
	cfg.Library.ImportPath = dir
	cfg.Library.ScanOnStartup = false
	cfg.Library.WatchForChanges = false
	cfg.MusicBrainz.Enabled = false
	cfg.Logging.RequestLogging = false

	store, err := library.NewStore(cfg.Database.Path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv, err := NewServer(cfg, library.NewLibrary(store), nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func TestValidateEntropy(t *testing.T) {
	s := newValidationServer(t)

	valid := []float64{0.0, 0.5, 1.0, 0.999}
	for _, v := range valid {
		if vErr := s.validateEntropy(v); vErr != nil {
			t.Errorf("validateEntropy(%v) = %+v, want nil", v, vErr)
		}
	}

	invalid := []float64{-0.1, 1.1, 2.0, math.NaN()}
	for _, v := range invalid {
		vErr := s.validateEntropy(v)
		if vErr == nil {
			t.Errorf("validateEntropy(%v) = nil, want error", v)
			continue
		}
		if vErr.Code != "ENTROPY_OUT_OF_RANGE" {
			t.Errorf("validateEntropy(%v) code = %q", v, vErr.Code)
		}
	}
}

func TestValidateCount(t *testing.T) {
	s := newValidationServer(t)

	if vErr := s.validateCount(1); vErr != nil {
		t.Errorf("validateCount(1) = %+v", vErr)
	}
	if vErr := s.validateCount(s.config.Recommend.MaxCount); vErr != nil {
		t.Errorf("validateCount(max) = %+v", vErr)
	}

	if vErr := s.validateCount(0); vErr == nil || vErr.Code != "INVALID_COUNT" {
		t.Errorf("validateCount(0) = %+v", vErr)
	}
	if vErr := s.validateCount(s.config.Recommend.MaxCount + 1); vErr == nil || vErr.Code != "COUNT_TOO_LARGE" {
		t.Errorf("validateCount(max+1) = %+v", vErr)
	}
}

func TestValidateTrackID(t *testing.T) {
	s := newValidationServer(t)

	if vErr := s.validateTrackID("4f7c2a9e-1111-2222-3333-444455556666"); vErr != nil {
		t.Errorf("uuid rejected: %+v", vErr)
	}

	if vErr := s.validateTrackID(""); vErr == nil || vErr.Code != "MISSING_TRACK_ID" {
		t.Errorf("empty ID = %+v", vErr)
	}
	if vErr := s.validateTrackID("a/b"); vErr == nil || vErr.Code != "INVALID_TRACK_ID" {
		t.Errorf("slash ID = %+v", vErr)
	}
	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	if vErr := s.validateTrackID(string(long)); vErr == nil {
		t.Error("overlong ID accepted")
	}
}

func TestValidateSearchQuery(t *testing.T) {
	s := newValidationServer(t)

	if vErr := s.validateSearchQuery("aphex twin"); vErr != nil {
		t.Errorf("normal query rejected: %+v", vErr)
	}
	if vErr := s.validateSearchQuery("bad\x00query"); vErr == nil {
		t.Error("null byte accepted")
	}

	long := make([]byte, 1001)
	for i := range long {
		long[i] = 'q'
	}
	if vErr := s.validateSearchQuery(string(long)); vErr == nil {
		t.Error("overlong query accepted")
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello  ", "hello"},
		{"with\x00null", "withnull"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
