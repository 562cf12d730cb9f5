package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"curator/internal/config"
	"curator/internal/entropy"
	"curator/internal/library"
	"curator/pkg/models"
)

// newTestServer builds a server on a temp library. entropyHandler, if
// non-nil, backs a fake Eris API the recommendation engine talks to.
func newTestServer(t *testing.T, entropyHandler http.Handler) *Server {
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

	var client *entropy.Client
	if entropyHandler != nil {
		eris := httptest.NewServer(entropyHandler)
		t.Cleanup(eris.Close)
		client, err = entropy.NewClient(eris.URL, "test-key", 2*time.Second)
		if err != nil {
			t.Fatalf("entropy.NewClient: %v", err)
		}
	}

	srv, err := NewServer(cfg, library.NewLibrary(store), client)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

// erisOK answers every raw-bytes request with zeroes of the requested size.
func erisOK() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))
		w.Write(make([]byte, size))
	})
}

// erisDown refuses every request.
func erisDown() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
}

func addTrack(t *testing.T, s *Server, track models.Track) models.Track {
	t.Helper()
	added, err := s.library.AddTrack(track)
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	return added
}

func housePoolTrack(title string, bpm float64) models.Track {
	return models.Track{
		Title:           title,
		Artist:          "Pool Artist",
		BPM:             bpm,
		CamelotPosition: "8A",
		TimeSignature:   "4/4",
		Genres:          []string{"Deep House"},
	}
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func TestTrackCRUD(t *testing.T) {
	s := newTestServer(t, nil)

	// Create
	rec := doJSON(t, s, http.MethodPost, "/api/tracks", map[string]interface{}{
		"title":  "Spastik",
		"artist": "Plastikman",
		"bpm":    128.0,
		"key":    "Am",
		"genres": []string{"Techno"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/tracks = %d: %s", rec.Code, rec.Body.String())
	}
	var created models.Track
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding created track: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created track has no ID")
	}
	if created.CamelotPosition != "8A" {
		t.Errorf("CamelotPosition = %q, want 8A derived from Am", created.CamelotPosition)
	}

	// List
	rec = doJSON(t, s, http.MethodGet, "/api/tracks", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/tracks = %d", rec.Code)
	}
	var listed []models.Track
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decoding track list: %v", err)
	}
	if len(listed) != 1 || listed[0].Title != "Spastik" {
		t.Errorf("listed = %v", listed)
	}

	// Get by ID
	rec = doJSON(t, s, http.MethodGet, "/api/tracks/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/tracks/{id} = %d", rec.Code)
	}

	// Delete
	rec = doJSON(t, s, http.MethodDelete, "/api/tracks/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("DELETE /api/tracks/{id} = %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodGet, "/api/tracks/"+created.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete = %d, want 404", rec.Code)
	}
}

func TestTrackCount(t *testing.T) {
	s := newTestServer(t, nil)
	addTrack(t, s, housePoolTrack("One", 120))
	addTrack(t, s, housePoolTrack("Two", 121))

	rec := doJSON(t, s, http.MethodGet, "/api/tracks/count", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/tracks/count = %d", rec.Code)
	}
	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding count: %v", err)
	}
	if resp["count"] != 2 {
		t.Errorf("count = %d, want 2", resp["count"])
	}
}

func TestAddTrackValidation(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/tracks", map[string]interface{}{
		"title": "",
		"bpm":   -5.0,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("POST invalid track = %d, want 400", rec.Code)
	}

	var result ValidationResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding validation result: %v", err)
	}
	if result.Valid || len(result.Errors) != 2 {
		t.Errorf("validation result = %+v, want 2 errors", result)
	}
}

func TestSearchTracks(t *testing.T) {
	s := newTestServer(t, nil)
	addTrack(t, s, housePoolTrack("Findable", 120))
	other := housePoolTrack("Other", 120)
	other.Artist = "Nobody"
	addTrack(t, s, other)

	rec := doJSON(t, s, http.MethodGet, "/api/tracks?search=Findable", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search = %d", rec.Code)
	}
	var tracks []models.Track
	if err := json.Unmarshal(rec.Body.Bytes(), &tracks); err != nil {
		t.Fatalf("decoding search result: %v", err)
	}
	if len(tracks) != 1 || tracks[0].Title != "Findable" {
		t.Errorf("search result = %v", tracks)
	}
}

func TestRecommendationsEndpoint(t *testing.T) {
	s := newTestServer(t, erisOK())

	seed := addTrack(t, s, housePoolTrack("Seed", 120))
	addTrack(t, s, housePoolTrack("A", 121))
	addTrack(t, s, housePoolTrack("B", 122))

	rec := doJSON(t, s, http.MethodPost, "/api/recommendations", map[string]interface{}{
		"seedTrackId": seed.ID,
		"entropy":     0.4,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/recommendations = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		SeedTrackID string         `json:"seedTrackId"`
		Tracks      []models.Track `json:"tracks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.SeedTrackID != seed.ID {
		t.Errorf("seedTrackId = %q", resp.SeedTrackID)
	}
	if len(resp.Tracks) != 2 {
		t.Errorf("got %d tracks, want 2", len(resp.Tracks))
	}
	for _, tr := range resp.Tracks {
		if tr.ID == seed.ID {
			t.Error("seed included in its own recommendations")
		}
	}
}

func TestRecommendationsSourceDown(t *testing.T) {
	s := newTestServer(t, erisDown())

	seed := addTrack(t, s, housePoolTrack("Seed", 120))
	addTrack(t, s, housePoolTrack("A", 121))
	addTrack(t, s, housePoolTrack("B", 122))

	rec := doJSON(t, s, http.MethodPost, "/api/recommendations", map[string]interface{}{
		"seedTrackId": seed.ID,
		"entropy":     0.9,
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["code"] != "ENTROPY_SOURCE_UNAVAILABLE" {
		t.Errorf("code = %v, want ENTROPY_SOURCE_UNAVAILABLE", resp["code"])
	}
}

func TestRecommendationsNotConfigured(t *testing.T) {
	s := newTestServer(t, nil) // no entropy client at all
	seed := addTrack(t, s, housePoolTrack("Seed", 120))

	rec := doJSON(t, s, http.MethodPost, "/api/recommendations", map[string]interface{}{
		"seedTrackId": seed.ID,
		"entropy":     0.5,
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when source not configured", rec.Code)
	}
}

func TestRecommendationsValidation(t *testing.T) {
	s := newTestServer(t, erisOK())
	seed := addTrack(t, s, housePoolTrack("Seed", 120))

	badCount := 0
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"entropy above range", map[string]interface{}{"seedTrackId": seed.ID, "entropy": 1.2}},
		{"entropy below range", map[string]interface{}{"seedTrackId": seed.ID, "entropy": -0.2}},
		{"missing seed", map[string]interface{}{"entropy": 0.5}},
		{"zero count", map[string]interface{}{"seedTrackId": seed.ID, "entropy": 0.5, "count": badCount}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/api/recommendations", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestRecommendationsUnknownSeed(t *testing.T) {
	s := newTestServer(t, erisOK())

	rec := doJSON(t, s, http.MethodPost, "/api/recommendations", map[string]interface{}{
		"seedTrackId": "11111111-2222-3333-4444-555555555555",
		"entropy":     0.5,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown seed", rec.Code)
	}
}

func TestEntropyStatusEndpoint(t *testing.T) {
	s := newTestServer(t, erisOK())
	rec := doJSON(t, s, http.MethodGet, "/api/entropy/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp["configured"] || !resp["available"] {
		t.Errorf("resp = %v, want configured and available", resp)
	}

	down := newTestServer(t, erisDown())
	rec = doJSON(t, down, http.MethodGet, "/api/entropy/status", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp["configured"] || resp["available"] {
		t.Errorf("resp = %v, want configured but unavailable", resp)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("/health = %d", rec.Code)
	}

	var health HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decoding health: %v", err)
	}
	if health.Status != "healthy" || health.Database != "ok" {
		t.Errorf("health = %+v", health)
	}
	if health.EntropySource != "not_configured" {
		t.Errorf("EntropySource = %q", health.EntropySource)
	}
}

func TestExcludeIDs(t *testing.T) {
	s := newTestServer(t, erisOK())

	seed := addTrack(t, s, housePoolTrack("Seed", 120))
	keep := addTrack(t, s, housePoolTrack("Keep", 121))
	skip := addTrack(t, s, housePoolTrack("Skip", 122))

	rec := doJSON(t, s, http.MethodPost, "/api/recommendations", map[string]interface{}{
		"seedTrackId": seed.ID,
		"entropy":     0.4,
		"excludeIds":  []string{skip.ID},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Tracks []models.Track `json:"tracks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Tracks) != 1 || resp.Tracks[0].ID != keep.ID {
		t.Errorf("tracks = %v, want only %s", resp.Tracks, keep.ID)
	}
}
