package centroid

import (
	"math"
	"testing"

	"curator/pkg/models"
)

func TestComputeReferenceScenario(t *testing.T) {
	tracks := []models.Track{
		{ID: "a", BPM: 120, CamelotPosition: "8A", TimeSignature: "4/4"},
		{ID: "b", BPM: 121, CamelotPosition: "8A", TimeSignature: "4/4"},
		{ID: "c", BPM: 160, CamelotPosition: "3B", TimeSignature: "3/4"},
	}

	profile := Compute(tracks)

	wantMean := (120.0 + 121.0 + 160.0) / 3.0
	if math.Abs(profile.MeanBPM-wantMean) > 0.01 {
		t.Errorf("MeanBPM = %v, want %v", profile.MeanBPM, wantMean)
	}
	if profile.ModalCamelot != "8A" {
		t.Errorf("ModalCamelot = %q, want 8A", profile.ModalCamelot)
	}
	if profile.TimeSignature != "4/4" {
		t.Errorf("TimeSignature = %q, want 4/4", profile.TimeSignature)
	}
	if profile.TrackCount != 3 {
		t.Errorf("TrackCount = %d, want 3", profile.TrackCount)
	}
}

func TestComputeEmptyLibraryDefaults(t *testing.T) {
	profile := Compute(nil)

	if profile.MeanBPM != DefaultBPM {
		t.Errorf("MeanBPM = %v, want %v", profile.MeanBPM, DefaultBPM)
	}
	if profile.ModalCamelot != models.UnknownCamelot {
		t.Errorf("ModalCamelot = %q, want Unknown", profile.ModalCamelot)
	}
	if profile.TimeSignature != models.DefaultTimeSignature {
		t.Errorf("TimeSignature = %q, want 4/4", profile.TimeSignature)
	}
	if len(profile.TopGenres) != 0 {
		t.Errorf("TopGenres = %v, want empty", profile.TopGenres)
	}
}

func TestComputeIgnoresUnusableValues(t *testing.T) {
	tracks := []models.Track{
		{ID: "a", BPM: 0, CamelotPosition: "Unknown", TimeSignature: "Unknown"},
		{ID: "b", BPM: 100, CamelotPosition: "4B", TimeSignature: "6/8"},
	}

	profile := Compute(tracks)

	if profile.MeanBPM != 100 {
		t.Errorf("MeanBPM = %v, want 100 (zero tempos excluded)", profile.MeanBPM)
	}
	if profile.ModalCamelot != "4B" {
		t.Errorf("ModalCamelot = %q, want 4B", profile.ModalCamelot)
	}
	if profile.TimeSignature != "6/8" {
		t.Errorf("TimeSignature = %q, want 6/8", profile.TimeSignature)
	}
}

func TestComputeModalTieBreaksFirstSeen(t *testing.T) {
	tracks := []models.Track{
		{ID: "a", CamelotPosition: "2A"},
		{ID: "b", CamelotPosition: "7B"},
		{ID: "c", CamelotPosition: "7B"},
		{ID: "d", CamelotPosition: "2A"},
	}

	if got := Compute(tracks).ModalCamelot; got != "2A" {
		t.Errorf("ModalCamelot = %q, want first-seen 2A on tie", got)
	}
}

func TestComputeTopGenres(t *testing.T) {
	tracks := []models.Track{
		{ID: "a", Genres: []string{"Detroit Techno", "Deep House"}},
		{ID: "b", Genres: []string{"Minimal Techno"}},
		{ID: "c", Genres: []string{"Techno", "Acid Jazz", "Ambient"}},
		{ID: "d", Genres: []string{"Jazz"}},
	}

	got := Compute(tracks).TopGenres

	// techno x3, jazz x2, then house/ambient x1 each with house seen first.
	want := []string{"techno", "jazz", "house"}
	if len(got) != len(want) {
		t.Fatalf("TopGenres = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TopGenres[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestProfileTraits(t *testing.T) {
	profile := Profile{
		MeanBPM:       133.67,
		ModalCamelot:  "8A",
		TimeSignature: "4/4",
		TopGenres:     []string{"techno"},
	}

	traits := profile.Traits()
	if traits.BPM != profile.MeanBPM || traits.Camelot != "8A" ||
		traits.TimeSignature != "4/4" || len(traits.Genres) != 1 {
		t.Errorf("Traits() = %+v does not mirror profile %+v", traits, profile)
	}
}
