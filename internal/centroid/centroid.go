// Package centroid computes an aggregate musical profile for a track
// collection: the "average track" the recommendation engine compares
// candidates against at high entropy.
package centroid

import (
	"curator/internal/camelot"
	"curator/internal/compat"
	"curator/pkg/models"
)

// DefaultBPM is assumed when no track in the set has a usable tempo.
const DefaultBPM = 120.0

// topGenreCount bounds how many genre keywords the profile keeps.
const topGenreCount = 3

// Profile is the derived, ephemeral centroid of a track set. It is
// recomputed on every recommendation request and never persisted.
type Profile struct {
	MeanBPM       float64  `json:"meanBpm"`
	ModalCamelot  string   `json:"modalCamelot"` // "Unknown" when no key is parseable
	TimeSignature string   `json:"timeSignature"`
	TopGenres     []string `json:"topGenres"`
	TrackCount    int      `json:"trackCount"`
}

// Traits exposes the profile to the compatibility evaluator. The
// centroid carries no identity and is never inserted into the library;
// it exists purely as a comparison target.
func (p Profile) Traits() compat.Traits {
	return compat.Traits{
		BPM:           p.MeanBPM,
		Camelot:       p.ModalCamelot,
		TimeSignature: p.TimeSignature,
		Genres:        p.TopGenres,
	}
}

// Compute aggregates the given tracks into a Profile: mean tempo over
// tracks with a known BPM, modal parseable Camelot key, modal known time
// signature, and the top broad genre keywords by frequency. Ties break
// to the value seen first, which keeps the result deterministic for a
// given track ordering.
func Compute(tracks []models.Track) Profile {
	profile := Profile{
		MeanBPM:       DefaultBPM,
		ModalCamelot:  models.UnknownCamelot,
		TimeSignature: models.DefaultTimeSignature,
		TrackCount:    len(tracks),
	}

	var bpmSum float64
	var bpmCount int
	keyCounts := newFrequency()
	sigCounts := newFrequency()
	genreCounts := newFrequency()

	for _, track := range tracks {
		if track.BPM > 0 {
			bpmSum += track.BPM
			bpmCount++
		}

		if key, ok := camelot.Parse(track.CamelotPosition); ok {
			keyCounts.add(key.String())
		}

		if track.TimeSignature != "" && track.TimeSignature != "Unknown" {
			sigCounts.add(track.TimeSignature)
		}

		for _, keyword := range compat.BroadKeywords(track.Genres) {
			genreCounts.add(keyword)
		}
	}

	if bpmCount > 0 {
		profile.MeanBPM = bpmSum / float64(bpmCount)
	}
	if modal, ok := keyCounts.mode(); ok {
		profile.ModalCamelot = modal
	}
	if modal, ok := sigCounts.mode(); ok {
		profile.TimeSignature = modal
	}
	profile.TopGenres = genreCounts.top(topGenreCount)

	return profile
}

// frequency counts string occurrences while remembering first-seen
// order for deterministic tie breaking.
type frequency struct {
	counts map[string]int
	order  []string
}

func newFrequency() *frequency {
	return &frequency{counts: make(map[string]int)}
}

func (f *frequency) add(value string) {
	if _, seen := f.counts[value]; !seen {
		f.order = append(f.order, value)
	}
	f.counts[value]++
}

// mode returns the most frequent value, first-seen winning ties.
func (f *frequency) mode() (string, bool) {
	best := ""
	bestCount := 0
	for _, value := range f.order {
		if f.counts[value] > bestCount {
			best = value
			bestCount = f.counts[value]
		}
	}
	return best, bestCount > 0
}

// top returns up to n values ranked by descending frequency, first-seen
// winning ties.
func (f *frequency) top(n int) []string {
	remaining := make(map[string]int, len(f.counts))
	for k, v := range f.counts {
		remaining[k] = v
	}

	var ranked []string
	for len(ranked) < n {
		best := ""
		bestCount := 0
		for _, value := range f.order {
			if remaining[value] > bestCount {
				best = value
				bestCount = remaining[value]
			}
		}
		if bestCount == 0 {
			break
		}
		ranked = append(ranked, best)
		delete(remaining, best)
	}
	return ranked
}
