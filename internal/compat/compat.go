// Package compat implements the entropy-tiered musical compatibility
// rules used by the recommendation engine. Two tracks are compared
// across four dimensions (tempo, harmonic key, time signature, genre);
// how many of those must agree, and how loosely, is governed by the
// entropy dial.
package compat

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"curator/internal/camelot"
	"curator/pkg/models"
)

// ErrEntropyRange is returned when an entropy value falls outside [0, 1].
var ErrEntropyRange = errors.New("entropy must be between 0.0 and 1.0")

// Entropy is a validated compatibility dial in [0.0, 1.0]. 0 is strict
// curation, 1 tolerates broad mismatches. Values are never clamped;
// out-of-range input is a contract violation.
type Entropy float64

// NewEntropy validates v and returns it as an Entropy.
func NewEntropy(v float64) (Entropy, error) {
	if v < 0.0 || v > 1.0 || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: got %v", ErrEntropyRange, v)
	}
	return Entropy(v), nil
}

// Raise returns the entropy increased by delta, capped at 1.0. Used for
// the centroid comparison, which is graded slightly more leniently than
// the seed comparison.
func (e Entropy) Raise(delta float64) Entropy {
	v := float64(e) + delta
	if v > 1.0 {
		v = 1.0
	}
	return Entropy(v)
}

// Traits is the capability set the evaluator operates on: everything it
// needs to know about a comparison target. Both real tracks and the
// synthetic library centroid reduce to a Traits value, so no fake Track
// identity is ever fabricated for aggregate comparisons.
type Traits struct {
	BPM           float64
	Camelot       string
	TimeSignature string
	Genres        []string
}

// TrackTraits extracts the comparison traits from a library track.
func TrackTraits(t models.Track) Traits {
	sig := t.TimeSignature
	if sig == "" {
		sig = models.DefaultTimeSignature
	}
	return Traits{
		BPM:           t.BPM,
		Camelot:       t.CamelotPosition,
		TimeSignature: sig,
		Genres:        t.Genres,
	}
}

// TempoTolerance returns the allowed BPM difference at a given entropy:
// +/-5 BPM at entropy 0 widening to +/-25 at entropy 1. The reference
// behavior oscillated between 5+20e and 5+25e across revisions; this
// implementation fixes on 5 + floor(20e).
func TempoTolerance(e Entropy) float64 {
	return 5 + math.Floor(float64(e)*20)
}

// TempoCompatible reports whether two tempos fall within the
// entropy-scaled tolerance of each other.
func TempoCompatible(a, b Traits, e Entropy) bool {
	return math.Abs(a.BPM-b.BPM) <= TempoTolerance(e)
}

// KeysCompatible applies the tiered Camelot wheel rules. Each tier is a
// superset of the one below it:
//
//	any entropy:  identical position, or adjacent number (wrapping
//	              12<->1) on the same ring
//	e > 0.5:      adds the energy boost (same number, opposite ring)
//	e > 0.75:     adds wide jumps (same ring, distance 2 or its
//	              wraparound complement 10)
//
// An unparseable key on either side fails the predicate; key-unknown is
// never treated as harmonically compatible.
func KeysCompatible(a, b Traits, e Entropy) bool {
	ka, okA := camelot.Parse(a.Camelot)
	kb, okB := camelot.Parse(b.Camelot)
	if !okA || !okB {
		return false
	}

	if ka == kb {
		return true
	}

	dist := ka.Distance(kb)
	if ka.SameMode(kb) && (dist == 1 || dist == 11) {
		return true
	}

	if e > 0.5 && dist == 0 && !ka.SameMode(kb) {
		return true
	}

	if e > 0.75 && ka.SameMode(kb) && (dist == 2 || dist == 10) {
		return true
	}

	return false
}

// relatedFeels are time signature pairs with a close enough beat feel
// to mix at high entropy.
var relatedFeels = map[[2]string]bool{
	{"4/4", "2/4"}: true,
	{"2/4", "4/4"}: true,
	{"4/4", "2/2"}: true,
	{"2/2", "4/4"}: true,
	{"3/4", "6/8"}: true,
	{"6/8", "3/4"}: true,
}

// TimeSignaturesCompatible requires identical signatures below entropy
// 0.6; above that, a small fixed set of related feels also passes. An
// "Unknown" signature on either side fails.
func TimeSignaturesCompatible(a, b Traits, e Entropy) bool {
	if a.TimeSignature == "Unknown" || b.TimeSignature == "Unknown" {
		return false
	}
	if a.TimeSignature == b.TimeSignature {
		return true
	}
	return e >= 0.6 && relatedFeels[[2]string{a.TimeSignature, b.TimeSignature}]
}

// broadGenreKeywords is the fixed vocabulary of genre families used for
// fuzzy genre matching. A track tag matches a keyword when the keyword
// is a substring of the lower-cased tag.
var broadGenreKeywords = []string{
	"ambient", "techno", "house", "trance", "electro", "drum and bass",
	"dubstep", "disco", "rock", "metal", "punk", "jazz", "blues", "funk",
	"soul", "hip hop", "rap", "pop", "folk", "country", "classical",
	"reggae", "dub", "indie",
}

// BroadKeywords returns the genre-family keywords matched by any of the
// given tags, in vocabulary order, without duplicates.
func BroadKeywords(tags []string) []string {
	var matched []string
	for _, keyword := range broadGenreKeywords {
		for _, tag := range tags {
			if strings.Contains(strings.ToLower(tag), keyword) {
				matched = append(matched, keyword)
				break
			}
		}
	}
	return matched
}

// GenresCompatible compares lower-cased tag sets:
//
//	both empty:        compatible
//	exactly one empty: compatible only at e >= 0.75
//	shared exact tag:  always compatible
//	e < 0.3:           nothing short of an exact shared tag counts
//	e >= 0.3:          a shared broad keyword also counts
//	e >= 0.9:          compatible even with no match at all
func GenresCompatible(a, b Traits, e Entropy) bool {
	if len(a.Genres) == 0 && len(b.Genres) == 0 {
		return true
	}
	if len(a.Genres) == 0 || len(b.Genres) == 0 {
		return e >= 0.75
	}

	setA := make(map[string]bool, len(a.Genres))
	for _, g := range a.Genres {
		setA[strings.ToLower(g)] = true
	}
	for _, g := range b.Genres {
		if setA[strings.ToLower(g)] {
			return true
		}
	}

	if e >= 0.3 && sharesBroadKeyword(a.Genres, b.Genres) {
		return true
	}

	return e >= 0.9
}

func sharesBroadKeyword(tagsA, tagsB []string) bool {
	kwA := BroadKeywords(tagsA)
	if len(kwA) == 0 {
		return false
	}
	kwB := make(map[string]bool)
	for _, kw := range BroadKeywords(tagsB) {
		kwB[kw] = true
	}
	for _, kw := range kwA {
		if kwB[kw] {
			return true
		}
	}
	return false
}

// quorum returns how many of the four sub-predicates must hold at a
// given entropy. Low entropy demands full agreement; high entropy
// trades strictness for the randomness injected downstream.
func quorum(e Entropy) int {
	switch {
	case e < 0.5:
		return 4
	case e < 0.8:
		return 3
	default:
		return 2
	}
}

// Compatible combines the four sub-predicates under the entropy-tiered
// quorum policy.
func Compatible(a, b Traits, e Entropy) bool {
	passed := 0
	if TempoCompatible(a, b, e) {
		passed++
	}
	if KeysCompatible(a, b, e) {
		passed++
	}
	if TimeSignaturesCompatible(a, b, e) {
		passed++
	}
	if GenresCompatible(a, b, e) {
		passed++
	}
	return passed >= quorum(e)
}
