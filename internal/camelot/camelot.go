// Package camelot implements parsing and conversion for Camelot wheel
// notation, the harmonic-mixing system that maps every musical key to a
// wheel position 1-12 plus a mode letter (A = minor, B = major).
package camelot

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode distinguishes the two rings of the Camelot wheel.
type Mode byte

const (
	Minor Mode = 'A'
	Major Mode = 'B'
)

// Key is a parsed Camelot position. Only constructible from a valid
// label; unknown or malformed labels parse to absence, never to a
// default key.
type Key struct {
	Number int // 1..12
	Mode   Mode
}

// String renders the key back to its canonical label, e.g. "8A".
func (k Key) String() string {
	return fmt.Sprintf("%d%c", k.Number, k.Mode)
}

// SameMode reports whether both keys sit on the same ring of the wheel.
func (k Key) SameMode(other Key) bool {
	return k.Mode == other.Mode
}

// Distance returns the absolute numeric distance between two wheel
// positions without wraparound (callers handle the 12<->1 wrap).
func (k Key) Distance(other Key) int {
	d := k.Number - other.Number
	if d < 0 {
		d = -d
	}
	return d
}

// Parse parses a Camelot label such as "8A" or "12B". Labels must be
// 2-3 characters: a number 1-12 followed by 'A' or 'B'. Anything else
// (including "Unknown", the common placeholder) yields ok=false. This
// is an expected, frequent outcome and deliberately not an error.
func Parse(label string) (Key, bool) {
	if len(label) < 2 || len(label) > 3 {
		return Key{}, false
	}

	number, err := strconv.Atoi(label[:len(label)-1])
	if err != nil || number < 1 || number > 12 {
		return Key{}, false
	}

	mode := Mode(label[len(label)-1])
	if mode != Minor && mode != Major {
		return Key{}, false
	}

	return Key{Number: number, Mode: mode}, true
}

// camelotWheel maps (pitch class, major?) to a wheel position. Pitch
// class 0 is C, counting up in semitones to 11 = B.
var camelotWheel = map[[2]int]string{
	// Major keys (B ring)
	{0, 1}:  "8B",  // C major
	{1, 1}:  "3B",  // C#/Db major
	{2, 1}:  "10B", // D major
	{3, 1}:  "5B",  // D#/Eb major
	{4, 1}:  "12B", // E major
	{5, 1}:  "7B",  // F major
	{6, 1}:  "2B",  // F#/Gb major
	{7, 1}:  "9B",  // G major
	{8, 1}:  "4B",  // G#/Ab major
	{9, 1}:  "11B", // A major
	{10, 1}: "6B",  // A#/Bb major
	{11, 1}: "1B",  // B major

	// Minor keys (A ring)
	{0, 0}:  "5A",  // C minor
	{1, 0}:  "12A", // C#/Db minor
	{2, 0}:  "7A",  // D minor
	{3, 0}:  "2A",  // D#/Eb minor
	{4, 0}:  "9A",  // E minor
	{5, 0}:  "4A",  // F minor
	{6, 0}:  "11A", // F#/Gb minor
	{7, 0}:  "6A",  // G minor
	{8, 0}:  "1A",  // G#/Ab minor
	{9, 0}:  "8A",  // A minor
	{10, 0}: "3A",  // A#/Bb minor
	{11, 0}: "10A", // B minor
}

var pitchClasses = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// FromPitchClass converts a pitch class (0=C .. 11=B) and mode flag
// (true = major) into a Camelot label, "Unknown" when out of range.
func FromPitchClass(pitchClass int, major bool) string {
	m := 0
	if major {
		m = 1
	}
	if label, ok := camelotWheel[[2]int{pitchClass, m}]; ok {
		return label
	}
	return "Unknown"
}

// FromMusicalKey converts a conventional key label into a Camelot
// position. Accepted forms include "Am", "C#m", "Bb minor", "F maj",
// "E" (bare note = major) and Camelot labels themselves ("8A" passes
// through canonicalized). Unrecognized labels return "Unknown".
func FromMusicalKey(label string) string {
	s := strings.TrimSpace(label)
	if s == "" {
		return "Unknown"
	}

	// Already Camelot notation.
	if k, ok := Parse(strings.ToUpper(s)); ok {
		return k.String()
	}

	note := strings.ToUpper(s[:1])
	rest := s[1:]

	pc, ok := pitchClasses[note[0]]
	if !ok {
		return "Unknown"
	}

	// Optional accidental directly after the note letter.
	if rest != "" {
		switch rest[0] {
		case '#':
			pc = (pc + 1) % 12
			rest = rest[1:]
		case 'b':
			pc = (pc + 11) % 12
			rest = rest[1:]
		}
	}

	mode := strings.ToLower(strings.TrimSpace(rest))
	switch mode {
	case "", "maj", "major":
		return FromPitchClass(pc, true)
	case "m", "min", "minor":
		return FromPitchClass(pc, false)
	default:
		return "Unknown"
	}
}
