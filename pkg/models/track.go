package models

// UnknownCamelot is the placeholder label for tracks whose harmonic key
// could not be determined.
const UnknownCamelot = "Unknown"

// DefaultTimeSignature is assumed when a track carries no signature.
const DefaultTimeSignature = "4/4"

// Track represents a music track in the curator's library. Musical
// attributes (BPM, key, energy) are supplied by whatever imported the
// track; zero or "Unknown" values mean the attribute is not available.
type Track struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Artist          string   `json:"artist"`
	Album           string   `json:"album,omitempty"`
	BPM             float64  `json:"bpm"`             // beats per minute, 0 = unknown
	Key             string   `json:"key,omitempty"`   // raw musical key label, e.g. "A minor"
	CamelotPosition string   `json:"camelotPosition"` // "1A".."12B" or "Unknown"
	EnergyLevel     float64  `json:"energyLevel"`     // 0.0 to 1.0
	TimeSignature   string   `json:"timeSignature"`
	Genres          []string `json:"genres,omitempty"`
	SpotifyURL      string   `json:"spotifyUrl,omitempty"`
	Duration        int      `json:"duration,omitempty"` // in seconds
	SourcePath      string   `json:"-"`                  // don't expose file path to client
}
