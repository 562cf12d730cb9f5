// Package metadata extracts track metadata from audio files, including
// the mixing-relevant fields (tempo, musical key) stored in ID3/vorbis
// tags by DJ tooling.
package metadata

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"curator/internal/camelot"
	"curator/pkg/models"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// Extractor handles metadata extraction from audio files
type Extractor struct {
	supportedFormats []string
	logger           *logrus.Logger
}

// NewExtractor creates a new metadata extractor
func NewExtractor(supportedFormats []string) *Extractor {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Extractor{
		supportedFormats: supportedFormats,
		logger:           logger,
	}
}

// ExtractFromFile extracts metadata from an audio file. The returned
// track has no ID; the library assigns one on insert.
func (e *Extractor) ExtractFromFile(filePath string) (models.Track, error) {
	startTime := time.Now()

	file, err := os.Open(filePath)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Error("Failed to open audio file")
		return models.Track{}, err
	}
	defer file.Close()

	// Calculate duration
	duration, err := e.calculateDuration(filePath)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Warn("Failed to calculate duration, setting to 0")
		duration = 0
	}

	// Extract metadata using the tag library
	meta, err := tag.ReadFrom(file)
	if err != nil {
		// If metadata extraction fails, use filename
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Warn("Failed to extract metadata, using filename")

		return models.Track{
			Title:           TitleFromFilename(filePath),
			Artist:          "Unknown Artist",
			Album:           "Unknown Album",
			Duration:        duration,
			CamelotPosition: models.UnknownCamelot,
			TimeSignature:   models.DefaultTimeSignature,
			SourcePath:      filePath,
		}, nil
	}

	title := meta.Title()
	if title == "" {
		title = TitleFromFilename(filePath)
	}

	artist := meta.Artist()
	if artist == "" {
		artist = "Unknown Artist"
	}

	album := meta.Album()
	if album == "" {
		album = "Unknown Album"
	}

	bpm := extractBPM(meta)
	key := extractKey(meta)
	camelotPos := models.UnknownCamelot
	if key != "" {
		camelotPos = camelot.FromMusicalKey(key)
	}

	track := models.Track{
		Title:           title,
		Artist:          artist,
		Album:           album,
		BPM:             bpm,
		Key:             key,
		CamelotPosition: camelotPos,
		TimeSignature:   models.DefaultTimeSignature,
		Genres:          SplitGenres(meta.Genre()),
		Duration:        duration,
		SourcePath:      filePath,
	}

	e.logger.WithFields(logrus.Fields{
		"filePath":       filePath,
		"title":          title,
		"artist":         artist,
		"bpm":            bpm,
		"camelot":        camelotPos,
		"duration":       duration,
		"processingTime": time.Since(startTime),
	}).Debug("Successfully extracted metadata")

	return track, nil
}

// extractBPM pulls the tempo from the raw tag frames. DJ software
// writes TBPM (ID3v2) or BPM (vorbis comment); both are free-form text.
func extractBPM(meta tag.Metadata) float64 {
	for _, frame := range []string{"TBPM", "BPM", "bpm"} {
		value, ok := meta.Raw()[frame]
		if !ok {
			continue
		}
		text, ok := value.(string)
		if !ok {
			continue
		}
		bpm, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err == nil && bpm > 0 {
			return bpm
		}
	}
	return 0
}

// extractKey pulls the musical key from the raw tag frames (TKEY for
// ID3v2, INITIALKEY/KEY for vorbis comments).
func extractKey(meta tag.Metadata) string {
	for _, frame := range []string{"TKEY", "INITIALKEY", "initialkey", "KEY", "key"} {
		value, ok := meta.Raw()[frame]
		if !ok {
			continue
		}
		if text, ok := value.(string); ok {
			if trimmed := strings.TrimSpace(text); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// SplitGenres turns a raw genre tag into individual trimmed tags. Tag
// writers separate multiple genres with semicolons, slashes or commas.
func SplitGenres(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == '/' || r == ','
	})

	var genres []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			genres = append(genres, trimmed)
		}
	}
	return genres
}

// TitleFromFilename derives a display title from the file name.
func TitleFromFilename(filePath string) string {
	filename := filepath.Base(filePath)
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// calculateDuration calculates the duration of an audio file in seconds
func (e *Extractor) calculateDuration(filePath string) (int, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		return e.durationMP3(filePath)
	case ".flac":
		return e.durationFLAC(filePath)
	case ".wav":
		return e.durationWAV(filePath)
	default:
		return 0, fmt.Errorf("unsupported format: %s", ext)
	}
}

// MP3 duration using frame decoding; fallback to average bitrate estimation only if frames fail entirely.
func (e *Extractor) durationMP3(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := mp3.NewDecoder(f)
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 { // could not decode any frame
				return e.estimateFromFileSize(path, 192000) // assume 192 kbps = 192000 bps
			}
			break // partial decode; use what we have
		}
		total += fr.Duration()
		frames++
	}
	return int(total.Seconds()), nil
}

// FLAC duration via STREAMINFO metadata block
func (e *Extractor) durationFLAC(path string) (int, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		secs := float64(si.NSamples) / float64(si.SampleRate)
		return int(secs + 0.5), nil
	}
	return 0, fmt.Errorf("flac stream missing sample info")
}

// WAV duration using go-audio/wav to read header
func (e *Extractor) durationWAV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, fmt.Errorf("invalid wav header")
	}
	// Approximate using file size; full sample count may require decoding all samples.
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	headerSize := int64(44)
	pcmBytes := st.Size() - headerSize
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	bytesPerSampleFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if bytesPerSampleFrame <= 0 {
		return 0, fmt.Errorf("invalid sample frame size")
	}
	sampleFrames := pcmBytes / bytesPerSampleFrame
	secs := float64(sampleFrames) / float64(dec.SampleRate)
	return int(secs + 0.5), nil
}

// estimateFromFileSize provides last-resort estimation if parsing fails.
func (e *Extractor) estimateFromFileSize(path string, bitrate int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if bitrate <= 0 {
		return 0, fmt.Errorf("invalid bitrate")
	}
	dur := (st.Size() * 8) / int64(bitrate)
	return int(dur), nil
}

// IsAudioFile checks if a file is a supported audio format
func (e *Extractor) IsAudioFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range e.supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// GetContentType returns the MIME type for an audio file
func (e *Extractor) GetContentType(filePath string) string {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
