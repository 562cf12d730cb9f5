// Package library manages the persistent track collection: SQLite
// storage, track identity, and a change feed for components that need
// to react to mutations.
package library

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"curator/internal/camelot"
	"curator/pkg/models"
)

// Library is the high-level track collection. All mutations flow
// through it so that every add, update and removal reaches the change
// feed exactly once.
type Library struct {
	store    *Store
	notifier *Notifier
	logger   *logrus.Logger
}

// NewLibrary wraps a Store with identity assignment and change
// notification.
func NewLibrary(store *Store) *Library {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Library{
		store:    store,
		notifier: NewNotifier(),
		logger:   logger,
	}
}

// Subscribe registers a listener for library changes.
func (l *Library) Subscribe() <-chan Change {
	return l.notifier.Subscribe()
}

// Unsubscribe removes a change listener.
func (l *Library) Unsubscribe(ch <-chan Change) {
	l.notifier.Unsubscribe(ch)
}

// Snapshot returns the current track collection. The slice is owned by
// the caller; it is never empty-for-error, a problem reading the store
// surfaces as an error.
func (l *Library) Snapshot() ([]models.Track, error) {
	return l.store.GetAllTracks()
}

// GetTrack returns a single track by ID.
func (l *Library) GetTrack(id string) (*models.Track, error) {
	return l.store.GetTrackByID(id)
}

// Search returns tracks matching the query across title, artist, album
// and genre tags.
func (l *Library) Search(query string) ([]models.Track, error) {
	return l.store.SearchTracks(query)
}

// AddTrack normalizes and persists a track, assigning a fresh UUID when
// the caller did not provide an ID, and publishes the addition to the
// change feed. The stored track is returned.
func (l *Library) AddTrack(track models.Track) (models.Track, error) {
	if strings.TrimSpace(track.Title) == "" {
		return models.Track{}, fmt.Errorf("track title is required")
	}

	if track.ID == "" {
		track.ID = uuid.New().String()
	}
	normalizeTrack(&track)

	if err := l.store.UpsertTrack(track); err != nil {
		return models.Track{}, fmt.Errorf("failed to store track: %w", err)
	}

	l.logger.WithFields(logrus.Fields{
		"track_id": track.ID,
		"title":    track.Title,
		"camelot":  track.CamelotPosition,
	}).Info("Track added to library")

	l.notifier.publish(TrackAdded, track)
	return track, nil
}

// UpdateTrack replaces an existing track's row and publishes the
// update. The track must already exist.
func (l *Library) UpdateTrack(track models.Track) error {
	if _, err := l.store.GetTrackByID(track.ID); err != nil {
		return err
	}
	normalizeTrack(&track)

	if err := l.store.UpsertTrack(track); err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}
	l.notifier.publish(TrackUpdated, track)
	return nil
}

// RemoveTrack deletes a track by ID and publishes the removal. Removing
// an unknown ID is an error.
func (l *Library) RemoveTrack(id string) error {
	track, err := l.store.GetTrackByID(id)
	if err != nil {
		return err
	}

	removed, err := l.store.RemoveTrackByID(id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("track with ID %s not found", id)
	}

	l.logger.WithField("track_id", id).Info("Track removed from library")
	l.notifier.publish(TrackRemoved, *track)
	return nil
}

// RemoveTrackByPath deletes the track imported from the given source
// path, if any, and publishes the removal. Used by the import watcher
// when files disappear.
func (l *Library) RemoveTrackByPath(sourcePath string) error {
	track, err := l.store.GetTrackByPath(sourcePath)
	if err != nil {
		// Nothing imported from that path; not an error for the watcher.
		return nil
	}

	if err := l.store.RemoveTrackByPath(sourcePath); err != nil {
		return err
	}
	l.notifier.publish(TrackRemoved, *track)
	return nil
}

// HasTrackFromPath reports whether a track was already imported from
// the given source path.
func (l *Library) HasTrackFromPath(sourcePath string) (bool, error) {
	return l.store.TrackExistsByPath(sourcePath)
}

// normalizeTrack fills derivable fields: the Camelot position from the
// raw musical key when missing, and the default time signature.
func normalizeTrack(track *models.Track) {
	if track.CamelotPosition == "" {
		if track.Key != "" {
			track.CamelotPosition = camelot.FromMusicalKey(track.Key)
		} else {
			track.CamelotPosition = models.UnknownCamelot
		}
	}
	if track.TimeSignature == "" {
		track.TimeSignature = models.DefaultTimeSignature
	}
}
