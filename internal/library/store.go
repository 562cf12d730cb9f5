package library

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"curator/pkg/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Store wraps a *sql.DB providing higher-level helper methods for the
// persistent track library. It is safe for concurrent use because the
// underlying *sql.DB is concurrency-safe.
type Store struct {
	conn   *sql.DB
	logger *logrus.Logger

	// Prepared statements for better performance
	upsertTrackStmt  *sql.Stmt
	getTrackByIDStmt *sql.Stmt
	trackExistsStmt  *sql.Stmt
	removeByIDStmt   *sql.Stmt
	removeByPathStmt *sql.Stmt
	searchTracksStmt *sql.Stmt
}

// NewStore opens (or creates) a SQLite database at the provided path and
// ensures the schema exists. It also applies lightweight
// performance-oriented pragmas (WAL, cache sizing). Caller should
// Close() it when finished.
func NewStore(dbPath string) (*Store, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works better with fewer connections
	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=2000;",
		"PRAGMA temp_store=memory;",
		"PRAGMA foreign_keys=ON;",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	store := &Store{
		conn:   conn,
		logger: logger,
	}

	if err := store.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := store.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("Library store initialized successfully")
	return store, nil
}

// createTables creates tables and indices if they do not already exist.
// This is idempotent and safe to call multiple times.
func (s *Store) createTables() error {
	tracksTable := `
	CREATE TABLE IF NOT EXISTS tracks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		artist TEXT NOT NULL DEFAULT '',
		album TEXT NOT NULL DEFAULT '',
		bpm REAL NOT NULL DEFAULT 0,
		musical_key TEXT NOT NULL DEFAULT '',
		camelot TEXT NOT NULL DEFAULT 'Unknown',
		energy REAL NOT NULL DEFAULT 0,
		time_signature TEXT NOT NULL DEFAULT '4/4',
		genres TEXT NOT NULL DEFAULT '[]',
		spotify_url TEXT NOT NULL DEFAULT '',
		duration INTEGER NOT NULL DEFAULT 0,
		source_path TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist);",
		"CREATE INDEX IF NOT EXISTS idx_tracks_camelot ON tracks(camelot);",
		"CREATE INDEX IF NOT EXISTS idx_tracks_search ON tracks(title, artist, album);",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_tracks_source_path ON tracks(source_path) WHERE source_path IS NOT NULL;",
	}

	if _, err := s.conn.Exec(tracksTable); err != nil {
		return err
	}
	for _, index := range indices {
		if _, err := s.conn.Exec(index); err != nil {
			return err
		}
	}
	return nil
}

// prepareStatements prepares commonly used SQL statements for better performance
func (s *Store) prepareStatements() error {
	var err error

	s.upsertTrackStmt, err = s.conn.Prepare(`
		INSERT INTO tracks (id, title, artist, album, bpm, musical_key, camelot, energy, time_signature, genres, spotify_url, duration, source_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title,
			artist=excluded.artist,
			album=excluded.album,
			bpm=excluded.bpm,
			musical_key=excluded.musical_key,
			camelot=excluded.camelot,
			energy=excluded.energy,
			time_signature=excluded.time_signature,
			genres=excluded.genres,
			spotify_url=excluded.spotify_url,
			duration=excluded.duration,
			source_path=excluded.source_path`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert track statement: %w", err)
	}

	s.getTrackByIDStmt, err = s.conn.Prepare(`
		SELECT id, title, artist, album, bpm, musical_key, camelot, energy, time_signature, genres, spotify_url, duration, source_path
		FROM tracks WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get track by ID statement: %w", err)
	}

	s.trackExistsStmt, err = s.conn.Prepare(`
		SELECT COUNT(*) FROM tracks WHERE source_path = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare track exists statement: %w", err)
	}

	s.removeByIDStmt, err = s.conn.Prepare(`
		DELETE FROM tracks WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare remove by ID statement: %w", err)
	}

	s.removeByPathStmt, err = s.conn.Prepare(`
		DELETE FROM tracks WHERE source_path = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare remove by path statement: %w", err)
	}

	s.searchTracksStmt, err = s.conn.Prepare(`
		SELECT id, title, artist, album, bpm, musical_key, camelot, energy, time_signature, genres, spotify_url, duration, source_path
		FROM tracks
		WHERE title LIKE ? OR artist LIKE ? OR album LIKE ? OR genres LIKE ?
		ORDER BY artist, album, title`)
	if err != nil {
		return fmt.Errorf("failed to prepare search tracks statement: %w", err)
	}

	return nil
}

// UpsertTrack inserts a track or replaces the existing row with the
// same ID. The caller is responsible for assigning the ID.
func (s *Store) UpsertTrack(track models.Track) error {
	genres, err := json.Marshal(track.Genres)
	if err != nil {
		return fmt.Errorf("failed to encode genres: %w", err)
	}

	_, err = s.upsertTrackStmt.Exec(
		track.ID, track.Title, track.Artist, track.Album,
		track.BPM, track.Key, track.CamelotPosition, track.EnergyLevel,
		track.TimeSignature, string(genres), track.SpotifyURL,
		track.Duration, nullablePath(track.SourcePath))
	if err != nil {
		s.logger.WithError(err).WithField("track_id", track.ID).Error("Failed to upsert track")
	}
	return err
}

// GetAllTracks returns all tracks ordered by artist/album/title.
func (s *Store) GetAllTracks() ([]models.Track, error) {
	rows, err := s.conn.Query(`
		SELECT id, title, artist, album, bpm, musical_key, camelot, energy, time_signature, genres, spotify_url, duration, source_path
		FROM tracks
		ORDER BY artist, album, title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrackRows(rows)
}

// GetTrackByID returns a single track by its ID.
func (s *Store) GetTrackByID(id string) (*models.Track, error) {
	track, err := scanTrackRow(s.getTrackByIDStmt.QueryRow(id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("track with ID %s not found", id)
		}
		s.logger.WithError(err).WithField("track_id", id).Error("Failed to get track by ID")
		return nil, err
	}
	return track, nil
}

// GetTrackByPath returns the track imported from the given source path.
func (s *Store) GetTrackByPath(sourcePath string) (*models.Track, error) {
	track, err := scanTrackRow(s.conn.QueryRow(`
		SELECT id, title, artist, album, bpm, musical_key, camelot, energy, time_signature, genres, spotify_url, duration, source_path
		FROM tracks WHERE source_path = ?`, sourcePath))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no track imported from %s", sourcePath)
		}
		return nil, err
	}
	return track, nil
}

// TrackExistsByPath returns true if a track was imported from the given
// source path.
func (s *Store) TrackExistsByPath(sourcePath string) (bool, error) {
	var count int
	err := s.trackExistsStmt.QueryRow(sourcePath).Scan(&count)
	if err != nil {
		s.logger.WithError(err).WithField("source_path", sourcePath).Error("Failed to check if track exists")
		return false, err
	}
	return count > 0, nil
}

// RemoveTrackByID deletes a track row by ID, reporting whether a row
// was actually removed.
func (s *Store) RemoveTrackByID(id string) (bool, error) {
	result, err := s.removeByIDStmt.Exec(id)
	if err != nil {
		s.logger.WithError(err).WithField("track_id", id).Error("Failed to remove track by ID")
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// RemoveTrackByPath deletes a track row identified by its source path.
func (s *Store) RemoveTrackByPath(sourcePath string) error {
	_, err := s.removeByPathStmt.Exec(sourcePath)
	if err != nil {
		s.logger.WithError(err).WithField("source_path", sourcePath).Error("Failed to remove track by path")
	}
	return err
}

// SearchTracks performs a simple LIKE-based search over title, artist,
// album and genre tags.
func (s *Store) SearchTracks(query string) ([]models.Track, error) {
	searchQuery := "%" + query + "%"
	rows, err := s.searchTracksStmt.Query(searchQuery, searchQuery, searchQuery, searchQuery)
	if err != nil {
		s.logger.WithError(err).WithField("query", query).Error("Failed to search tracks")
		return nil, err
	}
	defer rows.Close()
	return scanTrackRows(rows)
}

// Close closes the underlying database connection and prepared statements.
func (s *Store) Close() error {
	statements := []*sql.Stmt{
		s.upsertTrackStmt,
		s.getTrackByIDStmt,
		s.trackExistsStmt,
		s.removeByIDStmt,
		s.removeByPathStmt,
		s.searchTracksStmt,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				s.logger.WithError(err).Error("Failed to close prepared statement")
			}
		}
	}

	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// nullablePath maps an empty source path to NULL so the partial unique
// index only applies to real filesystem imports.
func nullablePath(p string) interface{} {
	if p == "" {
		return nil
	}
	return p
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrackRow(row rowScanner) (*models.Track, error) {
	var track models.Track
	var genres string
	var sourcePath sql.NullString

	err := row.Scan(&track.ID, &track.Title, &track.Artist, &track.Album,
		&track.BPM, &track.Key, &track.CamelotPosition, &track.EnergyLevel,
		&track.TimeSignature, &genres, &track.SpotifyURL, &track.Duration,
		&sourcePath)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(genres), &track.Genres); err != nil {
		return nil, fmt.Errorf("failed to decode genres for track %s: %w", track.ID, err)
	}
	if sourcePath.Valid {
		track.SourcePath = sourcePath.String
	}
	return &track, nil
}

// scanTrackRows scans standard track result sets into a slice of
// models.Track. Callers must have already deferred rows.Close().
func scanTrackRows(rows *sql.Rows) ([]models.Track, error) {
	var tracks []models.Track
	for rows.Next() {
		track, err := scanTrackRow(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *track)
	}
	return tracks, rows.Err()
}
