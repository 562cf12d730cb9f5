package server

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// startFileWatcher initializes fsnotify watcher for recursive import dir monitoring.
func (s *Server) startFileWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	s.watcher = watcher

	// Start monitoring in a goroutine
	go s.watchFiles()

	// Add the import directory to the watcher
	err = s.addDirectoryToWatcher(s.config.Library.ImportPath)
	if err != nil {
		return err
	}

	s.logger.WithField("import_path", s.config.Library.ImportPath).Info("File watcher started")
	return nil
}

// addDirectoryToWatcher recursively walks and adds subdirectories to watcher.
func (s *Server) addDirectoryToWatcher(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return s.watcher.Add(path)
		}
		return nil
	})
}

// watchFiles selects on watcher channels and dispatches events.
func (s *Server) watchFiles() {
	defer s.watcher.Close()

	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleFileEvent(event)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.WithError(err).Error("File watcher error")
		}
	}
}

// handleFileEvent applies filtering & delegates creation/removal actions.
func (s *Server) handleFileEvent(event fsnotify.Event) {
	// Ignore temporary files and hidden files
	fileName := filepath.Base(event.Name)
	if strings.HasPrefix(fileName, ".") || strings.HasSuffix(fileName, ".tmp") {
		return
	}

	isAudioFile := s.extractor.IsAudioFile(event.Name)

	switch {
	case event.Has(fsnotify.Create) && isAudioFile:
		// Dispatch new file processing asynchronously
		go func(name string) {
			time.Sleep(500 * time.Millisecond) // Ensure file is fully written
			s.handleNewFile(name)
		}(event.Name)

	case event.Has(fsnotify.Remove) && isAudioFile:
		// Dispatch removal processing asynchronously
		go s.handleRemovedFile(event.Name)

	case event.Has(fsnotify.Create):
		// Check if it's a new directory
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			s.watcher.Add(event.Name)
			s.logger.WithField("directory", event.Name).Info("Watching new directory")
		}
	}
}

// handleNewFile extracts metadata & imports the track if unseen.
func (s *Server) handleNewFile(filePath string) {
	s.logger.WithField("file_path", filePath).Info("New audio file detected")

	if err := s.importFile(filePath); err != nil {
		s.logger.WithError(err).WithField("file_path", filePath).Error("Error importing new file")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"file_path": filePath,
	}).Info("Imported new track")
}

// handleRemovedFile removes library tracks referencing deleted audio files.
func (s *Server) handleRemovedFile(filePath string) {
	s.logger.WithField("file_path", filePath).Info("Audio file removed")

	if err := s.library.RemoveTrackByPath(filePath); err != nil {
		s.logger.WithError(err).WithField("file_path", filePath).Error("Error removing track")
		return
	}

	s.logger.WithField("file_path", filePath).Info("Removed track from library")
}

// stopFileWatcher closes the watcher (idempotent).
func (s *Server) stopFileWatcher() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}
