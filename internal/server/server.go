// Package server exposes the curator over HTTP: library management,
// entropy-driven recommendations, enrichment, and operational
// endpoints.
package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"curator/internal/auth"
	"curator/internal/config"
	"curator/internal/entropy"
	"curator/internal/library"
	"curator/internal/metadata"
	"curator/internal/musicbrainz"
	"curator/internal/ngrok"
	"curator/internal/recommend"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Server is the curator HTTP server and its supporting services.
type Server struct {
	config        *config.Config
	library       *library.Library
	entropyClient *entropy.Client
	engine        *recommend.Engine
	extractor     *metadata.Extractor
	enricher      *musicbrainz.Client
	authService   *auth.Service
	ngrokService  *ngrok.Service
	watcher       *fsnotify.Watcher
	logger        *logrus.Logger

	mux        *http.ServeMux
	httpServer *http.Server
}

// NewServer wires the server from its dependencies. The entropy client
// may be nil when the quantum source is not configured; recommendation
// endpoints then report the source as unavailable instead of failing
// startup.
func NewServer(cfg *config.Config, lib *library.Library, entropyClient *entropy.Client) (*Server, error) {
	logger := logrus.New()
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	var engine *recommend.Engine
	if entropyClient != nil {
		engine = recommend.NewEngine(entropyClient)
	}

	var enricher *musicbrainz.Client
	if cfg.MusicBrainz.Enabled {
		enricher = musicbrainz.NewClient("", cfg.MusicBrainz.UserAgent)
	}

	var authService *auth.Service
	if cfg.Auth.Enabled {
		svc, err := auth.NewService(cfg.Auth.UsersFile, false)
		if err != nil {
			return nil, err
		}
		authService = svc
	}

	ngrokSvc, err := ngrok.NewService(&cfg.Ngrok)
	if err != nil {
		log.Printf("Warning: Ngrok service not available: %v", err)
		ngrokSvc = nil
	}

	server := &Server{
		config:        cfg,
		library:       lib,
		entropyClient: entropyClient,
		engine:        engine,
		extractor:     metadata.NewExtractor(cfg.Library.SupportedFormats),
		enricher:      enricher,
		authService:   authService,
		ngrokService:  ngrokSvc,
		logger:        logger,
		mux:           http.NewServeMux(),
	}

	server.setupRoutes()
	return server, nil
}

// ScanImportDirectory walks the import directory and adds unseen audio
// files to the library using a worker pool.
func (s *Server) ScanImportDirectory() error {
	if !s.config.Library.ScanOnStartup {
		log.Println("Skipping import scan (disabled in config)")
		return nil
	}

	log.Printf("Scanning import directory: %s", s.config.Library.ImportPath)

	var wg sync.WaitGroup
	var imported int64
	jobs := make(chan string, 100)

	numWorkers := runtime.NumCPU()
	for i := 0; i < numWorkers; i++ {
		go func() {
			for path := range jobs {
				if err := s.importFile(path); err != nil {
					log.Printf("Error importing %s: %v", path, err)
				} else {
					atomic.AddInt64(&imported, 1)
				}
				wg.Done()
			}
		}()
	}

	walkErr := filepath.Walk(s.config.Library.ImportPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if s.extractor.IsAudioFile(path) {
			wg.Add(1)
			jobs <- path
		}
		return nil
	})

	close(jobs)
	wg.Wait()

	log.Printf("Imported %d tracks", imported)
	return walkErr
}

// importFile extracts metadata from a file and adds it to the library
// unless that path was imported before.
func (s *Server) importFile(path string) error {
	exists, err := s.library.HasTrackFromPath(path)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	track, err := s.extractor.ExtractFromFile(path)
	if err != nil {
		return err
	}

	_, err = s.library.AddTrack(track)
	return err
}

// Start runs the server until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	if s.config.Library.WatchForChanges {
		if err := s.startFileWatcher(); err != nil {
			log.Printf("Warning: Could not start file watcher: %v", err)
		}
	}

	localAddress := "http://" + s.config.GetAddress()

	tracks, err := s.library.Snapshot()
	if err == nil {
		log.Printf("Library contains %d tracks", len(tracks))
	}
	log.Printf("Curator server starting on port %s", s.config.Server.Port)
	if s.entropyClient == nil {
		log.Printf("Quantum entropy source not configured; recommendations disabled")
	}
	log.Printf("Local access: %s", localAddress)

	if s.ngrokService != nil {
		if err := s.ngrokService.StartTunnel(context.Background(), localAddress); err != nil {
			log.Printf("Warning: Could not start ngrok tunnel: %v", err)
		}
	}

	handler := s.panicRecoveryMiddleware(
		s.corsMiddleware(
			s.requestLoggingMiddleware(
				s.authMiddleware(s.mux))))

	s.httpServer = &http.Server{
		Addr:        s.config.GetAddress(),
		Handler:     handler,
		ReadTimeout: time.Duration(s.config.Server.ReadTimeout) * time.Second,
	}

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/tracks", s.handleTracks)
	s.mux.HandleFunc("/api/tracks/count", s.handleTrackCount)
	s.mux.HandleFunc("/api/tracks/", s.handleTrackByID)
	s.mux.HandleFunc("/api/recommendations", s.handleRecommendations)
	s.mux.HandleFunc("/api/entropy/status", s.handleEntropyStatus)
	s.mux.HandleFunc("/health", s.handleHealthCheck)

	// Auth routes
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.HandleFunc("/api/auth/me", s.handleCurrentUser)
}

// Shutdown gracefully shuts down the server and its services.
func (s *Server) Shutdown(ctx context.Context) {
	log.Println("Shutting down curator server...")

	s.stopFileWatcher()
	if s.ngrokService != nil {
		s.ngrokService.Stop()
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("HTTP shutdown error: %v", err)
		}
	}

	log.Println("Curator server shutdown complete")
}
