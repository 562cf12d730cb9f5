package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"curator/internal/config"
	"curator/internal/entropy"
	"curator/internal/library"
	"curator/internal/server"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := "./config.toml"

	// Initialize basic logger for startup
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Load .env if present so OCCYBYTE_API_KEY / OCCYBYTE_API_LINK and
	// the ngrok token can live outside the config file
	if err := godotenv.Load(); err == nil {
		logger.Debug("Loaded environment from .env")
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.WithError(err).Fatal("Error loading configuration")
	}

	// Check if import directory exists
	if _, err := os.Stat(cfg.Library.ImportPath); os.IsNotExist(err) {
		logger.WithField("import_path", cfg.Library.ImportPath).Fatal("Import directory does not exist. Please create it and add your music files.")
	}

	// Initialize track store
	store, err := library.NewStore(cfg.Database.Path)
	if err != nil {
		logger.WithError(err).Fatal("Error initializing database")
	}
	defer store.Close()

	lib := library.NewLibrary(store)

	// The quantum entropy source is optional at startup: without it the
	// library API still works, only recommendations are disabled.
	var entropyClient *entropy.Client
	apiLink := cfg.EntropyAPILink()
	apiKey := cfg.EntropyAPIKey()
	if apiLink != "" && apiKey != "" {
		timeout := time.Duration(cfg.Entropy.TimeoutSeconds) * time.Second
		entropyClient, err = entropy.NewClient(apiLink, apiKey, timeout)
		if err != nil {
			logger.WithError(err).Fatal("Error creating entropy client")
		}
	} else {
		logger.Warn("OCCYBYTE_API_LINK or OCCYBYTE_API_KEY not set; recommendations disabled")
	}

	// Create and configure the curator server
	curatorServer, err := server.NewServer(cfg, lib, entropyClient)
	if err != nil {
		logger.WithError(err).Fatal("Error creating server")
	}

	// Scan the import directory
	if err := curatorServer.ScanImportDirectory(); err != nil {
		logger.WithError(err).Fatal("Error scanning import directory")
	}

	// Check track count and warn if empty
	if cfg.Library.ScanOnStartup {
		tracks, err := lib.Snapshot()
		if err != nil {
			logger.WithError(err).Warn("Could not get track count")
		} else if len(tracks) == 0 {
			logger.WithField("supported_formats", cfg.Library.SupportedFormats).Warn("No supported audio files found in import directory")
		}
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Start the server in a goroutine
	go func() {
		if err := curatorServer.Start(); err != nil {
			logger.WithError(err).Fatal("Server error")
		}
	}()

	// Wait for shutdown signal
	<-c

	logger.Info("Received shutdown signal")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	curatorServer.Shutdown(ctx)
}
