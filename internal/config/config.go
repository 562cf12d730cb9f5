package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Database    DatabaseConfig    `toml:"database"`
	Library     LibraryConfig     `toml:"library"`
	Entropy     EntropyConfig     `toml:"entropy"`
	Recommend   RecommendConfig   `toml:"recommend"`
	MusicBrainz MusicBrainzConfig `toml:"musicbrainz"`
	Auth        AuthConfig        `toml:"auth"`
	Ngrok       NgrokConfig       `toml:"ngrok"`
	Logging     LoggingConfig     `toml:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port        string `toml:"port"`
	Host        string `toml:"host"`
	EnableCORS  bool   `toml:"enable_cors"`
	ReadTimeout int    `toml:"read_timeout_seconds"`
}

// DatabaseConfig contains database-related configuration
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LibraryConfig contains track import configuration
type LibraryConfig struct {
	ImportPath       string   `toml:"import_path"`
	SupportedFormats []string `toml:"supported_formats"`
	WatchForChanges  bool     `toml:"watch_for_changes"`
	ScanOnStartup    bool     `toml:"scan_on_startup"`
}

// EntropyConfig contains quantum entropy source configuration. The API
// key and link are read from the OCCYBYTE_API_KEY and OCCYBYTE_API_LINK
// environment variables when not set here; secrets should stay out of
// the config file.
type EntropyConfig struct {
	APILink        string `toml:"api_link"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// RecommendConfig contains recommendation engine configuration
type RecommendConfig struct {
	DefaultCount int `toml:"default_count"`
	MaxCount     int `toml:"max_count"`
}

// MusicBrainzConfig contains metadata enrichment configuration
type MusicBrainzConfig struct {
	Enabled   bool   `toml:"enabled"`
	UserAgent string `toml:"user_agent"`
}

// AuthConfig contains API authentication configuration
type AuthConfig struct {
	Enabled   bool   `toml:"enabled"`
	UsersFile string `toml:"users_file"`
}

// NgrokConfig contains ngrok tunnel configuration
type NgrokConfig struct {
	Enabled   bool   `toml:"enabled"`
	AuthToken string `toml:"auth_token"`
	Domain    string `toml:"domain"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level          string `toml:"level"`
	Format         string `toml:"format"`
	RequestLogging bool   `toml:"request_logging"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			Host:        "0.0.0.0",
			EnableCORS:  true,
			ReadTimeout: 30,
		},
		Database: DatabaseConfig{
			Path: "./curator.db",
		},
		Library: LibraryConfig{
			ImportPath:       "./music",
			SupportedFormats: []string{".mp3", ".flac", ".wav"},
			WatchForChanges:  true,
			ScanOnStartup:    true,
		},
		Entropy: EntropyConfig{
			APILink:        "",
			TimeoutSeconds: 10,
		},
		Recommend: RecommendConfig{
			DefaultCount: 10,
			MaxCount:     50,
		},
		MusicBrainz: MusicBrainzConfig{
			Enabled:   true,
			UserAgent: "Curator/1.0 (support@occybyte.com)",
		},
		Auth: AuthConfig{
			Enabled:   false,
			UsersFile: "./users.toml",
		},
		Ngrok: NgrokConfig{
			Enabled:   false,
			AuthToken: "",
			Domain:    "",
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			RequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Config file doesn't exist, create it with defaults
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
		return cfg, nil
	}

	// Load from file
	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create or open file
	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// Write header comment
	header := `# Curator Configuration
# This file contains all configuration options for the Curator recommendation server.
# The quantum entropy API key is never stored here; set OCCYBYTE_API_KEY in the
# environment (or a .env file) instead.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	// Encode configuration to TOML
	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	// Validate database config
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	// Validate library config
	if c.Library.ImportPath == "" {
		return fmt.Errorf("library import path cannot be empty")
	}
	if len(c.Library.SupportedFormats) == 0 {
		return fmt.Errorf("at least one supported audio format must be specified")
	}

	// Validate entropy config
	if c.Entropy.TimeoutSeconds <= 0 {
		return fmt.Errorf("entropy timeout must be positive")
	}

	// Validate recommendation config
	if c.Recommend.DefaultCount < 1 {
		return fmt.Errorf("recommendation default count must be at least 1")
	}
	if c.Recommend.MaxCount < c.Recommend.DefaultCount {
		return fmt.Errorf("recommendation max count must be at least the default count")
	}

	// Validate logging config
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

// EntropyAPILink returns the configured entropy API base URL, falling
// back to the OCCYBYTE_API_LINK environment variable.
func (c *Config) EntropyAPILink() string {
	if c.Entropy.APILink != "" {
		return c.Entropy.APILink
	}
	return os.Getenv("OCCYBYTE_API_LINK")
}

// EntropyAPIKey returns the entropy API key from the environment.
func (c *Config) EntropyAPIKey() string {
	return os.Getenv("OCCYBYTE_API_KEY")
}

// IsFormatSupported checks if an audio format is supported
func (c *Config) IsFormatSupported(format string) bool {
	for _, supported := range c.Library.SupportedFormats {
		if supported == format {
			return true
		}
	}
	return false
}
