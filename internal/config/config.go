package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables that override values from the config file.
const (
	EnvPort        = "METAEXPLORER_PORT"
	EnvCatalogDB   = "METAEXPLORER_CATALOG_DB"
	EnvFeaturesDB  = "METAEXPLORER_FEATURES_DB"
	EnvLogLevel    = "METAEXPLORER_LOG_LEVEL"
	EnvNgrokToken  = "NGROK_AUTHTOKEN"
	defaultEnvFile = ".env"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Ngrok    NgrokConfig    `toml:"ngrok"`
}

// ServerConfig contains listener and transport configuration
type ServerConfig struct {
	Port               string `toml:"port"`
	Host               string `toml:"host"`
	StaticDir          string `toml:"static_dir"`
	WatchStatic        bool   `toml:"watch_static"`
	ReadTimeout        int    `toml:"read_timeout_seconds"`
	WriteTimeout       int    `toml:"write_timeout_seconds"`
	ShutdownTimeout    int    `toml:"shutdown_timeout_seconds"`
	RateLimitPerMinute int    `toml:"rate_limit_per_minute"`
	IndexBatchSize     int    `toml:"index_batch_size"`
}

// DatabaseConfig points at the two read-only sqlite stores
type DatabaseConfig struct {
	CatalogPath    string `toml:"catalog_path"`
	FeaturesPath   string `toml:"features_path"`
	MaxConnections int    `toml:"max_connections"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level          string `toml:"level"`
	Format         string `toml:"format"`
	RequestLogging bool   `toml:"request_logging"`
}

// NgrokConfig contains ngrok tunnel configuration
type NgrokConfig struct {
	Enabled   bool   `toml:"enabled"`
	AuthToken string `toml:"auth_token"`
	Domain    string `toml:"domain"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               "3000",
			Host:               "0.0.0.0",
			StaticDir:          "./static",
			WatchStatic:        false,
			ReadTimeout:        15,
			WriteTimeout:       30,
			ShutdownTimeout:    10,
			RateLimitPerMinute: 0,
			IndexBatchSize:     50,
		},
		Database: DatabaseConfig{
			CatalogPath:    "./spotify_clean.sqlite3",
			FeaturesPath:   "./spotify_clean_track_audio_features.sqlite3",
			MaxConnections: 8,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			RequestLogging: true,
		},
		Ngrok: NgrokConfig{
			Enabled: false,
		},
	}
}

// LoadConfig loads configuration from a TOML file. A missing file is created
// with defaults. Environment overrides (including a .env file in the working
// directory) are applied after decoding and before validation.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// .env is optional; variables already set in the environment win.
	if _, err := os.Stat(defaultEnvFile); err == nil {
		if err := godotenv.Load(defaultEnvFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", defaultEnvFile, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup has the signature of
// os.LookupEnv so tests can pass a map-backed function.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvPort); ok && v != "" {
		c.Server.Port = v
	}
	if v, ok := lookup(EnvCatalogDB); ok && v != "" {
		c.Database.CatalogPath = v
	}
	if v, ok := lookup(EnvFeaturesDB); ok && v != "" {
		c.Database.FeaturesPath = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := lookup(EnvNgrokToken); ok && v != "" {
		c.Ngrok.AuthToken = v
	}
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# Metaexplorer Configuration
# Read-only browser over a catalog of artists, albums, tracks and audio features.
# Edit the values below to customize your server settings.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// ValidatePort checks that port is a whole number in 1..65535.
func ValidatePort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid port %q: not a number", port)
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", n)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := ValidatePort(c.Server.Port); err != nil {
		return err
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if c.Server.IndexBatchSize < 1 {
		return fmt.Errorf("index batch size must be at least 1")
	}

	if c.Database.CatalogPath == "" {
		return fmt.Errorf("catalog database path cannot be empty")
	}
	if c.Database.FeaturesPath == "" {
		return fmt.Errorf("audio features database path cannot be empty")
	}
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

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

	if c.Ngrok.Enabled && c.Ngrok.AuthToken == "" {
		return fmt.Errorf("ngrok is enabled but no auth token is set (config or %s)", EnvNgrokToken)
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

// Timeouts returns the read, write and shutdown timeouts as durations.
func (s ServerConfig) Timeouts() (read, write, shutdown time.Duration) {
	return time.Duration(s.ReadTimeout) * time.Second,
		time.Duration(s.WriteTimeout) * time.Second,
		time.Duration(s.ShutdownTimeout) * time.Second
}
