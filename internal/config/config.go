package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/smkaiser/songfix/internal/logging"
)

// DefaultPath is read when SONGFIX_CONFIG_PATH is unset.
const DefaultPath = "songfix.yaml"

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	MusicBrainz MusicBrainzConfig `yaml:"musicbrainz"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Logging     logging.Config    `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// ClientInterval is the refill interval of the per-client /fix limiter.
	// Zero disables it.
	ClientInterval time.Duration `yaml:"client_interval"`
	ClientBurst    int           `yaml:"client_burst"`

	// WriteTimeout caps the time to resolve and answer one request,
	// including any wait for the MusicBrainz gate. A resolution that
	// outlives it still finishes and is cached, but its response is lost.
	// Zero means no limit.
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DatabaseConfig selects the correction cache backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`

	// MaintenanceInterval schedules PRAGMA optimize on the SQLite cache.
	// Zero disables it.
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`
}

// MusicBrainzConfig holds search client settings.
type MusicBrainzConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Threshold   float64       `yaml:"threshold"`
	Limit       int           `yaml:"limit"`
	MinInterval time.Duration `yaml:"min_interval"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Timeout     time.Duration `yaml:"timeout"`
}

// OpenAIConfig holds AI fallback settings. An empty APIKey disables it.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8042,

			ClientBurst:  10,
			WriteTimeout: 2 * time.Minute,
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "songfix_cache.db",

			MaintenanceInterval: 24 * time.Hour,
		},
		MusicBrainz: MusicBrainzConfig{
			BaseURL:     "https://musicbrainz.org/ws/2",
			Threshold:   0.6,
			Limit:       5,
			MinInterval: time.Second,
			RetryDelay:  time.Second,
			Timeout:     10 * time.Second,
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Logging: logging.DefaultConfig(),
	}
}

// PathFromEnv returns SONGFIX_CONFIG_PATH or DefaultPath.
func PathFromEnv() string {
	if v := os.Getenv("SONGFIX_CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() error {
	strs := []struct {
		key string
		dst *string
	}{
		{"OPENAI_API_KEY", &c.OpenAI.APIKey},
		{"SONGFIX_OPENAI_MODEL", &c.OpenAI.Model},
		{"SONGFIX_OPENAI_BASE_URL", &c.OpenAI.BaseURL},
		{"SONGFIX_HOST", &c.Server.Host},
		{"SONGFIX_DB", &c.Database.Path},
		{"SONGFIX_DB_DRIVER", &c.Database.Driver},
		{"SONGFIX_DB_DSN", &c.Database.DSN},
		{"SONGFIX_MB_BASE_URL", &c.MusicBrainz.BaseURL},
		{"SONGFIX_LOG_LEVEL", &c.Logging.Level},
		{"SONGFIX_LOG_FORMAT", &c.Logging.Format},
		{"SONGFIX_LOG_FILE", &c.Logging.FilePath},
	}
	for _, s := range strs {
		if v := os.Getenv(s.key); v != "" {
			*s.dst = v
		}
	}

	if v := os.Getenv("SONGFIX_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SONGFIX_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("SONGFIX_MB_THRESHOLD"); v != "" {
		th, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SONGFIX_MB_THRESHOLD: %w", err)
		}
		c.MusicBrainz.Threshold = th
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ClientInterval < 0 {
		return fmt.Errorf("server client_interval must not be negative")
	}
	if c.Server.ClientInterval > 0 && c.Server.ClientBurst < 1 {
		return fmt.Errorf("server client_burst must be at least 1 when client_interval is set")
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write_timeout must not be negative")
	}

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown database driver %q: want sqlite or postgres", c.Database.Driver)
	}

	if c.Database.MaintenanceInterval < 0 {
		return fmt.Errorf("database maintenance_interval must not be negative")
	}

	mb := &c.MusicBrainz
	if mb.Threshold < 0 || mb.Threshold > 1 {
		return fmt.Errorf("musicbrainz threshold must be within [0, 1], got %v", mb.Threshold)
	}
	if mb.Limit < 1 || mb.Limit > 100 {
		return fmt.Errorf("musicbrainz limit must be within [1, 100], got %d", mb.Limit)
	}
	if mb.MinInterval < 0 || mb.RetryDelay < 0 || mb.Timeout < 0 {
		return fmt.Errorf("musicbrainz durations must not be negative")
	}
	mb.BaseURL = strings.TrimRight(mb.BaseURL, "/")
	if mb.BaseURL == "" {
		return fmt.Errorf("musicbrainz base_url is required")
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}
