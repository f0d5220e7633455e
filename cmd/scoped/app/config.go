package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/roman-kulish/sniper-scope/internal/server"
	"gopkg.in/yaml.v3"
)

const (
	defaultAddress         = ":8000"
	defaultDatabasePath    = "scopes.sqlite"
	defaultShutdownTimeout = 10 * time.Second
	defaultLogLevel        = "info"
)

// Config represents the main application configuration
type Config struct {
	Settings Settings      `yaml:"settings"`
	Server   ServerConfig  `yaml:"server"`
	Storage  StorageConfig `yaml:"storage"`
	Stream   StreamConfig  `yaml:"stream"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level parses the configured log level
func (s Settings) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return 0, err
	}
	return level, nil
}

// ServerConfig represents HTTP listener settings
type ServerConfig struct {
	Address         string        `yaml:"address"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DatabasePath string `yaml:"databasePath"`
}

// StreamConfig represents per-session streaming settings
type StreamConfig struct {
	InitialBatch bool  `yaml:"initialBatch"`
	ReadLimit    int64 `yaml:"readLimit"` // 0 keeps the transport default
}

// LoadConfig reads the yaml configuration at path, applies defaults and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes a yaml document into a Config
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaultLogLevel
	}
	if c.Server.Address == "" {
		c.Server.Address = defaultAddress
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = server.DefaultAllowedOrigins
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = defaultDatabasePath
	}
}

func (c *Config) validate() error {
	var errs []error
	if _, err := c.Settings.Level(); err != nil {
		errs = append(errs, fmt.Errorf("settings.logLevel: %w", err))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server.shutdownTimeout must not be negative"))
	}
	if c.Stream.ReadLimit < 0 {
		errs = append(errs, errors.New("stream.readLimit must not be negative"))
	}
	return errors.Join(errs...)
}
