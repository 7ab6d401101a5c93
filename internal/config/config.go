// Package config loads the arvoice configuration from a YAML file, an
// optional .env file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-arvoice/pkg/audioio"
	"github.com/teslashibe/go-arvoice/pkg/camera"
	"github.com/teslashibe/go-arvoice/pkg/session"
)

// Config represents the complete application configuration
type Config struct {
	Log     LogConfig      `yaml:"log"`
	Session session.Config `yaml:"session"`
	Camera  camera.Config  `yaml:"camera"`
	Web     WebConfig      `yaml:"web"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WebConfig contains the status server configuration
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Environment variables that override file values.
const (
	EnvAPIKey       = "GEMINI_API_KEY"
	EnvEndpoint     = "ARVOICE_ENDPOINT"
	EnvModel        = "ARVOICE_MODEL"
	EnvUseADC       = "ARVOICE_USE_ADC"
	EnvLogLevel     = "ARVOICE_LOG_LEVEL"
	EnvLogFormat    = "ARVOICE_LOG_FORMAT"
	EnvWebAddr      = "ARVOICE_WEB_ADDR"
	EnvAudioBackend = "ARVOICE_AUDIO_BACKEND"
	EnvCamera       = "ARVOICE_CAMERA"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Session: session.DefaultConfig(),
		Camera:  camera.DefaultConfig(),
		Web: WebConfig{
			Enabled: true,
			Addr:    ":8181",
		},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Session.APIKey = v
	}
	if v := os.Getenv(EnvEndpoint); v != "" {
		c.Session.Endpoint = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Session.Model = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv(EnvWebAddr); v != "" {
		c.Web.Addr = v
	}
	if v := os.Getenv(EnvAudioBackend); v != "" {
		c.Session.Microphone.Backend = audioio.Backend(v)
		c.Session.Speaker.Backend = audioio.Backend(v)
	}
	if v := os.Getenv(EnvUseADC); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvUseADC, err)
		}
		c.Session.UseADC = b
	}
	if v := os.Getenv(EnvCamera); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCamera, err)
		}
		c.Camera.Enabled = b
	}
	return nil
}

// Validate performs validation of every section
func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log config: %w", err)
	}

	if err := c.Session.Validate(); err != nil {
		return err
	}

	if c.Camera.Enabled {
		if errs := c.Camera.Validate(); len(errs) > 0 {
			return fmt.Errorf("camera config: %s", strings.Join(errs, "; "))
		}
	}

	if c.Web.Enabled && c.Web.Addr == "" {
		return errors.New("web config: addr cannot be empty when web is enabled")
	}

	return nil
}

// Validate validates logging configuration
func (l *LogConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("level must be one of debug, info, warn, error, got %q", l.Level)
	}
	switch l.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("format must be text or json, got %q", l.Format)
	}
	return nil
}
