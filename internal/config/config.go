// Package config loads runtime settings from defaults, an optional YAML file
// and DESIGN_SPEC_* environment variables, in that order of precedence.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// HTTPConfig configures the optional HTTP surface.
type HTTPConfig struct {
	Host         string `yaml:"host"`
	Port         string `yaml:"port"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`

	// RelayAllowedHosts limits the image relay to these hosts. A leading dot
	// matches subdomains. Empty allows any host.
	RelayAllowedHosts []string `yaml:"relay_allowed_hosts"`
}

// Config holds every tunable of the inspector.
type Config struct {
	LogLevel string `yaml:"log_level"`

	// PageOrigin is the origin the inspected view is served from. Images whose
	// origin differs go straight to the relay. Empty disables the check.
	PageOrigin string `yaml:"page_origin"`

	// RelayURL is the same-origin image relay endpoint. Empty disables the fallback.
	RelayURL string `yaml:"relay_url"`

	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	RelayTimeout time.Duration `yaml:"relay_timeout"`

	// MaxCanvasPixels bounds the offscreen surface area.
	MaxCanvasPixels int64 `yaml:"max_canvas_pixels"`

	DuplicateTolerance int `yaml:"duplicate_tolerance"`
	GridSize           int `yaml:"grid_size"`
	HandleSize         int `yaml:"handle_size"`
	MinDrawSize        int `yaml:"min_draw_size"`

	OCRLanguage string `yaml:"ocr_language"`
	ProjectName string `yaml:"project_name"`

	// AssetsDB is an optional SQLite path for persisting crop payloads.
	AssetsDB string `yaml:"assets_db"`

	HTTP HTTPConfig `yaml:"http"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel:           "info",
		FetchTimeout:       15 * time.Second,
		RelayTimeout:       20 * time.Second,
		MaxCanvasPixels:    268435456, // 16384 x 16384
		DuplicateTolerance: 5,
		GridSize:           8,
		HandleSize:         8,
		MinDrawSize:        10,
		OCRLanguage:        "eng",
		HTTP: HTTPConfig{
			Host:         "127.0.0.1",
			Port:         "8787",
			MaxBodyBytes: 10 * 1024 * 1024,
		},
	}
}

// Load builds a configuration. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnvOrDefault("DESIGN_SPEC_LOG_LEVEL", c.LogLevel)
	c.PageOrigin = getEnvOrDefault("DESIGN_SPEC_PAGE_ORIGIN", c.PageOrigin)
	c.RelayURL = getEnvOrDefault("DESIGN_SPEC_RELAY_URL", c.RelayURL)
	c.FetchTimeout = parseDurationOrDefault("DESIGN_SPEC_FETCH_TIMEOUT", c.FetchTimeout)
	c.RelayTimeout = parseDurationOrDefault("DESIGN_SPEC_RELAY_TIMEOUT", c.RelayTimeout)
	c.MaxCanvasPixels = parseIntOrDefault("DESIGN_SPEC_MAX_CANVAS_PIXELS", c.MaxCanvasPixels)
	c.DuplicateTolerance = int(parseIntOrDefault("DESIGN_SPEC_DUPLICATE_TOLERANCE", int64(c.DuplicateTolerance)))
	c.GridSize = int(parseIntOrDefault("DESIGN_SPEC_GRID_SIZE", int64(c.GridSize)))
	c.OCRLanguage = getEnvOrDefault("DESIGN_SPEC_OCR_LANGUAGE", c.OCRLanguage)
	c.ProjectName = getEnvOrDefault("DESIGN_SPEC_PROJECT_NAME", c.ProjectName)
	c.AssetsDB = getEnvOrDefault("DESIGN_SPEC_ASSETS_DB", c.AssetsDB)
	c.HTTP.Host = getEnvOrDefault("DESIGN_SPEC_HTTP_HOST", c.HTTP.Host)
	c.HTTP.Port = getEnvOrDefault("DESIGN_SPEC_HTTP_PORT", c.HTTP.Port)
	c.HTTP.MaxBodyBytes = parseIntOrDefault("DESIGN_SPEC_HTTP_MAX_BODY_BYTES", c.HTTP.MaxBodyBytes)
	c.HTTP.RelayAllowedHosts = parseListOrDefault("DESIGN_SPEC_RELAY_ALLOWED_HOSTS", c.HTTP.RelayAllowedHosts)
}

// Validate rejects settings no component can work with.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.HTTP.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid http.port: %q", c.HTTP.Port)
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be > 0 (got %d)", c.HTTP.MaxBodyBytes)
	}
	if c.FetchTimeout <= 0 || c.RelayTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got fetch=%s, relay=%s)", c.FetchTimeout, c.RelayTimeout)
	}
	if c.MaxCanvasPixels <= 0 {
		return fmt.Errorf("max_canvas_pixels must be > 0 (got %d)", c.MaxCanvasPixels)
	}
	if c.DuplicateTolerance < 0 || c.DuplicateTolerance > 255 {
		return fmt.Errorf("duplicate_tolerance must be within 0-255 (got %d)", c.DuplicateTolerance)
	}
	if c.GridSize < 1 {
		return fmt.Errorf("grid_size must be >= 1 (got %d)", c.GridSize)
	}
	if c.HandleSize < 1 || c.MinDrawSize < 0 {
		return fmt.Errorf("handle_size must be >= 1 and min_draw_size >= 0")
	}
	return nil
}

// ServerAddress returns the host:port the HTTP surface listens on.
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(strings.TrimSpace(c.HTTP.Host), strings.TrimSpace(c.HTTP.Port))
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
