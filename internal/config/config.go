// Package config loads CropCure settings from defaults, config.toml and the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/robfig/cron/v3"
)

const (
	// DefaultListenAddr is the default address for the web server
	DefaultListenAddr = ":3000"

	// DefaultAPIURL is the classification backend used when nothing is configured
	DefaultAPIURL = "http://localhost:5000"

	// DefaultConfigPath is where Load looks for the optional config file
	DefaultConfigPath = "config.toml"
)

// Config holds all configuration settings for the application
type Config struct {
	// ListenAddr is the address and port for the web server
	ListenAddr string `toml:"listen_addr" env:"LISTEN_ADDR"`

	// APIURL is the base URL of the classification backend
	APIURL string `toml:"api_url" env:"CROPCURE_API_URL"`

	// APITimeout bounds each backend request; zero means no timeout
	APITimeout time.Duration `toml:"api_timeout" env:"CROPCURE_API_TIMEOUT"`

	// SessionSecret seeds the cookie keys. Random per process when empty.
	SessionSecret string `toml:"session_secret" env:"CROPCURE_SESSION_SECRET"`

	// MaxUploadBytes limits the size of a submitted image
	MaxUploadBytes int64 `toml:"max_upload_bytes" env:"CROPCURE_MAX_UPLOAD_BYTES"`

	// VisitTTL is how long an idle visit keeps its selected image
	VisitTTL time.Duration `toml:"visit_ttl" env:"CROPCURE_VISIT_TTL"`

	// HealthSchedule is the cron spec for backend health probes
	HealthSchedule string `toml:"health_schedule" env:"CROPCURE_HEALTH_SCHEDULE"`

	// ContactRate is the sustained number of contact submissions per second
	ContactRate float64 `toml:"contact_rate" env:"CROPCURE_CONTACT_RATE"`

	// ContactBurst is the number of contact submissions allowed at once
	ContactBurst int `toml:"contact_burst" env:"CROPCURE_CONTACT_BURST"`

	// Environment is "development" or "production"
	Environment string `toml:"environment" env:"CROPCURE_ENV"`

	// LogDir enables file logging when set
	LogDir string `toml:"log_dir" env:"CROPCURE_LOG_DIR"`
}

// defaultConfig returns the built-in defaults
func defaultConfig() *Config {
	return &Config{
		ListenAddr:     DefaultListenAddr,
		APIURL:         DefaultAPIURL,
		MaxUploadBytes: 10 << 20,
		VisitTTL:       30 * time.Minute,
		HealthSchedule: "@every 1m",
		ContactRate:    0.5,
		ContactBurst:   3,
		Environment:    "production",
	}
}

// Load loads the configuration from config.toml and environment variables
func Load() (*Config, error) {
	return LoadFile(DefaultConfigPath)
}

// LoadFile loads the configuration using the given TOML file if it exists
func LoadFile(path string) (*Config, error) {
	config := defaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, config); err != nil {
				return nil, fmt.Errorf("failed to decode config file: %w", err)
			}
		}
	}

	// The React build used this name; keep honouring it
	if legacy := os.Getenv("REACT_APP_API_URL"); legacy != "" && os.Getenv("CROPCURE_API_URL") == "" {
		config.APIURL = legacy
	}

	if err := cleanenv.ReadEnv(config); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	addr, err := normalizeListenAddr(c.ListenAddr)
	if err != nil {
		return err
	}
	c.ListenAddr = addr

	c.APIURL = strings.TrimRight(c.APIURL, "/")
	if c.APIURL == "" {
		return fmt.Errorf("api_url must not be empty")
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("api_url must start with http:// or https://, got %q", c.APIURL)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	if c.ContactBurst < 1 {
		return fmt.Errorf("contact_burst must be at least 1")
	}
	if c.VisitTTL <= 0 {
		return fmt.Errorf("visit_ttl must be positive, got %s", c.VisitTTL)
	}
	if _, err := cron.ParseStandard(c.HealthSchedule); err != nil {
		return fmt.Errorf("invalid health_schedule %q: %w", c.HealthSchedule, err)
	}
	return nil
}

// IsDevelopment reports whether the app runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || os.Getenv("DEBUG") == "true"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("ListenAddr: %s", c.ListenAddr))
	parts = append(parts, fmt.Sprintf("APIURL: %s", c.APIURL))
	parts = append(parts, fmt.Sprintf("APITimeout: %s", c.APITimeout))
	parts = append(parts, fmt.Sprintf("VisitTTL: %s", c.VisitTTL))
	parts = append(parts, fmt.Sprintf("HealthSchedule: %s", c.HealthSchedule))
	parts = append(parts, fmt.Sprintf("Environment: %s", c.Environment))
	return strings.Join(parts, ", ")
}
