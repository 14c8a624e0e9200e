// Package config provides configuration loading for the Discovery client tools.
// It handles environment variable parsing and provides default values for all settings.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// init loads environment variables from .env files during package initialization.
// godotenv.Load() does not override already-set environment variables,
// preserving OS env > .env precedence.
func init() {
	// Load .env file if it exists (for shared development config)
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}

	// Load .env.local if it exists (for local overrides, gitignored)
	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env.local file: %v\n", err)
		}
	}
}

// Config captures environment-driven settings for a Discovery client.
type Config struct {
	Env         string // Deployment environment (dev, staging, prod)
	URL         string // Service base URL
	APIVersion  string // API version path segment
	VersionDate string // Value of the version query parameter
	Username    string // Basic auth username
	Password    string // Basic auth password
	Token       string // Bearer token, used instead of username/password
	Timeout     time.Duration

	NATSURL     string // NATS server URL for exchange events
	DatabaseDSN string // PostgreSQL DSN for the exchange journal

	S3Endpoint  string // S3-compatible endpoint for s3:// upload sources
	S3Region    string
	S3AccessKey string
	S3SecretKey string
}

// Default configuration values used when environment variables are not set
const (
	defaultEnv        = "dev"
	defaultURL        = "https://gateway.watsonplatform.net/discovery/api"
	defaultAPIVersion = "v1"
	defaultS3Region   = "us-east-1"
	defaultTimeout    = 60 * time.Second
)

// Load reads environment variables and produces a Config.
// DISCOVERY_VERSION_DATE is required; everything else has a default or is optional.
func Load() (Config, error) {
	cfg := Config{
		Env:         getEnv("DISCOVERY_ENV", defaultEnv),
		URL:         getEnv("DISCOVERY_URL", defaultURL),
		APIVersion:  getEnv("DISCOVERY_API_VERSION", defaultAPIVersion),
		VersionDate: strings.TrimSpace(os.Getenv("DISCOVERY_VERSION_DATE")),
		Username:    os.Getenv("DISCOVERY_USERNAME"),
		Password:    os.Getenv("DISCOVERY_PASSWORD"),
		Token:       os.Getenv("DISCOVERY_TOKEN"),
		Timeout:     defaultTimeout,
		NATSURL:     os.Getenv("DISCOVERY_NATS_URL"),
		DatabaseDSN: os.Getenv("DISCOVERY_DB_DSN"),
		S3Endpoint:  os.Getenv("DISCOVERY_S3_ENDPOINT"),
		S3Region:    getEnv("DISCOVERY_S3_REGION", defaultS3Region),
		S3AccessKey: os.Getenv("DISCOVERY_S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("DISCOVERY_S3_SECRET_KEY"),
	}

	if v, exists := os.LookupEnv("DISCOVERY_TIMEOUT"); exists && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return cfg, fmt.Errorf("DISCOVERY_TIMEOUT must be a non-negative duration, got %q", v)
		}
		cfg.Timeout = d
	}

	if cfg.VersionDate == "" {
		return cfg, fmt.Errorf("DISCOVERY_VERSION_DATE is required")
	}
	if cfg.Token != "" && cfg.Username != "" {
		return cfg, fmt.Errorf("DISCOVERY_TOKEN and DISCOVERY_USERNAME are mutually exclusive")
	}

	return cfg, nil
}

// IsDev reports whether the environment is dev, which enables debug logging.
func (c Config) IsDev() bool { return c.Env == defaultEnv }

// getEnv retrieves an environment variable value, returning a fallback if not set or empty
func getEnv(key, fallback string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return fallback
}

// StubConfig captures settings for the standalone stub service.
type StubConfig struct {
	Env      string // Deployment environment (dev, staging, prod)
	Port     string // HTTP server port
	Username string // Basic auth username required by the stub, if set
	Password string
	Token    string // Bearer token required by the stub, if set
}

const defaultStubPort = "8080"

// LoadStub reads the stub service settings. Nothing is required.
func LoadStub() StubConfig {
	return StubConfig{
		Env:      getEnv("DISCOVERY_ENV", defaultEnv),
		Port:     getEnv("DISCOVERY_STUB_PORT", defaultStubPort),
		Username: os.Getenv("DISCOVERY_USERNAME"),
		Password: os.Getenv("DISCOVERY_PASSWORD"),
		Token:    os.Getenv("DISCOVERY_TOKEN"),
	}
}
