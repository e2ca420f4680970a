package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// envPrefix is prepended to every variable name, so PostgresDSN is read from
// RETAIL_POSTGRES_DSN and so on.
const envPrefix = "retail"

// Config holds all service settings, populated from environment variables.
type Config struct {
	PostgresDSN string `envconfig:"POSTGRES_DSN"`

	// Google Drive market spreadsheet source. The folder ID is only needed
	// by the market channel and is validated where that channel is wired.
	DriveFolderID        string `envconfig:"DRIVE_FOLDER_ID"`
	DriveCredentialsFile string `envconfig:"DRIVE_CREDENTIALS_FILE" default:"credentials.json"`
	FetchWorkers         int    `envconfig:"FETCH_WORKERS" default:"25"`

	// External API endpoints, overridable for tests and local stubs.
	GeocodeBaseURL  string `envconfig:"GEOCODE_BASE_URL" default:"https://nominatim.openstreetmap.org"`
	WeatherBaseURL  string `envconfig:"WEATHER_BASE_URL" default:"https://archive-api.open-meteo.com"`
	EthRatesBaseURL string `envconfig:"ETH_RATES_BASE_URL" default:"https://query1.finance.yahoo.com"`

	GeocodeCacheSize int `envconfig:"GEOCODE_CACHE_SIZE" default:"1000"`

	HTTPAddr          string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPClientTimeout time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT" default:"10s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat         string        `envconfig:"LOG_FORMAT" default:"json"`
}

// Load reads configuration from RETAIL_-prefixed environment variables,
// applying defaults where unset.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if cfg.PostgresDSN == "" {
		return nil, errors.New("RETAIL_POSTGRES_DSN is required")
	}
	if cfg.FetchWorkers <= 0 {
		return nil, errors.New("RETAIL_FETCH_WORKERS must be positive")
	}
	if cfg.GeocodeCacheSize <= 0 {
		return nil, errors.New("RETAIL_GEOCODE_CACHE_SIZE must be positive")
	}
	if cfg.HTTPClientTimeout <= 0 {
		return nil, errors.New("RETAIL_HTTP_CLIENT_TIMEOUT must be positive")
	}
	if cfg.ShutdownTimeout <= 0 {
		return nil, errors.New("RETAIL_SHUTDOWN_TIMEOUT must be positive")
	}

	return &cfg, nil
}
