// Package config provides configuration structures and loading for the fuel price watcher.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fuelwatch/fuel-price-watcher/internal/models"
)

// Config holds all configuration for the fuel price watcher.
type Config struct {
	// Fuel Finder API credentials (OAuth client credentials)
	ClientID     string
	ClientSecret string
	// Home coordinates
	HomeLat float64
	HomeLon float64
	// Search radius in miles
	RadiusMiles float64
	// Selected fuel type codes
	FuelTypes []string
	// OpenRouteService API key for driving distances (optional)
	ORSAPIKey string
	// HTTP server address
	HTTPAddr string
	// Log level (debug, info, warn, error)
	LogLevel string
	// Log format (json, console)
	LogFormat string
	// Normal polling interval
	ScanInterval time.Duration
	// Polling interval after a failed cycle
	RetryInterval time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		RadiusMiles:   10,
		FuelTypes:     []string{"E10"},
		HTTPAddr:      ":8080",
		LogLevel:      "info",
		LogFormat:     "json",
		ScanInterval:  24 * time.Hour,
		RetryInterval: 5 * time.Minute,
	}
}

// LoadFromEnv loads configuration from environment variables.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("FUELFINDER_CLIENT_ID"); v != "" {
		c.ClientID = v
	}
	if v := os.Getenv("FUELFINDER_CLIENT_SECRET"); v != "" {
		c.ClientSecret = v
	}
	if v := os.Getenv("HOME_LAT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.HomeLat = f
		}
	}
	if v := os.Getenv("HOME_LON"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.HomeLon = f
		}
	}
	if v := os.Getenv("RADIUS_MILES"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.RadiusMiles = f
		}
	}
	if v := os.Getenv("FUEL_TYPES"); v != "" {
		parts := strings.Split(v, ",")
		types := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				types = append(types, p)
			}
		}
		if len(types) > 0 {
			c.FuelTypes = types
		}
	}
	if v := os.Getenv("ORS_API_KEY"); v != "" {
		c.ORSAPIKey = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("SCAN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.ScanInterval = d
		}
	}
	if v := os.Getenv("RETRY_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.RetryInterval = d
		}
	}
}

// Validate checks that the configuration is complete enough to run.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("client id is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("client secret is required")
	}
	if c.HomeLat == 0 && c.HomeLon == 0 {
		return fmt.Errorf("home coordinates are required")
	}
	if c.HomeLat < -90 || c.HomeLat > 90 {
		return fmt.Errorf("home latitude %v out of range", c.HomeLat)
	}
	if c.HomeLon < -180 || c.HomeLon > 180 {
		return fmt.Errorf("home longitude %v out of range", c.HomeLon)
	}
	if c.RadiusMiles <= 0 || c.RadiusMiles > 100 {
		return fmt.Errorf("radius must be between 0 and 100 miles, got %v", c.RadiusMiles)
	}
	if len(c.FuelTypes) == 0 {
		return fmt.Errorf("at least one fuel type is required")
	}
	for _, ft := range c.FuelTypes {
		if !models.ValidFuelCode(ft) {
			return fmt.Errorf("unknown fuel type %q", ft)
		}
	}
	return nil
}
