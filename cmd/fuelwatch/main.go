// Package main provides the entry point for the fuel price watcher CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fuelwatch/fuel-price-watcher/internal/config"
)

var (
	// Version is set at build time.
	Version = "dev"
	// Commit is set at build time.
	Commit = "none"
	// BuildDate is set at build time.
	BuildDate = "unknown"
)

var cfg *config.Config

func main() {
	_ = godotenv.Load(".env")

	cfg = config.DefaultConfig()
	cfg.LoadFromEnv()

	rootCmd := &cobra.Command{
		Use:   "fuelwatch",
		Short: "Fuel Price Watcher - track the cheapest fuel stations near home",
		Long: `Fuel Price Watcher periodically fetches station and price data from the
GOV.UK Fuel Finder API, filters it to a radius around your home, and ranks
the top 3 cheapest stations per fuel type.

Features:
  - Incremental fetching after the first full sync
  - Partial-failure tolerant batch pagination
  - Optional driving-distance enrichment via OpenRouteService
  - Prometheus metrics, status, and latest-prices endpoints`,
	}

	rootCmd.PersistentFlags().StringVar(&cfg.ClientID, "client-id", cfg.ClientID, "Fuel Finder API client ID")
	rootCmd.PersistentFlags().StringVar(&cfg.ClientSecret, "client-secret", cfg.ClientSecret, "Fuel Finder API client secret")
	rootCmd.PersistentFlags().Float64Var(&cfg.HomeLat, "home-lat", cfg.HomeLat, "Home latitude")
	rootCmd.PersistentFlags().Float64Var(&cfg.HomeLon, "home-lon", cfg.HomeLon, "Home longitude")
	rootCmd.PersistentFlags().Float64Var(&cfg.RadiusMiles, "radius", cfg.RadiusMiles, "Search radius in miles")
	rootCmd.PersistentFlags().StringSliceVar(&cfg.FuelTypes, "fuel-types", cfg.FuelTypes, "Fuel type codes (e.g. E10,B7_STANDARD)")
	rootCmd.PersistentFlags().StringVar(&cfg.ORSAPIKey, "ors-api-key", cfg.ORSAPIKey, "OpenRouteService API key for driving distances")
	rootCmd.PersistentFlags().StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address for /metrics, /status, /prices")
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (json, console)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogger() zerolog.Logger {
	var logger zerolog.Logger

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	return logger
}
