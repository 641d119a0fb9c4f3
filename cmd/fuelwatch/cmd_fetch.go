package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/fuelwatch/fuel-price-watcher/internal/engine"
	"github.com/fuelwatch/fuel-price-watcher/internal/fuelfinder"
	"github.com/fuelwatch/fuel-price-watcher/internal/routing"
)

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run a one-time refresh and print the results",
		Long:  "Performs a single full fetch-and-rank cycle and prints the resulting snapshot as JSON. Useful for testing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			if err := cfg.Validate(); err != nil {
				return err
			}

			clock := clockwork.NewRealClock()
			client := fuelfinder.New(cfg.ClientID, cfg.ClientSecret, clock, logger)

			eng := engine.New(engine.Config{
				HomeLat:     cfg.HomeLat,
				HomeLon:     cfg.HomeLon,
				RadiusMiles: cfg.RadiusMiles,
				FuelTypes:   cfg.FuelTypes,
			}, client, clock, logger)

			if cfg.ORSAPIKey != "" {
				eng.SetDistanceProvider(routing.New(cfg.ORSAPIKey, logger))
			}

			snapshot, err := eng.Refresh(context.Background())
			if err != nil {
				return fmt.Errorf("refreshing: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(snapshot); err != nil {
				return fmt.Errorf("encoding snapshot: %w", err)
			}
			return nil
		},
	}

	cmd.SilenceUsage = true

	return cmd
}
