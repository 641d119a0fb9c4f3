package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/fuelwatch/fuel-price-watcher/internal/fuelfinder"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Validate the configured API credentials",
		Long:  "Performs an OAuth token exchange against the Fuel Finder API to verify the client ID and secret.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			if cfg.ClientID == "" || cfg.ClientSecret == "" {
				return fmt.Errorf("--client-id and --client-secret are required")
			}

			client := fuelfinder.New(cfg.ClientID, cfg.ClientSecret, clockwork.NewRealClock(), logger)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := client.TestConnection(ctx); err != nil {
				var authErr *fuelfinder.AuthError
				if errors.As(err, &authErr) {
					return fmt.Errorf("credentials rejected: %w", err)
				}
				return fmt.Errorf("could not reach the API: %w", err)
			}

			fmt.Println("Credentials OK")
			return nil
		},
	}

	cmd.SilenceUsage = true

	return cmd
}
