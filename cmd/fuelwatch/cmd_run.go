package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/fuelwatch/fuel-price-watcher/internal/engine"
	"github.com/fuelwatch/fuel-price-watcher/internal/fuelfinder"
	"github.com/fuelwatch/fuel-price-watcher/internal/http"
	"github.com/fuelwatch/fuel-price-watcher/internal/routing"
	"github.com/fuelwatch/fuel-price-watcher/internal/scheduler"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the continuous watcher service",
		Long:  "Starts the fuel price watcher with an internal scheduler that refreshes on the configured interval.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()

			if err := cfg.Validate(); err != nil {
				return err
			}

			logger.Info().
				Str("version", Version).
				Str("commit", Commit).
				Str("buildDate", BuildDate).
				Str("httpAddr", cfg.HTTPAddr).
				Float64("radiusMiles", cfg.RadiusMiles).
				Strs("fuelTypes", cfg.FuelTypes).
				Bool("drivingDistances", cfg.ORSAPIKey != "").
				Msg("starting fuel price watcher")

			clock := clockwork.NewRealClock()

			client := fuelfinder.New(cfg.ClientID, cfg.ClientSecret, clock, logger)

			eng := engine.New(engine.Config{
				HomeLat:       cfg.HomeLat,
				HomeLon:       cfg.HomeLon,
				RadiusMiles:   cfg.RadiusMiles,
				FuelTypes:     cfg.FuelTypes,
				ScanInterval:  cfg.ScanInterval,
				RetryInterval: cfg.RetryInterval,
			}, client, clock, logger)

			if cfg.ORSAPIKey != "" {
				eng.SetDistanceProvider(routing.New(cfg.ORSAPIKey, logger))
			}

			sched := scheduler.New(eng, clock, logger)

			httpServer := http.NewServer(cfg.HTTPAddr, sched, logger)
			client.SetMetrics(httpServer.Metrics())
			eng.SetMetrics(httpServer.Metrics())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			go func() {
				if err := httpServer.Start(); err != nil {
					logger.Error().Err(err).Msg("HTTP server error")
					cancel()
				}
			}()

			go func() {
				if err := sched.Start(ctx); err != nil && err != context.Canceled {
					logger.Error().Err(err).Msg("scheduler error")
					cancel()
				}
			}()

			select {
			case sig := <-sigCh:
				logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
			case <-ctx.Done():
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("HTTP server shutdown error")
			}

			logger.Info().Msg("shutdown complete")
			return nil
		},
	}

	cmd.SilenceUsage = true

	return cmd
}
