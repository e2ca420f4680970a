// Command reconcile runs the retail sales reconciliation pipeline.
//
// Usage:
//
//	reconcile run market|online|crypto|pos|all
//	reconcile serve [--every 6h]
//	reconcile version
//
// Configuration comes from RETAIL_* environment variables; see
// internal/config.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/retail-sales-etl/internal/adapter/drive"
	"github.com/couchcryptid/retail-sales-etl/internal/adapter/ethrates"
	"github.com/couchcryptid/retail-sales-etl/internal/adapter/geocode"
	httpadapter "github.com/couchcryptid/retail-sales-etl/internal/adapter/http"
	"github.com/couchcryptid/retail-sales-etl/internal/adapter/meteo"
	"github.com/couchcryptid/retail-sales-etl/internal/adapter/postgres"
	"github.com/couchcryptid/retail-sales-etl/internal/config"
	"github.com/couchcryptid/retail-sales-etl/internal/observability"
	"github.com/couchcryptid/retail-sales-etl/internal/pipeline"
	"github.com/couchcryptid/retail-sales-etl/internal/refdata"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

var allChannels = []string{"market", "online", "crypto", "pos"}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reconcile",
		Short:         "Reconcile retail sales channels into the transactions table",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newServeCmd(), newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "run channel",
		Short:     "Run one reconciliation pass for a channel, or all channels in order",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"market", "online", "crypto", "pos", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), args[0])
		},
	}
}

func newServeCmd() *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, metrics, and status endpoints, optionally running on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), every)
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "run all channels on this interval (0 disables scheduled runs)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the reconcile version",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("reconcile %s (%s)\n", version, runtime.Version())
		},
	}
}

func runOnce(ctx context.Context, channel string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	names := []string{channel}
	if channel == "all" {
		names = allChannels
	}

	runner, store, err := buildRunner(ctx, cfg, names, logger, metrics, clockwork.NewRealClock())
	if err != nil {
		return err
	}
	defer store.Close()

	if channel == "all" {
		_, err = runner.RunAll(ctx)
		return err
	}
	_, err = runner.Run(ctx, channel)
	return err
}

func serve(ctx context.Context, every time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	runner, store, err := buildRunner(ctx, cfg, allChannels, logger, metrics, clock)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := httpadapter.NewServer(cfg.HTTPAddr, runner, runner, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if every > 0 {
		logger.Info("scheduled runs enabled", "every", every.String())
		go runOnSchedule(ctx, runner, clock, every, logger)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// runOnSchedule runs every channel immediately and then on each tick until
// the context is cancelled. A failed pass is logged, not fatal; the next tick
// retries from scratch.
func runOnSchedule(ctx context.Context, runner *pipeline.Runner, clock clockwork.Clock, every time.Duration, logger *slog.Logger) {
	ticker := clock.NewTicker(every)
	defer ticker.Stop()

	if _, err := runner.RunAll(ctx); err != nil {
		logger.Error("scheduled run failed", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if _, err := runner.RunAll(ctx); err != nil {
				logger.Error("scheduled run failed", "error", err)
			}
		}
	}
}

// buildRunner opens the store and wires the named channels over it. The
// Drive, geocoding, and weather clients are only built when the market
// channel is requested, so database-only runs need no Drive credentials.
func buildRunner(ctx context.Context, cfg config.Config, names []string, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) (*pipeline.Runner, *postgres.Store, error) {
	store, err := postgres.Open(cfg.PostgresDSN, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	catalog := refdata.DefaultCatalog()

	channels := make([]pipeline.Channel, 0, len(names))
	for _, name := range names {
		switch name {
		case "market":
			source, err := drive.NewSource(ctx, cfg.DriveFolderID, cfg.DriveCredentialsFile, cfg.FetchWorkers, logger, metrics)
			if err != nil {
				store.Close()
				return nil, nil, fmt.Errorf("market channel: %w", err)
			}
			geocoder := geocode.NewCached(
				geocode.NewClient(cfg.GeocodeBaseURL, cfg.HTTPClientTimeout, logger, metrics),
				cfg.GeocodeCacheSize,
			)
			weather := meteo.NewClient(cfg.WeatherBaseURL, cfg.HTTPClientTimeout, logger, metrics)
			channels = append(channels, pipeline.NewMarketChannel(source, catalog, geocoder, weather, logger))
		case "online":
			channels = append(channels, pipeline.NewOnlineChannel(store, catalog, logger))
		case "crypto":
			prices := ethrates.NewClient(cfg.EthRatesBaseURL, cfg.HTTPClientTimeout, logger)
			channels = append(channels, pipeline.NewCryptoChannel(store, prices, catalog, logger))
		case "pos":
			channels = append(channels, pipeline.NewPOSChannel(store, catalog, logger))
		default:
			store.Close()
			return nil, nil, fmt.Errorf("unknown channel %q", name)
		}
	}

	return pipeline.NewRunner(channels, store, logger, metrics, clock), store, nil
}
