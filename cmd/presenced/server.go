package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/presenced/internal/admin"
	"github.com/goodtune/presenced/internal/aggregate"
	"github.com/goodtune/presenced/internal/config"
	"github.com/goodtune/presenced/internal/gateway"
	"github.com/goodtune/presenced/internal/metrics"
	"github.com/goodtune/presenced/internal/names"
	"github.com/goodtune/presenced/internal/notify"
	"github.com/goodtune/presenced/internal/schedule"
	"github.com/goodtune/presenced/internal/storage/jsonfile"
	"github.com/goodtune/presenced/internal/systemd"
	"github.com/goodtune/presenced/internal/tracker"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the presenced daemon",
	Long:  `Start the presence tracking daemon: gateway event source, session store, daily aggregation scheduler, admin API, and metrics endpoint.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting presenced")

	if cfg.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required to run the server")
	}

	// Initialize session store
	store, err := jsonfile.Open(cfg.Storage.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	logger.Info().
		Str("path", cfg.Storage.Path).
		Msg("Session store initialized")

	// Initialize notification webhooks
	statusWebhook := notify.NewWebhook("status", notify.Config{
		URL:       cfg.Webhooks.Status.URL,
		Username:  cfg.Webhooks.Status.Username,
		AvatarURL: cfg.Webhooks.Status.AvatarURL,
	}, logger)

	reportWebhook := notify.NewWebhook("reports", notify.Config{
		URL:       cfg.Webhooks.Reports.URL,
		Username:  cfg.Webhooks.Reports.Username,
		AvatarURL: cfg.Webhooks.Reports.AvatarURL,
	}, logger)

	// Initialize Presence Tracker
	presenceTracker := tracker.New(store, statusWebhook, logger)

	logger.Info().
		Int("monitored", len(cfg.Gateway.Identities)).
		Msg("Presence tracker initialized")

	// Initialize Aggregator
	aggregator := aggregate.New(store, logger)

	// runAnalysis aggregates the whole store and publishes the report.
	// Shared by the daily scheduler and the on-demand admin trigger.
	runAnalysis := func(ctx context.Context, trigger string) (*aggregate.Report, error) {
		report, err := aggregator.Aggregate(ctx, "", "")
		if err != nil {
			metrics.AggregationsTotal.WithLabelValues(trigger, "error").Inc()
			logger.Error().Err(err).Str("trigger", trigger).Msg("Aggregation failed")
			return nil, err
		}
		metrics.AggregationsTotal.WithLabelValues(trigger, "ok").Inc()

		if err := reportWebhook.SendReport(ctx, report); err != nil {
			logger.Error().Err(err).Str("trigger", trigger).Msg("Failed to publish report")
		}
		return report, nil
	}

	// Initialize daily Scheduler
	scheduler := schedule.New(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		_, _ = runAnalysis(ctx, "daily")
	}, logger)

	scheduler.Start()
	logger.Info().Msg("Daily scheduler initialized")

	// Initialize Gateway client
	gatewayConfig := gateway.Config{
		URL:              cfg.Gateway.URL,
		Token:            cfg.Gateway.Token,
		ProfileURL:       cfg.Gateway.ProfileURL,
		Identities:       cfg.Gateway.Identities,
		HandshakeTimeout: parseDuration(cfg.Gateway.HandshakeTimeout, 10*time.Second),
		ReconnectMin:     parseDuration(cfg.Gateway.ReconnectMin, time.Second),
		ReconnectMax:     parseDuration(cfg.Gateway.ReconnectMax, time.Minute),
	}

	var gatewayClient *gateway.Client

	resolver, err := names.NewResolver(cfg.Gateway.NameCacheSize, func(ctx context.Context, identityID string) (string, error) {
		return gatewayClient.FetchDisplayName(ctx, identityID)
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize name resolver: %w", err)
	}

	gatewayClient = gateway.NewClient(gatewayConfig, func(ctx context.Context, ev gateway.PresenceEvent) {
		displayName := ev.DisplayName
		if displayName == "" {
			displayName = resolver.DisplayName(ctx, ev.IdentityID)
		} else {
			resolver.Prime(ev.IdentityID, displayName)
		}
		if displayName == "" {
			logger.Warn().Str("identity_id", ev.IdentityID).Msg("Skipping event for unresolvable identity")
			return
		}
		presenceTracker.Observe(ctx, ev.IdentityID, displayName, tracker.Status(ev.Status), time.Unix(ev.Timestamp, 0))
	}, logger)

	if err := gatewayClient.Start(); err != nil {
		return fmt.Errorf("failed to start gateway client: %w", err)
	}

	logger.Info().
		Str("url", cfg.Gateway.URL).
		Msg("Gateway client started")

	// Initialize Admin server
	var adminServer *admin.Server
	if cfg.Admin.Enabled {
		adminServer = admin.NewServer(
			admin.Config{ListenAddr: fmt.Sprintf("%s:%d", cfg.Admin.BindAddress, cfg.Admin.Port)},
			presenceTracker,
			aggregator,
			func(ctx context.Context) (*aggregate.Report, error) {
				return runAnalysis(ctx, "manual")
			},
			logger,
		)

		if err := adminServer.Start(); err != nil {
			return fmt.Errorf("failed to start admin server: %w", err)
		}

		logger.Info().
			Str("addr", fmt.Sprintf("%s:%d", cfg.Admin.BindAddress, cfg.Admin.Port)).
			Msg("Admin server started")
	}

	// Initialize Metrics server
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Metrics.BindAddress, cfg.Metrics.Port)
		metricsServer = metrics.NewServer(metricsAddr, logger)

		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}

		logger.Info().
			Str("addr", metricsAddr).
			Msg("Metrics server started")
	}

	logger.Info().Msg("presenced startup complete")

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Stop event sources first so the flush below sees a quiet tracker.
	scheduler.Stop()

	if err := gatewayClient.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping gateway client")
	}

	// Flush open sessions with the termination instant as the end time.
	// This must complete before exit to avoid losing in-progress sessions.
	flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	flushed := presenceTracker.FlushAll(flushCtx, time.Now())
	cancel()
	metrics.FlushesTotal.WithLabelValues("shutdown").Add(float64(flushed))

	logger.Info().
		Int("flushed", flushed).
		Msg("Flushed open sessions at shutdown")

	if adminServer != nil {
		if err := adminServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping admin server")
		}
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping metrics server")
		}
	}

	logger.Info().Msg("presenced stopped")

	return nil
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
