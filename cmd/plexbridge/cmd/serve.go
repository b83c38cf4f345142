package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plexbridge/plexbridge/internal/api"
	"github.com/plexbridge/plexbridge/internal/config"
	"github.com/plexbridge/plexbridge/internal/database"
	"github.com/plexbridge/plexbridge/internal/database/migrations"
	"github.com/plexbridge/plexbridge/internal/epg"
	"github.com/plexbridge/plexbridge/internal/events"
	"github.com/plexbridge/plexbridge/internal/ffmpeg"
	"github.com/plexbridge/plexbridge/internal/metrics"
	"github.com/plexbridge/plexbridge/internal/observability"
	"github.com/plexbridge/plexbridge/internal/profile"
	"github.com/plexbridge/plexbridge/internal/repository"
	"github.com/plexbridge/plexbridge/internal/session"
	"github.com/plexbridge/plexbridge/internal/ssdp"
	"github.com/plexbridge/plexbridge/internal/tuner"
	"github.com/plexbridge/plexbridge/internal/upstream"
	"github.com/plexbridge/plexbridge/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the plexbridge server",
	Long: `Start the plexbridge servers.

The streaming port serves the HDHomeRun surface Plex consumes:
discover.json, device.xml, lineup.json, live streams, the M3U playlist,
and the XMLTV guide. The API port serves the operator API and metrics.
SSDP discovery announcements run on the standard multicast group.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Logging)
	observability.SetDefault(logger)
	logger.Info("starting plexbridge", "version", version.Version)

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	migrator := migrations.NewMigrator(db.DB, logger)
	migrator.RegisterAll(migrations.AllMigrations())
	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	repos := repository.New(db.DB)
	bus := events.New()
	m := metrics.New()

	// Streaming core.
	detector := upstream.NewDetector(upstream.DefaultProbeTimeout, logger)
	resolver := profile.NewResolver(repos.Profiles)
	binary := ffmpeg.NewBinaryDetector(cfg.FFmpeg.BinaryPath)
	mgr := session.NewManager(repos.Streams, detector, resolver, binary, bus, m, session.Config{
		MaxConcurrent:           cfg.Streams.MaxConcurrent,
		MaxConcurrentPerChannel: cfg.Streams.MaxConcurrentPerChannel,
		GracePeriod:             cfg.Streams.GracePeriod,
		IdleTimeout:             cfg.Streams.StreamTimeout,
	}, logger)
	go mgr.Run(ctx)

	// EPG pipeline.
	ingester := epg.NewIngester(repos, cfg.EPG.FetchTimeout, cfg.EPG.BatchSize, m, logger)
	emitter := epg.NewEmitter(repos.Channels, repos.EpgPrograms, cfg.EPG.EmissionPast, cfg.EPG.EmissionFuture)
	scheduler := epg.NewScheduler(ingester, repos.EpgSources, logger)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("starting EPG scheduler: %w", err)
	}
	defer scheduler.Stop()

	// HDHomeRun surface on the streaming port.
	tunerHandler := tuner.NewHandler(cfg, repos, mgr, emitter, logger)
	tunerServer := tuner.NewServer(cfg.Server, tunerHandler, logger)

	// SSDP discovery.
	var responder *ssdp.Responder
	if cfg.SSDP.Enabled {
		responder = ssdp.NewResponder(cfg.SSDP, cfg.Tuner.DeviceUUID(), tunerHandler.BaseURL, logger)
		if err := responder.Start(ctx); err != nil {
			return fmt.Errorf("starting SSDP responder: %w", err)
		}
		defer responder.Stop()
	}

	// Operator API on the API port.
	apiServer := api.NewServer(cfg.Server, m, logger)
	api.NewHealthHandler(db.DB).Register(apiServer.API())
	api.NewStreamsHandler(mgr).Register(apiServer.API())
	api.NewProfilesHandler(repos.Profiles).Register(apiServer.API())
	api.NewEpgHandler(repos.EpgSources, ingester).Register(apiServer.API())
	api.NewSettingsHandler(cfg.Streams, mgr, bus).Register(apiServer.API())

	errChan := make(chan error, 2)
	go func() { errChan <- tunerServer.ListenAndServe(ctx) }()
	go func() { errChan <- apiServer.ListenAndServe(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	// Drain active sessions within the configured shutdown budget, then
	// stop the HTTP servers.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		logger.Warn("session drain incomplete", "error", err)
	}
	if err := tunerServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("tuner server shutdown", "error", err)
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API server shutdown", "error", err)
	}

	logger.Info("plexbridge stopped")
	return nil
}
