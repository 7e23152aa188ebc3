package main

import (
	"fmt"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/drewdunne/prsentry/internal/event"
	"github.com/drewdunne/prsentry/internal/handler"
	"github.com/drewdunne/prsentry/internal/logging"
	"github.com/drewdunne/prsentry/internal/ratelimit"
	"github.com/drewdunne/prsentry/internal/registry"
	"github.com/drewdunne/prsentry/internal/server"
)

// logCleanupInterval is how often expired check logs are removed.
const logCleanupInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	tracker := ratelimit.NewTracker(ratelimit.WithLogger(clog.Default().WithPrefix("ratelimit")))
	defer tracker.Stop()

	client, err := newClient(cfg, tracker)
	if err != nil {
		return err
	}

	active := registry.New()
	opts := []handler.Option{handler.WithRegistry(active)}

	if cfg.Logging.Dir != "" {
		opts = append(opts, handler.WithCheckLogs(logging.NewWriter(cfg.Logging.Dir)))
		cleanup := logging.NewCleanupScheduler(logging.NewCleaner(cfg.Logging.Dir, cfg.Logging.RetentionDays), logCleanupInterval)
		cleanup.Start()
		defer cleanup.Stop()
		clog.Info("Writing check logs", "dir", cfg.Logging.Dir, "retention_days", cfg.Logging.RetentionDays)
	}

	checks := handler.NewCheckHandler(client, handler.SummaryChecker{}, cfg, opts...)
	router := event.NewRouter(cfg, checks.Handle)
	srv := server.NewWithRouter(cfg, router, client, server.WithActiveChecks(active))

	clog.Info("Starting prsentry server", "addr", cfg.Server.Addr(), "version", version)
	return srv.ListenAndServeWithShutdown()
}
