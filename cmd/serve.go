package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rukoai/ruko-admin/api"
	"github.com/rukoai/ruko-admin/internal/config"
	"github.com/rukoai/ruko-admin/internal/log"
	"github.com/rukoai/ruko-admin/internal/postgres"
	"github.com/rukoai/ruko-admin/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin HTTP API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe initializes the data layer and starts the HTTP API server,
// blocking until SIGINT or SIGTERM.
func runServe(cmd *cobra.Command, _ []string) error {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, JSON: cfg.LogJSON})
	logger.Info("starting admin service", "version", AppVersion)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := postgres.New(ctx, cfg, logger.With("component", "postgres"))
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	st := store.New(db, logger.With("component", "store"))
	server := api.NewServer(st, logger.With("component", "api"))

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	return server.Run(ctx, addr)
}
