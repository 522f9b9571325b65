package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"galaxy_ai_go_backend/cmd/api/config"
	"galaxy_ai_go_backend/internal/database"
	"galaxy_ai_go_backend/internal/logging"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "galaxy-api",
		Short:         "Galaxy AI chat backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			logging.Setup(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the HTTP API (and the title worker when Redis is configured)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply schema migrations and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := database.Connect(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				if err := database.Migrate(db); err != nil {
					return err
				}
				log.Info().Msg("Migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "worker",
			Short: "Run only the background title worker",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWorker(cmd.Context(), cfg)
			},
		},
	)
	return root
}
