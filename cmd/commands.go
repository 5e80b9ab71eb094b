package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/farellandr/showticket/config"
	"github.com/farellandr/showticket/internal/repository"
	"github.com/farellandr/showticket/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// bootstrap validates the environment, prepares the database and wires the
// application.
func bootstrap() (*server.App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := config.InitDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return server.Build(cfg, repository.NewGormStore(db))
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the notification worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and seed the operator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.InitDatabase(config.Load()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logrus.Info("Database is up to date")
			return nil
		},
	}
}

func fulfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fulfill <purchase-token>",
		Short: "Issue the tickets of a paid purchase again if they are missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()

			outcome := app.Admin.Refulfill(cmd.Context(), args[0])
			fmt.Fprintln(cmd.OutOrStdout(), outcome.String())
			if !outcome.Succeeded() {
				return fmt.Errorf("fulfillment did not complete: %s", outcome)
			}
			return nil
		},
	}
}

func expireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Fail pending payments past their expiry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.Expirer.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d purchase(s) expired\n", n)
			return nil
		},
	}
}
