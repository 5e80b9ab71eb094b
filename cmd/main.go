package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/farellandr/showticket/config"
	"github.com/farellandr/showticket/internal/log"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Fatal("Error loading .env file")
	}

	rootCmd := &cobra.Command{
		Use:           "showticket",
		Short:         "Show ticket sales: checkout, payment webhooks and ticket issuing",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Init(config.Load().LogLevel)
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(fulfillCmd())
	rootCmd.AddCommand(expireCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
