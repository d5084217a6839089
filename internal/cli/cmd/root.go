// Package cmd implements the timbro command-line interface over the same
// tracker service the dashboard uses.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"timbro/internal/cli"
	applog "timbro/internal/log"
	"timbro/internal/tracker"
)

var rootCmd = &cobra.Command{
	Use:   "timbro",
	Short: "Punch clock and hour ledger for a small team",
	Long: `timbro tracks clocked sessions and manual hour corrections against a
shared ledger, with weekly goals and a monthly vesting target.`,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(notificationsCmd)
}

// newService bootstraps the tracker service from environment config.
// Callers must invoke the returned cleanup when done.
func newService(ctx context.Context) (*tracker.Service, func()) {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentCLI)

	cfg := cli.LoadAndValidateConfig(logger)
	svc, cleanup := cli.InitService(ctx, logger, cfg)

	return svc, func() {
		if cleanup != nil {
			if err := cleanup(); err != nil {
				logger.Warn("Cleanup failed", "error", err)
			}
		}
	}
}

func fail(err error) error {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(2)
	return nil
}
