package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"timbro/internal/core"
	"timbro/internal/report"
)

var stopCmd = &cobra.Command{
	Use:   "stop <person>",
	Short: "Clock out and flush the session into the ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	person := args[0]
	ctx := context.Background()

	svc, cleanup := newService(ctx)
	defer cleanup()

	hours, err := svc.ClockOut(ctx, person)
	if err != nil {
		if errors.Is(err, core.ErrNotRunning) {
			fmt.Printf("No running timer for %s.\n", person)
			return nil
		}
		return fail(err)
	}

	if hours == 0 {
		fmt.Printf("Session too short to record; timer for %s reset.\n", person)
		return nil
	}

	fmt.Printf("Clocked out %s: %s recorded.\n", person, report.FormatHours(hours))
	return nil
}
