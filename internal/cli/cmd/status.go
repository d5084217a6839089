package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"timbro/internal/core"
	"timbro/internal/report"
)

var statusCmd = &cobra.Command{
	Use:   "status <person>",
	Short: "Show the running timer and progress toward the weekly goal",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	person := args[0]
	ctx := context.Background()

	svc, cleanup := newService(ctx)
	defer cleanup()

	seconds, err := svc.PeekElapsed(ctx, person)
	if err != nil {
		return fail(err)
	}

	if seconds > 0 {
		fmt.Printf("Running: %s elapsed.\n", report.FormatHMS(seconds))
	} else {
		fmt.Println("No active timer.")
	}

	progress, err := svc.Progress(ctx, person, core.DateOf(time.Now()))
	if err != nil {
		return fail(err)
	}

	fmt.Printf("Week:  %s of %.0f (%.0f%%)\n",
		report.FormatHours(progress.Week.Hours), progress.Week.Target, progress.Week.Fraction*100)
	fmt.Printf("Month: %s of %.0f (%.0f%%)\n",
		report.FormatHours(progress.Month.Hours), progress.Month.Target, progress.Month.Fraction*100)
	return nil
}
