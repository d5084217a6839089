package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"timbro/internal/core"
)

var (
	logHours  float64
	logReason string
	logDate   string
)

var logCmd = &cobra.Command{
	Use:   "log <person>",
	Short: "Record a manual hour correction",
	Long: `log appends a signed hour correction to the ledger. Negative amounts
are clamped so the day total never drops below zero. A reason is required
and lands in the administrator's review feed.`,
	Args: cobra.ExactArgs(1),
	RunE: runLog,
}

func init() {
	logCmd.Flags().Float64Var(&logHours, "hours", 0, "Signed hours to add (required)")
	logCmd.Flags().StringVar(&logReason, "reason", "", "Reason for the correction (required)")
	logCmd.Flags().StringVar(&logDate, "date", "", "Log date (YYYY-MM-DD, default today)")
	_ = logCmd.MarkFlagRequired("hours")
	_ = logCmd.MarkFlagRequired("reason")
}

func runLog(cmd *cobra.Command, args []string) error {
	person := args[0]
	ctx := context.Background()

	svc, cleanup := newService(ctx)
	defer cleanup()

	date := core.DateOf(time.Now())
	if logDate != "" {
		parsed, err := core.ParseDate(logDate)
		if err != nil {
			return fail(fmt.Errorf("invalid date %q: %w", logDate, err))
		}
		date = parsed
	}

	applied, err := svc.SubmitManual(ctx, person, date, logHours, logReason)
	if err != nil {
		if errors.Is(err, core.ErrZeroAdjustment) {
			fmt.Printf("Nothing to remove: %s has no hours on %s.\n", person, date.ISO())
			return nil
		}
		return fail(err)
	}

	if applied != logHours {
		fmt.Printf("Requested %+.2f clamped to %+.2f for %s on %s.\n",
			logHours, applied, person, date.ISO())
		return nil
	}

	fmt.Printf("Recorded %+.2f hours for %s on %s.\n", applied, person, date.ISO())
	return nil
}
