package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"timbro/internal/core"
)

var startDate string

var startCmd = &cobra.Command{
	Use:   "start <person>",
	Short: "Clock in and start accruing time",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

func init() {
	startCmd.Flags().StringVar(&startDate, "date", "", "Attribution date (YYYY-MM-DD, default today)")
}

func runStart(cmd *cobra.Command, args []string) error {
	person := args[0]
	ctx := context.Background()

	svc, cleanup := newService(ctx)
	defer cleanup()

	date := core.DateOf(time.Now())
	if startDate != "" {
		parsed, err := core.ParseDate(startDate)
		if err != nil {
			return fail(fmt.Errorf("invalid date %q: %w", startDate, err))
		}
		date = parsed
	}

	if err := svc.ClockIn(ctx, person, date); err != nil {
		if errors.Is(err, core.ErrAlreadyRunning) {
			fmt.Printf("Timer for %s is already running.\n", person)
			return nil
		}
		return fail(err)
	}

	fmt.Printf("Clocked in %s at %s, hours will land on %s.\n",
		person, time.Now().Format("15:04:05"), date.ISO())
	return nil
}
