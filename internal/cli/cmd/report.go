package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"timbro/internal/core"
	"timbro/internal/report"
)

var (
	reportPeriod string
	reportDate   string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the leaderboard and monthly vesting status",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportPeriod, "period", "week", "Leaderboard period: week or month")
	reportCmd.Flags().StringVar(&reportDate, "date", "", "Anchor date (YYYY-MM-DD, default today)")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, cleanup := newService(ctx)
	defer cleanup()

	day := core.DateOf(time.Now())
	if reportDate != "" {
		parsed, err := core.ParseDate(reportDate)
		if err != nil {
			return fail(fmt.Errorf("invalid date %q: %w", reportDate, err))
		}
		day = parsed
	}

	var start, end core.Date
	switch reportPeriod {
	case "week":
		start, end = report.WeekBounds(day)
	case "month":
		start, end = report.MonthBounds(day)
	default:
		return fail(fmt.Errorf("unknown period %q, want week or month", reportPeriod))
	}

	ranks, err := svc.Leaderboard(ctx, start, end)
	if err != nil {
		return fail(err)
	}

	fmt.Printf("Leaderboard %s to %s\n", start.ISO(), end.ISO())
	for _, r := range ranks {
		fmt.Printf("  %d. %-12s %s\n", r.Position, r.Person, report.FormatHours(r.Hours))
	}

	vesting, err := svc.VestingStatus(ctx, day)
	if err != nil {
		return fail(err)
	}

	fmt.Println("\nVesting this month")
	for _, v := range vesting {
		mark := " "
		if v.Vested {
			mark = "*"
		}
		fmt.Printf("  %s %-12s %s\n", mark, v.Person, report.FormatHours(v.Hours))
	}
	return nil
}
