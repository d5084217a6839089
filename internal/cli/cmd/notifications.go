package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	notifLimit int
	notifSeen  int64
)

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "List manual corrections awaiting review",
	RunE:  runNotifications,
}

func init() {
	notificationsCmd.Flags().IntVar(&notifLimit, "limit", 20, "Maximum notifications to list")
	notificationsCmd.Flags().Int64Var(&notifSeen, "seen", 0, "Mark the given notification ID as seen and exit")
}

func runNotifications(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, cleanup := newService(ctx)
	defer cleanup()

	if notifSeen > 0 {
		if err := svc.MarkNotificationSeen(ctx, notifSeen); err != nil {
			return fail(err)
		}
		fmt.Printf("Notification %d marked as seen.\n", notifSeen)
		return nil
	}

	notifs, err := svc.ListNotifications(ctx, notifLimit)
	if err != nil {
		return fail(err)
	}

	if len(notifs) == 0 {
		fmt.Println("No notifications.")
		return nil
	}

	for _, n := range notifs {
		seen := "new"
		if n.Seen {
			seen = "seen"
		}
		fmt.Printf("#%-4d %-4s %-12s %s %+.2fh on %s: %s\n",
			n.ID, seen, n.Person, n.Origin, n.DeltaHours, n.LogDate.ISO(), n.Reason)
	}
	return nil
}
