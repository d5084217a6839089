package tracker

import (
	"context"
	"time"

	"timbro/internal/core"
)

// Store is the durable state port for the timer and the ledger. The SQLite
// repository implements it for production; the memory store backs tests and
// the memory backend.
//
// Mutating operations are atomic per person: StartTimer's check-and-set,
// StopTimer's flush-and-reset and SubmitManual's clamp read-modify-write
// each execute as a single critical section against the store.
type Store interface {
	// EnsureRoster upserts one timer slot per roster member. Existing
	// slots are left untouched.
	EnsureRoster(ctx context.Context, roster core.Roster) error

	// TimerState returns the current timer slot for a person.
	TimerState(ctx context.Context, person string) (core.TimerState, error)

	// StartTimer transitions the person's timer to running with the given
	// start instant and attribution date. Returns core.ErrAlreadyRunning
	// without mutating anything if the timer is already running.
	StartTimer(ctx context.Context, person string, date core.Date, at time.Time) error

	// StopTimer flushes the running timer into one timer-origin ledger
	// entry and resets the slot. Returns core.ErrNotRunning if idle.
	// Sessions shorter than core.MinSessionSeconds reset the slot without
	// writing an entry. Returns the elapsed hours (possibly zero).
	StopTimer(ctx context.Context, person string, at time.Time) (float64, error)

	// SubmitManual appends a manual ledger entry, day-clamped so the
	// person's total for that date cannot drop below zero, and records the
	// matching notification in the same critical section. Returns
	// core.ErrZeroAdjustment (nothing written) when the clamped delta
	// rounds to zero. Returns the applied hours and the notification ID.
	SubmitManual(ctx context.Context, person string, date core.Date, requested float64, reason string, origin core.Origin, at time.Time) (float64, int64, error)

	// SumRange returns the raw signed sum of deltas for a person in the
	// half-open interval [start, end). Zero when nothing matches.
	SumRange(ctx context.Context, person string, start, end core.Date) (float64, error)

	// SumRangeAll is SumRange grouped by every known person; people with
	// no entries are present with zero.
	SumRangeAll(ctx context.Context, start, end core.Date) (map[string]float64, error)

	// RecentEntries lists ledger entries by creation instant descending.
	// An empty person selects everyone.
	RecentEntries(ctx context.Context, person string, limit int) ([]core.Entry, error)

	// Notifications lists the admin review feed, newest first.
	Notifications(ctx context.Context, limit int) ([]core.Notification, error)

	// Notification fetches a single notification by ID.
	Notification(ctx context.Context, id int64) (core.Notification, error)

	// MarkNotificationSeen flags a notification as reviewed.
	MarkNotificationSeen(ctx context.Context, id int64) error

	// UnexportedNotifications lists notifications not yet shipped to the
	// external audit log, oldest first.
	UnexportedNotifications(ctx context.Context, limit int) ([]core.Notification, error)

	// MarkNotificationExported flags a notification as shipped.
	MarkNotificationExported(ctx context.Context, id int64) error

	Close() error
}

// AdjustmentPublisher announces manual adjustments to the audit pipeline.
// A nil publisher disables announcements without failing submissions.
type AdjustmentPublisher interface {
	PublishAdjustment(ctx context.Context, notificationID int64, person string) error
}
