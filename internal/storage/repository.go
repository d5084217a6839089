// Package storage persists the ledger, timer slots and notification feed
// in SQLite. All coordination between front-end sessions happens through
// this database; every mutating operation runs inside one transaction.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"timbro/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// One connection serializes all writers: the clamp read-modify-write
	// and the timer check-and-set each commit before the next begins.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// EnsureRoster upserts one timer slot per roster member at boot.
func (r *SQLiteRepository) EnsureRoster(ctx context.Context, roster core.Roster) error {
	for _, p := range roster {
		if err := r.queries.UpsertTimerSlot(ctx, p.Name); err != nil {
			return err
		}
	}
	slog.InfoContext(ctx, "Timer slots ready", "people", len(roster))
	return nil
}

func (r *SQLiteRepository) TimerState(ctx context.Context, person string) (core.TimerState, error) {
	return r.queries.GetTimerState(ctx, person)
}

// StartTimer transitions a person's timer to running. The check and the
// update commit together, so two concurrent clock-ins cannot both succeed.
func (r *SQLiteRepository) StartTimer(ctx context.Context, person string, date core.Date, at time.Time) error {
	return r.inTx(ctx, func(q *Queries) error {
		state, err := q.GetTimerState(ctx, person)
		if err != nil {
			return err
		}
		if state.Running {
			return core.ErrAlreadyRunning
		}
		return q.SetTimerRunning(ctx, person, at, date)
	})
}

// StopTimer flushes the running session into one timer-origin ledger entry
// and resets the slot, all in a single transaction. Sessions shorter than
// core.MinSessionSeconds reset the slot without writing.
func (r *SQLiteRepository) StopTimer(ctx context.Context, person string, at time.Time) (float64, error) {
	var hours float64
	err := r.inTx(ctx, func(q *Queries) error {
		state, err := q.GetTimerState(ctx, person)
		if err != nil {
			return err
		}
		if !state.Running {
			return core.ErrNotRunning
		}

		elapsed := state.Elapsed(at)
		if elapsed >= core.MinSessionSeconds {
			hours = elapsed / 3600.0
			if _, err := q.InsertEntry(ctx, core.Entry{
				CreatedAt: at,
				Person:    person,
				LogDate:   state.AttributionDate,
				Hours:     hours,
				Note:      core.TimerNote,
				Origin:    core.OriginTimer,
			}); err != nil {
				return err
			}
		}

		return q.ResetTimer(ctx, person)
	})
	if err != nil {
		return 0, err
	}
	return hours, nil
}

// SubmitManual appends a day-clamped manual entry and its notification.
// The current-day read, the clamp and both inserts commit as one unit;
// concurrent submissions for the same person serialize on the database.
func (r *SQLiteRepository) SubmitManual(ctx context.Context, person string, date core.Date, requested float64, reason string, origin core.Origin, at time.Time) (float64, int64, error) {
	var applied float64
	var notifID int64
	err := r.inTx(ctx, func(q *Queries) error {
		current, err := q.SumRange(ctx, person, date, date.NextDay())
		if err != nil {
			return err
		}

		applied = core.ClampDelta(requested, current)
		if core.NearZero(applied) {
			return core.ErrZeroAdjustment
		}

		if _, err := q.InsertEntry(ctx, core.Entry{
			CreatedAt: at,
			Person:    person,
			LogDate:   date,
			Hours:     applied,
			Note:      reason,
			Origin:    origin,
		}); err != nil {
			return err
		}

		notifID, err = q.InsertNotification(ctx, core.Notification{
			CreatedAt:  at,
			Person:     person,
			LogDate:    date,
			DeltaHours: applied,
			Reason:     reason,
			Origin:     origin,
		})
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return applied, notifID, nil
}

func (r *SQLiteRepository) SumRange(ctx context.Context, person string, start, end core.Date) (float64, error) {
	return r.queries.SumRange(ctx, person, start, end)
}

func (r *SQLiteRepository) SumRangeAll(ctx context.Context, start, end core.Date) (map[string]float64, error) {
	return r.queries.SumRangeAll(ctx, start, end)
}

func (r *SQLiteRepository) RecentEntries(ctx context.Context, person string, limit int) ([]core.Entry, error) {
	return r.queries.RecentEntries(ctx, person, limit)
}

func (r *SQLiteRepository) Notifications(ctx context.Context, limit int) ([]core.Notification, error) {
	return r.queries.ListNotifications(ctx, limit)
}

func (r *SQLiteRepository) Notification(ctx context.Context, id int64) (core.Notification, error) {
	return r.queries.GetNotification(ctx, id)
}

func (r *SQLiteRepository) MarkNotificationSeen(ctx context.Context, id int64) error {
	return r.queries.MarkNotificationSeen(ctx, id)
}

func (r *SQLiteRepository) UnexportedNotifications(ctx context.Context, limit int) ([]core.Notification, error) {
	return r.queries.ListUnexportedNotifications(ctx, limit)
}

func (r *SQLiteRepository) MarkNotificationExported(ctx context.Context, id int64) error {
	return r.queries.MarkNotificationExported(ctx, id)
}

// inTx runs fn inside a transaction, rolling back on any error.
func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Transaction rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
