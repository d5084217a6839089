package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"timbro/internal/core"
)

const timeLayout = time.RFC3339Nano

// DBTX is satisfied by both *sql.DB and *sql.Tx so queries can run inside
// or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries bundles the SQL statements over a DBTX.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns Queries bound to the given transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

func (q *Queries) InsertEntry(ctx context.Context, e core.Entry) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (created_at, log_date, person, hours, note, origin)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.CreatedAt.UTC().Format(timeLayout), e.LogDate.ISO(), e.Person, e.Hours, e.Note, string(e.Origin))
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) SumRange(ctx context.Context, person string, start, end core.Date) (float64, error) {
	var total float64
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(hours), 0) FROM ledger_entries
		WHERE person = ? AND log_date >= ? AND log_date < ?`,
		person, start.ISO(), end.ISO()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum range: %w", err)
	}
	return total, nil
}

func (q *Queries) SumRangeAll(ctx context.Context, start, end core.Date) (map[string]float64, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT person, COALESCE(SUM(hours), 0) FROM ledger_entries
		WHERE log_date >= ? AND log_date < ?
		GROUP BY person`,
		start.ISO(), end.ISO())
	if err != nil {
		return nil, fmt.Errorf("sum range all: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]float64)
	for rows.Next() {
		var person string
		var total float64
		if err := rows.Scan(&person, &total); err != nil {
			return nil, fmt.Errorf("scan sum row: %w", err)
		}
		totals[person] = total
	}
	return totals, rows.Err()
}

func (q *Queries) RecentEntries(ctx context.Context, person string, limit int) ([]core.Entry, error) {
	query := `
		SELECT id, created_at, log_date, person, hours, note, origin FROM ledger_entries
		ORDER BY created_at DESC, id DESC LIMIT ?`
	args := []any{limit}
	if person != "" {
		query = `
		SELECT id, created_at, log_date, person, hours, note, origin FROM ledger_entries
		WHERE person = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`
		args = []any{person, limit}
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent entries: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		var e core.Entry
		var createdAt, logDate, origin string
		if err := rows.Scan(&e.ID, &createdAt, &logDate, &e.Person, &e.Hours, &e.Note, &origin); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if e.LogDate, err = core.ParseDate(logDate); err != nil {
			return nil, fmt.Errorf("parse log_date: %w", err)
		}
		e.Origin = core.Origin(origin)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (q *Queries) UpsertTimerSlot(ctx context.Context, person string) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO timer_state (person, is_running, accumulated_seconds)
		VALUES (?, 0, 0)
		ON CONFLICT(person) DO NOTHING`,
		person)
	if err != nil {
		return fmt.Errorf("upsert timer slot: %w", err)
	}
	return nil
}

func (q *Queries) GetTimerState(ctx context.Context, person string) (core.TimerState, error) {
	state := core.TimerState{Person: person}
	var running int
	var startedAt, attributionDate sql.NullString
	err := q.db.QueryRowContext(ctx, `
		SELECT is_running, started_at, accumulated_seconds, attribution_date
		FROM timer_state WHERE person = ?`,
		person).Scan(&running, &startedAt, &state.CarrySeconds, &attributionDate)
	if err == sql.ErrNoRows {
		// Slot not upserted yet: report the idle zero state.
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("get timer state: %w", err)
	}

	state.Running = running != 0
	if startedAt.Valid && startedAt.String != "" {
		t, err := time.Parse(timeLayout, startedAt.String)
		if err != nil {
			return state, fmt.Errorf("parse started_at: %w", err)
		}
		state.StartedAt = &t
	}
	if attributionDate.Valid && attributionDate.String != "" {
		d, err := core.ParseDate(attributionDate.String)
		if err != nil {
			return state, fmt.Errorf("parse attribution_date: %w", err)
		}
		state.AttributionDate = d
	}
	return state, nil
}

func (q *Queries) SetTimerRunning(ctx context.Context, person string, startedAt time.Time, date core.Date) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO timer_state (person, is_running, started_at, accumulated_seconds, attribution_date)
		VALUES (?, 1, ?, 0, ?)
		ON CONFLICT(person) DO UPDATE SET
			is_running = 1,
			started_at = excluded.started_at,
			attribution_date = excluded.attribution_date`,
		person, startedAt.UTC().Format(timeLayout), date.ISO())
	if err != nil {
		return fmt.Errorf("set timer running: %w", err)
	}
	return nil
}

func (q *Queries) ResetTimer(ctx context.Context, person string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE timer_state
		SET is_running = 0, started_at = NULL, accumulated_seconds = 0, attribution_date = NULL
		WHERE person = ?`,
		person)
	if err != nil {
		return fmt.Errorf("reset timer: %w", err)
	}
	return nil
}

func (q *Queries) InsertNotification(ctx context.Context, n core.Notification) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO notifications (created_at, person, log_date, delta_hours, reason, origin, seen, exported)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0)`,
		n.CreatedAt.UTC().Format(timeLayout), n.Person, n.LogDate.ISO(), n.DeltaHours, n.Reason, string(n.Origin))
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return res.LastInsertId()
}

func (q *Queries) ListNotifications(ctx context.Context, limit int) ([]core.Notification, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, created_at, person, log_date, delta_hours, reason, origin, seen, exported
		FROM notifications
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (q *Queries) GetNotification(ctx context.Context, id int64) (core.Notification, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, created_at, person, log_date, delta_hours, reason, origin, seen, exported
		FROM notifications WHERE id = ?`,
		id)
	n, err := scanNotification(row.Scan)
	if err != nil {
		return core.Notification{}, fmt.Errorf("get notification %d: %w", id, err)
	}
	return n, nil
}

func (q *Queries) ListUnexportedNotifications(ctx context.Context, limit int) ([]core.Notification, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, created_at, person, log_date, delta_hours, reason, origin, seen, exported
		FROM notifications
		WHERE exported = 0
		ORDER BY id ASC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list unexported notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (q *Queries) MarkNotificationSeen(ctx context.Context, id int64) error {
	return q.setNotificationFlag(ctx, id, "seen")
}

func (q *Queries) MarkNotificationExported(ctx context.Context, id int64) error {
	return q.setNotificationFlag(ctx, id, "exported")
}

func (q *Queries) setNotificationFlag(ctx context.Context, id int64, column string) error {
	// column is one of two compile-time constants, never user input.
	res, err := q.db.ExecContext(ctx, `UPDATE notifications SET `+column+` = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark notification %s: %w", column, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification %s: %w", column, err)
	}
	if affected == 0 {
		return fmt.Errorf("notification %d not found", id)
	}
	return nil
}

func scanNotifications(rows *sql.Rows) ([]core.Notification, error) {
	var notifs []core.Notification
	for rows.Next() {
		n, err := scanNotification(rows.Scan)
		if err != nil {
			return nil, err
		}
		notifs = append(notifs, n)
	}
	return notifs, rows.Err()
}

func scanNotification(scan func(...any) error) (core.Notification, error) {
	var n core.Notification
	var createdAt, logDate, origin string
	var seen, exported int
	if err := scan(&n.ID, &createdAt, &n.Person, &logDate, &n.DeltaHours, &n.Reason, &origin, &seen, &exported); err != nil {
		return n, fmt.Errorf("scan notification: %w", err)
	}

	var err error
	if n.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return n, fmt.Errorf("parse created_at: %w", err)
	}
	if n.LogDate, err = core.ParseDate(logDate); err != nil {
		return n, fmt.Errorf("parse log_date: %w", err)
	}
	n.Origin = core.Origin(origin)
	n.Seen = seen != 0
	n.Exported = exported != 0
	return n, nil
}
