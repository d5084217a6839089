// Package tracker implements the timer and ledger operations behind the
// dashboard: clock in/out, manual corrections with the day-level floor
// clamp, period totals and the vesting report.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"timbro/internal/core"
	applog "timbro/internal/log"
	"timbro/internal/report"
)

// Service orchestrates timer and ledger operations over a Store, enforcing
// roster membership and the validation rules the store does not own.
type Service struct {
	store          Store
	roster         core.Roster
	publisher      AdjustmentPublisher
	weeklyGoal     float64
	monthlyVesting float64

	// audit emits the structured ledger-write log lines.
	audit *applog.StructuredLogger

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// PersonProgress bundles the week and month progress shown on the clock tab.
type PersonProgress struct {
	Week  report.Progress
	Month report.Progress
}

func NewService(store Store, roster core.Roster, publisher AdjustmentPublisher, weeklyGoal, monthlyVesting float64) *Service {
	logCfg := applog.DefaultConfig()
	logCfg.Component = applog.ComponentTracker

	return &Service{
		store:          store,
		roster:         roster,
		publisher:      publisher,
		weeklyGoal:     weeklyGoal,
		monthlyVesting: monthlyVesting,
		audit:          applog.NewStructuredLogger(applog.New(logCfg)),
		now:            time.Now,
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Roster returns the configured roster.
func (s *Service) Roster() core.Roster {
	return s.roster
}

// Init upserts the per-person timer slots. Called once at startup.
func (s *Service) Init(ctx context.Context) error {
	if err := s.store.EnsureRoster(ctx, s.roster); err != nil {
		return fmt.Errorf("ensure roster: %w", err)
	}
	return nil
}

// ClockIn starts the person's timer, capturing the attribution date once.
// A second clock-in while running fails with core.ErrAlreadyRunning and
// leaves the running session untouched.
func (s *Service) ClockIn(ctx context.Context, person string, date core.Date) error {
	if err := s.knownPerson(person); err != nil {
		return err
	}
	if err := date.Validate(); err != nil {
		return fmt.Errorf("attribution date: %w", err)
	}

	if err := s.store.StartTimer(ctx, person, date, s.now()); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Timer started",
		"operation", applog.OpClockIn,
		"person", person,
		"log_date", date.ISO())
	return nil
}

// ClockOut stops the person's timer and flushes the session into the
// ledger. Returns the elapsed hours for display. Sessions shorter than one
// second reset the timer without writing an entry.
func (s *Service) ClockOut(ctx context.Context, person string) (float64, error) {
	if err := s.knownPerson(person); err != nil {
		return 0, err
	}

	hours, err := s.store.StopTimer(ctx, person, s.now())
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Timer stopped",
		"operation", applog.OpClockOut,
		"person", person,
		"delta_hours", hours)
	return hours, nil
}

// PeekElapsed returns the person's current elapsed seconds. Pure read;
// safe to poll on any cadence.
func (s *Service) PeekElapsed(ctx context.Context, person string) (float64, error) {
	if err := s.knownPerson(person); err != nil {
		return 0, err
	}

	state, err := s.store.TimerState(ctx, person)
	if err != nil {
		return 0, fmt.Errorf("timer state: %w", err)
	}
	return state.Elapsed(s.now()), nil
}

// SubmitManual records a manual correction. Negative requests are clamped
// so the day total never drops below zero; a clamp to zero rejects the
// submission outright. Returns the applied (possibly clamped) hours.
func (s *Service) SubmitManual(ctx context.Context, person string, date core.Date, hours float64, reason string) (float64, error) {
	if err := s.knownPerson(person); err != nil {
		return 0, err
	}
	if err := date.Validate(); err != nil {
		return 0, fmt.Errorf("log date: %w", err)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return 0, core.ErrEmptyReason
	}
	if core.NearZero(hours) {
		return 0, core.ErrZeroAdjustment
	}

	origin := core.OriginManualAdd
	if hours < 0 {
		origin = core.OriginAdjustment
	}

	applied, notifID, err := s.store.SubmitManual(ctx, person, date, hours, reason, origin, s.now())
	if err != nil {
		return 0, err
	}

	s.audit.LogEntryRecorded(ctx, person, date.ISO(), applied, string(origin))

	if s.publisher != nil {
		// Best effort: the entry is durable, the announcement is not.
		if err := s.publisher.PublishAdjustment(ctx, notifID, person); err != nil {
			s.audit.LogError(ctx, "Failed to publish adjustment", err,
				applog.ComponentAMQP, applog.OpSubmit,
				applog.LogFields{applog.FieldNotifID: notifID})
		}
	}

	return applied, nil
}

// PeriodTotal returns the non-negative hour total for a person over
// [start, end).
func (s *Service) PeriodTotal(ctx context.Context, person string, start, end core.Date) (float64, error) {
	if err := s.knownPerson(person); err != nil {
		return 0, err
	}

	raw, err := s.store.SumRange(ctx, person, start, end)
	if err != nil {
		return 0, fmt.Errorf("sum range: %w", err)
	}
	return core.FloorZero(raw), nil
}

// PeriodTotalsAll returns non-negative hour totals for the whole roster
// over [start, end). Every roster member is present, defaulting to zero.
func (s *Service) PeriodTotalsAll(ctx context.Context, start, end core.Date) (map[string]float64, error) {
	raw, err := s.store.SumRangeAll(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("sum range all: %w", err)
	}

	totals := make(map[string]float64, len(s.roster))
	for _, name := range s.roster.Names() {
		totals[name] = core.FloorZero(raw[name])
	}
	return totals, nil
}

// Progress returns the person's week and month progress for the week and
// month containing day.
func (s *Service) Progress(ctx context.Context, person string, day core.Date) (PersonProgress, error) {
	ws, we := report.WeekBounds(day)
	week, err := s.PeriodTotal(ctx, person, ws, we)
	if err != nil {
		return PersonProgress{}, err
	}

	ms, me := report.MonthBounds(day)
	month, err := s.PeriodTotal(ctx, person, ms, me)
	if err != nil {
		return PersonProgress{}, err
	}

	return PersonProgress{
		Week:  report.NewProgress(week, s.weeklyGoal),
		Month: report.NewProgress(month, s.monthlyVesting),
	}, nil
}

// Leaderboard ranks the roster over [start, end).
func (s *Service) Leaderboard(ctx context.Context, start, end core.Date) ([]report.Rank, error) {
	totals, err := s.PeriodTotalsAll(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return report.Leaderboard(totals, s.roster.Names()), nil
}

// VestingStatus reports, for the month containing day, each person's hours
// and whether they crossed the vesting threshold.
func (s *Service) VestingStatus(ctx context.Context, day core.Date) ([]report.VestingEntry, error) {
	start, end := report.MonthBounds(day)
	totals, err := s.PeriodTotalsAll(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return report.Vesting(totals, s.roster.Names(), s.monthlyVesting), nil
}

// ListNotifications returns the admin review feed, newest first.
func (s *Service) ListNotifications(ctx context.Context, limit int) ([]core.Notification, error) {
	if limit <= 0 {
		limit = 200
	}
	notifs, err := s.store.Notifications(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifs, nil
}

// MarkNotificationSeen flags a notification as reviewed by the admin.
func (s *Service) MarkNotificationSeen(ctx context.Context, id int64) error {
	return s.store.MarkNotificationSeen(ctx, id)
}

// ListLedger returns ledger entries newest-created first, optionally
// filtered to one person. Display order only; totals always go through
// the date-bucketed sums.
func (s *Service) ListLedger(ctx context.Context, person string, limit int) ([]core.Entry, error) {
	if person != "" {
		if err := s.knownPerson(person); err != nil {
			return nil, err
		}
	}
	if limit <= 0 {
		limit = 200
	}
	entries, err := s.store.RecentEntries(ctx, person, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	return entries, nil
}

// Close releases the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}

func (s *Service) knownPerson(person string) error {
	if !s.roster.Contains(person) {
		return fmt.Errorf("%w: %q", core.ErrUnknownPerson, person)
	}
	return nil
}
