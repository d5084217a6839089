// Package memory provides an in-memory tracker store. It backs the
// DATA_BACKEND=memory mode and the service unit tests; nothing survives a
// restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"timbro/internal/core"
)

// Store keeps separate ID sequences for entries and notifications,
// mirroring the per-table rowids of the SQLite repository.
type Store struct {
	mu       sync.Mutex
	entrySeq int64
	notifSeq int64
	entries  []core.Entry
	timers   map[string]core.TimerState
	notifs   []core.Notification
}

func New() *Store {
	return &Store{timers: make(map[string]core.TimerState)}
}

func (s *Store) EnsureRoster(_ context.Context, roster core.Roster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range roster {
		if _, ok := s.timers[p.Name]; !ok {
			s.timers[p.Name] = core.TimerState{Person: p.Name}
		}
	}
	return nil
}

func (s *Store) TimerState(_ context.Context, person string) (core.TimerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timerLocked(person), nil
}

func (s *Store) StartTimer(_ context.Context, person string, date core.Date, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.timerLocked(person)
	if state.Running {
		return core.ErrAlreadyRunning
	}

	start := at
	state.Running = true
	state.StartedAt = &start
	state.AttributionDate = date
	s.timers[person] = state
	return nil
}

func (s *Store) StopTimer(_ context.Context, person string, at time.Time) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.timerLocked(person)
	if !state.Running {
		return 0, core.ErrNotRunning
	}

	elapsed := state.Elapsed(at)
	hours := 0.0
	if elapsed >= core.MinSessionSeconds {
		hours = elapsed / 3600.0
		s.appendLocked(core.Entry{
			CreatedAt: at,
			Person:    person,
			LogDate:   state.AttributionDate,
			Hours:     hours,
			Note:      core.TimerNote,
			Origin:    core.OriginTimer,
		})
	}

	s.timers[person] = core.TimerState{Person: person}
	return hours, nil
}

func (s *Store) SubmitManual(_ context.Context, person string, date core.Date, requested float64, reason string, origin core.Origin, at time.Time) (float64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.sumLocked(person, date, date.NextDay())
	applied := core.ClampDelta(requested, current)
	if core.NearZero(applied) {
		return 0, 0, core.ErrZeroAdjustment
	}

	s.appendLocked(core.Entry{
		CreatedAt: at,
		Person:    person,
		LogDate:   date,
		Hours:     applied,
		Note:      reason,
		Origin:    origin,
	})

	s.notifSeq++
	notif := core.Notification{
		ID:         s.notifSeq,
		CreatedAt:  at,
		Person:     person,
		LogDate:    date,
		DeltaHours: applied,
		Reason:     reason,
		Origin:     origin,
	}
	s.notifs = append(s.notifs, notif)
	return applied, notif.ID, nil
}

func (s *Store) SumRange(_ context.Context, person string, start, end core.Date) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sumLocked(person, start, end), nil
}

func (s *Store) SumRangeAll(_ context.Context, start, end core.Date) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals := make(map[string]float64, len(s.timers))
	for person := range s.timers {
		totals[person] = s.sumLocked(person, start, end)
	}
	return totals, nil
}

func (s *Store) RecentEntries(_ context.Context, person string, limit int) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Entry, 0, limit)
	for _, e := range s.entries {
		if person == "" || e.Person == person {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Notifications(_ context.Context, limit int) ([]core.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := append([]core.Notification(nil), s.notifs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Notification(_ context.Context, id int64) (core.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.notifs {
		if n.ID == id {
			return n, nil
		}
	}
	return core.Notification{}, fmt.Errorf("notification %d not found", id)
}

func (s *Store) MarkNotificationSeen(_ context.Context, id int64) error {
	return s.setFlag(id, func(n *core.Notification) { n.Seen = true })
}

func (s *Store) UnexportedNotifications(_ context.Context, limit int) ([]core.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Notification, 0, limit)
	for _, n := range s.notifs {
		if !n.Exported {
			out = append(out, n)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) MarkNotificationExported(_ context.Context, id int64) error {
	return s.setFlag(id, func(n *core.Notification) { n.Exported = true })
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) setFlag(id int64, set func(*core.Notification)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifs {
		if s.notifs[i].ID == id {
			set(&s.notifs[i])
			return nil
		}
	}
	return fmt.Errorf("notification %d not found", id)
}

func (s *Store) timerLocked(person string) core.TimerState {
	if state, ok := s.timers[person]; ok {
		return state
	}
	return core.TimerState{Person: person}
}

func (s *Store) appendLocked(e core.Entry) {
	s.entrySeq++
	e.ID = s.entrySeq
	s.entries = append(s.entries, e)
}

func (s *Store) sumLocked(person string, start, end core.Date) float64 {
	total := 0.0
	for _, e := range s.entries {
		if e.Person != person {
			continue
		}
		if e.LogDate.Before(start) || !e.LogDate.Before(end) {
			continue
		}
		total += e.Hours
	}
	return total
}
