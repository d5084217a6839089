package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

const (
	OriginTimer      Origin = "timer"
	OriginManualAdd  Origin = "manual_add"
	OriginAdjustment Origin = "adjustment"
)

// TimerNote is the fixed note stamped on every timer-derived ledger entry.
const TimerNote = "Clocked session"

// MinEntryHours is the smallest delta worth persisting. Applied deltas whose
// magnitude falls below this are treated as zero and rejected.
const MinEntryHours = 1e-9

// MinSessionSeconds is the shortest clocked session that produces a ledger
// entry. Stopping a timer earlier than this resets the timer without writing.
const MinSessionSeconds = 1.0

type (
	Origin string

	// Date is a calendar date used as the attribution bucket for ledger
	// entries. The time-of-day component is always midnight UTC.
	Date struct {
		time.Time
	}

	// Person is a member of the fixed roster.
	Person struct {
		Name  string
		Admin bool
	}

	// Roster is the closed set of known people, defined at configuration
	// time. Exactly one member is the administrator.
	Roster []Person

	// Entry is an immutable ledger fact: the person is credited Hours
	// (signed) on LogDate. CreatedAt orders the audit feed only and is
	// never used for bucketing.
	Entry struct {
		ID        int64
		CreatedAt time.Time
		Person    string
		LogDate   Date
		Hours     float64
		Note      string
		Origin    Origin
	}

	// TimerState tracks whether time is currently accruing for a person.
	// StartedAt is non-nil if and only if Running is true. AttributionDate
	// is captured once at clock-in and never recomputed afterwards.
	TimerState struct {
		Person          string
		Running         bool
		StartedAt       *time.Time
		CarrySeconds    float64
		AttributionDate Date
	}

	// Notification is a denormalized echo of a manually-sourced ledger
	// entry, kept for the administrator's review feed. The ledger remains
	// authoritative for all totals.
	Notification struct {
		ID         int64
		CreatedAt  time.Time
		Person     string
		LogDate    Date
		DeltaHours float64
		Reason     string
		Origin     Origin
		Seen       bool
		Exported   bool
	}
)

var (
	ErrAlreadyRunning = errors.New("timer already running")
	ErrNotRunning     = errors.New("timer not running")
	ErrEmptyReason    = errors.New("reason is required for manual entries")
	ErrZeroAdjustment = errors.New("adjustment clamps to zero")
	ErrUnknownPerson  = errors.New("unknown person")
	ErrUnknownOrigin  = errors.New("unknown entry origin")
)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses an ISO "2006-01-02" date string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// ISO returns the date formatted as "2006-01-02".
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// NextDay returns the following calendar date.
func (d Date) NextDay() Date {
	return d.AddDays(1)
}

// Before reports whether d falls strictly before other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (o Origin) Valid() bool {
	switch o {
	case OriginTimer, OriginManualAdd, OriginAdjustment:
		return true
	}
	return false
}

// Manual reports whether the origin is a manually-sourced entry, which
// requires a non-empty note.
func (o Origin) Manual() bool {
	return o == OriginManualAdd || o == OriginAdjustment
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.Person) == "" {
		return ErrUnknownPerson
	}
	if err := e.LogDate.Validate(); err != nil {
		return err
	}
	if !e.Origin.Valid() {
		return ErrUnknownOrigin
	}
	if e.Origin.Manual() && strings.TrimSpace(e.Note) == "" {
		return ErrEmptyReason
	}
	return nil
}

func (n Notification) Validate() error {
	if strings.TrimSpace(n.Person) == "" {
		return ErrUnknownPerson
	}
	if err := n.LogDate.Validate(); err != nil {
		return err
	}
	if !n.Origin.Manual() {
		return ErrUnknownOrigin
	}
	if strings.TrimSpace(n.Reason) == "" {
		return ErrEmptyReason
	}
	return nil
}

func (ts TimerState) Validate() error {
	if ts.Running && ts.StartedAt == nil {
		return errors.New("running timer without start instant")
	}
	if !ts.Running && ts.StartedAt != nil {
		return errors.New("idle timer with start instant")
	}
	return nil
}

// Elapsed returns the accrued seconds at the given instant: carry-over plus
// time since start when running, never negative.
func (ts TimerState) Elapsed(now time.Time) float64 {
	total := ts.CarrySeconds
	if ts.Running && ts.StartedAt != nil {
		total += now.Sub(*ts.StartedAt).Seconds()
	}
	if total < 0 {
		return 0
	}
	return total
}

// Names returns the roster member names in declaration order.
func (r Roster) Names() []string {
	names := make([]string, len(r))
	for i, p := range r {
		names[i] = p.Name
	}
	return names
}

// Contains reports whether name is a roster member.
func (r Roster) Contains(name string) bool {
	for _, p := range r {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Administrator returns the admin member's name, or "" if none is flagged.
func (r Roster) Administrator() string {
	for _, p := range r {
		if p.Admin {
			return p.Name
		}
	}
	return ""
}

// ClampDelta floors a requested manual delta so the resulting day total
// cannot drop below zero: negative requests are limited to -currentTotal,
// positive requests pass through unchanged.
func ClampDelta(requested, currentTotal float64) float64 {
	if requested < 0 {
		return math.Max(requested, -currentTotal)
	}
	return requested
}

// FloorZero clamps a displayed total to a non-negative floor. Write-time
// clamping already keeps day totals non-negative; this is the read-side
// counterpart.
func FloorZero(x float64) float64 {
	return math.Max(0, x)
}

// NearZero reports whether an hour delta is too small to persist.
func NearZero(hours float64) bool {
	return math.Abs(hours) < MinEntryHours
}
