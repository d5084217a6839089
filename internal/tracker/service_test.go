package tracker

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"timbro/internal/core"
	"timbro/internal/tracker/memory"
)

var _ Store = (*memory.Store)(nil)

var testRoster = core.Roster{
	{Name: "Drew", Admin: true},
	{Name: "Carson"},
	{Name: "Kaden"},
	{Name: "Chandler"},
}

// fakeClock is a settable service clock.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) set(t time.Time)         { c.t = t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)}
	svc := NewService(memory.New(), testRoster, nil, 12.0, 48.0).WithClock(clock.now)
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return svc, clock
}

func approx(t *testing.T, got, want float64, msg string) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", msg, got, want)
	}
}

func TestClockInOutWritesOneTimerEntry(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	day := core.NewDate(2024, 1, 5)

	if err := svc.ClockIn(ctx, "Carson", day); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}

	clock.advance(30 * time.Minute)

	hours, err := svc.ClockOut(ctx, "Carson")
	if err != nil {
		t.Fatalf("ClockOut: %v", err)
	}
	approx(t, hours, 0.5, "elapsed hours")

	entries, err := svc.ListLedger(ctx, "Carson", 10)
	if err != nil {
		t.Fatalf("ListLedger: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Origin != core.OriginTimer {
		t.Errorf("origin = %s, want timer", e.Origin)
	}
	if e.LogDate.ISO() != "2024-01-05" {
		t.Errorf("log date = %s, want 2024-01-05", e.LogDate.ISO())
	}
	approx(t, e.Hours, 0.5, "entry hours")
	if e.Note != core.TimerNote {
		t.Errorf("note = %q", e.Note)
	}
}

func TestClockInWhileRunningRejectsWithoutMutation(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	day := core.NewDate(2024, 1, 5)

	if err := svc.ClockIn(ctx, "Carson", day); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}

	clock.advance(10 * time.Minute)
	before, err := svc.PeekElapsed(ctx, "Carson")
	if err != nil {
		t.Fatalf("PeekElapsed: %v", err)
	}

	// Second clock-in must not restart the clock, even to a later date.
	err = svc.ClockIn(ctx, "Carson", core.NewDate(2024, 1, 6))
	if !errors.Is(err, core.ErrAlreadyRunning) {
		t.Fatalf("second ClockIn = %v, want ErrAlreadyRunning", err)
	}

	after, err := svc.PeekElapsed(ctx, "Carson")
	if err != nil {
		t.Fatalf("PeekElapsed: %v", err)
	}
	approx(t, after, before, "elapsed after rejected clock-in")

	// The original attribution date survives.
	clock.advance(20 * time.Minute)
	if _, err := svc.ClockOut(ctx, "Carson"); err != nil {
		t.Fatalf("ClockOut: %v", err)
	}
	entries, _ := svc.ListLedger(ctx, "Carson", 1)
	if entries[0].LogDate.ISO() != "2024-01-05" {
		t.Errorf("attribution date = %s, want 2024-01-05", entries[0].LogDate.ISO())
	}
}

func TestClockOutWhileIdleWritesNothing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ClockOut(ctx, "Carson")
	if !errors.Is(err, core.ErrNotRunning) {
		t.Fatalf("ClockOut = %v, want ErrNotRunning", err)
	}

	entries, _ := svc.ListLedger(ctx, "Carson", 10)
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0", len(entries))
	}
}

func TestSubSecondSessionIsSkipped(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	if err := svc.ClockIn(ctx, "Kaden", core.NewDate(2024, 1, 5)); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	clock.advance(500 * time.Millisecond)

	hours, err := svc.ClockOut(ctx, "Kaden")
	if err != nil {
		t.Fatalf("ClockOut: %v", err)
	}
	if hours != 0 {
		t.Errorf("hours = %v, want 0", hours)
	}

	entries, _ := svc.ListLedger(ctx, "Kaden", 10)
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0 (sub-second session)", len(entries))
	}

	// Timer slot is reset and can be started again.
	if err := svc.ClockIn(ctx, "Kaden", core.NewDate(2024, 1, 5)); err != nil {
		t.Errorf("ClockIn after skip: %v", err)
	}
}

func TestPeekElapsedDoesNotWrite(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	if err := svc.ClockIn(ctx, "Drew", core.NewDate(2024, 1, 5)); err != nil {
		t.Fatalf("ClockIn: %v", err)
	}
	clock.advance(90 * time.Second)

	for i := 0; i < 5; i++ {
		sec, err := svc.PeekElapsed(ctx, "Drew")
		if err != nil {
			t.Fatalf("PeekElapsed: %v", err)
		}
		approx(t, sec, 90, "elapsed seconds")
	}

	entries, _ := svc.ListLedger(ctx, "Drew", 10)
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0 (peek must never write)", len(entries))
	}
}

func TestSubmitManualClampedToZeroIsRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Carson has no entries, so the whole correction clamps away.
	_, err := svc.SubmitManual(ctx, "Carson", core.NewDate(2024, 1, 5), -2.0, "oops")
	if !errors.Is(err, core.ErrZeroAdjustment) {
		t.Fatalf("SubmitManual = %v, want ErrZeroAdjustment", err)
	}

	entries, _ := svc.ListLedger(ctx, "Carson", 10)
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0", len(entries))
	}
	notifs, _ := svc.ListNotifications(ctx, 10)
	if len(notifs) != 0 {
		t.Errorf("notifications = %d, want 0", len(notifs))
	}
}

func TestSubmitManualClampsToDayTotal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	day := core.NewDate(2024, 2, 10)

	if _, err := svc.SubmitManual(ctx, "Drew", day, 5.0, "forgot to clock in"); err != nil {
		t.Fatalf("SubmitManual: %v", err)
	}

	applied, err := svc.SubmitManual(ctx, "Drew", day, -7.0, "correction")
	if err != nil {
		t.Fatalf("SubmitManual: %v", err)
	}
	approx(t, applied, -5.0, "applied delta")

	total, err := svc.PeriodTotal(ctx, "Drew", day, day.NextDay())
	if err != nil {
		t.Fatalf("PeriodTotal: %v", err)
	}
	approx(t, total, 0.0, "day total after clamp")
}

func TestSubmitManualRequiresReason(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SubmitManual(ctx, "Drew", core.NewDate(2024, 2, 10), 1.0, "   ")
	if !errors.Is(err, core.ErrEmptyReason) {
		t.Fatalf("SubmitManual = %v, want ErrEmptyReason", err)
	}
}

func TestSubmitManualRejectsUnknownPerson(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SubmitManual(context.Background(), "Morgan", core.NewDate(2024, 2, 10), 1.0, "hi")
	if !errors.Is(err, core.ErrUnknownPerson) {
		t.Fatalf("SubmitManual = %v, want ErrUnknownPerson", err)
	}
}

func TestSubmitManualRecordsNotification(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	day := core.NewDate(2024, 2, 10)

	if _, err := svc.SubmitManual(ctx, "Chandler", day, 2.25, "offsite meeting"); err != nil {
		t.Fatalf("SubmitManual: %v", err)
	}

	notifs, err := svc.ListNotifications(ctx, 10)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(notifs) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifs))
	}
	n := notifs[0]
	if n.Person != "Chandler" || n.Reason != "offsite meeting" || n.Origin != core.OriginManualAdd {
		t.Errorf("notification = %+v", n)
	}
	approx(t, n.DeltaHours, 2.25, "notification delta")
	if n.Seen {
		t.Error("new notification should be unseen")
	}

	if err := svc.MarkNotificationSeen(ctx, n.ID); err != nil {
		t.Fatalf("MarkNotificationSeen: %v", err)
	}
	notifs, _ = svc.ListNotifications(ctx, 10)
	if !notifs[0].Seen {
		t.Error("notification should be seen after marking")
	}
}

func TestPeriodTotalAdditivity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	days := []struct {
		date  core.Date
		hours float64
	}{
		{core.NewDate(2024, 3, 4), 2.0},
		{core.NewDate(2024, 3, 6), 1.5},
		{core.NewDate(2024, 3, 11), 3.25},
		{core.NewDate(2024, 3, 15), 0.75},
	}
	for _, d := range days {
		if _, err := svc.SubmitManual(ctx, "Kaden", d.date, d.hours, "backfill"); err != nil {
			t.Fatalf("SubmitManual(%s): %v", d.date.ISO(), err)
		}
	}

	a := core.NewDate(2024, 3, 4)
	b := core.NewDate(2024, 3, 11)
	c := core.NewDate(2024, 3, 18)

	ab, _ := svc.PeriodTotal(ctx, "Kaden", a, b)
	bc, _ := svc.PeriodTotal(ctx, "Kaden", b, c)
	ac, _ := svc.PeriodTotal(ctx, "Kaden", a, c)
	approx(t, ab+bc, ac, "additivity across adjacent buckets")
}

func TestPeriodTotalNeverNegative(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Adversarial interleaving of credits and oversized corrections.
	ops := []struct {
		date  core.Date
		hours float64
	}{
		{core.NewDate(2024, 4, 1), 2.0},
		{core.NewDate(2024, 4, 1), -5.0},
		{core.NewDate(2024, 4, 2), 1.0},
		{core.NewDate(2024, 4, 2), -0.5},
		{core.NewDate(2024, 4, 2), -4.0},
		{core.NewDate(2024, 4, 3), -1.0},
	}
	for _, op := range ops {
		// Rejected zero-clamp submissions are part of the scenario.
		_, err := svc.SubmitManual(ctx, "Carson", op.date, op.hours, "stress")
		if err != nil && !errors.Is(err, core.ErrZeroAdjustment) {
			t.Fatalf("SubmitManual(%s, %v): %v", op.date.ISO(), op.hours, err)
		}

		for d := 1; d <= 3; d++ {
			day := core.NewDate(2024, 4, d)
			total, err := svc.PeriodTotal(ctx, "Carson", day, day.NextDay())
			if err != nil {
				t.Fatalf("PeriodTotal: %v", err)
			}
			if total < 0 {
				t.Fatalf("day %s total = %v, below zero", day.ISO(), total)
			}
		}
		ms, me := core.NewDate(2024, 4, 1), core.NewDate(2024, 5, 1)
		month, _ := svc.PeriodTotal(ctx, "Carson", ms, me)
		if month < 0 {
			t.Fatalf("month total = %v, below zero", month)
		}
	}
}

func TestPeriodTotalsAllDefaultsAbsentPeopleToZero(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	day := core.NewDate(2024, 5, 6)

	if _, err := svc.SubmitManual(ctx, "Drew", day, 4.0, "workshop"); err != nil {
		t.Fatalf("SubmitManual: %v", err)
	}

	totals, err := svc.PeriodTotalsAll(ctx, day, day.NextDay())
	if err != nil {
		t.Fatalf("PeriodTotalsAll: %v", err)
	}
	if len(totals) != 4 {
		t.Fatalf("totals = %v, want all 4 roster members", totals)
	}
	approx(t, totals["Drew"], 4.0, "Drew total")
	for _, name := range []string{"Carson", "Kaden", "Chandler"} {
		approx(t, totals[name], 0.0, name+" total")
	}
}

func TestVestingStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Spread 48h over the month for Carson, 47.99 for Drew.
	for d := 1; d <= 4; d++ {
		day := core.NewDate(2024, 6, d)
		if _, err := svc.SubmitManual(ctx, "Carson", day, 12.0, "sprint"); err != nil {
			t.Fatalf("SubmitManual: %v", err)
		}
	}
	if _, err := svc.SubmitManual(ctx, "Drew", core.NewDate(2024, 6, 1), 47.99, "almost"); err != nil {
		t.Fatalf("SubmitManual: %v", err)
	}

	status, err := svc.VestingStatus(ctx, core.NewDate(2024, 6, 15))
	if err != nil {
		t.Fatalf("VestingStatus: %v", err)
	}

	byName := map[string]bool{}
	for _, e := range status {
		byName[e.Person] = e.Vested
	}
	if !byName["Carson"] {
		t.Error("Carson should vest at exactly 48h")
	}
	if byName["Drew"] {
		t.Error("Drew should not vest at 47.99h")
	}
}

func TestProgressAgainstWeeklyGoal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// 2024-01-05 is a Friday; its week is [2024-01-01, 2024-01-08).
	if _, err := svc.SubmitManual(ctx, "Chandler", core.NewDate(2024, 1, 3), 11.99, "almost there"); err != nil {
		t.Fatalf("SubmitManual: %v", err)
	}

	p, err := svc.Progress(ctx, "Chandler", core.NewDate(2024, 1, 5))
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p.Week.OnTrack {
		t.Error("11.99h against a 12h goal must not be on track")
	}
	approx(t, p.Week.Fraction, 11.99/12.0, "week fraction")

	if _, err := svc.SubmitManual(ctx, "Chandler", core.NewDate(2024, 1, 4), 0.01, "topping up"); err != nil {
		t.Fatalf("SubmitManual: %v", err)
	}
	p, _ = svc.Progress(ctx, "Chandler", core.NewDate(2024, 1, 5))
	if !p.Week.OnTrack {
		t.Error("12.00h against a 12h goal should be on track")
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	day := core.NewDate(2024, 7, 9)

	if _, err := svc.SubmitManual(ctx, "Kaden", day, 1.75, "code review marathon"); err != nil {
		t.Fatalf("SubmitManual: %v", err)
	}

	entries, err := svc.ListLedger(ctx, "Kaden", 10)
	if err != nil {
		t.Fatalf("ListLedger: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Person != "Kaden" || e.LogDate.ISO() != "2024-07-09" || e.Origin != core.OriginManualAdd || e.Note != "code review marathon" {
		t.Errorf("round-tripped entry = %+v", e)
	}
	approx(t, e.Hours, 1.75, "round-tripped hours")
}

func TestLeaderboardStableOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	day := core.NewDate(2024, 8, 5)

	if _, err := svc.SubmitManual(ctx, "Kaden", day, 6.0, "build week"); err != nil {
		t.Fatalf("SubmitManual: %v", err)
	}
	if _, err := svc.SubmitManual(ctx, "Carson", day, 6.0, "build week"); err != nil {
		t.Fatalf("SubmitManual: %v", err)
	}

	ranks, err := svc.Leaderboard(ctx, day, day.NextDay())
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	// Carson precedes Kaden in the roster, so the tie keeps that order.
	if ranks[0].Person != "Carson" || ranks[1].Person != "Kaden" {
		t.Errorf("tie order = %s, %s; want Carson, Kaden", ranks[0].Person, ranks[1].Person)
	}
}

type capturingPublisher struct {
	ids     []int64
	persons []string
}

func (p *capturingPublisher) PublishAdjustment(_ context.Context, id int64, person string) error {
	p.ids = append(p.ids, id)
	p.persons = append(p.persons, person)
	return nil
}

func TestSubmitManualPublishesAdjustment(t *testing.T) {
	pub := &capturingPublisher{}
	clock := &fakeClock{t: time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)}
	svc := NewService(memory.New(), testRoster, pub, 12.0, 48.0).WithClock(clock.now)
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if _, err := svc.SubmitManual(context.Background(), "Drew", core.NewDate(2024, 1, 5), 1.0, "standup overrun"); err != nil {
		t.Fatalf("SubmitManual: %v", err)
	}
	if len(pub.ids) != 1 || pub.persons[0] != "Drew" {
		t.Errorf("published = %v/%v, want one message for Drew", pub.ids, pub.persons)
	}

	// A rejected submission publishes nothing.
	_, _ = svc.SubmitManual(context.Background(), "Drew", core.NewDate(2024, 1, 6), -3.0, "oops")
	if len(pub.ids) != 1 {
		t.Errorf("published = %d messages, want still 1", len(pub.ids))
	}
}
