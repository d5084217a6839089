package memory

import (
	"context"
	"testing"
	"time"

	"timbro/internal/core"
)

func mustDate(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q) error = %v", s, err)
	}
	return d
}

func TestIDSequencesAreIndependent(t *testing.T) {
	ctx := context.Background()
	s := New()
	day := mustDate(t, "2024-01-05")
	at := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)

	// A timer session advances only the entry sequence.
	if err := s.StartTimer(ctx, "Drew", day, at); err != nil {
		t.Fatalf("StartTimer error = %v", err)
	}
	if _, err := s.StopTimer(ctx, "Drew", at.Add(time.Hour)); err != nil {
		t.Fatalf("StopTimer error = %v", err)
	}

	_, notifID, err := s.SubmitManual(ctx, "Drew", day, 2.0, "forgot timer", core.OriginManualAdd, at)
	if err != nil {
		t.Fatalf("SubmitManual error = %v", err)
	}
	if notifID != 1 {
		t.Errorf("first notification ID = %d, want 1", notifID)
	}

	entries, err := s.RecentEntries(ctx, "Drew", 10)
	if err != nil {
		t.Fatalf("RecentEntries error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.ID != 1 && e.ID != 2 {
			t.Errorf("entry ID = %d, want 1 or 2", e.ID)
		}
	}

	// The notification fetched by its own ID matches the submission.
	notif, err := s.Notification(ctx, notifID)
	if err != nil {
		t.Fatalf("Notification(%d) error = %v", notifID, err)
	}
	if notif.Person != "Drew" || notif.DeltaHours != 2.0 {
		t.Errorf("notification = %+v", notif)
	}

	_, second, err := s.SubmitManual(ctx, "Carson", day, 1.0, "late entry", core.OriginManualAdd, at)
	if err != nil {
		t.Fatalf("SubmitManual error = %v", err)
	}
	if second != 2 {
		t.Errorf("second notification ID = %d, want 2", second)
	}
}
