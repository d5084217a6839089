package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"timbro/internal/core"
	"timbro/internal/report"
)

type personView struct {
	Name  string `json:"name"`
	Admin bool   `json:"admin"`
}

type progressView struct {
	Hours    float64 `json:"hours"`
	Target   float64 `json:"target"`
	Fraction float64 `json:"fraction"`
	OnTrack  bool    `json:"on_track"`
}

type entryView struct {
	ID        int64   `json:"id"`
	CreatedAt string  `json:"created_at"`
	Person    string  `json:"person"`
	LogDate   string  `json:"log_date"`
	Hours     float64 `json:"hours"`
	Note      string  `json:"note"`
	Origin    string  `json:"origin"`
}

type rankView struct {
	Position int     `json:"position"`
	Person   string  `json:"person"`
	Hours    float64 `json:"hours"`
}

type vestingView struct {
	Person string  `json:"person"`
	Hours  float64 `json:"hours"`
	Vested bool    `json:"vested"`
}

type notificationView struct {
	ID         int64   `json:"id"`
	CreatedAt  string  `json:"created_at"`
	Person     string  `json:"person"`
	LogDate    string  `json:"log_date"`
	DeltaHours float64 `json:"delta_hours"`
	Reason     string  `json:"reason"`
	Origin     string  `json:"origin"`
	Seen       bool    `json:"seen"`
	Exported   bool    `json:"exported"`
}

func (s *Server) handlePeople(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	roster := s.svc.Roster()
	people := make([]personView, len(roster))
	for i, p := range roster {
		people[i] = personView{Name: p.Name, Admin: p.Admin}
	}

	NewResponse().JSON(map[string]any{"people": people}).Write(w)
}

func (s *Server) handleClockIn(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	person := p.Get("person")
	date, err := p.GetDate("date", time.Now())
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	if err := s.svc.ClockIn(r.Context(), person, date); err != nil {
		writeServiceError(w, r, err)
		return
	}

	NewResponse().JSON(map[string]any{
		"person":   person,
		"log_date": date.ISO(),
		"running":  true,
	}).Write(w)
}

func (s *Server) handleClockOut(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	person := p.Get("person")
	hours, err := s.svc.ClockOut(r.Context(), person)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateTotals()

	NewResponse().JSON(map[string]any{
		"person":   person,
		"hours":    hours,
		"recorded": hours > 0,
		"display":  report.FormatHours(hours),
	}).Write(w)
}

func (s *Server) handleElapsed(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	person := sanitizeInput(r.URL.Query().Get("person"))
	seconds, err := s.svc.PeekElapsed(r.Context(), person)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	NewResponse().JSON(map[string]any{
		"person":          person,
		"elapsed_seconds": seconds,
		"display":         report.FormatHMS(seconds),
	}).Write(w)
}

func (s *Server) handleSubmitManual(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	person := p.Get("person")
	reason := p.Get("reason")
	hours, err := p.GetFloat("hours")
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	date, err := p.GetDate("date", time.Now())
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	applied, err := s.svc.SubmitManual(r.Context(), person, date, hours, reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateTotals()

	NewResponse().JSON(map[string]any{
		"person":    person,
		"log_date":  date.ISO(),
		"requested": hours,
		"applied":   applied,
		"clamped":   applied != hours,
	}).Write(w)
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	start, end, err := s.periodBounds(r)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	key := totalsCacheKey(start.ISO(), end.ISO())
	totals, hit := s.totalsCache.Get(key)
	if !hit {
		totals, err = s.svc.PeriodTotalsAll(r.Context(), start, end)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		s.totalsCache.Set(key, totals)
	}

	NewResponse().JSON(map[string]any{
		"start":  start.ISO(),
		"end":    end.ISO(),
		"totals": totals,
		"cached": hit,
	}).Write(w)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	person := sanitizeInput(r.URL.Query().Get("person"))
	day, err := queryDate(r, "date", time.Now())
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	progress, err := s.svc.Progress(r.Context(), person, day)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	NewResponse().JSON(map[string]any{
		"person": person,
		"date":   day.ISO(),
		"week":   toProgressView(progress.Week),
		"month":  toProgressView(progress.Month),
	}).Write(w)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	start, end, err := s.periodBounds(r)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	ranks, err := s.svc.Leaderboard(r.Context(), start, end)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	views := make([]rankView, len(ranks))
	for i, rk := range ranks {
		views[i] = rankView{Position: rk.Position, Person: rk.Person, Hours: rk.Hours}
	}

	NewResponse().JSON(map[string]any{
		"start": start.ISO(),
		"end":   end.ISO(),
		"ranks": views,
	}).Write(w)
}

func (s *Server) handleVesting(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	day, err := queryDate(r, "date", time.Now())
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	entries, err := s.svc.VestingStatus(r.Context(), day)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	views := make([]vestingView, len(entries))
	for i, e := range entries {
		views[i] = vestingView{Person: e.Person, Hours: e.Hours, Vested: e.Vested}
	}

	NewResponse().JSON(map[string]any{
		"date":    day.ISO(),
		"entries": views,
	}).Write(w)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	notifs, err := s.svc.ListNotifications(r.Context(), queryLimit(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	views := make([]notificationView, len(notifs))
	for i, n := range notifs {
		views[i] = toNotificationView(n)
	}

	NewResponse().JSON(map[string]any{"notifications": views}).Write(w)
}

func (s *Server) handleNotificationSeen(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	id, err := p.GetInt64("id")
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	if err := s.svc.MarkNotificationSeen(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	NewResponse().JSON(map[string]any{"id": id, "seen": true}).Write(w)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	person := sanitizeInput(r.URL.Query().Get("person"))
	entries, err := s.svc.ListLedger(r.Context(), person, queryLimit(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	views := make([]entryView, len(entries))
	for i, e := range entries {
		views[i] = entryView{
			ID:        e.ID,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
			Person:    e.Person,
			LogDate:   e.LogDate.ISO(),
			Hours:     e.Hours,
			Note:      e.Note,
			Origin:    string(e.Origin),
		}
	}

	NewResponse().JSON(map[string]any{"entries": views}).Write(w)
}

// periodBounds resolves a query period: explicit start/end pair, or a
// named period (week, month, day) anchored on an optional date.
func (s *Server) periodBounds(r *http.Request) (core.Date, core.Date, error) {
	q := r.URL.Query()

	if raw := strings.TrimSpace(q.Get("start")); raw != "" {
		start, err := core.ParseDate(raw)
		if err != nil {
			return core.Date{}, core.Date{}, err
		}
		end, err := core.ParseDate(q.Get("end"))
		if err != nil {
			return core.Date{}, core.Date{}, err
		}
		return start, end, nil
	}

	day, err := queryDate(r, "date", time.Now())
	if err != nil {
		return core.Date{}, core.Date{}, err
	}

	switch strings.TrimSpace(q.Get("period")) {
	case "", "week":
		start, end := report.WeekBounds(day)
		return start, end, nil
	case "month":
		start, end := report.MonthBounds(day)
		return start, end, nil
	case "day":
		return day, day.NextDay(), nil
	default:
		return core.Date{}, core.Date{}, errors.New("invalid period: must be week, month or day")
	}
}

func toProgressView(p report.Progress) progressView {
	return progressView{
		Hours:    p.Hours,
		Target:   p.Target,
		Fraction: p.Fraction,
		OnTrack:  p.OnTrack,
	}
}

func toNotificationView(n core.Notification) notificationView {
	return notificationView{
		ID:         n.ID,
		CreatedAt:  n.CreatedAt.UTC().Format(time.RFC3339),
		Person:     n.Person,
		LogDate:    n.LogDate.ISO(),
		DeltaHours: n.DeltaHours,
		Reason:     n.Reason,
		Origin:     string(n.Origin),
		Seen:       n.Seen,
		Exported:   n.Exported,
	}
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrAlreadyRunning), errors.Is(err, core.ErrNotRunning):
		ConflictError(err.Error()).Write(w)
	case errors.Is(err, core.ErrUnknownPerson),
		errors.Is(err, core.ErrEmptyReason),
		errors.Is(err, core.ErrZeroAdjustment),
		errors.Is(err, core.ErrUnknownOrigin):
		UnprocessableEntityError(err.Error()).Write(w)
	case strings.Contains(err.Error(), "not found"):
		NotFoundError(err.Error()).Write(w)
	default:
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "url", r.URL.Path)
		InternalServerError("internal error").Write(w)
	}
}
