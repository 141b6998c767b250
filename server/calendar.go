package server

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	calsync "github.com/scholaros/scholaros/sync"
)

// CalendarSource provides remote schedule context. The sync client satisfies
// this; tests substitute a fake.
type CalendarSource interface {
	IsConfigured() bool
	PullEvents(ctx context.Context, from, to time.Time) ([]calsync.RemoteEvent, error)
}

// WithCalendar enables the busy view backed by a remote calendar.
func WithCalendar(source CalendarSource) Option {
	return func(s *Server) {
		s.calendar = source
		s.expander = calsync.NewExpander()
	}
}

// busySlot is one occupied interval on the remote calendar.
type busySlot struct {
	UID     string    `json:"uid"`
	Summary string    `json:"summary"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// handleCalendarBusy lists remote occurrences within a date range, expanding
// recurring events to concrete instances. Events whose rules cannot be
// expanded are skipped with a warning rather than failing the view.
func (s *Server) handleCalendarBusy(w http.ResponseWriter, r *http.Request) {
	if s.calendar == nil || !s.calendar.IsConfigured() {
		s.writeJSON(w, http.StatusServiceUnavailable, errorBody("calendar not configured"))
		return
	}

	from, to, err := busyRange(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	events, err := s.calendar.PullEvents(r.Context(), from, to)
	if err != nil {
		s.logger.Error("calendar pull failed", "error", err)
		s.writeJSON(w, http.StatusBadGateway, errorBody("calendar request failed"))
		return
	}

	out := make([]busySlot, 0)
	for _, event := range events {
		occurrences, err := s.expander.OccurrencesInRange(event, from, to)
		if err != nil {
			s.logger.Warn("skipping event with unexpandable rule", "uid", event.UID, "error", err)
			continue
		}
		for _, occ := range occurrences {
			out = append(out, busySlot{UID: occ.UID, Summary: occ.Summary, Start: occ.Start, End: occ.End})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].UID < out[j].UID
	})
	s.writeJSON(w, http.StatusOK, out)
}

// busyRange parses the from/to query dates. Both default to a week starting
// today; an explicit from without to keeps the one-week span.
func busyRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q", v)
		}
		from = t
	}
	to := from.AddDate(0, 0, 7)
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q", v)
		}
		to = t
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to must be after from")
	}
	return from, to, nil
}
