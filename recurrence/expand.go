package recurrence

import (
	"time"
)

// maxExpansionIterations bounds the candidate loop independently of the
// caller's count, the rule's COUNT and UNTIL. It guards pathological inputs
// (an interval of 0, BYDAY codes that never match) from spinning forever.
const maxExpansionIterations = 10000

// NextOccurrences expands a rule string into at most count concrete dates,
// starting from start inclusive, sorted ascending. Dates whose YYYY-MM-DD
// form appears in excluded are skipped without consuming the count budget.
// Expansion stops at the rule's UNTIL bound and honors the rule's COUNT as a
// cap on accepted occurrences. An unparseable rule yields an empty slice,
// never an error.
func NextOccurrences(ruleStr string, start time.Time, count int, excluded ...string) []time.Time {
	rule := Parse(ruleStr)
	if rule == nil || count <= 0 {
		return []time.Time{}
	}

	excludedSet := make(map[string]struct{}, len(excluded))
	for _, d := range excluded {
		excludedSet[d] = struct{}{}
	}

	// UNTIL takes precedence over COUNT, mirroring Generate.
	limit := count
	if rule.Until.IsAbsent() {
		if c, ok := rule.Count.Get(); ok && c < limit {
			limit = c
		}
	}
	if limit <= 0 {
		return []time.Time{}
	}

	interval := rule.Interval.OrElse(1)
	if interval < 1 {
		interval = 1
	}

	out := make([]time.Time, 0, limit)

	// accept reports whether expansion should stop: either the candidate
	// crossed the UNTIL bound or enough occurrences were collected.
	accept := func(candidate time.Time) bool {
		if until, ok := rule.Until.Get(); ok && compareDates(candidate, until) > 0 {
			return true
		}
		if _, skip := excludedSet[dateKey(candidate)]; skip {
			return false
		}
		out = append(out, candidate)
		return len(out) >= limit
	}

	if rule.Frequency == Weekly && len(rule.ByDay) > 0 {
		expandWeeklyByDay(rule, start, interval, accept)
		return out
	}

	for k := 0; k < maxExpansionIterations; k++ {
		var candidate time.Time
		switch rule.Frequency {
		case Weekly:
			candidate = start.AddDate(0, 0, 7*interval*k)
		case Monthly:
			candidate = addMonthsClamped(start, interval*k)
		case Yearly:
			candidate = addMonthsClamped(start, 12*interval*k)
		default:
			candidate = start.AddDate(0, 0, interval*k)
		}
		if accept(candidate) {
			break
		}
	}
	return out
}

// expandWeeklyByDay walks Sunday-aligned weeks: within each eligible week it
// probes the seven days in chronological order, emitting those named by
// BYDAY, then jumps interval weeks ahead. The first week contributes only
// the named weekdays falling on or after start.
func expandWeeklyByDay(rule *Rule, start time.Time, interval int, accept func(time.Time) bool) {
	wanted := make(map[time.Weekday]bool, len(rule.ByDay))
	for _, code := range rule.ByDay {
		if wd, ok := weekdayCodes[code]; ok {
			wanted[wd] = true
		}
	}
	if len(wanted) == 0 {
		return
	}

	weekStart := start.AddDate(0, 0, -int(start.Weekday()))
	iterations := 0
	for {
		for d := 0; d < 7; d++ {
			iterations++
			if iterations > maxExpansionIterations {
				return
			}
			day := weekStart.AddDate(0, 0, d)
			if compareDates(day, start) < 0 || !wanted[day.Weekday()] {
				continue
			}
			if accept(day) {
				return
			}
		}
		weekStart = weekStart.AddDate(0, 0, 7*interval)
	}
}

// NextOccurrence returns the single next occurrence of a rule on or after
// start, or nil when the rule is invalid or exhausted.
func NextOccurrence(ruleStr string, start time.Time, excluded ...string) *time.Time {
	occurrences := NextOccurrences(ruleStr, start, 1, excluded...)
	if len(occurrences) == 0 {
		return nil
	}
	return &occurrences[0]
}

// addMonthsClamped advances t by the given number of months, preserving the
// day-of-month and clamping to the target month's last day when shorter.
// Stepping is always computed from the original day so a January 31 monthly
// rule yields Feb 28 then Mar 31, not a drifting Feb 28, Mar 28.
func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location()).
		AddDate(0, months, 0)

	day := t.Day()
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// dateKey is the YYYY-MM-DD form used for exclusion-set membership.
func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// compareDates orders two instants by their civil calendar date, using each
// value's own location. Time of day never participates; an UNTIL parsed as
// UTC bounds by its calendar date exactly as one parsed as local midnight.
func compareDates(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	switch {
	case ay != by:
		return compareInts(ay, by)
	case am != bm:
		return compareInts(int(am), int(bm))
	default:
		return compareInts(ad, bd)
	}
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// daysBetween returns the whole-day civil-date difference b minus a.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua) / (24 * time.Hour))
}
