package recurrence

import (
	"time"
)

// Matches reports whether candidate falls on an occurrence of the rule
// anchored at start, without expanding the series. It returns false when the
// rule fails to parse, when candidate precedes start, when candidate's
// YYYY-MM-DD form is excluded, or when candidate lies past the rule's UNTIL
// bound.
func Matches(ruleStr string, start, candidate time.Time, excluded ...string) bool {
	rule := Parse(ruleStr)
	if rule == nil {
		return false
	}

	key := dateKey(candidate)
	for _, d := range excluded {
		if d == key {
			return false
		}
	}

	if compareDates(candidate, start) < 0 {
		return false
	}
	if until, ok := rule.Until.Get(); ok && compareDates(candidate, until) > 0 {
		return false
	}

	interval := rule.Interval.OrElse(1)
	if interval < 1 {
		interval = 1
	}
	days := daysBetween(start, candidate)

	switch rule.Frequency {
	case Weekly:
		if len(rule.ByDay) > 0 {
			if !byDayContains(rule.ByDay, candidate.Weekday()) {
				return false
			}
			// The interval constrains which week the candidate is in,
			// not the individual weekday within it.
			return weekDelta(start, days)%interval == 0
		}
		return days%7 == 0 && (days/7)%interval == 0
	case Monthly:
		if candidate.Day() != start.Day() {
			return false
		}
		months := monthsBetween(start, candidate)
		return months >= 0 && months%interval == 0
	case Yearly:
		return candidate.Month() == start.Month() && candidate.Day() == start.Day()
	default:
		return days%interval == 0
	}
}

func byDayContains(codes []string, wd time.Weekday) bool {
	for _, code := range codes {
		if w, ok := weekdayCodes[code]; ok && w == wd {
			return true
		}
	}
	return false
}

// weekDelta counts Sunday-aligned week boundaries between start and a
// candidate lying days whole days later.
func weekDelta(start time.Time, days int) int {
	return (days + int(start.Weekday())) / 7
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
