package recurrence

import (
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

const rulePrefix = "RRULE:"

// Parse converts a rule string into a Rule. It returns nil for the empty
// string and for any string lacking the "RRULE:" prefix.
//
// Parsing is lenient by contract: an unrecognized FREQ value silently falls
// back to DAILY instead of failing, unknown keys are ignored, and BYDAY codes
// are not validated against the weekday set. Downstream UI code relies on
// this; do not tighten it.
func Parse(s string) *Rule {
	if !strings.HasPrefix(s, rulePrefix) {
		return nil
	}

	rule := &Rule{Frequency: Daily}
	for _, token := range strings.Split(strings.TrimPrefix(s, rulePrefix), ";") {
		kv := strings.SplitN(token, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, value := kv[0], kv[1]

		switch key {
		case "FREQ":
			switch Frequency(value) {
			case Daily, Weekly, Monthly, Yearly:
				rule.Frequency = Frequency(value)
			}
			// Anything else keeps the DAILY default.
		case "INTERVAL":
			if n, err := strconv.Atoi(value); err == nil {
				rule.Interval = mo.Some(n)
			}
		case "BYDAY":
			if value != "" {
				rule.ByDay = strings.Split(value, ",")
			}
		case "COUNT":
			if n, err := strconv.Atoi(value); err == nil {
				rule.Count = mo.Some(n)
			}
		case "UNTIL":
			if t, ok := parseUntil(value); ok {
				rule.Until = mo.Some(t)
			}
		}
	}

	return rule
}

// parseUntil accepts the two supported UNTIL formats: a bare 8-digit
// YYYYMMDD date (interpreted as a local calendar date at midnight) and the
// UTC timestamp form YYYYMMDDTHHMMSSZ. Malformed values are dropped rather
// than failing the whole parse.
func parseUntil(value string) (time.Time, bool) {
	switch len(value) {
	case 8:
		t, err := time.ParseInLocation("20060102", value, time.Local)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case 16:
		t, err := time.Parse("20060102T150405Z", value)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}
