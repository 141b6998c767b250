// Package recurrence implements the subset of the iCalendar RRULE grammar
// used by ScholarOS task scheduling: parsing, canonical generation,
// occurrence expansion, date matching and human-readable descriptions.
//
// The grammar is deliberately lenient. Malformed input never causes a panic
// or an error return; each function degrades to a documented sentinel value
// (nil rule, empty slice, false, or an "Invalid recurrence rule" label)
// because the callers are UI-facing and written against that contract.
package recurrence

import (
	"time"

	"github.com/samber/mo"
)

// Frequency is the base repetition unit of a rule.
type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

// Rule is the parsed form of a recurrence rule string. It is a value type:
// operations never mutate a Rule, they construct fresh ones.
//
// Interval, Count and Until are mo.Option values because absence is
// semantically distinct from any concrete value: an absent Interval
// round-trips back to an omitted field in the canonical string.
type Rule struct {
	Frequency Frequency
	Interval  mo.Option[int]
	// ByDay holds two-letter weekday codes (SU..SA) in the order they
	// appeared in the source string. Only meaningful for WEEKLY rules.
	ByDay []string
	Count mo.Option[int]
	Until mo.Option[time.Time]
}

// weekdayCodes maps the RRULE two-letter codes to time.Weekday.
var weekdayCodes = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

// weekdayAbbrev maps the two-letter codes to the three-letter labels used by
// the humanizer.
var weekdayAbbrev = map[string]string{
	"SU": "Sun",
	"MO": "Mon",
	"TU": "Tue",
	"WE": "Wed",
	"TH": "Thu",
	"FR": "Fri",
	"SA": "Sat",
}

// Presets maps short preset names to canonical rule strings. The table is
// fixed; UI code offers these as one-click choices.
var Presets = map[string]string{
	"daily":    "RRULE:FREQ=DAILY",
	"weekly":   "RRULE:FREQ=WEEKLY",
	"biweekly": "RRULE:FREQ=WEEKLY;INTERVAL=2",
	"monthly":  "RRULE:FREQ=MONTHLY",
	"yearly":   "RRULE:FREQ=YEARLY",
	"weekdays": "RRULE:FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR",
}

// presetLabels maps the canonical preset strings back to display labels.
// Built once at init from Presets so the two tables cannot drift.
var presetLabels = map[string]string{}

func init() {
	labels := map[string]string{
		"daily":    "Daily",
		"weekly":   "Weekly",
		"biweekly": "Biweekly",
		"monthly":  "Monthly",
		"yearly":   "Yearly",
		"weekdays": "Weekdays",
	}
	for name, rule := range Presets {
		presetLabels[rule] = labels[name]
	}
}

// PresetName returns the display label for a rule string that exactly matches
// one of the registered presets. The lookup is a literal string comparison,
// not a semantic equivalence check: "RRULE:FREQ=DAILY;INTERVAL=3" is a valid
// daily rule but not a preset.
func PresetName(ruleStr string) (string, bool) {
	label, ok := presetLabels[ruleStr]
	return label, ok
}
