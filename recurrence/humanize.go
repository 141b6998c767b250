package recurrence

import (
	"fmt"
	"strings"
)

// InvalidRuleText is returned by ToText for unparseable input.
const InvalidRuleText = "Invalid recurrence rule"

// ToText renders a rule string as a short human-readable label, e.g.
// "Daily", "Every 2 weeks", "Weekly on Mon, Wed", "Every weekday".
// A COUNT bound appends ", N times" whatever the frequency.
func ToText(ruleStr string) string {
	rule := Parse(ruleStr)
	if rule == nil {
		return InvalidRuleText
	}

	interval := rule.Interval.OrElse(1)

	var label string
	switch rule.Frequency {
	case Weekly:
		switch {
		case len(rule.ByDay) > 0:
			label = byDayLabel(rule.ByDay)
		case interval > 1:
			label = fmt.Sprintf("Every %d weeks", interval)
		default:
			label = "Weekly"
		}
	case Monthly:
		if interval > 1 {
			label = fmt.Sprintf("Every %d months", interval)
		} else {
			label = "Monthly"
		}
	case Yearly:
		if interval > 1 {
			label = fmt.Sprintf("Every %d years", interval)
		} else {
			label = "Yearly"
		}
	default:
		if interval > 1 {
			label = fmt.Sprintf("Every %d days", interval)
		} else {
			label = "Daily"
		}
	}

	if n, ok := rule.Count.Get(); ok {
		label += fmt.Sprintf(", %d times", n)
	}
	return label
}

// byDayLabel picks the label for a WEEKLY rule with BYDAY set: the full week
// collapses to "Every day", exactly Monday through Friday to "Every
// weekday", anything else lists three-letter abbreviations in the order the
// codes appeared.
func byDayLabel(codes []string) string {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}

	if len(set) == 7 && containsAll(set, "SU", "MO", "TU", "WE", "TH", "FR", "SA") {
		return "Every day"
	}
	if len(set) == 5 && containsAll(set, "MO", "TU", "WE", "TH", "FR") {
		return "Every weekday"
	}

	abbrevs := make([]string, 0, len(codes))
	for _, c := range codes {
		if a, ok := weekdayAbbrev[c]; ok {
			abbrevs = append(abbrevs, a)
		} else {
			abbrevs = append(abbrevs, c)
		}
	}
	return "Weekly on " + strings.Join(abbrevs, ", ")
}

func containsAll(set map[string]bool, codes ...string) bool {
	for _, c := range codes {
		if !set[c] {
			return false
		}
	}
	return true
}
