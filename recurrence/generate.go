package recurrence

import (
	"fmt"
	"strings"
)

// Generate emits the canonical string form of a rule. Field order is fixed:
// FREQ, INTERVAL, BYDAY, then UNTIL or COUNT. An interval of 1 is never
// emitted (it is the multiplicative identity), BYDAY preserves the slice
// order verbatim, and UNTIL always uses the 8-digit date form regardless of
// which format was originally parsed.
//
// When both Until and Count are set, Until wins and Count is dropped from
// the output. Together with the fixed ordering this guarantees
// Generate(Parse(s)) == s for any string s already in canonical form.
func Generate(rule *Rule) string {
	if rule == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(rulePrefix)
	b.WriteString("FREQ=")
	b.WriteString(string(rule.Frequency))

	if n, ok := rule.Interval.Get(); ok && n > 1 {
		fmt.Fprintf(&b, ";INTERVAL=%d", n)
	}
	if len(rule.ByDay) > 0 {
		b.WriteString(";BYDAY=")
		b.WriteString(strings.Join(rule.ByDay, ","))
	}
	if until, ok := rule.Until.Get(); ok {
		b.WriteString(";UNTIL=")
		b.WriteString(until.Format("20060102"))
	} else if n, ok := rule.Count.Get(); ok {
		fmt.Fprintf(&b, ";COUNT=%d", n)
	}

	return b.String()
}
