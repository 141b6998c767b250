package sync

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// RemoteEvent is a pulled VEVENT. RRule holds the raw rule value without the
// property name; ExDates are excluded occurrence times.
type RemoteEvent struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
	RRule   string
	ExDates []time.Time
}

// Occurrence is one concrete instance of a remote event.
type Occurrence struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
}

// Expander turns remote events into concrete occurrences. Remote rules can
// use the whole RFC 5545 grammar (BYSETPOS, BYMONTHDAY, WKST and so on), so
// expansion delegates to rrule-go. Results are cached because busy-view
// requests hit the same events with the same ranges over and over.
type Expander struct {
	cache *expansionCache
}

// NewExpander creates an expander with the default cache configuration.
func NewExpander() *Expander {
	return &Expander{cache: newExpansionCache(defaultCacheConfig)}
}

// Close releases the cache.
func (e *Expander) Close() {
	e.cache.close()
}

// OccurrencesInRange expands one event within [rangeStart, rangeEnd).
// Non-recurring events contribute their single instance when it overlaps the
// range and is not excluded.
func (e *Expander) OccurrencesInRange(event RemoteEvent, rangeStart, rangeEnd time.Time) ([]Occurrence, error) {
	duration := event.End.Sub(event.Start)
	if duration < 0 {
		duration = 0
	}

	if event.RRule == "" {
		if !event.Start.After(rangeEnd) && !event.Start.Add(duration).Before(rangeStart) &&
			!isExcluded(event.Start, event.ExDates) {
			return []Occurrence{{
				UID: event.UID, Summary: event.Summary,
				Start: event.Start, End: event.Start.Add(duration),
			}}, nil
		}
		return nil, nil
	}

	starts, err := e.expandRRule(event, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}

	var out []Occurrence
	for _, start := range starts {
		if isExcluded(start, event.ExDates) {
			continue
		}
		out = append(out, Occurrence{
			UID: event.UID, Summary: event.Summary,
			Start: start, End: start.Add(duration),
		})
	}
	return out, nil
}

// HasOccurrenceInRange is the cheap existence check used by the busy view.
func (e *Expander) HasOccurrenceInRange(event RemoteEvent, rangeStart, rangeEnd time.Time) (bool, error) {
	occurrences, err := e.OccurrencesInRange(event, rangeStart, rangeEnd)
	if err != nil {
		return false, err
	}
	return len(occurrences) > 0, nil
}

// expandRRule parses and expands the raw rule, going through the cache.
func (e *Expander) expandRRule(event RemoteEvent, rangeStart, rangeEnd time.Time) ([]time.Time, error) {
	key := cacheKey(event, rangeStart, rangeEnd)
	if cached, ok := e.cache.get(key); ok {
		return cached, nil
	}

	dtstart := event.Start.UTC().Format("20060102T150405Z")
	full := fmt.Sprintf("DTSTART:%s\nRRULE:%s", dtstart, event.RRule)
	ruleSet, err := rrule.StrToRRuleSet(full)
	if err != nil {
		return nil, fmt.Errorf("parse remote rule %q: %w", event.RRule, err)
	}

	// Between is inclusive of start, exclusive of end.
	starts := ruleSet.Between(rangeStart, rangeEnd, true)
	e.cache.set(key, starts)
	return starts, nil
}

// isExcluded matches exact timestamps and, for midnight-UTC exclusions, any
// occurrence on that civil date.
func isExcluded(t time.Time, exdates []time.Time) bool {
	for _, exdate := range exdates {
		if t.Equal(exdate) {
			return true
		}
		if exdate.Hour() == 0 && exdate.Minute() == 0 && exdate.Second() == 0 && exdate.Location() == time.UTC {
			midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			if midnight.Equal(exdate) {
				return true
			}
		}
	}
	return false
}
