package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RejectsNonRules(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty string", input: ""},
		{name: "missing prefix", input: "FREQ=DAILY"},
		{name: "lowercase prefix", input: "rrule:FREQ=DAILY"},
		{name: "unrelated text", input: "INVALID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, Parse(tt.input))
		})
	}
}

func TestParse_Fields(t *testing.T) {
	rule := Parse("RRULE:FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE,FR;COUNT=10")
	require.NotNil(t, rule)

	assert.Equal(t, Weekly, rule.Frequency)
	assert.Equal(t, 2, rule.Interval.MustGet())
	assert.Equal(t, []string{"MO", "WE", "FR"}, rule.ByDay)
	assert.Equal(t, 10, rule.Count.MustGet())
	assert.True(t, rule.Until.IsAbsent())
}

func TestParse_DefaultsToDaily(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "unrecognized FREQ", input: "RRULE:FREQ=INVALID"},
		{name: "missing FREQ", input: "RRULE:COUNT=3"},
		{name: "empty body", input: "RRULE:"},
		{name: "lowercase FREQ value", input: "RRULE:FREQ=daily"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := Parse(tt.input)
			require.NotNil(t, rule)
			assert.Equal(t, Daily, rule.Frequency)
		})
	}
}

func TestParse_AbsentIntervalStaysAbsent(t *testing.T) {
	rule := Parse("RRULE:FREQ=DAILY")
	require.NotNil(t, rule)
	assert.True(t, rule.Interval.IsAbsent())
}

func TestParse_UntilFormats(t *testing.T) {
	t.Run("date only", func(t *testing.T) {
		rule := Parse("RRULE:FREQ=DAILY;UNTIL=20260103")
		require.NotNil(t, rule)

		until, ok := rule.Until.Get()
		require.True(t, ok)
		assert.Equal(t, 2026, until.Year())
		assert.Equal(t, time.January, until.Month())
		assert.Equal(t, 3, until.Day())
	})

	t.Run("utc timestamp", func(t *testing.T) {
		rule := Parse("RRULE:FREQ=DAILY;UNTIL=20260103T235959Z")
		require.NotNil(t, rule)

		until, ok := rule.Until.Get()
		require.True(t, ok)
		assert.Equal(t, 2026, until.Year())
		assert.Equal(t, time.January, until.Month())
		assert.Equal(t, 3, until.Day())
	})

	t.Run("malformed value is dropped", func(t *testing.T) {
		rule := Parse("RRULE:FREQ=DAILY;UNTIL=someday")
		require.NotNil(t, rule)
		assert.True(t, rule.Until.IsAbsent())
	})
}

func TestParse_IgnoresUnknownKeys(t *testing.T) {
	rule := Parse("RRULE:FREQ=MONTHLY;BYMONTHDAY=15;X-CUSTOM=1")
	require.NotNil(t, rule)
	assert.Equal(t, Monthly, rule.Frequency)
	assert.Empty(t, rule.ByDay)
}

func TestParse_ByDayNotValidated(t *testing.T) {
	// Lenient contract: codes outside SU..SA survive the parse untouched.
	rule := Parse("RRULE:FREQ=WEEKLY;BYDAY=MO,XX")
	require.NotNil(t, rule)
	assert.Equal(t, []string{"MO", "XX"}, rule.ByDay)
}
