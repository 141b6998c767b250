package migrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaros/scholaros/server/storage"
)

func newTestMigrator() *Migrator {
	m := New()
	m.now = func() time.Time {
		return time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	}
	return m
}

func TestMigrate_BasicRecord(t *testing.T) {
	raw := []byte(`{
		"version": 1,
		"tasks": [
			{"name": "Submit abstract", "notes": "CHI deadline", "priority": "high",
			 "dueDate": "2026-04-01", "repeat": "weekly", "done": false}
		]
	}`)

	out, report, err := newTestMigrator().Migrate(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Migrated)
	assert.Equal(t, 0, report.Skipped)
	assert.Empty(t, report.Issues)

	require.Len(t, out.Tasks, 1)
	task := out.Tasks[0]
	assert.Equal(t, "Submit abstract", task.Title)
	assert.Equal(t, storage.PriorityHigh, task.Priority)
	assert.Equal(t, storage.TaskOpen, task.Status)
	assert.Equal(t, "RRULE:FREQ=WEEKLY", task.Recurrence)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, "2026-04-01", task.DueDate.Format("2006-01-02"))
	assert.Equal(t, V2Version, out.Version)
}

func TestMigrate_DoneBecomesStatusDone(t *testing.T) {
	raw := []byte(`{"tasks": [{"name": "x", "done": true}]}`)

	out, _, err := newTestMigrator().Migrate(raw)
	require.NoError(t, err)
	require.Len(t, out.Tasks, 1)
	assert.Equal(t, storage.TaskDone, out.Tasks[0].Status)
}

func TestMigrate_RepeatShorthands(t *testing.T) {
	tests := []struct {
		repeat string
		every  int
		want   string
	}{
		{"daily", 0, "RRULE:FREQ=DAILY"},
		{"biweekly", 0, "RRULE:FREQ=WEEKLY;INTERVAL=2"},
		{"weekdays", 0, "RRULE:FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR"},
		{"monthly", 0, "RRULE:FREQ=MONTHLY"},
		{"yearly", 0, "RRULE:FREQ=YEARLY"},
		{"custom", 3, "RRULE:FREQ=DAILY;INTERVAL=3"},
		{"custom", 1, "RRULE:FREQ=DAILY"},
	}
	for _, tt := range tests {
		got, ok := mapRepeat(tt.repeat, tt.every)
		require.True(t, ok, "repeat %q", tt.repeat)
		assert.Equal(t, tt.want, got, "repeat %q", tt.repeat)
	}
}

func TestMigrate_UnknownRepeatDropped(t *testing.T) {
	raw := []byte(`{"tasks": [{"name": "x", "repeat": "fortnightly-ish"}]}`)

	out, report, err := newTestMigrator().Migrate(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Migrated)
	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0], "unknown repeat")
	assert.Empty(t, out.Tasks[0].Recurrence)
}

func TestMigrate_MissingNameSkipsRecord(t *testing.T) {
	raw := []byte(`{"tasks": [{"name": "   "}, {"name": "kept"}]}`)

	out, report, err := newTestMigrator().Migrate(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Migrated)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, out.Tasks, 1)
	assert.Equal(t, "kept", out.Tasks[0].Title)
}

func TestMigrate_LegacyDateFormats(t *testing.T) {
	raw := []byte(`{"tasks": [
		{"name": "iso", "dueDate": "2026-05-10"},
		{"name": "us", "dueDate": "05/10/2026"},
		{"name": "bad", "dueDate": "next tuesday"}
	]}`)

	out, report, err := newTestMigrator().Migrate(raw)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Migrated)

	require.NotNil(t, out.Tasks[0].DueDate)
	require.NotNil(t, out.Tasks[1].DueDate)
	assert.Equal(t, "2026-05-10", out.Tasks[1].DueDate.Format("2006-01-02"))
	assert.Nil(t, out.Tasks[2].DueDate)
	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0], "unparseable due date")
}

func TestMigrate_ExcludedDatesNormalized(t *testing.T) {
	raw := []byte(`{"tasks": [
		{"name": "x", "excludedDates": ["01/15/2026", "2026-01-22", "garbage"]}
	]}`)

	out, report, err := newTestMigrator().Migrate(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-15", "2026-01-22"}, out.Tasks[0].ExcludedDates)
	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0], "excluded date")
}

func TestMigrate_RejectsNewerVersions(t *testing.T) {
	_, _, err := newTestMigrator().Migrate([]byte(`{"version": 2, "tasks": []}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already version 2")
}

func TestMigrate_MalformedEnvelope(t *testing.T) {
	_, _, err := newTestMigrator().Migrate([]byte(`{"tasks": `))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	due := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	good := &V2Export{
		Version: V2Version,
		Tasks: []*storage.Task{
			{Title: "ok", Recurrence: "RRULE:FREQ=WEEKLY", DueDate: &due,
				ExcludedDates: []string{"2026-04-08"}},
		},
	}
	assert.Empty(t, Validate(good))

	bad := &V2Export{
		Version: 1,
		Tasks: []*storage.Task{
			{Title: ""},
			{Title: "x", Recurrence: "FREQ=WEEKLY"},
			{Title: "y", Recurrence: "RRULE:FREQ=WEEKLY;INTERVAL=1"},
			{Title: "z", ExcludedDates: []string{"04/08/2026"}},
		},
	}
	problems := Validate(bad)
	assert.Len(t, problems, 5)
}
