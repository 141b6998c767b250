// Package migrate upgrades v1 workspace exports to the current v2 schema.
// It is a one-shot ETL: read the old flat JSON, map each record onto the
// typed v2 form, validate, and report per-record issues without aborting the
// batch.
package migrate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"

	"github.com/scholaros/scholaros/recurrence"
	"github.com/scholaros/scholaros/server/storage"
)

// V2Version is the schema version this migrator produces.
const V2Version = 2

// v1Task is the legacy flat record. Dates were stored as strings in
// whatever format the browser produced, recurrence as a shorthand word, and
// completion as a bare boolean.
type v1Task struct {
	Name          string   `json:"name"`
	Notes         string   `json:"notes"`
	Done          bool     `json:"done"`
	Priority      string   `json:"priority"`
	Project       string   `json:"project"`
	DueDate       string   `json:"dueDate"`
	Repeat        string   `json:"repeat"`
	RepeatEvery   int      `json:"repeatEvery"`
	ExcludedDates []string `json:"excludedDates"`
}

// v1Export is the legacy envelope. Version was absent or 1.
type v1Export struct {
	Version int      `json:"version"`
	Tasks   []v1Task `json:"tasks"`
}

// V2Export is the upgraded envelope, shape-compatible with the server's
// task import endpoint.
type V2Export struct {
	Version    int             `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Tasks      []*storage.Task `json:"tasks"`
}

// Report accumulates what happened to each record.
type Report struct {
	Migrated int
	Skipped  int
	Issues   []string
}

// Migrator converts v1 exports. The zero value is not usable; construct with
// New.
type Migrator struct {
	now func() time.Time
}

// New creates a migrator.
func New() *Migrator {
	return &Migrator{now: time.Now}
}

// Migrate parses raw v1 JSON and produces the v2 export plus a report. A
// record-level problem skips that record and is noted in the report; only a
// malformed envelope is a hard error.
func (m *Migrator) Migrate(raw []byte) (*V2Export, *Report, error) {
	var src v1Export
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, nil, fmt.Errorf("parse v1 export: %w", err)
	}
	if src.Version > 1 {
		return nil, nil, fmt.Errorf("input is already version %d", src.Version)
	}

	out := &V2Export{
		Version:    V2Version,
		ExportedAt: m.now().UTC(),
		Tasks:      []*storage.Task{},
	}
	report := &Report{}

	for i, legacy := range src.Tasks {
		task, issues := m.convertTask(legacy)
		if task == nil {
			report.Skipped++
			for _, issue := range issues {
				report.Issues = append(report.Issues, fmt.Sprintf("task %d: %s", i, issue))
			}
			continue
		}
		for _, issue := range issues {
			report.Issues = append(report.Issues, fmt.Sprintf("task %d: %s", i, issue))
		}
		out.Tasks = append(out.Tasks, task)
		report.Migrated++
	}

	return out, report, nil
}

// convertTask maps one legacy record. A nil return means the record is
// unusable; a non-nil return may still carry advisory issues (e.g. a dropped
// malformed due date).
func (m *Migrator) convertTask(legacy v1Task) (*storage.Task, []string) {
	var issues []string

	title := strings.TrimSpace(legacy.Name)
	if title == "" {
		return nil, []string{"missing name"}
	}

	task := &storage.Task{
		Title:         title,
		Notes:         legacy.Notes,
		ProjectID:     legacy.Project,
		Status:        storage.TaskOpen,
		Priority:      mapPriority(legacy.Priority),
		ExcludedDates: normalizeExcluded(legacy.ExcludedDates, &issues),
	}
	if legacy.Done {
		task.Status = storage.TaskDone
	}

	if legacy.DueDate != "" {
		if due, ok := parseLegacyDate(legacy.DueDate); ok {
			task.DueDate = &due
		} else {
			issues = append(issues, fmt.Sprintf("unparseable due date %q dropped", legacy.DueDate))
		}
	}

	if legacy.Repeat != "" {
		ruleStr, ok := mapRepeat(legacy.Repeat, legacy.RepeatEvery)
		if !ok {
			issues = append(issues, fmt.Sprintf("unknown repeat %q dropped", legacy.Repeat))
		} else {
			task.Recurrence = ruleStr
		}
	}

	return task, issues
}

// mapRepeat turns the v1 shorthand into a canonical rule string. Named
// shorthands resolve through the preset table; "custom" uses the stored
// day interval.
func mapRepeat(repeat string, every int) (string, bool) {
	repeat = strings.ToLower(strings.TrimSpace(repeat))
	if rule, ok := recurrence.Presets[repeat]; ok {
		return rule, true
	}
	if repeat == "custom" && every >= 1 {
		rule := &recurrence.Rule{Frequency: recurrence.Daily}
		if every > 1 {
			rule.Interval = mo.Some(every)
		}
		return recurrence.Generate(rule), true
	}
	return "", false
}

func mapPriority(p string) storage.TaskPriority {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "high", "urgent":
		return storage.PriorityHigh
	case "low", "someday":
		return storage.PriorityLow
	default:
		return storage.PriorityMedium
	}
}

// legacyDateFormats are tried in order. v1 stored whatever the UI locale
// produced.
var legacyDateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"2006-01-02T15:04:05Z07:00",
}

func parseLegacyDate(raw string) (time.Time, bool) {
	for _, layout := range legacyDateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalizeExcluded keeps only entries that normalize to YYYY-MM-DD.
func normalizeExcluded(raw []string, issues *[]string) []string {
	var out []string
	for _, entry := range raw {
		t, ok := parseLegacyDate(strings.TrimSpace(entry))
		if !ok {
			*issues = append(*issues, fmt.Sprintf("unparseable excluded date %q dropped", entry))
			continue
		}
		out = append(out, t.Format("2006-01-02"))
	}
	return out
}

// Validate checks a v2 export for internal consistency: every task has a
// title, every recurrence rule parses and is canonical, every excluded date
// is ISO-formatted. It returns one message per violation.
func Validate(export *V2Export) []string {
	var problems []string
	if export.Version != V2Version {
		problems = append(problems, fmt.Sprintf("version is %d, want %d", export.Version, V2Version))
	}
	for i, t := range export.Tasks {
		if t == nil {
			problems = append(problems, fmt.Sprintf("task %d: nil record", i))
			continue
		}
		if strings.TrimSpace(t.Title) == "" {
			problems = append(problems, fmt.Sprintf("task %d: empty title", i))
		}
		if t.Recurrence != "" {
			rule := recurrence.Parse(t.Recurrence)
			if rule == nil {
				problems = append(problems, fmt.Sprintf("task %d: invalid recurrence %q", i, t.Recurrence))
			} else if canonical := recurrence.Generate(rule); canonical != t.Recurrence {
				problems = append(problems, fmt.Sprintf("task %d: recurrence %q is not canonical (want %q)", i, t.Recurrence, canonical))
			}
		}
		for _, d := range t.ExcludedDates {
			if _, err := time.Parse("2006-01-02", d); err != nil {
				problems = append(problems, fmt.Sprintf("task %d: malformed excluded date %q", i, d))
			}
		}
	}
	return problems
}
