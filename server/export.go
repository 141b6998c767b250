package server

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/scholaros/scholaros/recurrence"
	"github.com/scholaros/scholaros/server/storage"
)

// taskExport is the JSON export envelope. Version marks the schema so the
// migrate package can upgrade older exports.
type taskExport struct {
	Version    int             `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Tasks      []*storage.Task `json:"tasks"`
}

// ExportSchemaVersion is the current export format version.
const ExportSchemaVersion = 2

func (s *Server) handleExportTasksJSON(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.storage.ListTasks(r.Context(), storage.TaskFilter{})
	if err != nil {
		s.writeStorageError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*storage.Task{}
	}
	s.writeJSON(w, http.StatusOK, taskExport{
		Version:    ExportSchemaVersion,
		ExportedAt: time.Now().UTC(),
		Tasks:      tasks,
	})
}

func (s *Server) handleExportTasksCSV(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.storage.ListTasks(r.Context(), storage.TaskFilter{})
	if err != nil {
		s.writeStorageError(w, err)
		return
	}

	w.Header().Set(headerContentType, mimeTypeCSV)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "project_id", "title", "status", "priority", "assignee", "due_date", "recurrence"})
	for _, t := range tasks {
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.Format("2006-01-02")
		}
		_ = cw.Write([]string{
			t.ID, t.ProjectID, t.Title, string(t.Status), string(t.Priority),
			t.Assignee, due, t.Recurrence,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.logger.Error("csv export failed", "error", err)
	}
}

// handleExportTasksICS renders tasks as VTODO components. Recurring tasks
// carry their rule verbatim; the subset grammar is valid RFC 5545, so any
// standard calendar client can expand it.
func (s *Server) handleExportTasksICS(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.storage.ListTasks(r.Context(), storage.TaskFilter{})
	if err != nil {
		s.writeStorageError(w, err)
		return
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//ScholarOS//Tasks//EN")

	now := time.Now().UTC()
	for _, t := range tasks {
		todo := ical.NewComponent(ical.CompToDo)
		uid := t.ID
		if uid == "" {
			uid = uuid.NewString()
		}
		todo.Props.SetText(ical.PropUID, uid+"@scholaros")
		todo.Props.SetText(ical.PropSummary, t.Title)
		if t.Notes != "" {
			todo.Props.SetText(ical.PropDescription, t.Notes)
		}
		todo.Props.SetDateTime(ical.PropDateTimeStamp, now)
		if t.DueDate != nil {
			todo.Props.SetDate(ical.PropDue, *t.DueDate)
		}
		if t.Recurrence != "" {
			if rule := recurrence.Parse(t.Recurrence); rule != nil {
				// The RRULE property value carries no prefix.
				todo.Props.SetText(ical.PropRecurrenceRule,
					trimRulePrefix(recurrence.Generate(rule)))
			}
		}
		if t.Status == storage.TaskDone {
			todo.Props.SetText(ical.PropStatus, "COMPLETED")
		}
		cal.Children = append(cal.Children, todo)
	}

	w.Header().Set(headerContentType, mimeTypeCalendar)
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		s.logger.Error("ics export failed", "error", err)
	}
}

func trimRulePrefix(ruleStr string) string {
	const prefix = "RRULE:"
	if len(ruleStr) > len(prefix) && ruleStr[:len(prefix)] == prefix {
		return ruleStr[len(prefix):]
	}
	return ruleStr
}

// handleExportPublicationsXML builds a citation feed consumable by
// reference managers.
func (s *Server) handleExportPublicationsXML(w http.ResponseWriter, r *http.Request) {
	pubs, err := s.storage.ListPublications(r.Context())
	if err != nil {
		s.writeStorageError(w, err)
		return
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("publications")
	root.CreateAttr("generator", "scholaros")

	for _, p := range pubs {
		el := root.CreateElement("publication")
		el.CreateAttr("id", p.ID)
		el.CreateElement("title").SetText(p.Title)
		authors := el.CreateElement("authors")
		for _, a := range p.Authors {
			authors.CreateElement("author").SetText(a)
		}
		if p.Venue != "" {
			el.CreateElement("venue").SetText(p.Venue)
		}
		if p.Year != 0 {
			el.CreateElement("year").SetText(strconv.Itoa(p.Year))
		}
		if p.DOI != "" {
			el.CreateElement("doi").SetText(p.DOI)
		}
	}

	doc.Indent(2)
	w.Header().Set(headerContentType, mimeTypeXML)
	if _, err := doc.WriteTo(w); err != nil {
		s.logger.Error("xml export failed", "error", err)
	}
}

// importReport summarizes an import: per-record issues do not abort the
// whole batch.
type importReport struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Issues   []string `json:"issues,omitempty"`
}

// handleImportTasksJSON ingests a task export produced by this server (or
// migrated from a v1 export by the migrate package).
func (s *Server) handleImportTasksJSON(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var export taskExport
	if err := json.NewDecoder(r.Body).Decode(&export); err != nil {
		s.writeStorageError(w, storage.InvalidInput("malformed JSON body"))
		return
	}
	if export.Version != 0 && export.Version != ExportSchemaVersion {
		s.writeStorageError(w, storage.InvalidInput(
			fmt.Sprintf("unsupported export version %d", export.Version)))
		return
	}

	report := importReport{}
	for i, t := range export.Tasks {
		if t == nil {
			report.Skipped++
			report.Issues = append(report.Issues, fmt.Sprintf("task %d: empty record", i))
			continue
		}
		if t.Recurrence != "" {
			rule := recurrence.Parse(t.Recurrence)
			if rule == nil {
				report.Skipped++
				report.Issues = append(report.Issues,
					fmt.Sprintf("task %d (%s): invalid recurrence rule", i, t.Title))
				continue
			}
			t.Recurrence = recurrence.Generate(rule)
		}
		// Fresh IDs avoid colliding with records already present.
		t.ID = ""
		if err := s.storage.CreateTask(r.Context(), t); err != nil {
			report.Skipped++
			report.Issues = append(report.Issues,
				fmt.Sprintf("task %d (%s): %v", i, t.Title, err))
			continue
		}
		report.Imported++
	}

	s.logger.Info("task import finished", "imported", report.Imported, "skipped", report.Skipped)
	s.writeJSON(w, http.StatusOK, report)
}
