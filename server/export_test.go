package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholaros/scholaros/server/storage"
)

func seedTask(t *testing.T, srv *Server, spec map[string]any) storage.Task {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/tasks", spec)
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeInto[storage.Task](t, rec)
}

func TestExportTasksJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	seedTask(t, srv, map[string]any{"title": "a"})
	seedTask(t, srv, map[string]any{"title": "b", "recurrence": "RRULE:FREQ=WEEKLY"})

	rec := doJSON(t, srv, http.MethodGet, "/api/export/tasks.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mimeTypeJSON, rec.Header().Get(headerContentType))

	export := decodeInto[taskExport](t, rec)
	assert.Equal(t, ExportSchemaVersion, export.Version)
	assert.False(t, export.ExportedAt.IsZero())
	assert.Len(t, export.Tasks, 2)
}

func TestExportTasksCSV(t *testing.T) {
	srv, _ := newTestServer(t)
	due := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	seedTask(t, srv, map[string]any{
		"title": "submit report", "assignee": "maria", "due_date": due,
	})

	rec := doJSON(t, srv, http.MethodGet, "/api/export/tasks.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mimeTypeCSV, rec.Header().Get(headerContentType))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "id,project_id,title,status,priority,assignee,due_date,recurrence", lines[0])
	assert.Contains(t, lines[1], "submit report")
	assert.Contains(t, lines[1], "2026-03-15")
}

func TestExportTasksICS(t *testing.T) {
	srv, _ := newTestServer(t)
	due := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	seedTask(t, srv, map[string]any{
		"title": "weekly report", "due_date": due,
		"recurrence": "RRULE:FREQ=WEEKLY",
	})
	done := seedTask(t, srv, map[string]any{"title": "finished thing"})
	rec := doJSON(t, srv, http.MethodPut, "/api/tasks/"+done.ID, map[string]any{
		"title": "finished thing", "status": "done",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/export/tasks.ics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mimeTypeCalendar, rec.Header().Get(headerContentType))

	body := rec.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "BEGIN:VTODO")
	assert.Contains(t, body, "SUMMARY:weekly report")
	assert.Contains(t, body, "RRULE:FREQ=WEEKLY")
	assert.Contains(t, body, "STATUS:COMPLETED")
	assert.Contains(t, body, "@scholaros")
}

func TestExportPublicationsXML(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/publications", map[string]any{
		"title":   "Reef Microbiomes Under Stress",
		"authors": []string{"M. Santos", "J. Park"},
		"venue":   "Nature Ecology",
		"year":    2026,
		"doi":     "10.1000/demo.1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/export/publications.xml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, mimeTypeXML, rec.Header().Get(headerContentType))

	body := rec.Body.String()
	assert.Contains(t, body, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, body, `generator="scholaros"`)
	assert.Contains(t, body, "<title>Reef Microbiomes Under Stress</title>")
	assert.Contains(t, body, "<author>M. Santos</author>")
	assert.Contains(t, body, "<year>2026</year>")
}

func TestImportTasksJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/import/tasks", map[string]any{
		"version": 2,
		"tasks": []map[string]any{
			{"title": "imported one", "recurrence": "RRULE:FREQ=DAILY;INTERVAL=1"},
			{"title": "bad rule", "recurrence": "FREQ=DAILY"},
			{"title": ""},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	report := decodeInto[importReport](t, rec)
	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 2, report.Skipped)
	assert.Len(t, report.Issues, 2)

	rec = doJSON(t, srv, http.MethodGet, "/api/tasks", nil)
	tasks := decodeInto[[]storage.Task](t, rec)
	require.Len(t, tasks, 1)
	assert.Equal(t, "imported one", tasks[0].Title)
	// Rule is stored in canonical form.
	assert.Equal(t, "RRULE:FREQ=DAILY", tasks[0].Recurrence)
}

func TestImportTasksJSON_VersionMismatch(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/import/tasks", map[string]any{
		"version": 1, "tasks": []map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
