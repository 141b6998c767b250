package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmem "github.com/scholaros/scholaros/server/auth/memory"
	"github.com/scholaros/scholaros/server/storage"
	"github.com/scholaros/scholaros/server/storage/memory"
)

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	srv, err := New(store)
	require.NoError(t, err)
	return srv, store
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeInto[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestNew_RequiresStorage(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTaskLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/tasks", map[string]any{
		"title":      "write related work section",
		"notes":      "draft by Friday",
		"recurrence": "RRULE:FREQ=WEEKLY;INTERVAL=1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeInto[storage.Task](t, rec)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, storage.TaskOpen, created.Status)
	// INTERVAL=1 normalizes away.
	assert.Equal(t, "RRULE:FREQ=WEEKLY", created.Recurrence)

	rec = doJSON(t, srv, http.MethodGet, "/api/tasks/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeInto[storage.Task](t, rec)
	assert.Equal(t, created.Title, got.Title)

	rec = doJSON(t, srv, http.MethodPut, "/api/tasks/"+created.ID, map[string]any{
		"title":  "write related work section",
		"status": "done",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeInto[storage.Task](t, rec)
	assert.Equal(t, storage.TaskDone, updated.Status)

	rec = doJSON(t, srv, http.MethodDelete, "/api/tasks/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/tasks/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTask_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/tasks", map[string]any{"title": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/tasks", map[string]any{
		"title":      "x",
		"recurrence": "FREQ=WEEKLY", // missing prefix
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeInto[map[string]string](t, rec)
	assert.Equal(t, "invalid recurrence rule", body["error"])

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListTasks_Filters(t *testing.T) {
	srv, _ := newTestServer(t)

	for i, spec := range []map[string]any{
		{"title": "a", "assignee": "maria"},
		{"title": "b", "assignee": "maria", "recurrence": "RRULE:FREQ=DAILY"},
		{"title": "c", "assignee": "jun"},
	} {
		rec := doJSON(t, srv, http.MethodPost, "/api/tasks", spec)
		require.Equal(t, http.StatusCreated, rec.Code, "task %d", i)
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/tasks?assignee=maria", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeInto[[]storage.Task](t, rec), 2)

	rec = doJSON(t, srv, http.MethodGet, "/api/tasks?recurring=true", nil)
	tasks := decodeInto[[]storage.Task](t, rec)
	require.Len(t, tasks, 1)
	assert.Equal(t, "b", tasks[0].Title)

	rec = doJSON(t, srv, http.MethodGet, "/api/tasks?assignee=nobody", nil)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestTaskOccurrences(t *testing.T) {
	srv, _ := newTestServer(t)

	due := time.Date(2026, time.January, 1, 9, 0, 0, 0, time.UTC)
	rec := doJSON(t, srv, http.MethodPost, "/api/tasks", map[string]any{
		"title":          "water the lab plants",
		"due_date":       due,
		"recurrence":     "RRULE:FREQ=DAILY",
		"excluded_dates": []string{"2026-01-02"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeInto[storage.Task](t, rec)

	rec = doJSON(t, srv, http.MethodGet,
		fmt.Sprintf("/api/tasks/%s/occurrences?count=3", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	occ := decodeInto[[]occurrenceResponse](t, rec)
	require.Len(t, occ, 3)
	assert.Equal(t, "2026-01-01", occ[0].Date)
	assert.Equal(t, "2026-01-03", occ[1].Date) // Jan 2 excluded
	assert.Equal(t, "2026-01-04", occ[2].Date)
	assert.Equal(t, "Every day", occ[0].Label)

	rec = doJSON(t, srv, http.MethodGet, "/api/tasks/"+created.ID+"/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	next := decodeInto[map[string]any](t, rec)
	assert.Equal(t, "2026-01-01", next["next"])
}

func TestTaskNextOccurrence_NonRecurring(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/tasks", map[string]any{"title": "one-off"})
	created := decodeInto[storage.Task](t, rec)

	rec = doJSON(t, srv, http.MethodGet, "/api/tasks/"+created.ID+"/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	next := decodeInto[map[string]any](t, rec)
	assert.Nil(t, next["next"])
}

func TestRecurrencePresets(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/recurrence/presets", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	type preset struct {
		Name  string `json:"name"`
		Rule  string `json:"rule"`
		Label string `json:"label"`
	}
	presets := decodeInto[[]preset](t, rec)
	require.Len(t, presets, 6)
	// The list is ordered by name so responses are stable across requests.
	names := make([]string, 0, len(presets))
	byName := map[string]preset{}
	for _, p := range presets {
		names = append(names, p.Name)
		byName[p.Name] = p
	}
	assert.True(t, sort.StringsAreSorted(names))
	assert.Equal(t, "RRULE:FREQ=WEEKLY;INTERVAL=2", byName["biweekly"].Rule)
	assert.Equal(t, "Weekdays", byName["weekdays"].Label)
}

func TestDescribeRecurrence(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet,
		"/api/recurrence/describe?rule=RRULE:FREQ=WEEKLY;BYDAY=MO,WE", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeInto[map[string]any](t, rec)
	assert.Equal(t, "Weekly on Mon, Wed", body["text"])

	// Invalid rules still answer 200 with the sentinel text.
	rec = doJSON(t, srv, http.MethodGet, "/api/recurrence/describe?rule=garbage", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeInto[map[string]any](t, rec)
	assert.Equal(t, "Invalid recurrence rule", body["text"])

	rec = doJSON(t, srv, http.MethodGet,
		"/api/recurrence/describe?rule=RRULE:FREQ=DAILY", nil)
	body = decodeInto[map[string]any](t, rec)
	assert.Equal(t, "Daily", body["preset"])
}

func TestProjectCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/projects", map[string]any{
		"name": "coral genomics", "lead": "maria",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeInto[storage.Project](t, rec)

	rec = doJSON(t, srv, http.MethodPut, "/api/projects/"+created.ID, map[string]any{
		"name": "coral genomics", "archived": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeInto[storage.Project](t, rec).Archived)

	rec = doJSON(t, srv, http.MethodGet, "/api/projects", nil)
	assert.Len(t, decodeInto[[]storage.Project](t, rec), 1)

	rec = doJSON(t, srv, http.MethodDelete, "/api/projects/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMessages(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/messages", map[string]any{
		"channel": "general", "author": "jun", "body": "paper accepted!",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeInto[storage.Message](t, rec)

	doJSON(t, srv, http.MethodPost, "/api/messages", map[string]any{
		"channel": "reminders", "author": "scheduler", "body": "deadline near",
	})

	rec = doJSON(t, srv, http.MethodGet, "/api/messages?channel=general", nil)
	msgs := decodeInto[[]storage.Message](t, rec)
	require.Len(t, msgs, 1)
	assert.Equal(t, "paper accepted!", msgs[0].Body)

	rec = doJSON(t, srv, http.MethodDelete, "/api/messages/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSearchEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, srv, http.MethodPost, "/api/tasks", map[string]any{"title": "revise grant budget"})
	doJSON(t, srv, http.MethodPost, "/api/projects", map[string]any{"name": "grant renewal"})

	rec := doJSON(t, srv, http.MethodGet, "/api/search?q=grant", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	results := decodeInto[[]map[string]any](t, rec)
	assert.Len(t, results, 2)

	rec = doJSON(t, srv, http.MethodGet, "/api/search?q=", nil)
	assert.Equal(t, "[]\n", rec.Body.String())
}

type fakeAssistant struct {
	configured bool
	titles     []string
}

func (f *fakeAssistant) IsConfigured() bool { return f.configured }

func (f *fakeAssistant) SummarizeTasks(_ context.Context, titles []string) (string, error) {
	f.titles = titles
	return "2 tasks in flight", nil
}

func TestAssistantDigest(t *testing.T) {
	store := memory.New()
	assistant := &fakeAssistant{configured: true}
	srv, err := New(store, WithAssistant(assistant))
	require.NoError(t, err)

	doJSON(t, srv, http.MethodPost, "/api/tasks", map[string]any{"title": "open one"})
	done := decodeInto[storage.Task](t, doJSON(t, srv, http.MethodPost, "/api/tasks",
		map[string]any{"title": "done one"}))
	doJSON(t, srv, http.MethodPut, "/api/tasks/"+done.ID, map[string]any{
		"title": "done one", "status": "done",
	})

	rec := doJSON(t, srv, http.MethodGet, "/api/assistant/digest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeInto[map[string]string](t, rec)
	assert.Equal(t, "2 tasks in flight", body["summary"])
	assert.Equal(t, []string{"open one"}, assistant.titles)
}

func TestAssistantDigest_Unconfigured(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/assistant/digest", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	store := memory.New()
	authStore := authmem.New()
	authStore.AddUser("maria", "secret", "Maria")
	srv, err := New(store, WithAuthenticator(authStore))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req = httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.SetBasicAuth("maria", "secret")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays open for probes.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
