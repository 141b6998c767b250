package server

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/scholaros/scholaros/recurrence"
	"github.com/scholaros/scholaros/server/storage"
)

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var task storage.Task
	if err := decodeBody(r, &task); err != nil {
		s.writeStorageError(w, err)
		return
	}

	// Normalize a recurrence rule to canonical form so stored strings
	// satisfy the preset and round-trip contracts. Unparseable rules are
	// rejected here rather than silently stored.
	if task.Recurrence != "" {
		rule := recurrence.Parse(task.Recurrence)
		if rule == nil {
			s.writeStorageError(w, storage.InvalidInput("invalid recurrence rule"))
			return
		}
		task.Recurrence = recurrence.Generate(rule)
	}

	if err := s.storage.CreateTask(r.Context(), &task); err != nil {
		s.writeStorageError(w, err)
		return
	}
	s.logger.Info("task created", "id", task.ID, "title", task.Title)
	s.writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.TaskFilter{
		ProjectID: q.Get("project_id"),
		Status:    storage.TaskStatus(q.Get("status")),
		Assignee:  q.Get("assignee"),
		Recurring: q.Get("recurring") == "true",
	}

	tasks, err := s.storage.ListTasks(r.Context(), filter)
	if err != nil {
		s.writeStorageError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*storage.Task{}
	}
	s.writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.storage.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStorageError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var task storage.Task
	if err := decodeBody(r, &task); err != nil {
		s.writeStorageError(w, err)
		return
	}
	task.ID = r.PathValue("id")

	if task.Recurrence != "" {
		rule := recurrence.Parse(task.Recurrence)
		if rule == nil {
			s.writeStorageError(w, storage.InvalidInput("invalid recurrence rule"))
			return
		}
		task.Recurrence = recurrence.Generate(rule)
	}

	if err := s.storage.UpdateTask(r.Context(), &task); err != nil {
		s.writeStorageError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		s.writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// occurrenceResponse is one expanded occurrence of a recurring task.
type occurrenceResponse struct {
	Date  string `json:"date"`
	Label string `json:"label"`
}

// handleTaskOccurrences previews the upcoming occurrences of a recurring
// task. The count parameter defaults to 10 and is capped at 100; the
// expansion starts at the task's due date when set, else today.
func (s *Server) handleTaskOccurrences(w http.ResponseWriter, r *http.Request) {
	task, err := s.storage.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStorageError(w, err)
		return
	}

	count := 10
	if raw := r.URL.Query().Get("count"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			count = n
		}
	}
	if count > 100 {
		count = 100
	}

	occurrences := recurrence.NextOccurrences(
		task.Recurrence, occurrenceStart(task), count, task.ExcludedDates...)

	label := recurrence.ToText(task.Recurrence)
	out := make([]occurrenceResponse, 0, len(occurrences))
	for _, o := range occurrences {
		out = append(out, occurrenceResponse{Date: o.Format("2006-01-02"), Label: label})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleTaskNextOccurrence returns the single next occurrence, or null when
// the task does not recur (or its series is exhausted).
func (s *Server) handleTaskNextOccurrence(w http.ResponseWriter, r *http.Request) {
	task, err := s.storage.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStorageError(w, err)
		return
	}

	next := recurrence.NextOccurrence(task.Recurrence, occurrenceStart(task), task.ExcludedDates...)
	if next == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"next": nil})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"next": next.Format("2006-01-02")})
}

func occurrenceStart(task *storage.Task) time.Time {
	if task.DueDate != nil {
		return *task.DueDate
	}
	return time.Now()
}

func (s *Server) handleRecurrencePresets(w http.ResponseWriter, _ *http.Request) {
	type preset struct {
		Name  string `json:"name"`
		Rule  string `json:"rule"`
		Label string `json:"label"`
	}
	names := make([]string, 0, len(recurrence.Presets))
	for name := range recurrence.Presets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]preset, 0, len(names))
	for _, name := range names {
		rule := recurrence.Presets[name]
		label, _ := recurrence.PresetName(rule)
		out = append(out, preset{Name: name, Rule: rule, Label: label})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleDescribeRecurrence renders an arbitrary rule string for display.
// Invalid rules still get a 200 with the sentinel text: the engine's
// never-fail contract extends to this endpoint.
func (s *Server) handleDescribeRecurrence(w http.ResponseWriter, r *http.Request) {
	rule := r.URL.Query().Get("rule")
	body := map[string]any{"text": recurrence.ToText(rule)}
	if label, ok := recurrence.PresetName(rule); ok {
		body["preset"] = label
	}
	s.writeJSON(w, http.StatusOK, body)
}
