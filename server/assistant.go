package server

import (
	"context"
	"net/http"

	"github.com/scholaros/scholaros/server/storage"
)

// Assistant drafts prose from task data. The ai client satisfies this; tests
// substitute a fake.
type Assistant interface {
	IsConfigured() bool
	SummarizeTasks(ctx context.Context, titles []string) (string, error)
}

// WithAssistant enables the drafting endpoints.
func WithAssistant(assistant Assistant) Option {
	return func(s *Server) { s.assistant = assistant }
}

// handleAssistantDigest drafts a status update covering all open tasks.
func (s *Server) handleAssistantDigest(w http.ResponseWriter, r *http.Request) {
	if s.assistant == nil || !s.assistant.IsConfigured() {
		s.writeJSON(w, http.StatusServiceUnavailable, errorBody("assistant not configured"))
		return
	}

	tasks, err := s.storage.ListTasks(r.Context(), storage.TaskFilter{})
	if err != nil {
		s.writeStorageError(w, err)
		return
	}
	var titles []string
	for _, t := range tasks {
		if t.Status != storage.TaskDone {
			titles = append(titles, t.Title)
		}
	}

	summary, err := s.assistant.SummarizeTasks(r.Context(), titles)
	if err != nil {
		s.logger.Error("assistant digest failed", "error", err)
		s.writeJSON(w, http.StatusBadGateway, errorBody("assistant request failed"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}
