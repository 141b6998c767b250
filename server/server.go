// Package server exposes the ScholarOS HTTP JSON API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/scholaros/scholaros/server/auth"
	"github.com/scholaros/scholaros/server/storage"
	calsync "github.com/scholaros/scholaros/sync"
)

const (
	// HTTP headers
	headerContentType = "Content-Type"

	// MIME types
	mimeTypeJSON     = "application/json; charset=utf-8"
	mimeTypeCSV      = "text/csv; charset=utf-8"
	mimeTypeCalendar = "text/calendar; charset=utf-8"
	mimeTypeXML      = "application/xml; charset=utf-8"
)

// Server represents the ScholarOS API server
type Server struct {
	storage   storage.Storage
	logger    *slog.Logger
	assistant Assistant
	calendar  CalendarSource
	expander  *calsync.Expander
	mux       *http.ServeMux
	handler   http.Handler
}

// Option configures optional server behavior.
type Option func(*Server)

// WithLogger sets the structured logger used by request handlers.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithAuthenticator wraps every route in the auth middleware.
func WithAuthenticator(authenticator auth.Authenticator) Option {
	return func(s *Server) {
		s.handler = auth.Middleware(authenticator, "ScholarOS")(s.mux)
	}
}

// New creates a new API server
func New(store storage.Storage, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}

	s := &Server{
		storage: store,
		logger:  slog.Default(),
		mux:     http.NewServeMux(),
	}
	s.handler = s.mux
	s.registerRoutes()

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Tasks
	s.mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	s.mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	s.mux.HandleFunc("PUT /api/tasks/{id}", s.handleUpdateTask)
	s.mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)
	s.mux.HandleFunc("GET /api/tasks/{id}/occurrences", s.handleTaskOccurrences)
	s.mux.HandleFunc("GET /api/tasks/{id}/next", s.handleTaskNextOccurrence)
	s.mux.HandleFunc("GET /api/recurrence/presets", s.handleRecurrencePresets)
	s.mux.HandleFunc("GET /api/recurrence/describe", s.handleDescribeRecurrence)

	// Projects
	s.mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	s.mux.HandleFunc("GET /api/projects", s.handleListProjects)
	s.mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	s.mux.HandleFunc("PUT /api/projects/{id}", s.handleUpdateProject)
	s.mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)

	// Publications
	s.mux.HandleFunc("POST /api/publications", s.handleCreatePublication)
	s.mux.HandleFunc("GET /api/publications", s.handleListPublications)
	s.mux.HandleFunc("GET /api/publications/{id}", s.handleGetPublication)
	s.mux.HandleFunc("PUT /api/publications/{id}", s.handleUpdatePublication)
	s.mux.HandleFunc("DELETE /api/publications/{id}", s.handleDeletePublication)

	// Grants
	s.mux.HandleFunc("POST /api/grants", s.handleCreateGrant)
	s.mux.HandleFunc("GET /api/grants", s.handleListGrants)
	s.mux.HandleFunc("GET /api/grants/{id}", s.handleGetGrant)
	s.mux.HandleFunc("PUT /api/grants/{id}", s.handleUpdateGrant)
	s.mux.HandleFunc("DELETE /api/grants/{id}", s.handleDeleteGrant)

	// Messages
	s.mux.HandleFunc("POST /api/messages", s.handleCreateMessage)
	s.mux.HandleFunc("GET /api/messages", s.handleListMessages)
	s.mux.HandleFunc("DELETE /api/messages/{id}", s.handleDeleteMessage)

	// Search
	s.mux.HandleFunc("GET /api/search", s.handleSearch)

	// Assistant
	s.mux.HandleFunc("GET /api/assistant/digest", s.handleAssistantDigest)

	// Calendar
	s.mux.HandleFunc("GET /api/calendar/busy", s.handleCalendarBusy)

	// Import / export
	s.mux.HandleFunc("GET /api/export/tasks.json", s.handleExportTasksJSON)
	s.mux.HandleFunc("GET /api/export/tasks.csv", s.handleExportTasksCSV)
	s.mux.HandleFunc("GET /api/export/tasks.ics", s.handleExportTasksICS)
	s.mux.HandleFunc("GET /api/export/publications.xml", s.handleExportPublicationsXML)
	s.mux.HandleFunc("POST /api/import/tasks", s.handleImportTasksJSON)
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// writeJSON serializes v with the JSON content type.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, mimeTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeStorageError maps typed storage errors onto HTTP statuses.
func (s *Server) writeStorageError(w http.ResponseWriter, err error) {
	var serr *storage.Error
	if errors.As(err, &serr) {
		switch serr.Type {
		case storage.ErrNotFound:
			s.writeJSON(w, http.StatusNotFound, errorBody(serr.Message))
			return
		case storage.ErrAlreadyExists:
			s.writeJSON(w, http.StatusConflict, errorBody(serr.Message))
			return
		case storage.ErrInvalidInput:
			s.writeJSON(w, http.StatusBadRequest, errorBody(serr.Message))
			return
		}
	}
	s.logger.Error("storage error", "error", err)
	s.writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

// decodeBody parses a JSON request body into v, rejecting unknown noise
// gracefully (unknown fields are ignored, malformed JSON is a 400).
func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return storage.InvalidInput("malformed JSON body")
	}
	return nil
}
