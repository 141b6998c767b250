package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/scholaros/scholaros/search"
	"github.com/scholaros/scholaros/server/storage"
)

// handleSearch ranks tasks, projects, publications and grants against the q
// parameter. Open tasks get a small boost so actionable work surfaces above
// finished work with the same text score.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		s.writeJSON(w, http.StatusOK, []search.Result{})
		return
	}

	docs, err := s.collectDocuments(r)
	if err != nil {
		s.writeStorageError(w, err)
		return
	}

	results := search.Rank(query, docs, time.Now())
	if results == nil {
		results = []search.Result{}
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *Server) collectDocuments(r *http.Request) ([]search.Document, error) {
	ctx := r.Context()
	var docs []search.Document

	tasks, err := s.storage.ListTasks(ctx, storage.TaskFilter{})
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		boost := 0.0
		if t.Status != storage.TaskDone {
			boost = 1
		}
		docs = append(docs, search.Document{
			ID: t.ID, Kind: "task", Title: t.Title, Body: t.Notes,
			Modified: t.Modified, Boost: boost,
		})
	}

	projects, err := s.storage.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		docs = append(docs, search.Document{
			ID: p.ID, Kind: "project", Title: p.Name, Body: p.Description,
			Modified: p.Modified,
		})
	}

	pubs, err := s.storage.ListPublications(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range pubs {
		docs = append(docs, search.Document{
			ID: p.ID, Kind: "publication", Title: p.Title,
			Body:     strings.Join(p.Authors, " ") + " " + p.Venue,
			Modified: p.Modified,
		})
	}

	grants, err := s.storage.ListGrants(ctx)
	if err != nil {
		return nil, err
	}
	for _, g := range grants {
		docs = append(docs, search.Document{
			ID: g.ID, Kind: "grant", Title: g.Title, Body: g.Funder,
			Modified: g.Modified,
		})
	}

	return docs, nil
}
