package server

import (
	"net/http"

	"github.com/scholaros/scholaros/server/storage"
)

// Projects

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var project storage.Project
	if err := decodeBody(r, &project); err != nil {
		s.writeStorageError(w, err)
		return
	}
	if err := s.storage.CreateProject(r.Context(), &project); err != nil {
		s.writeStorageError(w, err)
		return
	}
	s.logger.Info("project created", "id", project.ID, "name", project.Name)
	s.writeJSON(w, http.StatusCreated, project)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.storage.ListProjects(r.Context())
	if err != nil {
		s.writeStorageError(w, err)
		return
	}
	if projects == nil {
		projects = []*storage.Project{}
	}
	s.writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.storage.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStorageError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var project storage.Project
	if err := decodeBody(r, &project); err != nil {
		s.writeStorageError(w, err)
		return
	}
	project.ID = r.PathValue("id")
	if err := s.storage.UpdateProject(r.Context(), &project); err != nil {
		s.writeStorageError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.DeleteProject(r.Context(), r.PathValue("id")); err != nil {
		s.writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Publications

func (s *Server) handleCreatePublication(w http.ResponseWriter, r *http.Request) {
	var pub storage.Publication
	if err := decodeBody(r, &pub); err != nil {
		s.writeStorageError(w, err)
		return
	}
	if err := s.storage.CreatePublication(r.Context(), &pub); err != nil {
		s.writeStorageError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, pub)
}

func (s *Server) handleListPublications(w http.ResponseWriter, r *http.Request) {
	pubs, err := s.storage.ListPublications(r.Context())
	if err != nil {
		s.writeStorageError(w, err)
		return
	}
	if pubs == nil {
		pubs = []*storage.Publication{}
	}
	s.writeJSON(w, http.StatusOK, pubs)
}

func (s *Server) handleGetPublication(w http.ResponseWriter, r *http.Request) {
	pub, err := s.storage.GetPublication(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStorageError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pub)
}

func (s *Server) handleUpdatePublication(w http.ResponseWriter, r *http.Request) {
	var pub storage.Publication
	if err := decodeBody(r, &pub); err != nil {
		s.writeStorageError(w, err)
		return
	}
	pub.ID = r.PathValue("id")
	if err := s.storage.UpdatePublication(r.Context(), &pub); err != nil {
		s.writeStorageError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pub)
}

func (s *Server) handleDeletePublication(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.DeletePublication(r.Context(), r.PathValue("id")); err != nil {
		s.writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Grants

func (s *Server) handleCreateGrant(w http.ResponseWriter, r *http.Request) {
	var grant storage.Grant
	if err := decodeBody(r, &grant); err != nil {
		s.writeStorageError(w, err)
		return
	}
	if err := s.storage.CreateGrant(r.Context(), &grant); err != nil {
		s.writeStorageError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, grant)
}

func (s *Server) handleListGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := s.storage.ListGrants(r.Context())
	if err != nil {
		s.writeStorageError(w, err)
		return
	}
	if grants == nil {
		grants = []*storage.Grant{}
	}
	s.writeJSON(w, http.StatusOK, grants)
}

func (s *Server) handleGetGrant(w http.ResponseWriter, r *http.Request) {
	grant, err := s.storage.GetGrant(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStorageError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, grant)
}

func (s *Server) handleUpdateGrant(w http.ResponseWriter, r *http.Request) {
	var grant storage.Grant
	if err := decodeBody(r, &grant); err != nil {
		s.writeStorageError(w, err)
		return
	}
	grant.ID = r.PathValue("id")
	if err := s.storage.UpdateGrant(r.Context(), &grant); err != nil {
		s.writeStorageError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, grant)
}

func (s *Server) handleDeleteGrant(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.DeleteGrant(r.Context(), r.PathValue("id")); err != nil {
		s.writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Messages

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var msg storage.Message
	if err := decodeBody(r, &msg); err != nil {
		s.writeStorageError(w, err)
		return
	}
	if err := s.storage.CreateMessage(r.Context(), &msg); err != nil {
		s.writeStorageError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.storage.ListMessages(r.Context(), r.URL.Query().Get("channel"))
	if err != nil {
		s.writeStorageError(w, err)
		return
	}
	if msgs == nil {
		msgs = []*storage.Message{}
	}
	s.writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.DeleteMessage(r.Context(), r.PathValue("id")); err != nil {
		s.writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
