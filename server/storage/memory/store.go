// memory based implementation for testing and small deployments
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scholaros/scholaros/server/storage"
)

// Store implements storage.Storage using in-memory maps
type Store struct {
	mu           sync.RWMutex
	tasks        map[string]*storage.Task
	projects     map[string]*storage.Project
	publications map[string]*storage.Publication
	grants       map[string]*storage.Grant
	messages     map[string]*storage.Message
}

// New creates a new in-memory storage
func New() *Store {
	return &Store{
		tasks:        make(map[string]*storage.Task),
		projects:     make(map[string]*storage.Project),
		publications: make(map[string]*storage.Publication),
		grants:       make(map[string]*storage.Grant),
		messages:     make(map[string]*storage.Message),
	}
}

func (s *Store) Close() error { return nil }

// ensureID assigns a fresh UUID when the caller did not provide one.
func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// Task operations

func (s *Store) CreateTask(_ context.Context, task *storage.Task) error {
	if task.Title == "" {
		return storage.InvalidInput("task title is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ensureID(&task.ID)
	if _, exists := s.tasks[task.ID]; exists {
		return &storage.Error{Type: storage.ErrAlreadyExists, Message: "task already exists"}
	}
	now := time.Now()
	task.Created, task.Modified = now, now
	if task.Status == "" {
		task.Status = storage.TaskOpen
	}
	if task.Priority == "" {
		task.Priority = storage.PriorityMedium
	}
	clone := *task
	s.tasks[task.ID] = &clone
	return nil
}

func (s *Store) GetTask(_ context.Context, id string) (*storage.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, storage.NotFound("task")
	}
	clone := *task
	return &clone, nil
}

func (s *Store) ListTasks(_ context.Context, filter storage.TaskFilter) ([]*storage.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tasks []*storage.Task
	for _, task := range s.tasks {
		if filter.ProjectID != "" && task.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Assignee != "" && task.Assignee != filter.Assignee {
			continue
		}
		if filter.Recurring && task.Recurrence == "" {
			continue
		}
		clone := *task
		tasks = append(tasks, &clone)
	}
	sortByCreated(tasks, func(t *storage.Task) (time.Time, string) { return t.Created, t.ID })
	return tasks, nil
}

func (s *Store) UpdateTask(_ context.Context, task *storage.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tasks[task.ID]
	if !ok {
		return storage.NotFound("task")
	}
	task.Created = existing.Created
	task.Modified = time.Now()
	clone := *task
	s.tasks[task.ID] = &clone
	return nil
}

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return storage.NotFound("task")
	}
	delete(s.tasks, id)
	return nil
}

// Project operations

func (s *Store) CreateProject(_ context.Context, project *storage.Project) error {
	if project.Name == "" {
		return storage.InvalidInput("project name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ensureID(&project.ID)
	if _, exists := s.projects[project.ID]; exists {
		return &storage.Error{Type: storage.ErrAlreadyExists, Message: "project already exists"}
	}
	now := time.Now()
	project.Created, project.Modified = now, now
	clone := *project
	s.projects[project.ID] = &clone
	return nil
}

func (s *Store) GetProject(_ context.Context, id string) (*storage.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project, ok := s.projects[id]
	if !ok {
		return nil, storage.NotFound("project")
	}
	clone := *project
	return &clone, nil
}

func (s *Store) ListProjects(_ context.Context) ([]*storage.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var projects []*storage.Project
	for _, p := range s.projects {
		clone := *p
		projects = append(projects, &clone)
	}
	sortByCreated(projects, func(p *storage.Project) (time.Time, string) { return p.Created, p.ID })
	return projects, nil
}

func (s *Store) UpdateProject(_ context.Context, project *storage.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.projects[project.ID]
	if !ok {
		return storage.NotFound("project")
	}
	project.Created = existing.Created
	project.Modified = time.Now()
	clone := *project
	s.projects[project.ID] = &clone
	return nil
}

func (s *Store) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return storage.NotFound("project")
	}
	delete(s.projects, id)
	return nil
}

// Publication operations

func (s *Store) CreatePublication(_ context.Context, pub *storage.Publication) error {
	if pub.Title == "" {
		return storage.InvalidInput("publication title is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ensureID(&pub.ID)
	if _, exists := s.publications[pub.ID]; exists {
		return &storage.Error{Type: storage.ErrAlreadyExists, Message: "publication already exists"}
	}
	now := time.Now()
	pub.Created, pub.Modified = now, now
	clone := *pub
	s.publications[pub.ID] = &clone
	return nil
}

func (s *Store) GetPublication(_ context.Context, id string) (*storage.Publication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pub, ok := s.publications[id]
	if !ok {
		return nil, storage.NotFound("publication")
	}
	clone := *pub
	return &clone, nil
}

func (s *Store) ListPublications(_ context.Context) ([]*storage.Publication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pubs []*storage.Publication
	for _, p := range s.publications {
		clone := *p
		pubs = append(pubs, &clone)
	}
	sortByCreated(pubs, func(p *storage.Publication) (time.Time, string) { return p.Created, p.ID })
	return pubs, nil
}

func (s *Store) UpdatePublication(_ context.Context, pub *storage.Publication) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.publications[pub.ID]
	if !ok {
		return storage.NotFound("publication")
	}
	pub.Created = existing.Created
	pub.Modified = time.Now()
	clone := *pub
	s.publications[pub.ID] = &clone
	return nil
}

func (s *Store) DeletePublication(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.publications[id]; !ok {
		return storage.NotFound("publication")
	}
	delete(s.publications, id)
	return nil
}

// Grant operations

func (s *Store) CreateGrant(_ context.Context, grant *storage.Grant) error {
	if grant.Title == "" {
		return storage.InvalidInput("grant title is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ensureID(&grant.ID)
	if _, exists := s.grants[grant.ID]; exists {
		return &storage.Error{Type: storage.ErrAlreadyExists, Message: "grant already exists"}
	}
	now := time.Now()
	grant.Created, grant.Modified = now, now
	clone := *grant
	s.grants[grant.ID] = &clone
	return nil
}

func (s *Store) GetGrant(_ context.Context, id string) (*storage.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grant, ok := s.grants[id]
	if !ok {
		return nil, storage.NotFound("grant")
	}
	clone := *grant
	return &clone, nil
}

func (s *Store) ListGrants(_ context.Context) ([]*storage.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var grants []*storage.Grant
	for _, g := range s.grants {
		clone := *g
		grants = append(grants, &clone)
	}
	sortByCreated(grants, func(g *storage.Grant) (time.Time, string) { return g.Created, g.ID })
	return grants, nil
}

func (s *Store) UpdateGrant(_ context.Context, grant *storage.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.grants[grant.ID]
	if !ok {
		return storage.NotFound("grant")
	}
	grant.Created = existing.Created
	grant.Modified = time.Now()
	clone := *grant
	s.grants[grant.ID] = &clone
	return nil
}

func (s *Store) DeleteGrant(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.grants[id]; !ok {
		return storage.NotFound("grant")
	}
	delete(s.grants, id)
	return nil
}

// Message operations

func (s *Store) CreateMessage(_ context.Context, msg *storage.Message) error {
	if msg.Channel == "" || msg.Body == "" {
		return storage.InvalidInput("message channel and body are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ensureID(&msg.ID)
	if _, exists := s.messages[msg.ID]; exists {
		return &storage.Error{Type: storage.ErrAlreadyExists, Message: "message already exists"}
	}
	msg.Created = time.Now()
	clone := *msg
	s.messages[msg.ID] = &clone
	return nil
}

func (s *Store) ListMessages(_ context.Context, channel string) ([]*storage.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var msgs []*storage.Message
	for _, m := range s.messages {
		if channel != "" && m.Channel != channel {
			continue
		}
		clone := *m
		msgs = append(msgs, &clone)
	}
	sortByCreated(msgs, func(m *storage.Message) (time.Time, string) { return m.Created, m.ID })
	return msgs, nil
}

func (s *Store) DeleteMessage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return storage.NotFound("message")
	}
	delete(s.messages, id)
	return nil
}

// sortByCreated orders records by creation time, tie-broken by ID so list
// output is deterministic.
func sortByCreated[T any](items []T, key func(T) (time.Time, string)) {
	sort.Slice(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if ti.Equal(tj) {
			return idi < idj
		}
		return ti.Before(tj)
	})
}
