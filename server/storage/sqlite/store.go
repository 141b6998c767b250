// Package sqlite persists ScholarOS records in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/scholaros/scholaros/server/storage"
)

// Store implements storage.Storage on top of database/sql with the
// go-sqlite3 driver.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and applies the
// schema migrations.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT DEFAULT '',
			lead TEXT DEFAULT '',
			archived INTEGER DEFAULT 0,
			created DATETIME NOT NULL,
			modified DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			project_id TEXT DEFAULT '',
			title TEXT NOT NULL,
			notes TEXT DEFAULT '',
			status TEXT NOT NULL DEFAULT 'open',
			priority TEXT NOT NULL DEFAULT 'medium',
			assignee TEXT DEFAULT '',
			due_date DATETIME,
			recurrence TEXT DEFAULT '',
			excluded_dates TEXT DEFAULT '[]',
			created DATETIME NOT NULL,
			modified DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS publications (
			id TEXT PRIMARY KEY,
			project_id TEXT DEFAULT '',
			title TEXT NOT NULL,
			authors TEXT DEFAULT '[]',
			venue TEXT DEFAULT '',
			year INTEGER DEFAULT 0,
			doi TEXT DEFAULT '',
			abstract TEXT DEFAULT '',
			created DATETIME NOT NULL,
			modified DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS grants (
			id TEXT PRIMARY KEY,
			project_id TEXT DEFAULT '',
			title TEXT NOT NULL,
			funder TEXT DEFAULT '',
			amount REAL DEFAULT 0,
			deadline DATETIME,
			created DATETIME NOT NULL,
			modified DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			channel TEXT NOT NULL,
			author TEXT DEFAULT '',
			body TEXT NOT NULL,
			created DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// marshalList encodes a string slice column; nil encodes as [].
func marshalList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func unmarshalList(raw string) []string {
	if raw == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	if len(items) == 0 {
		return nil
	}
	return items
}

// insertError maps UNIQUE and primary-key violations to the conflict type;
// any other insert failure surfaces as an internal error.
func insertError(entity string, err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) &&
		(serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return &storage.Error{Type: storage.ErrAlreadyExists, Message: entity + " already exists", Err: err}
	}
	return fmt.Errorf("insert %s: %w", entity, err)
}

// Task operations

func (s *Store) CreateTask(ctx context.Context, task *storage.Task) error {
	if task.Title == "" {
		return storage.InvalidInput("task title is required")
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Status == "" {
		task.Status = storage.TaskOpen
	}
	if task.Priority == "" {
		task.Priority = storage.PriorityMedium
	}
	now := time.Now()
	task.Created, task.Modified = now, now

	_, err := s.db.ExecContext(ctx, `INSERT INTO tasks
		(id, project_id, title, notes, status, priority, assignee, due_date, recurrence, excluded_dates, created, modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.ProjectID, task.Title, task.Notes, task.Status, task.Priority,
		task.Assignee, task.DueDate, task.Recurrence, marshalList(task.ExcludedDates),
		task.Created, task.Modified)
	if err != nil {
		return insertError("task", err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*storage.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, project_id, title, notes, status, priority,
		assignee, due_date, recurrence, excluded_dates, created, modified
		FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*storage.Task, error) {
	var t storage.Task
	var excluded string
	var due sql.NullTime
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Notes, &t.Status, &t.Priority,
		&t.Assignee, &due, &t.Recurrence, &excluded, &t.Created, &t.Modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFound("task")
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	if due.Valid {
		t.DueDate = &due.Time
	}
	t.ExcludedDates = unmarshalList(excluded)
	return &t, nil
}

func (s *Store) ListTasks(ctx context.Context, filter storage.TaskFilter) ([]*storage.Task, error) {
	query := `SELECT id, project_id, title, notes, status, priority,
		assignee, due_date, recurrence, excluded_dates, created, modified
		FROM tasks WHERE 1=1`
	var args []any
	if filter.ProjectID != "" {
		query += " AND project_id = ?"
		args = append(args, filter.ProjectID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Assignee != "" {
		query += " AND assignee = ?"
		args = append(args, filter.Assignee)
	}
	if filter.Recurring {
		query += " AND recurrence != ''"
	}
	query += " ORDER BY created, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*storage.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) UpdateTask(ctx context.Context, task *storage.Task) error {
	task.Modified = time.Now()
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET project_id=?, title=?, notes=?,
		status=?, priority=?, assignee=?, due_date=?, recurrence=?, excluded_dates=?, modified=?
		WHERE id=?`,
		task.ProjectID, task.Title, task.Notes, task.Status, task.Priority, task.Assignee,
		task.DueDate, task.Recurrence, marshalList(task.ExcludedDates), task.Modified, task.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireRow(res, "task")
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return requireRow(res, "task")
}

// Project operations

func (s *Store) CreateProject(ctx context.Context, project *storage.Project) error {
	if project.Name == "" {
		return storage.InvalidInput("project name is required")
	}
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	now := time.Now()
	project.Created, project.Modified = now, now

	_, err := s.db.ExecContext(ctx, `INSERT INTO projects
		(id, name, description, lead, archived, created, modified)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		project.ID, project.Name, project.Description, project.Lead, project.Archived,
		project.Created, project.Modified)
	if err != nil {
		return insertError("project", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*storage.Project, error) {
	var p storage.Project
	err := s.db.QueryRowContext(ctx, `SELECT id, name, description, lead, archived, created, modified
		FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Lead, &p.Archived, &p.Created, &p.Modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFound("project")
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	return &p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]*storage.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, lead, archived, created, modified
		FROM projects ORDER BY created, id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*storage.Project
	for rows.Next() {
		var p storage.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Lead, &p.Archived, &p.Created, &p.Modified); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

func (s *Store) UpdateProject(ctx context.Context, project *storage.Project) error {
	project.Modified = time.Now()
	res, err := s.db.ExecContext(ctx, `UPDATE projects SET name=?, description=?, lead=?, archived=?, modified=?
		WHERE id=?`,
		project.Name, project.Description, project.Lead, project.Archived, project.Modified, project.ID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return requireRow(res, "project")
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return requireRow(res, "project")
}

// Publication operations

func (s *Store) CreatePublication(ctx context.Context, pub *storage.Publication) error {
	if pub.Title == "" {
		return storage.InvalidInput("publication title is required")
	}
	if pub.ID == "" {
		pub.ID = uuid.NewString()
	}
	now := time.Now()
	pub.Created, pub.Modified = now, now

	_, err := s.db.ExecContext(ctx, `INSERT INTO publications
		(id, project_id, title, authors, venue, year, doi, abstract, created, modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pub.ID, pub.ProjectID, pub.Title, marshalList(pub.Authors), pub.Venue, pub.Year,
		pub.DOI, pub.Abstract, pub.Created, pub.Modified)
	if err != nil {
		return insertError("publication", err)
	}
	return nil
}

func (s *Store) GetPublication(ctx context.Context, id string) (*storage.Publication, error) {
	var p storage.Publication
	var authors string
	err := s.db.QueryRowContext(ctx, `SELECT id, project_id, title, authors, venue, year, doi, abstract, created, modified
		FROM publications WHERE id = ?`, id).
		Scan(&p.ID, &p.ProjectID, &p.Title, &authors, &p.Venue, &p.Year, &p.DOI, &p.Abstract, &p.Created, &p.Modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFound("publication")
	}
	if err != nil {
		return nil, fmt.Errorf("scan publication: %w", err)
	}
	p.Authors = unmarshalList(authors)
	return &p, nil
}

func (s *Store) ListPublications(ctx context.Context) ([]*storage.Publication, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, title, authors, venue, year, doi, abstract, created, modified
		FROM publications ORDER BY created, id`)
	if err != nil {
		return nil, fmt.Errorf("list publications: %w", err)
	}
	defer rows.Close()

	var pubs []*storage.Publication
	for rows.Next() {
		var p storage.Publication
		var authors string
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Title, &authors, &p.Venue, &p.Year, &p.DOI, &p.Abstract, &p.Created, &p.Modified); err != nil {
			return nil, fmt.Errorf("scan publication: %w", err)
		}
		p.Authors = unmarshalList(authors)
		pubs = append(pubs, &p)
	}
	return pubs, rows.Err()
}

func (s *Store) UpdatePublication(ctx context.Context, pub *storage.Publication) error {
	pub.Modified = time.Now()
	res, err := s.db.ExecContext(ctx, `UPDATE publications SET project_id=?, title=?, authors=?,
		venue=?, year=?, doi=?, abstract=?, modified=? WHERE id=?`,
		pub.ProjectID, pub.Title, marshalList(pub.Authors), pub.Venue, pub.Year, pub.DOI,
		pub.Abstract, pub.Modified, pub.ID)
	if err != nil {
		return fmt.Errorf("update publication: %w", err)
	}
	return requireRow(res, "publication")
}

func (s *Store) DeletePublication(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM publications WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete publication: %w", err)
	}
	return requireRow(res, "publication")
}

// Grant operations

func (s *Store) CreateGrant(ctx context.Context, grant *storage.Grant) error {
	if grant.Title == "" {
		return storage.InvalidInput("grant title is required")
	}
	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	now := time.Now()
	grant.Created, grant.Modified = now, now

	_, err := s.db.ExecContext(ctx, `INSERT INTO grants
		(id, project_id, title, funder, amount, deadline, created, modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		grant.ID, grant.ProjectID, grant.Title, grant.Funder, grant.Amount, grant.Deadline,
		grant.Created, grant.Modified)
	if err != nil {
		return insertError("grant", err)
	}
	return nil
}

func (s *Store) GetGrant(ctx context.Context, id string) (*storage.Grant, error) {
	var g storage.Grant
	var deadline sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT id, project_id, title, funder, amount, deadline, created, modified
		FROM grants WHERE id = ?`, id).
		Scan(&g.ID, &g.ProjectID, &g.Title, &g.Funder, &g.Amount, &deadline, &g.Created, &g.Modified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFound("grant")
	}
	if err != nil {
		return nil, fmt.Errorf("scan grant: %w", err)
	}
	if deadline.Valid {
		g.Deadline = &deadline.Time
	}
	return &g, nil
}

func (s *Store) ListGrants(ctx context.Context) ([]*storage.Grant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, project_id, title, funder, amount, deadline, created, modified
		FROM grants ORDER BY created, id`)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var grants []*storage.Grant
	for rows.Next() {
		var g storage.Grant
		var deadline sql.NullTime
		if err := rows.Scan(&g.ID, &g.ProjectID, &g.Title, &g.Funder, &g.Amount, &deadline, &g.Created, &g.Modified); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		if deadline.Valid {
			g.Deadline = &deadline.Time
		}
		grants = append(grants, &g)
	}
	return grants, rows.Err()
}

func (s *Store) UpdateGrant(ctx context.Context, grant *storage.Grant) error {
	grant.Modified = time.Now()
	res, err := s.db.ExecContext(ctx, `UPDATE grants SET project_id=?, title=?, funder=?,
		amount=?, deadline=?, modified=? WHERE id=?`,
		grant.ProjectID, grant.Title, grant.Funder, grant.Amount, grant.Deadline,
		grant.Modified, grant.ID)
	if err != nil {
		return fmt.Errorf("update grant: %w", err)
	}
	return requireRow(res, "grant")
}

func (s *Store) DeleteGrant(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM grants WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	return requireRow(res, "grant")
}

// Message operations

func (s *Store) CreateMessage(ctx context.Context, msg *storage.Message) error {
	if msg.Channel == "" || msg.Body == "" {
		return storage.InvalidInput("message channel and body are required")
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Created = time.Now()

	_, err := s.db.ExecContext(ctx, `INSERT INTO messages (id, channel, author, body, created)
		VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.Channel, msg.Author, msg.Body, msg.Created)
	if err != nil {
		return insertError("message", err)
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, channel string) ([]*storage.Message, error) {
	query := `SELECT id, channel, author, body, created FROM messages`
	var args []any
	if channel != "" {
		query += " WHERE channel = ?"
		args = append(args, channel)
	}
	query += " ORDER BY created, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*storage.Message
	for rows.Next() {
		var m storage.Message
		if err := rows.Scan(&m.ID, &m.Channel, &m.Author, &m.Body, &m.Created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return requireRow(res, "message")
}

// requireRow converts a zero-row write into the typed not-found error.
func requireRow(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.NotFound(entity)
	}
	return nil
}
