package storage

import "context"

// Storage connects your backend database with the API server. Please use the
// error types provided: handlers map them onto HTTP statuses.
type Storage interface {
	// Task operations.
	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, id string) (*Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]*Task, error)
	UpdateTask(ctx context.Context, task *Task) error
	DeleteTask(ctx context.Context, id string) error

	// Project operations.
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	UpdateProject(ctx context.Context, project *Project) error
	DeleteProject(ctx context.Context, id string) error

	// Publication operations.
	CreatePublication(ctx context.Context, pub *Publication) error
	GetPublication(ctx context.Context, id string) (*Publication, error)
	ListPublications(ctx context.Context) ([]*Publication, error)
	UpdatePublication(ctx context.Context, pub *Publication) error
	DeletePublication(ctx context.Context, id string) error

	// Grant operations.
	CreateGrant(ctx context.Context, grant *Grant) error
	GetGrant(ctx context.Context, id string) (*Grant, error)
	ListGrants(ctx context.Context) ([]*Grant, error)
	UpdateGrant(ctx context.Context, grant *Grant) error
	DeleteGrant(ctx context.Context, id string) error

	// Message operations. Messages are append-only per channel.
	CreateMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, channel string) ([]*Message, error)
	DeleteMessage(ctx context.Context, id string) error

	Close() error
}

// NotFound builds the canonical not-found error for an entity.
func NotFound(entity string) *Error {
	return &Error{Type: ErrNotFound, Message: entity + " not found"}
}

// InvalidInput builds the canonical invalid-input error.
func InvalidInput(message string) *Error {
	return &Error{Type: ErrInvalidInput, Message: message}
}
