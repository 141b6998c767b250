package storage

import (
	"fmt"
	"time"
)

// Error types
type ErrorType string

const (
	ErrNotFound      ErrorType = "not_found"
	ErrAlreadyExists ErrorType = "already_exists"
	ErrInvalidInput  ErrorType = "invalid_input"
)

// Error represents a storage-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// TaskStatus tracks a task through its lifecycle.
type TaskStatus string

const (
	TaskOpen       TaskStatus = "open"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// TaskPriority is the coarse urgency bucket shown on the board.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// Task is a unit of work, optionally recurring. Recurrence holds the
// canonical rule string produced by the recurrence package; ExcludedDates
// holds YYYY-MM-DD strings for occurrences the user skipped.
type Task struct {
	ID            string       `json:"id"`
	ProjectID     string       `json:"project_id,omitempty"`
	Title         string       `json:"title"`
	Notes         string       `json:"notes,omitempty"`
	Status        TaskStatus   `json:"status"`
	Priority      TaskPriority `json:"priority"`
	Assignee      string       `json:"assignee,omitempty"`
	DueDate       *time.Time   `json:"due_date,omitempty"`
	Recurrence    string       `json:"recurrence,omitempty"`
	ExcludedDates []string     `json:"excluded_dates,omitempty"`
	Created       time.Time    `json:"created"`
	Modified      time.Time    `json:"modified"`
}

// Project groups tasks, publications and grants for one research effort.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Lead        string    `json:"lead,omitempty"`
	Archived    bool      `json:"archived"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
}

// Publication is a paper or preprint tracked by the group.
type Publication struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id,omitempty"`
	Title     string    `json:"title"`
	Authors   []string  `json:"authors"`
	Venue     string    `json:"venue,omitempty"`
	Year      int       `json:"year,omitempty"`
	DOI       string    `json:"doi,omitempty"`
	Abstract  string    `json:"abstract,omitempty"`
	Created   time.Time `json:"created"`
	Modified  time.Time `json:"modified"`
}

// Grant tracks a funding source and its reporting deadline.
type Grant struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id,omitempty"`
	Title     string     `json:"title"`
	Funder    string     `json:"funder"`
	Amount    float64    `json:"amount,omitempty"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	Created   time.Time  `json:"created"`
	Modified  time.Time  `json:"modified"`
}

// Message is one entry in a team channel.
type Message struct {
	ID      string    `json:"id"`
	Channel string    `json:"channel"`
	Author  string    `json:"author"`
	Body    string    `json:"body"`
	Created time.Time `json:"created"`
}

// TaskFilter narrows ListTasks. Zero values mean "any".
type TaskFilter struct {
	ProjectID string
	Status    TaskStatus
	Assignee  string
	// Recurring selects only tasks carrying a recurrence rule.
	Recurring bool
}
