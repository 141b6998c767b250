// Package scheduler runs the periodic jobs: a morning digest of the day's
// work and a per-minute scan for tasks that fall due today, including
// occurrences of recurring tasks.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/scholaros/scholaros/recurrence"
	"github.com/scholaros/scholaros/server/storage"
)

// Notifier delivers scheduler output. The HTTP server wires the message
// store in; a CLI run may wire stdout.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Scheduler owns the cron runner. Construct with New, then Start.
type Scheduler struct {
	cron    *cron.Cron
	storage storage.Storage
	notify  Notifier
	logger  *slog.Logger

	// digestHour is the local hour for the morning digest.
	digestHour int
	now        func() time.Time

	// notified dedupes due notices within a day, keyed by task ID + date.
	// Cron may overlap slow runs, hence the lock.
	mu       sync.Mutex
	notified map[string]bool
}

// New creates a scheduler. digestHour is clamped to [0, 23].
func New(store storage.Storage, notify Notifier, logger *slog.Logger, loc *time.Location, digestHour int) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	if digestHour < 0 || digestHour > 23 {
		digestHour = 8
	}
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		storage:    store,
		notify:     notify,
		logger:     logger,
		digestHour: digestHour,
		now:        func() time.Time { return time.Now().In(loc) },
		notified:   map[string]bool{},
	}
}

// Start registers the jobs and runs until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	digestSpec := fmt.Sprintf("0 %d * * *", s.digestHour)
	if _, err := s.cron.AddFunc(digestSpec, func() { s.runDigest(ctx) }); err != nil {
		return fmt.Errorf("add digest job: %w", err)
	}
	if _, err := s.cron.AddFunc("* * * * *", func() { s.checkDue(ctx) }); err != nil {
		return fmt.Errorf("add due check: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "digest_hour", s.digestHour)

	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop halts the cron runner and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// runDigest sends one summary of everything due today.
func (s *Scheduler) runDigest(ctx context.Context) {
	if s.notify == nil {
		return
	}
	due, err := s.dueToday(ctx)
	if err != nil {
		s.logger.Error("digest scan failed", "error", err)
		return
	}

	body := "Nothing due today."
	if len(due) > 0 {
		body = fmt.Sprintf("%d task(s) due today:\n", len(due))
		for _, t := range due {
			body += "- " + t.Title
			if t.Recurrence != "" {
				body += " (" + recurrence.ToText(t.Recurrence) + ")"
			}
			body += "\n"
		}
	}

	if err := s.notify.Notify(ctx, "Daily digest", body); err != nil {
		s.logger.Error("digest delivery failed", "error", err)
	}
}

// checkDue notifies once per task per day when it becomes due.
func (s *Scheduler) checkDue(ctx context.Context) {
	if s.notify == nil {
		return
	}
	due, err := s.dueToday(ctx)
	if err != nil {
		s.logger.Error("due scan failed", "error", err)
		return
	}

	today := s.now().Format("2006-01-02")
	s.pruneNotified(today)
	for _, t := range due {
		key := t.ID + "/" + today
		s.mu.Lock()
		seen := s.notified[key]
		s.mu.Unlock()
		if seen {
			continue
		}
		subject := "Task due: " + t.Title
		if err := s.notify.Notify(ctx, subject, t.Notes); err != nil {
			s.logger.Error("due notice delivery failed", "task", t.ID, "error", err)
			continue
		}
		s.mu.Lock()
		s.notified[key] = true
		s.mu.Unlock()
	}
}

// pruneNotified drops dedupe entries from previous days so the map stays
// bounded on long uptimes.
func (s *Scheduler) pruneNotified(today string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.notified {
		if !strings.HasSuffix(key, "/"+today) {
			delete(s.notified, key)
		}
	}
}

// dueToday returns open tasks due on the current civil date. A recurring
// task is due when today is one of its occurrences and not excluded; a
// plain task is due when its due date is today.
func (s *Scheduler) dueToday(ctx context.Context) ([]*storage.Task, error) {
	tasks, err := s.storage.ListTasks(ctx, storage.TaskFilter{})
	if err != nil {
		return nil, err
	}

	today := s.now()
	var due []*storage.Task
	for _, t := range tasks {
		if t.Status == storage.TaskDone {
			continue
		}
		if t.Recurrence != "" && t.DueDate != nil {
			if recurrence.Matches(t.Recurrence, *t.DueDate, today, t.ExcludedDates...) {
				due = append(due, t)
			}
			continue
		}
		if t.DueDate != nil && sameDate(*t.DueDate, today) {
			due = append(due, t)
		}
	}
	return due, nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
