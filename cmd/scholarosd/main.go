// Command scholarosd runs the ScholarOS server and its maintenance
// subcommands.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/emersion/go-ical"
	"github.com/spf13/cobra"

	"github.com/scholaros/scholaros/config"
	"github.com/scholaros/scholaros/internal/clients/ai"
	"github.com/scholaros/scholaros/migrate"
	"github.com/scholaros/scholaros/recurrence"
	"github.com/scholaros/scholaros/scheduler"
	"github.com/scholaros/scholaros/server"
	authmem "github.com/scholaros/scholaros/server/auth/memory"
	"github.com/scholaros/scholaros/server/storage"
	"github.com/scholaros/scholaros/server/storage/memory"
	"github.com/scholaros/scholaros/server/storage/sqlite"
	"github.com/scholaros/scholaros/sync"
)

func main() {
	root := &cobra.Command{
		Use:           "scholarosd",
		Short:         "research task manager",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newExportCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "scholarosd:", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func openStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case "memory":
		return memory.New(), nil
	default:
		return sqlite.New(cfg.DatabasePath)
	}
}

// messageNotifier delivers scheduler output into the message board.
type messageNotifier struct {
	store storage.Storage
}

func (n *messageNotifier) Notify(ctx context.Context, subject, body string) error {
	return n.store.CreateMessage(ctx, &storage.Message{
		Channel: "reminders",
		Author:  "scheduler",
		Body:    subject + "\n" + body,
	})
}

func newServeCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP server and scheduler",
		Args:  cobra.NoArgs,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := newLogger(cfg.LogLevel)

		store, err := openStorage(cfg)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()

		caldav := sync.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername,
			cfg.CalDAVPassword, cfg.CalDAVCalendar, logger)

		opts := []server.Option{server.WithLogger(logger)}
		if cfg.AIBaseURL != "" {
			opts = append(opts, server.WithAssistant(
				ai.NewClient(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, nil)))
		}
		if caldav.IsConfigured() {
			opts = append(opts, server.WithCalendar(caldav))
		}
		if len(cfg.AuthUsers) > 0 {
			authStore := authmem.New()
			for name, password := range cfg.AuthUsers {
				authStore.AddUser(name, password, name)
			}
			opts = append(opts, server.WithAuthenticator(authStore))
		}
		srv, err := server.New(store, opts...)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sched := scheduler.New(store, &messageNotifier{store: store}, logger,
			cfg.Timezone, cfg.DigestHour)
		go func() {
			if err := sched.Start(ctx); err != nil {
				logger.Error("scheduler failed", "error", err)
			}
		}()

		if caldav.IsConfigured() {
			logger.Info("caldav sync enabled", "url", cfg.CalDAVURL)
			go runSyncLoop(ctx, caldav, store, logger)
		}

		httpServer := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           srv,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown failed", "error", err)
			}
		}()

		logger.Info("listening", "addr", cfg.ListenAddr, "storage", cfg.StorageBackend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
	return c
}

// runSyncLoop pushes dated tasks to the remote calendar once at startup and
// then hourly.
func runSyncLoop(ctx context.Context, client *sync.Client, store storage.Storage, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		tasks, err := store.ListTasks(ctx, storage.TaskFilter{})
		if err != nil {
			logger.Error("sync scan failed", "error", err)
		} else {
			pushed, errs := client.PushTasks(ctx, tasks)
			for _, err := range errs {
				logger.Warn("sync push failed", "error", err)
			}
			if pushed > 0 {
				logger.Info("pushed tasks to calendar", "count", pushed)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func newMigrateCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "migrate <v1-export.json>",
		Short: "upgrade a v1 export to the current schema",
		Args:  cobra.ExactArgs(1),
	}
	output := c.Flags().StringP("output", "o", "", "write result to `file` instead of stdout")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		out, report, err := migrate.New().Migrate(raw)
		if err != nil {
			return err
		}
		for _, issue := range report.Issues {
			fmt.Fprintln(os.Stderr, "warning:", issue)
		}
		if problems := migrate.Validate(out); len(problems) > 0 {
			for _, p := range problems {
				fmt.Fprintln(os.Stderr, "invalid:", p)
			}
			return fmt.Errorf("migrated export failed validation")
		}

		encoded, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		if *output == "" {
			fmt.Println(string(encoded))
		} else if err := os.WriteFile(*output, encoded, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "migrated %d task(s), skipped %d\n", report.Migrated, report.Skipped)
		return nil
	}
	return c
}

func newExportCommand() *cobra.Command {
	c := &cobra.Command{
		Use:   "export",
		Short: "dump all tasks to stdout",
		Args:  cobra.NoArgs,
	}
	format := c.Flags().String("format", "json", "output format: json, csv or ics")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := openStorage(cfg)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()

		tasks, err := store.ListTasks(cmd.Context(), storage.TaskFilter{})
		if err != nil {
			return err
		}

		switch *format {
		case "json":
			out := migrate.V2Export{
				Version:    migrate.V2Version,
				ExportedAt: time.Now().UTC(),
				Tasks:      tasks,
			}
			encoded, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(encoded))
			return nil
		case "csv":
			return writeTasksCSV(os.Stdout, tasks)
		case "ics":
			return writeTasksICS(os.Stdout, tasks)
		default:
			return fmt.Errorf("unknown format %q", *format)
		}
	}
	return c
}

func writeTasksCSV(w io.Writer, tasks []*storage.Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "project_id", "title", "status", "priority", "assignee", "due_date", "recurrence"}); err != nil {
		return err
	}
	for _, t := range tasks {
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.Format("2006-01-02")
		}
		if err := cw.Write([]string{
			t.ID, t.ProjectID, t.Title, string(t.Status), string(t.Priority),
			t.Assignee, due, t.Recurrence,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeTasksICS(w io.Writer, tasks []*storage.Task) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//ScholarOS//Tasks//EN")

	now := time.Now().UTC()
	for _, t := range tasks {
		todo := ical.NewComponent(ical.CompToDo)
		todo.Props.SetText(ical.PropUID, t.ID+"@scholaros")
		todo.Props.SetText(ical.PropSummary, t.Title)
		todo.Props.SetDateTime(ical.PropDateTimeStamp, now)
		if t.DueDate != nil {
			todo.Props.SetDate(ical.PropDue, *t.DueDate)
		}
		if t.Recurrence != "" {
			if rule := recurrence.Parse(t.Recurrence); rule != nil {
				todo.Props.SetText(ical.PropRecurrenceRule,
					strings.TrimPrefix(recurrence.Generate(rule), "RRULE:"))
			}
		}
		if t.Status == storage.TaskDone {
			todo.Props.SetText(ical.PropStatus, "COMPLETED")
		}
		cal.Children = append(cal.Children, todo)
	}
	return ical.NewEncoder(w).Encode(cal)
}
