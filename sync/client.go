// Package sync pushes tasks to a CalDAV collection and pulls remote events
// back as read-only schedule context. Remote events may carry the full RFC
// 5545 recurrence grammar, so expansion here goes through rrule-go rather
// than the in-house subset engine.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"github.com/scholaros/scholaros/recurrence"
	"github.com/scholaros/scholaros/server/storage"
)

// Calendar is a discovered remote collection.
type Calendar struct {
	Path string
	Name string
}

// Client talks to one CalDAV account. The zero value is unconfigured;
// IsConfigured reports whether credentials are present.
type Client struct {
	baseURL      string
	username     string
	password     string
	calendarPath string
	logger       *slog.Logger

	client *caldav.Client
}

// NewClient creates a CalDAV client. calendarPath may be empty and set later
// after discovery.
func NewClient(baseURL, username, password, calendarPath string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:      baseURL,
		username:     username,
		password:     password,
		calendarPath: calendarPath,
		logger:       logger,
	}
}

// IsConfigured reports whether the client has an endpoint and credentials.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.username != "" && c.password != ""
}

// SetCalendarPath pins the collection used by push and pull.
func (c *Client) SetCalendarPath(path string) {
	c.calendarPath = path
}

func (c *Client) connect() (*caldav.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	if !c.IsConfigured() {
		return nil, fmt.Errorf("caldav client not configured")
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{username: c.username, password: c.password},
		Timeout:   30 * time.Second,
	}
	client, err := caldav.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to caldav: %w", err)
	}
	c.client = client
	return client, nil
}

type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// DiscoverCalendars walks principal, home set and collections.
func (c *Client) DiscoverCalendars(ctx context.Context) ([]Calendar, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find home set: %w", err)
	}
	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	var result []Calendar
	for _, cal := range cals {
		result = append(result, Calendar{Path: cal.Path, Name: cal.Name})
	}
	return result, nil
}

// PushTask uploads one task as a VEVENT. Recurring tasks carry their rule in
// an RRULE property and excluded dates as EXDATEs, so the remote calendar
// expands them itself. PUT replaces, so repeated pushes are idempotent.
func (c *Client) PushTask(ctx context.Context, task *storage.Task) error {
	client, err := c.connect()
	if err != nil {
		return err
	}
	if c.calendarPath == "" {
		return fmt.Errorf("calendar path not set")
	}
	if task.DueDate == nil {
		return fmt.Errorf("task %q has no due date to publish", task.Title)
	}

	uid := task.ID
	if uid == "" {
		uid = uuid.NewString()
	}
	uid += "@scholaros"

	cal := taskToCalendar(task, uid)
	path := c.calendarPath
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	path += uid + ".ics"

	if _, err := client.PutCalendarObject(ctx, path, cal); err != nil {
		return fmt.Errorf("put calendar object: %w", err)
	}
	c.logger.Debug("pushed task", "task", task.ID, "path", path)
	return nil
}

// PushTasks uploads every task that has a due date, accumulating per-task
// errors rather than stopping at the first.
func (c *Client) PushTasks(ctx context.Context, tasks []*storage.Task) (pushed int, errs []error) {
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		if err := c.PushTask(ctx, t); err != nil {
			errs = append(errs, fmt.Errorf("task %s: %w", t.ID, err))
			continue
		}
		pushed++
	}
	return pushed, errs
}

// DeleteTask removes a previously pushed task from the collection.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	client, err := c.connect()
	if err != nil {
		return err
	}
	path := c.calendarPath
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	path += taskID + "@scholaros.ics"
	if err := client.RemoveAll(ctx, path); err != nil {
		return fmt.Errorf("remove calendar object: %w", err)
	}
	return nil
}

// PullEvents fetches remote VEVENTs overlapping the range. Recurring masters
// come back with their raw RRULE for the Expander to handle.
func (c *Client) PullEvents(ctx context.Context, from, to time.Time) ([]RemoteEvent, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}
	if c.calendarPath == "" {
		return nil, fmt.Errorf("calendar path not set")
	}

	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{Name: "VEVENT", Start: from, End: to},
			},
		},
	}
	objects, err := client.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar: %w", err)
	}

	var events []RemoteEvent
	for _, obj := range objects {
		event, err := parseCalendarObject(&obj)
		if err != nil {
			c.logger.Warn("skipping unparseable calendar object", "path", obj.Path, "error", err)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func taskToCalendar(task *storage.Task, uid string) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//ScholarOS//Sync//EN")

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetText(ical.PropSummary, task.Title)
	if task.Notes != "" {
		event.Props.SetText(ical.PropDescription, task.Notes)
	}
	event.Props.SetDate(ical.PropDateTimeStart, *task.DueDate)
	event.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())

	if task.Recurrence != "" {
		if rule := recurrence.Parse(task.Recurrence); rule != nil {
			ruleStr := strings.TrimPrefix(recurrence.Generate(rule), "RRULE:")
			event.Props.SetText(ical.PropRecurrenceRule, ruleStr)
		}
	}
	if exdate := formatExDates(task.ExcludedDates); exdate != "" {
		prop := ical.NewProp(ical.PropExceptionDates)
		prop.Value = exdate
		prop.Params.Set(string(ical.ParamValue), string(ical.ValueDate))
		event.Props.Add(prop)
	}

	cal.Children = append(cal.Children, event.Component)
	return cal
}

func parseCalendarObject(obj *caldav.CalendarObject) (RemoteEvent, error) {
	event := RemoteEvent{}
	if obj.Data == nil {
		return event, fmt.Errorf("no data in calendar object")
	}

	for _, comp := range obj.Data.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		if prop := comp.Props.Get(ical.PropUID); prop != nil {
			event.UID = prop.Value
		}
		if prop := comp.Props.Get(ical.PropSummary); prop != nil {
			event.Summary = prop.Value
		}
		if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
			if t, err := prop.DateTime(time.UTC); err == nil {
				event.Start = t
			}
		}
		if prop := comp.Props.Get(ical.PropDateTimeEnd); prop != nil {
			if t, err := prop.DateTime(time.UTC); err == nil {
				event.End = t
			}
		}
		if prop := comp.Props.Get(ical.PropRecurrenceRule); prop != nil {
			event.RRule = prop.Value
		}
		for _, prop := range comp.Props.Values(ical.PropExceptionDates) {
			event.ExDates = append(event.ExDates, parseExDates(prop.Value)...)
		}
		break
	}
	if event.UID == "" {
		return event, fmt.Errorf("no VEVENT with UID")
	}
	return event, nil
}

// formatExDates renders ISO dates as a comma-joined EXDATE value.
func formatExDates(dates []string) string {
	var parts []string
	for _, d := range dates {
		if day, err := time.Parse("2006-01-02", d); err == nil {
			parts = append(parts, day.Format("20060102"))
		}
	}
	return strings.Join(parts, ",")
}

// parseExDates accepts both date-only and UTC date-time values; date-only
// entries are stored as midnight UTC.
func parseExDates(value string) []time.Time {
	var out []time.Time
	for _, raw := range strings.Split(value, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if t, err := time.Parse("20060102T150405Z", raw); err == nil {
			out = append(out, t)
			continue
		}
		if t, err := time.Parse("20060102", raw); err == nil {
			out = append(out, time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
		}
	}
	return out
}
