package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleService implements Service on top of the Google Calendar API.
type GoogleService struct {
	srv *gcal.Service
	log *slog.Logger
}

// NewGoogleService creates a calendar service using the given authenticated
// HTTP client (shared with the Gmail client, same OAuth token).
func NewGoogleService(ctx context.Context, httpClient *http.Client, log *slog.Logger) (*GoogleService, error) {
	srv, err := gcal.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &GoogleService{srv: srv, log: log}, nil
}

// FindByName resolves a calendar by its summary. Google identifies calendars
// by opaque IDs, so this walks the user's calendar list.
func (s *GoogleService) FindByName(ctx context.Context, name string) (Calendar, error) {
	call := s.srv.CalendarList.List().Context(ctx)
	for {
		list, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to list calendars: %w", err)
		}
		for _, entry := range list.Items {
			if entry.Summary == name {
				return &googleCalendar{srv: s.srv, id: entry.Id, name: entry.Summary}, nil
			}
		}
		if list.NextPageToken == "" {
			return nil, fmt.Errorf("%q: %w", name, ErrNotFound)
		}
		call = s.srv.CalendarList.List().PageToken(list.NextPageToken).Context(ctx)
	}
}

// Create creates a new secondary calendar with the given summary.
func (s *GoogleService) Create(ctx context.Context, name string) (Calendar, error) {
	created, err := s.srv.Calendars.Insert(&gcal.Calendar{Summary: name}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to create calendar %q: %w", name, err)
	}
	s.log.Info("created calendar", "name", name, "id", created.Id)
	return &googleCalendar{srv: s.srv, id: created.Id, name: created.Summary}, nil
}

type googleCalendar struct {
	srv  *gcal.Service
	id   string
	name string
}

func (c *googleCalendar) Name() string { return c.name }

func (c *googleCalendar) Events(ctx context.Context, start, end time.Time) ([]Event, error) {
	var events []Event
	call := c.srv.Events.List(c.id).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		Context(ctx)
	for {
		list, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to list events on %q: %w", c.name, err)
		}
		for _, item := range list.Items {
			ev, err := eventFromItem(item)
			if err != nil {
				// Skip entries we cannot interpret rather than failing the lookup.
				continue
			}
			events = append(events, ev)
		}
		if list.NextPageToken == "" {
			return events, nil
		}
		call = c.srv.Events.List(c.id).
			TimeMin(start.Format(time.RFC3339)).
			TimeMax(end.Format(time.RFC3339)).
			SingleEvents(true).
			PageToken(list.NextPageToken).
			Context(ctx)
	}
}

func eventFromItem(item *gcal.Event) (Event, error) {
	ev := Event{Title: item.Summary}
	if item.Start != nil && item.Start.DateTime != "" {
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return Event{}, err
		}
		ev.Start = start
	} else if item.Start != nil && item.Start.Date != "" {
		start, err := time.Parse("2006-01-02", item.Start.Date)
		if err != nil {
			return Event{}, err
		}
		ev.Start = start
		ev.AllDay = true
	}
	if item.End != nil && item.End.DateTime != "" {
		end, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			return Event{}, err
		}
		ev.End = end
	} else if item.End != nil && item.End.Date != "" {
		end, err := time.Parse("2006-01-02", item.End.Date)
		if err != nil {
			return Event{}, err
		}
		ev.End = end
	}
	return ev, nil
}

func (c *googleCalendar) CreateEvent(ctx context.Context, title string, start, end time.Time, description string) error {
	_, err := c.srv.Events.Insert(c.id, &gcal.Event{
		Summary:     title,
		Description: description,
		Start:       &gcal.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to create event %q on %q: %w", title, c.name, err)
	}
	return nil
}

func (c *googleCalendar) CreateAllDayEvent(ctx context.Context, title string, date time.Time, description string) error {
	// All-day events use date-only boundaries; the end date is exclusive.
	_, err := c.srv.Events.Insert(c.id, &gcal.Event{
		Summary:     title,
		Description: description,
		Start:       &gcal.EventDateTime{Date: date.Format("2006-01-02")},
		End:         &gcal.EventDateTime{Date: date.AddDate(0, 0, 1).Format("2006-01-02")},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to create all-day event %q on %q: %w", title, c.name, err)
	}
	return nil
}
