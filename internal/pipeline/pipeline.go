// Package pipeline drives one end-to-end run: route sources, then for each
// unseen message extract candidate events, deduplicate them against the
// destination calendar, materialize the new ones, and record the message's
// processing state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/inboxcal/inboxcal/internal/calendar"
	"github.com/inboxcal/inboxcal/internal/config"
	"github.com/inboxcal/inboxcal/internal/dedup"
	"github.com/inboxcal/inboxcal/internal/extract"
	"github.com/inboxcal/inboxcal/internal/mailbox"
	"github.com/inboxcal/inboxcal/internal/router"
	"github.com/inboxcal/inboxcal/internal/state"
)

// ErrNoDefaultCalendar aborts a run before any message is touched: rules
// without a calendar of their own have nowhere to put events, which is a
// configuration problem, not a per-message one.
var ErrNoDefaultCalendar = errors.New("default calendar not found")

// Extractor is the extraction client surface the pipeline depends on.
type Extractor interface {
	Extract(ctx context.Context, bodyText string, receivedAt time.Time) ([]extract.Event, error)
}

// Report summarizes one run.
type Report struct {
	RunID         string
	Messages      int
	EventsCreated int
	Duplicates    int
	NoEvents      int
	Errors        int
}

// Pipeline orchestrates a single run. Messages are processed strictly
// sequentially; the only suspension points are the network calls to the
// collaborators.
type Pipeline struct {
	cfg       *config.Config
	calendars calendar.Service
	extractor Extractor
	router    *router.Router
	dedup     *dedup.Engine
	machine   *state.Machine
	log       *slog.Logger
	loc       *time.Location
}

// New wires a pipeline from its collaborators.
func New(cfg *config.Config, mbox mailbox.Mailbox, calendars calendar.Service, extractor Extractor, log *slog.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if mbox == nil {
		return nil, fmt.Errorf("mailbox is required")
	}
	if calendars == nil {
		return nil, fmt.Errorf("calendar service is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if log == nil {
		log = slog.Default()
	}

	labels := state.LabelSet{Base: cfg.TrackingLabel}
	return &Pipeline{
		cfg:       cfg,
		calendars: calendars,
		extractor: extractor,
		router:    router.New(mbox, cfg, log),
		dedup:     dedup.New(log),
		machine:   state.NewMachine(mbox, labels, cfg.SkipDoneMarking, log),
		log:       log,
		loc:       defaultLocation(cfg.Timezone),
	}, nil
}

// Run executes one pass over the mailbox. It returns ErrNoDefaultCalendar
// (wrapped) if the default calendar cannot be resolved; every other failure
// is contained to the message that caused it.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	log := p.log.With("runID", report.RunID)

	defaultCal, err := p.calendars.FindByName(ctx, p.cfg.DefaultCalendar)
	if err != nil {
		if errors.Is(err, calendar.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrNoDefaultCalendar, p.cfg.DefaultCalendar)
		}
		return nil, fmt.Errorf("unable to resolve default calendar: %w", err)
	}

	items, err := p.router.Route(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("routing complete", "messages", len(items))

	for _, item := range items {
		report.Messages++
		dest, err := p.destinationCalendar(ctx, log, item, defaultCal)
		if err != nil {
			log.Error("unable to resolve destination calendar",
				"calendar", item.CalendarName,
				"messageURL", mailbox.MessageURL(item.Message.ID),
				"error", err)
			p.markError(ctx, log, item.Message.ThreadID)
			report.Errors++
			continue
		}
		p.processMessage(ctx, log, item, dest, report)
	}

	log.Info("run complete",
		"messages", report.Messages,
		"created", report.EventsCreated,
		"duplicates", report.Duplicates,
		"noEvents", report.NoEvents,
		"errors", report.Errors)
	return report, nil
}

// destinationCalendar resolves the calendar a routed item targets. A named
// calendar that does not exist yet is created on the fly; only the default
// calendar is required to pre-exist.
func (p *Pipeline) destinationCalendar(ctx context.Context, log *slog.Logger, item router.Item, defaultCal calendar.Calendar) (calendar.Calendar, error) {
	if item.CalendarName == "" {
		return defaultCal, nil
	}
	dest, err := p.calendars.FindByName(ctx, item.CalendarName)
	if errors.Is(err, calendar.ErrNotFound) {
		log.Info("destination calendar missing, creating it", "calendar", item.CalendarName)
		return p.calendars.Create(ctx, item.CalendarName)
	}
	return dest, err
}

func (p *Pipeline) processMessage(ctx context.Context, log *slog.Logger, item router.Item, dest calendar.Calendar, report *Report) {
	msg := item.Message
	msgURL := mailbox.MessageURL(msg.ID)
	log = log.With("messageURL", msgURL)
	log.Info("processing message", "subject", msg.Subject, "calendar", dest.Name())

	events, err := p.extractor.Extract(ctx, msg.Body, msg.ReceivedAt)
	if err != nil {
		// Transport and envelope failures are recovered locally: the message
		// proceeds as "no events found" rather than entering the error state.
		log.Warn("extraction failed, treating as no events", "error", err)
		events = nil
	}

	if len(events) == 0 {
		log.Info("no events extracted", "subject", msg.Subject)
		if err := p.machine.MarkNoEvents(ctx, msg.ThreadID); err != nil {
			log.Error("failed to mark message", "error", err)
			p.markError(ctx, log, msg.ThreadID)
			report.Errors++
			return
		}
		report.NoEvents++
		p.finish(ctx, log, msg.ThreadID, report)
		return
	}

	if err := p.machine.MarkEventsFound(ctx, msg.ThreadID); err != nil {
		log.Error("failed to mark message", "error", err)
		p.markError(ctx, log, msg.ThreadID)
		report.Errors++
		return
	}

	for _, ev := range events {
		created, duplicate, err := p.materialize(ctx, log, dest, item.Prefix, ev, msg, msgURL)
		if err != nil {
			// Per-message fatal: mark the error, clear the done gate, and
			// move on to the next message.
			log.Error("failed to materialize event",
				"eventName", ev.EventName,
				"startTime", ev.StartTime,
				"error", err)
			p.markError(ctx, log, msg.ThreadID)
			report.Errors++
			return
		}
		if duplicate {
			report.Duplicates++
		} else if created {
			report.EventsCreated++
		}
	}

	p.finish(ctx, log, msg.ThreadID, report)
}

// materialize turns one candidate event into a calendar entry unless an
// equivalent one already exists.
func (p *Pipeline) materialize(ctx context.Context, log *slog.Logger, dest calendar.Calendar, prefix string, ev extract.Event, msg mailbox.Message, msgURL string) (created, duplicate bool, err error) {
	start, err := parseEventTime(ev.StartTime, p.loc)
	if err != nil {
		return false, false, fmt.Errorf("invalid start time %q: %w", ev.StartTime, err)
	}
	end := start
	if ev.EndTime != "" {
		end, err = parseEventTime(ev.EndTime, p.loc)
		if err != nil {
			return false, false, fmt.Errorf("invalid end time %q: %w", ev.EndTime, err)
		}
	}

	allDay := dedup.InferAllDay(ev.FullDay, start, end)
	title := prefix + ev.EventName

	existing, err := dest.Events(ctx, start, end)
	if err != nil {
		return false, false, fmt.Errorf("unable to query existing events: %w", err)
	}
	if match, dup := p.dedup.FindDuplicate(title, start, existing); dup {
		log.Info("duplicate event found", "title", title, "existing", match.Title)
		return false, true, nil
	}

	if p.cfg.TestMode {
		log.Info("test mode, skipping event creation", "title", title)
		return false, false, nil
	}

	description := fmt.Sprintf("Extracted from email: %s\n%s", msgURL, msg.Body)
	if allDay {
		err = dest.CreateAllDayEvent(ctx, title, start, description)
	} else {
		err = dest.CreateEvent(ctx, title, start, end, description)
	}
	if err != nil {
		return false, false, fmt.Errorf("unable to create event %q: %w", title, err)
	}

	log.Info("calendar event created",
		"title", title,
		"start", ev.StartTime,
		"end", ev.EndTime,
		"allDay", allDay)
	return true, false, nil
}

func (p *Pipeline) finish(ctx context.Context, log *slog.Logger, threadID string, report *Report) {
	if err := p.machine.MarkDone(ctx, threadID); err != nil {
		log.Error("failed to mark message done", "error", err)
		p.markError(ctx, log, threadID)
		report.Errors++
	}
}

func (p *Pipeline) markError(ctx context.Context, log *slog.Logger, threadID string) {
	if err := p.machine.MarkError(ctx, threadID); err != nil {
		log.Error("failed to mark error state", "threadID", threadID, "error", err)
	}
}

// eventTimeLayouts are tried in order for service timestamps. The instruction
// asks for ISO 8601; zone-less values are interpreted in the default timezone.
var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseEventTime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range eventTimeLayouts {
		if layout == time.RFC3339 {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
			continue
		}
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format")
}

// defaultLocation maps the configured timezone abbreviation to a location.
// The service is told "PST", which is not a loadable zone name.
func defaultLocation(tz string) *time.Location {
	switch tz {
	case "", "PST", "PDT":
		if loc, err := time.LoadLocation("America/Los_Angeles"); err == nil {
			return loc
		}
	default:
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return time.UTC
}
