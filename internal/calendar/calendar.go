// Package calendar defines the calendar collaborator used by the pipeline and
// its Google Calendar implementation.
//
// The pipeline creates events but never mutates or deletes existing ones, so
// the interface is deliberately append-and-read only.
package calendar

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by FindByName when no calendar has the given name.
var ErrNotFound = errors.New("calendar not found")

// Event is an existing entry on a calendar, read for duplicate detection.
type Event struct {
	Title  string
	Start  time.Time
	End    time.Time
	AllDay bool
}

// Service resolves and creates calendars by name.
type Service interface {
	// FindByName returns the calendar with the given name, or ErrNotFound.
	FindByName(ctx context.Context, name string) (Calendar, error)

	// Create creates a new calendar with the given name.
	Create(ctx context.Context, name string) (Calendar, error)
}

// Calendar is a single destination calendar.
type Calendar interface {
	// Name returns the calendar's display name.
	Name() string

	// Events returns existing events overlapping [start, end].
	Events(ctx context.Context, start, end time.Time) ([]Event, error)

	// CreateEvent creates a timed event.
	CreateEvent(ctx context.Context, title string, start, end time.Time, description string) error

	// CreateAllDayEvent creates an all-day event on the given date.
	CreateAllDayEvent(ctx context.Context, title string, date time.Time, description string) error
}
