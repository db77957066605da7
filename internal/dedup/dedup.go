// Package dedup decides whether a proposed calendar event already exists.
//
// A candidate is a duplicate only when both checks agree: the titles are
// similar above a tuned threshold AND the start instants match exactly.
// Similarity alone is too permissive (title collisions across unrelated
// events); exact start equality alone is too strict (the extraction service
// paraphrases titles).
package dedup

import (
	"log/slog"
	"time"

	"github.com/inboxcal/inboxcal/internal/calendar"
	"github.com/inboxcal/inboxcal/internal/similarity"
)

// DefaultThreshold is the similarity score above which two titles are
// considered the same event. Tuned against the similarity package's exact
// metric; change one and you must re-tune the other.
const DefaultThreshold = 0.8

// Engine matches candidate events against a window of existing entries.
type Engine struct {
	threshold float64
	log       *slog.Logger
}

// New creates an engine with the default threshold.
func New(log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{threshold: DefaultThreshold, log: log}
}

// FindDuplicate returns the first existing event that duplicates the
// candidate, if any. The candidate title must already include its source
// prefix, since that is how it would appear on the calendar.
func (e *Engine) FindDuplicate(title string, start time.Time, existing []calendar.Event) (calendar.Event, bool) {
	want := start.Truncate(time.Second)
	for _, ev := range existing {
		score := similarity.Score(ev.Title, title)
		if score > e.threshold && ev.Start.Truncate(time.Second).Equal(want) {
			e.log.Debug("duplicate event found",
				"candidate", title,
				"existing", ev.Title,
				"similarity", score)
			return ev, true
		}
	}
	return calendar.Event{}, false
}

// InferAllDay reports whether a candidate should materialize as an all-day
// event. The 20-hour duration heuristic absorbs services that return an
// all-day event as an explicit 00:00-23:59 span without setting the flag.
func InferAllDay(fullDay bool, start, end time.Time) bool {
	return fullDay || end.Sub(start) >= 20*time.Hour
}
