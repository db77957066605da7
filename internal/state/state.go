// Package state tracks per-message processing status through idempotent
// marker labels on the message's thread.
//
// State flow:
//   - Unprocessed → {EventsFound, NoEvents} → Done
//   - Error is reachable from any in-flight attempt and clears Done so the
//     message is retried on a later run (deliberate retry-on-error policy).
//
// Markers are additive: a thread can carry several at once. Only the Done
// marker has query-visible effect; the source router's queries exclude it.
package state

import (
	"context"
	"fmt"
	"log/slog"
)

// State is a message's processing status.
type State int

const (
	Unprocessed State = iota
	EventsFound
	NoEvents
	Done
	Error
)

func (s State) String() string {
	switch s {
	case Unprocessed:
		return "unprocessed"
	case EventsFound:
		return "events_found"
	case NoEvents:
		return "no_event"
	case Done:
		return "done"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// LabelSet derives the marker label names from a base tracking label.
type LabelSet struct {
	Base string
}

// Tracking is the routing label itself, used by the catch-all source rule.
func (l LabelSet) Tracking() string { return l.Base }

// For returns the marker label recording the given state. Unprocessed has no
// marker; it is the absence of all others.
func (l LabelSet) For(s State) string {
	switch s {
	case EventsFound:
		return l.Base + "_events_found"
	case NoEvents:
		return l.Base + "_no_event"
	case Done:
		return l.Base + "_done"
	case Error:
		return l.Base + "_error"
	default:
		return ""
	}
}

// MarkerStore is the adapter over whatever marker mechanism the mailbox
// offers. The transition rules are independent of the storage behind it.
// mailbox.Labeler satisfies this interface.
type MarkerStore interface {
	AddLabel(ctx context.Context, threadID, name string) error
	RemoveLabel(ctx context.Context, threadID, name string) error
}

// Machine applies the transition rules to a marker store.
type Machine struct {
	store    MarkerStore
	labels   LabelSet
	skipDone bool
	log      *slog.Logger
}

// NewMachine creates a state machine over the given marker store. When
// skipDone is set the terminal Done marker is never written, so messages stay
// eligible for re-selection.
func NewMachine(store MarkerStore, labels LabelSet, skipDone bool, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{store: store, labels: labels, skipDone: skipDone, log: log}
}

// MarkEventsFound records that extraction produced at least one event.
func (m *Machine) MarkEventsFound(ctx context.Context, threadID string) error {
	return m.add(ctx, threadID, EventsFound)
}

// MarkNoEvents records that extraction legitimately found nothing.
func (m *Machine) MarkNoEvents(ctx context.Context, threadID string) error {
	return m.add(ctx, threadID, NoEvents)
}

// MarkDone writes the idempotency gate that excludes the message from future
// runs. A no-op when the machine was built with skipDone.
func (m *Machine) MarkDone(ctx context.Context, threadID string) error {
	if m.skipDone {
		m.log.Debug("skipping done marker", "threadID", threadID)
		return nil
	}
	return m.add(ctx, threadID, Done)
}

// MarkError records a failed processing attempt. The Done marker is removed
// so the message is retried on the next run instead of sticking.
func (m *Machine) MarkError(ctx context.Context, threadID string) error {
	if err := m.add(ctx, threadID, Error); err != nil {
		return err
	}
	if err := m.store.RemoveLabel(ctx, threadID, m.labels.For(Done)); err != nil {
		return fmt.Errorf("failed to clear done marker on %s: %w", threadID, err)
	}
	m.log.Info("state transition", "threadID", threadID, "state", Error.String())
	return nil
}

func (m *Machine) add(ctx context.Context, threadID string, s State) error {
	if err := m.store.AddLabel(ctx, threadID, m.labels.For(s)); err != nil {
		return fmt.Errorf("failed to mark %s on %s: %w", s, threadID, err)
	}
	m.log.Debug("state transition", "threadID", threadID, "state", s.String())
	return nil
}
