package state

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

// fakeStore records markers per thread in memory.
type fakeStore struct {
	markers map[string]map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{markers: make(map[string]map[string]bool)}
}

func (f *fakeStore) AddLabel(_ context.Context, threadID, name string) error {
	if f.markers[threadID] == nil {
		f.markers[threadID] = make(map[string]bool)
	}
	f.markers[threadID][name] = true
	return nil
}

func (f *fakeStore) RemoveLabel(_ context.Context, threadID, name string) error {
	delete(f.markers[threadID], name)
	return nil
}

func (f *fakeStore) has(threadID, name string) bool {
	return f.markers[threadID][name]
}

var testLabels = LabelSet{Base: "ScheduleIt"}

func quietMachine(store MarkerStore, skipDone bool) *Machine {
	return NewMachine(store, testLabels, skipDone, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLabelSet(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{EventsFound, "ScheduleIt_events_found"},
		{NoEvents, "ScheduleIt_no_event"},
		{Done, "ScheduleIt_done"},
		{Error, "ScheduleIt_error"},
		{Unprocessed, ""},
	}
	for _, tt := range tests {
		if got := testLabels.For(tt.state); got != tt.want {
			t.Errorf("For(%s) = %q, want %q", tt.state, got, tt.want)
		}
	}
	if got := testLabels.Tracking(); got != "ScheduleIt" {
		t.Errorf("Tracking() = %q, want ScheduleIt", got)
	}
}

func TestMarkEventsFoundThenDone(t *testing.T) {
	store := newFakeStore()
	m := quietMachine(store, false)
	ctx := context.Background()

	if err := m.MarkEventsFound(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	if err := m.MarkDone(ctx, "t1"); err != nil {
		t.Fatal(err)
	}

	// Markers are additive: both survive together.
	if !store.has("t1", "ScheduleIt_events_found") {
		t.Error("events_found marker missing")
	}
	if !store.has("t1", "ScheduleIt_done") {
		t.Error("done marker missing")
	}
}

func TestMarkNoEventsThenDone(t *testing.T) {
	store := newFakeStore()
	m := quietMachine(store, false)
	ctx := context.Background()

	if err := m.MarkNoEvents(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	if err := m.MarkDone(ctx, "t1"); err != nil {
		t.Fatal(err)
	}

	if !store.has("t1", "ScheduleIt_no_event") {
		t.Error("no_event marker missing")
	}
	if !store.has("t1", "ScheduleIt_done") {
		t.Error("done marker missing")
	}
}

func TestSkipDoneMarking(t *testing.T) {
	store := newFakeStore()
	m := quietMachine(store, true)

	if err := m.MarkDone(context.Background(), "t1"); err != nil {
		t.Fatal(err)
	}
	if store.has("t1", "ScheduleIt_done") {
		t.Error("done marker must not be written when skipDone is set")
	}
}

func TestMarkErrorClearsDone(t *testing.T) {
	store := newFakeStore()
	m := quietMachine(store, false)
	ctx := context.Background()

	// A prior attempt already marked the message done.
	if err := m.MarkDone(ctx, "t1"); err != nil {
		t.Fatal(err)
	}

	if err := m.MarkError(ctx, "t1"); err != nil {
		t.Fatal(err)
	}

	if !store.has("t1", "ScheduleIt_error") {
		t.Error("error marker missing")
	}
	if store.has("t1", "ScheduleIt_done") {
		t.Error("done marker must be cleared on error so the message is retried")
	}
}

func TestMarkErrorWithoutPriorDone(t *testing.T) {
	store := newFakeStore()
	m := quietMachine(store, false)

	if err := m.MarkError(context.Background(), "t1"); err != nil {
		t.Fatal(err)
	}
	if !store.has("t1", "ScheduleIt_error") {
		t.Error("error marker missing")
	}
}
