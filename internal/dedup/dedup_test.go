package dedup

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/inboxcal/inboxcal/internal/calendar"
)

func quietEngine() *Engine {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", s, err)
	}
	return ts
}

func TestFindDuplicate_SimilarTitleSameStart(t *testing.T) {
	e := quietEngine()
	start := mustParse(t, "2024-10-05T09:00:00-08:00")
	existing := []calendar.Event{
		{Title: "[HRS] Fall Festival", Start: start, End: start.Add(2 * time.Hour)},
	}

	if _, dup := e.FindDuplicate("[HRS] Fall Festival", start, existing); !dup {
		t.Error("expected duplicate for identical title and start")
	}
}

func TestFindDuplicate_DifferentStartIsNotDuplicate(t *testing.T) {
	e := quietEngine()
	existingStart := mustParse(t, "2024-10-05T09:00:00-08:00")
	existing := []calendar.Event{
		{Title: "[HRS] Fall Festival", Start: existingStart},
	}

	candidateStart := mustParse(t, "2024-10-05T10:00:00-08:00")
	if _, dup := e.FindDuplicate("[HRS] Fall Festival", candidateStart, existing); dup {
		t.Error("same title at a different start instant must not be a duplicate")
	}
}

func TestFindDuplicate_DissimilarTitleSameStartIsNotDuplicate(t *testing.T) {
	e := quietEngine()
	start := mustParse(t, "2024-10-05T09:00:00-08:00")
	existing := []calendar.Event{
		{Title: "Dentist appointment", Start: start},
	}

	if _, dup := e.FindDuplicate("[HRS] Fall Festival", start, existing); dup {
		t.Error("unrelated title at the same instant must not be a duplicate")
	}
}

func TestFindDuplicate_ParaphrasedTitle(t *testing.T) {
	e := quietEngine()
	start := mustParse(t, "2024-10-05T09:00:00-08:00")
	existing := []calendar.Event{
		{Title: "[HRS] Fall Festival", Start: start},
	}

	// The service paraphrases slightly; similarity must absorb it.
	if _, dup := e.FindDuplicate("[HRS] Fall Festival!", start, existing); !dup {
		t.Error("lightly paraphrased title at the same start should be a duplicate")
	}
}

func TestFindDuplicate_SubSecondDifferenceStillMatches(t *testing.T) {
	e := quietEngine()
	start := mustParse(t, "2024-10-05T09:00:00-08:00")
	existing := []calendar.Event{
		{Title: "[HRS] Fall Festival", Start: start.Add(300 * time.Millisecond)},
	}

	if _, dup := e.FindDuplicate("[HRS] Fall Festival", start, existing); !dup {
		t.Error("start equality is defined to the second")
	}
}

func TestFindDuplicate_FirstMatchWins(t *testing.T) {
	e := quietEngine()
	start := mustParse(t, "2024-10-05T09:00:00-08:00")
	existing := []calendar.Event{
		{Title: "[HRS] Fall Festival", Start: start},
		{Title: "[HRS] Fall Festival ", Start: start},
	}

	match, dup := e.FindDuplicate("[HRS] Fall Festival", start, existing)
	if !dup {
		t.Fatal("expected a duplicate")
	}
	if match.Title != "[HRS] Fall Festival" {
		t.Errorf("matched %q, want the first matching event", match.Title)
	}
}

func TestFindDuplicate_EmptyWindow(t *testing.T) {
	e := quietEngine()
	start := mustParse(t, "2024-10-05T09:00:00-08:00")
	if _, dup := e.FindDuplicate("[HRS] Fall Festival", start, nil); dup {
		t.Error("no existing events means no duplicate")
	}
}

func TestInferAllDay(t *testing.T) {
	tests := []struct {
		name  string
		full  bool
		start string
		end   string
		want  bool
	}{
		{"explicit flag", true, "2024-06-01T09:00:00Z", "2024-06-01T10:00:00Z", true},
		{"23h59m span without flag", false, "2024-06-01T00:00:00Z", "2024-06-01T23:59:00Z", true},
		{"exactly 20 hours", false, "2024-06-01T00:00:00Z", "2024-06-01T20:00:00Z", true},
		{"short meeting", false, "2024-06-01T00:00:00Z", "2024-06-01T10:00:00Z", false},
		{"two hour event", false, "2024-06-01T09:00:00Z", "2024-06-01T11:00:00Z", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, _ := time.Parse(time.RFC3339, tt.start)
			end, _ := time.Parse(time.RFC3339, tt.end)
			if got := InferAllDay(tt.full, start, end); got != tt.want {
				t.Errorf("InferAllDay(%v, %s, %s) = %v, want %v", tt.full, tt.start, tt.end, got, tt.want)
			}
		})
	}
}
