package router

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/inboxcal/inboxcal/internal/config"
	"github.com/inboxcal/inboxcal/internal/mailbox"
)

// fakeMailbox returns canned threads per query and records the queries it saw.
type fakeMailbox struct {
	results map[string][]mailbox.Thread
	queries []string
}

func (f *fakeMailbox) Search(_ context.Context, query string) ([]mailbox.Thread, error) {
	f.queries = append(f.queries, query)
	for expr, threads := range f.results {
		if strings.HasPrefix(query, expr) || query == expr {
			return threads, nil
		}
	}
	return nil, nil
}

func thread(id string, msgIDs ...string) mailbox.Thread {
	t := mailbox.Thread{ID: id}
	for _, m := range msgIDs {
		t.Messages = append(t.Messages, mailbox.Message{ID: m, ThreadID: id})
	}
	return t
}

func testConfig(rules ...config.SourceRule) *config.Config {
	cfg := config.Default()
	cfg.Sources = rules
	return cfg
}

func quietRouter(mbox mailbox.Searcher, cfg *config.Config) *Router {
	r := New(mbox, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.now = func() time.Time { return time.Date(2024, 10, 10, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestQueries_TimeBoundAndDoneExclusion(t *testing.T) {
	cfg := testConfig(config.SourceRule{Match: "from:school.example.org", Prefix: "[S] ", Calendar: "School"})
	r := quietRouter(&fakeMailbox{}, cfg)

	queries := r.Queries()
	if len(queries) != 2 {
		t.Fatalf("got %d queries, want rule + catch-all", len(queries))
	}

	// 35-day default lookback from the fixed clock.
	want := "from:school.example.org after:2024/09/05 -label:ScheduleIt_done"
	if queries[0].Expr != want {
		t.Errorf("rule query = %q, want %q", queries[0].Expr, want)
	}

	// The catch-all is label-based and carries no time bound.
	catchAll := queries[1].Expr
	if catchAll != "label:ScheduleIt -label:ScheduleIt_done" {
		t.Errorf("catch-all query = %q", catchAll)
	}
	if queries[1].Calendar != "" {
		t.Errorf("catch-all must target the default calendar, got %q", queries[1].Calendar)
	}
}

func TestQueries_TestMode(t *testing.T) {
	cfg := testConfig(config.SourceRule{Match: "from:a@b.c"})
	cfg.TestMode = true
	r := quietRouter(&fakeMailbox{}, cfg)

	queries := r.Queries()
	if len(queries) != 1 {
		t.Fatalf("test mode should collapse to one query, got %d", len(queries))
	}
	if queries[0].Expr != "label:ScheduleIt" {
		t.Errorf("test-mode query = %q, want label:ScheduleIt", queries[0].Expr)
	}
}

func TestRoute_FirstMessageIsRepresentative(t *testing.T) {
	mbox := &fakeMailbox{results: map[string][]mailbox.Thread{
		"from:a@b.c": {thread("t1", "m1", "m2", "m3")},
	}}
	r := quietRouter(mbox, testConfig(config.SourceRule{Match: "from:a@b.c", Prefix: "[A] "}))

	items, err := r.Route(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Message.ID != "m1" {
		t.Errorf("representative message = %s, want the thread's first message m1", items[0].Message.ID)
	}
}

func TestRoute_CrossRuleIdentityDedup(t *testing.T) {
	// Both rules match the same message; the first rule must win the
	// prefix and calendar assignment.
	mbox := &fakeMailbox{results: map[string][]mailbox.Thread{
		"from:a@b.c": {thread("t1", "m1")},
		"list:x@y.z": {thread("t1", "m1"), thread("t2", "m2")},
	}}
	r := quietRouter(mbox, testConfig(
		config.SourceRule{Match: "from:a@b.c", Prefix: "[first] ", Calendar: "First"},
		config.SourceRule{Match: "list:x@y.z", Prefix: "[second] ", Calendar: "Second"},
	))

	items, err := r.Route(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (m1 deduplicated)", len(items))
	}
	if items[0].Message.ID != "m1" || items[0].Prefix != "[first] " {
		t.Errorf("m1 should keep the first rule's assignment, got prefix %q", items[0].Prefix)
	}
	if items[1].Message.ID != "m2" || items[1].Prefix != "[second] " {
		t.Errorf("m2 should carry the second rule's assignment, got %q/%q",
			items[1].Message.ID, items[1].Prefix)
	}
}

func TestRoute_RuleOrderPreserved(t *testing.T) {
	mbox := &fakeMailbox{results: map[string][]mailbox.Thread{
		"from:a@b.c": {thread("t1", "m1")},
		"from:c@d.e": {thread("t2", "m2")},
	}}
	r := quietRouter(mbox, testConfig(
		config.SourceRule{Match: "from:a@b.c"},
		config.SourceRule{Match: "from:c@d.e"},
	))

	items, err := r.Route(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].Message.ID != "m1" || items[1].Message.ID != "m2" {
		t.Errorf("items out of configured rule order: %+v", items)
	}
}

func TestRoute_EmptyThreadsSkipped(t *testing.T) {
	mbox := &fakeMailbox{results: map[string][]mailbox.Thread{
		"from:a@b.c": {{ID: "t1"}},
	}}
	r := quietRouter(mbox, testConfig(config.SourceRule{Match: "from:a@b.c"}))

	items, err := r.Route(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("threads without messages must be skipped, got %d items", len(items))
	}
}
