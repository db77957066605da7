// Package router evaluates the configured source rules against the mailbox
// and produces the set of messages eligible for processing this run.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/inboxcal/inboxcal/internal/config"
	"github.com/inboxcal/inboxcal/internal/mailbox"
	"github.com/inboxcal/inboxcal/internal/state"
)

// Item is one eligible message with its routing decisions attached. An empty
// CalendarName means the default calendar; resolving (or creating) the named
// calendar is the orchestrator's policy decision, not the router's.
type Item struct {
	Message      mailbox.Message
	Prefix       string
	CalendarName string
}

// Router turns source rules into mailbox queries and gathers matches.
type Router struct {
	mbox         mailbox.Searcher
	rules        []config.SourceRule
	labels       state.LabelSet
	lookbackDays int
	testMode     bool
	log          *slog.Logger
	now          func() time.Time
}

// New creates a router over the given mailbox.
func New(mbox mailbox.Searcher, cfg *config.Config, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		mbox:         mbox,
		rules:        cfg.Sources,
		labels:       state.LabelSet{Base: cfg.TrackingLabel},
		lookbackDays: cfg.LookbackDays,
		testMode:     cfg.TestMode,
		log:          log,
		now:          time.Now,
	}
}

// Route evaluates the rules in configured order. Each thread contributes its
// first message only; a message id already enqueued under an earlier rule is
// suppressed, so the first matching rule wins the prefix and calendar
// assignment.
func (r *Router) Route(ctx context.Context) ([]Item, error) {
	seen := make(map[string]bool)
	var items []Item

	for _, q := range r.Queries() {
		r.log.Info("searching mailbox", "query", q.Expr)
		threads, err := r.mbox.Search(ctx, q.Expr)
		if err != nil {
			return nil, fmt.Errorf("search failed for %q: %w", q.Expr, err)
		}
		for _, thread := range threads {
			if len(thread.Messages) == 0 {
				continue
			}
			msg := thread.Messages[0]
			if seen[msg.ID] {
				r.log.Debug("message already enqueued under an earlier rule", "messageID", msg.ID)
				continue
			}
			seen[msg.ID] = true
			items = append(items, Item{
				Message:      msg,
				Prefix:       q.Prefix,
				CalendarName: q.Calendar,
			})
		}
	}

	return items, nil
}

// SourceQuery is one materialized search expression with the routing
// decisions that apply to its matches.
type SourceQuery struct {
	Expr     string
	Prefix   string
	Calendar string
}

// Queries builds the per-rule search expressions. Configured rules are
// time-bounded by the lookback horizon and exclude threads already marked
// done; the trailing catch-all selects by the tracking label itself and
// carries no time bound, since its done-marker exclusion is the whole point.
// Test mode collapses everything to a single label query so processed
// messages stay selectable.
func (r *Router) Queries() []SourceQuery {
	done := r.labels.For(state.Done)

	if r.testMode {
		return []SourceQuery{{Expr: "label:" + r.labels.Tracking()}}
	}

	after := r.now().AddDate(0, 0, -r.lookbackDays).Format("2006/01/02")

	out := make([]SourceQuery, 0, len(r.rules)+1)
	for _, rule := range r.rules {
		out = append(out, SourceQuery{
			Expr:     fmt.Sprintf("%s after:%s -label:%s", rule.Match, after, done),
			Prefix:   rule.Prefix,
			Calendar: rule.Calendar,
		})
	}
	out = append(out, SourceQuery{
		Expr: fmt.Sprintf("label:%s -label:%s", r.labels.Tracking(), done),
	})
	return out
}
