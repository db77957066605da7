// Package mailbox defines the mailbox collaborator used by the source router
// and the Gmail implementation behind it.
package mailbox

import (
	"context"
	"time"
)

// Message is a single mail message. Read-only to the pipeline; identity is ID.
type Message struct {
	ID         string
	ThreadID   string
	Subject    string
	Body       string
	ReceivedAt time.Time
}

// Thread is an ordered conversation; the first message is its representative.
type Thread struct {
	ID       string
	Messages []Message
}

// Searcher finds threads matching a query expression. The expression language
// is the mailbox's own: boolean combinations of from:, list:, label:, -label:,
// after:, and bare text tokens, grouped with {} for OR.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Thread, error)
}

// Labeler manages the marker labels attached to threads. AddLabel creates the
// label on first use.
type Labeler interface {
	AddLabel(ctx context.Context, threadID, name string) error
	RemoveLabel(ctx context.Context, threadID, name string) error
}

// Mailbox combines search and marker operations.
type Mailbox interface {
	Searcher
	Labeler
}

// MessageURL returns the web URL for a message, used in event descriptions
// and error diagnostics.
func MessageURL(id string) string {
	return "https://mail.google.com/mail/u/0/#inbox/" + id
}
