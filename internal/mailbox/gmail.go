package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const gmailUser = "me"

// GmailClient implements Mailbox on top of the Gmail API.
type GmailClient struct {
	srv *gmail.Service
	log *slog.Logger

	mu       sync.Mutex
	labelIDs map[string]string // label name -> label ID
}

// NewGmailClient creates a Gmail mailbox using the given authenticated HTTP
// client.
func NewGmailClient(ctx context.Context, httpClient *http.Client, log *slog.Logger) (*GmailClient, error) {
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &GmailClient{srv: srv, log: log, labelIDs: make(map[string]string)}, nil
}

// Search returns threads matching the query, each with its full messages in
// mailbox order.
func (c *GmailClient) Search(ctx context.Context, query string) ([]Thread, error) {
	var threads []Thread
	call := c.srv.Users.Threads.List(gmailUser).Q(query).Context(ctx)
	for {
		list, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("thread search %q failed: %w", query, err)
		}
		for _, stub := range list.Threads {
			full, err := c.srv.Users.Threads.Get(gmailUser, stub.Id).Format("full").Context(ctx).Do()
			if err != nil {
				return nil, fmt.Errorf("unable to fetch thread %s: %w", stub.Id, err)
			}
			thread := Thread{ID: full.Id}
			for _, msg := range full.Messages {
				thread.Messages = append(thread.Messages, messageFromAPI(msg))
			}
			threads = append(threads, thread)
		}
		if list.NextPageToken == "" {
			return threads, nil
		}
		call = c.srv.Users.Threads.List(gmailUser).Q(query).PageToken(list.NextPageToken).Context(ctx)
	}
}

// AddLabel attaches a marker label to a thread, creating the label first if
// it does not exist yet.
func (c *GmailClient) AddLabel(ctx context.Context, threadID, name string) error {
	id, err := c.labelID(ctx, name)
	if err != nil {
		return err
	}
	_, err = c.srv.Users.Threads.Modify(gmailUser, threadID, &gmail.ModifyThreadRequest{
		AddLabelIds: []string{id},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to add label %q to thread %s: %w", name, threadID, err)
	}
	return nil
}

// RemoveLabel detaches a marker label from a thread. Removing a label the
// thread does not carry is not an error.
func (c *GmailClient) RemoveLabel(ctx context.Context, threadID, name string) error {
	id, err := c.labelID(ctx, name)
	if err != nil {
		return err
	}
	_, err = c.srv.Users.Threads.Modify(gmailUser, threadID, &gmail.ModifyThreadRequest{
		RemoveLabelIds: []string{id},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to remove label %q from thread %s: %w", name, threadID, err)
	}
	return nil
}

// labelID resolves a label name to its ID, creating the label if needed.
// Results are cached for the life of the client.
func (c *GmailClient) labelID(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.labelIDs[name]; ok {
		return id, nil
	}

	list, err := c.srv.Users.Labels.List(gmailUser).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to list labels: %w", err)
	}
	for _, label := range list.Labels {
		if label.Name == name {
			c.labelIDs[name] = label.Id
			return label.Id, nil
		}
	}

	created, err := c.srv.Users.Labels.Create(gmailUser, &gmail.Label{Name: name}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create label %q: %w", name, err)
	}
	c.log.Info("created label", "name", name)
	c.labelIDs[name] = created.Id
	return created.Id, nil
}

func messageFromAPI(msg *gmail.Message) Message {
	m := Message{
		ID:         msg.Id,
		ThreadID:   msg.ThreadId,
		ReceivedAt: time.UnixMilli(msg.InternalDate),
	}
	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			if header.Name == "Subject" {
				m.Subject = header.Value
				break
			}
		}
		m.Body = plainTextBody(msg.Payload)
	}
	return m
}

// plainTextBody walks the MIME tree for the first text part.
func plainTextBody(payload *gmail.MessagePart) string {
	if payload.MimeType == "text/plain" && payload.Body != nil && payload.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(payload.Body.Data)
		if err == nil {
			return string(data)
		}
	}
	for _, part := range payload.Parts {
		if strings.HasPrefix(strings.ToLower(part.MimeType), "text/") ||
			strings.HasPrefix(strings.ToLower(part.MimeType), "multipart/") {
			if body := plainTextBody(part); body != "" {
				return body
			}
		}
	}
	return ""
}
