// Package extract implements the client for the event extraction service.
//
// The service is a chat-completion API treated as a black box: it only obeys
// what the system instruction tells it, so the instruction pins the response
// schema, the missing-year policy, the default timezone, and the empty-array
// convention for "no events". Transport and envelope failures surface as
// *ExtractionError; a content payload that fails to parse is recovered to an
// empty result with a diagnostic so one bad message cannot abort a run.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the chat-completion endpoint of the extraction service.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is the extraction model used when none is configured.
	DefaultModel = "gpt-4o"
)

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

// Event is a single calendar event as returned by the extraction service.
// Times are the service's raw ISO 8601 strings; interpreting them into
// instants happens at materialization time, where a failure routes the
// message to the error state rather than silently dropping the event.
type Event struct {
	EventName string `json:"eventName"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	FullDay   bool   `json:"fullDay"`
}

// ExtractionError indicates a transport failure or an unusable response
// envelope. It is distinct from a content parse failure, which the client
// recovers to an empty result.
type ExtractionError struct {
	Op  string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction %s: %v", e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Config holds extraction client configuration.
type Config struct {
	APIKey   string
	BaseURL  string        // defaults to DefaultBaseURL
	Model    string        // defaults to DefaultModel
	Timezone string        // default timezone named in the instruction (default: PST)
	Retry    RetryConfig   // retry configuration (defaults if zero)
	RPS      rate.Limit    // request rate toward the service (default: 1/s)
	Logger   *slog.Logger  // defaults to slog.Default()
	Client   *http.Client  // defaults to a client with the retry timeout
}

// Client calls the extraction service and validates its structured output.
type Client struct {
	apiKey         string
	baseURL        string
	model          string
	timezone       string
	retry          RetryConfig
	circuitBreaker *CircuitBreaker
	callSem        *semaphore.Weighted
	limiter        *rate.Limiter
	httpClient     *http.Client
	log            *slog.Logger
	now            func() time.Time // overridable for tests
}

// NewClient creates an extraction client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("extraction API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "PST"
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}
	if cfg.RPS == 0 {
		cfg.RPS = rate.Limit(1)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: retry.Timeout}
	}

	var cb *CircuitBreaker
	if retry.CircuitBreakerEnabled {
		cb = NewCircuitBreaker(retry.FailureThreshold, retry.SuccessThreshold, retry.OpenTimeout)
	}

	var sem *semaphore.Weighted
	if retry.MaxConcurrentCalls > 0 {
		sem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}

	return &Client{
		apiKey:         cfg.APIKey,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		model:          cfg.Model,
		timezone:       cfg.Timezone,
		retry:          retry,
		circuitBreaker: cb,
		callSem:        sem,
		limiter:        rate.NewLimiter(cfg.RPS, 1),
		httpClient:     httpClient,
		log:            log,
		now:            time.Now,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Extract asks the service for calendar events in bodyText. URLs are stripped
// from the body before sending. A legitimate "no events" answer is an empty
// slice with a nil error; transport and envelope failures return an
// *ExtractionError; a content payload that is not valid JSON is recovered to
// an empty slice with a logged diagnostic.
func (c *Client) Extract(ctx context.Context, bodyText string, receivedAt time.Time) ([]Event, error) {
	content := urlRegex.ReplaceAllString(bodyText, "")

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: c.systemInstruction(receivedAt)},
			{Role: "user", Content: fmt.Sprintf("Message received on date: %s\n%s", receivedAt.Format(time.RFC1123Z), content)},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ExtractionError{Op: "request encode", Err: err}
	}

	var raw []byte
	err = c.retryWithBackoff(ctx, "chat completion", func(ctx context.Context) error {
		var postErr error
		raw, postErr = c.post(ctx, payload)
		return postErr
	})
	if err != nil {
		return nil, &ExtractionError{Op: "transport", Err: err}
	}

	var envelope chatResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &ExtractionError{Op: "envelope decode", Err: err}
	}
	if len(envelope.Choices) == 0 {
		return nil, &ExtractionError{Op: "envelope decode", Err: fmt.Errorf("response has no choices")}
	}

	return c.parseContent(envelope.Choices[0].Message.Content), nil
}

func (c *Client) post(ctx context.Context, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{Code: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

// systemInstruction builds the contract prompt for the extraction service.
// Every rule in here is load-bearing: field names, the missing-year policy,
// the timezone default, and the empty-array convention.
func (c *Client) systemInstruction(receivedAt time.Time) string {
	return fmt.Sprintf(`Please extract any calendar events including date, time, and event name from the following email
and return the full set of data as a JSON array without duplicates, and do not truncate.
Use startTime, endTime, eventName, fullDay as the required field names for the JSON.

If a year is not given, deduce the event year from the year the email was received (%d),
and if that is not obvious, use the current year (%d).
Use ISO 8601 time format for start time, assuming %s as the default timezone.
If no time is given, assume it is a full day event.
fullDay should be a boolean value.

If no events are found, return an empty JSON array.

Please return a pure JSON string without any formatting or tags.`,
		receivedAt.Year(), c.now().Year(), c.timezone)
}

type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("extraction service returned status %d: %s", e.Code, e.Body)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
