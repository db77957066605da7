package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Code fence patterns, pre-compiled. The service is instructed to return pure
// JSON but still wraps it in markdown fences occasionally.
var (
	codeFenceRegex = regexp.MustCompile("(?s)^`{3}(?:json)?\\s*\n?([\\s\\S]*?)\n?`{3}\\s*$")
	arrayRegex     = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// parseContent turns the service's content blob into validated events.
// Parse failures are recovered to an empty slice with a diagnostic; they must
// never abort the run. Individual malformed elements are dropped, not fatal
// to the batch.
func (c *Client) parseContent(content string) []Event {
	text := stripFormatting(content)
	if text == "" {
		c.log.Warn("extraction response content is empty")
		return []Event{}
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(text), &elements); err != nil {
		// One more chance: the array may be embedded in prose.
		if match := arrayRegex.FindString(text); match != "" {
			if retryErr := json.Unmarshal([]byte(match), &elements); retryErr == nil {
				return c.validateElements(elements)
			}
		}
		c.log.Warn("extraction response is not valid JSON",
			"error", err,
			"contentPreview", truncate(text, 200))
		return []Event{}
	}

	return c.validateElements(elements)
}

// validateElements promotes raw array elements to Events, dropping elements
// that fail to decode or are missing required fields.
func (c *Client) validateElements(elements []json.RawMessage) []Event {
	events := make([]Event, 0, len(elements))
	for i, raw := range elements {
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.log.Warn("dropping malformed extraction element",
				"index", i,
				"error", err)
			continue
		}
		if ev.EventName == "" || ev.StartTime == "" {
			c.log.Warn("dropping extraction element with missing required fields",
				"index", i,
				"eventName", ev.EventName,
				"startTime", ev.StartTime)
			continue
		}
		events = append(events, ev)
	}
	return events
}

// stripFormatting removes the markdown wrapping the service sometimes adds
// despite being told not to.
func stripFormatting(content string) string {
	text := strings.TrimSpace(content)
	if cleaned := codeFenceRegex.ReplaceAllString(text, "$1"); cleaned != text {
		text = strings.TrimSpace(cleaned)
	}
	if strings.HasPrefix(text, "`") && strings.HasSuffix(text, "`") {
		text = strings.TrimSpace(strings.Trim(text, "`"))
	}
	return text
}
