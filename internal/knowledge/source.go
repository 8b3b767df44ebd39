package knowledge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Entry is one knowledge entry from an external source, not yet embedded.
// Index is the 1-based position of the entry in its source; 0 means unknown.
type Entry struct {
	Index int
	ID    string
	Topic string
	Text  string
}

// Record is a parsed knowledge source: an optional user profile plus the
// knowledge entries to ingest.
type Record struct {
	UserID  string
	Profile *Profile
	Entries []Entry
}

// sourceEntry accepts the entry shapes seen in per-user record files:
// content under "content", "text", or "message"; topic under "topic" or
// "context".
type sourceEntry struct {
	ID      flexID `json:"id"`
	Content string `json:"content"`
	Text    string `json:"text"`
	Message string `json:"message"`
	Topic   string `json:"topic"`
	Context string `json:"context"`
}

// sourceRecord is the per-user record file shape: profile fields plus a
// message collection under either "messages" or "message_examples".
type sourceRecord struct {
	UserID             flexID            `json:"user_id"`
	Name               string            `json:"name"`
	Personality        string            `json:"personality"`
	Background         string            `json:"background"`
	Expertise          []string          `json:"expertise"`
	CommunicationStyle string            `json:"communication_style"`
	Preferences        map[string]any    `json:"preferences"`
	Messages           []json.RawMessage `json:"messages"`
	MessageExamples    []json.RawMessage `json:"message_examples"`
}

// flexID tolerates identifiers that appear as either JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexID(n.String())
		return nil
	}

	return fmt.Errorf("id must be a string or number, got %s", data)
}

// ParseSource parses a knowledge source document. Two shapes are accepted:
// a bare JSON array of entries, or a per-user record object carrying profile
// fields and a message collection.
//
// Malformed individual entries are skipped and reported as failures (indexed
// by 1-based source position); only a document that cannot be parsed at all
// is a hard error.
func ParseSource(data []byte) (*Record, []Failure, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil, fmt.Errorf("%w: source is empty", ErrInvalidArgument)
	}

	if strings.HasPrefix(trimmed, "[") {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, nil, fmt.Errorf("%w: failed to parse entry array: %v", ErrInvalidArgument, err)
		}

		record := &Record{}
		failures := collectEntries(raw, record)
		return record, failures, nil
	}

	var src sourceRecord
	if err := json.Unmarshal(data, &src); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to parse record: %v", ErrInvalidArgument, err)
	}

	record := &Record{UserID: string(src.UserID)}

	if src.Name != "" || src.Personality != "" || src.Background != "" ||
		src.CommunicationStyle != "" || len(src.Expertise) > 0 || len(src.Preferences) > 0 {
		record.Profile = &Profile{
			UserID:             string(src.UserID),
			Name:               src.Name,
			Personality:        src.Personality,
			Background:         src.Background,
			Expertise:          src.Expertise,
			CommunicationStyle: src.CommunicationStyle,
			Preferences:        src.Preferences,
		}
	}

	raw := src.Messages
	if len(raw) == 0 {
		raw = src.MessageExamples
	}
	failures := collectEntries(raw, record)

	return record, failures, nil
}

// collectEntries decodes raw entries into record.Entries, recording a
// failure for each entry that does not decode or carries no text.
func collectEntries(raw []json.RawMessage, record *Record) []Failure {
	var failures []Failure

	for i, r := range raw {
		var se sourceEntry
		if err := json.Unmarshal(r, &se); err != nil {
			failures = append(failures, Failure{
				Index:  i + 1,
				Reason: fmt.Sprintf("malformed entry: %v", err),
			})
			continue
		}

		text := se.Content
		if text == "" {
			text = se.Text
		}
		if text == "" {
			text = se.Message
		}
		if strings.TrimSpace(text) == "" {
			failures = append(failures, Failure{
				Index:   i + 1,
				EntryID: string(se.ID),
				Reason:  "entry has no text content",
			})
			continue
		}

		topic := se.Topic
		if topic == "" {
			topic = se.Context
		}

		record.Entries = append(record.Entries, Entry{
			Index: i + 1,
			ID:    string(se.ID),
			Topic: topic,
			Text:  text,
		})
	}

	return failures
}
