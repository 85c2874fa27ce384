// Package transcript consumes recognition events arriving on the
// transcription channel and accumulates the resulting text fragments into
// an append-only transcript.
package transcript

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Event types understood on the transcription channel.
const (
	TypeTranscription = "transcription"
	TypeStatus        = "status"
)

// Event is a recognition-channel message: either a transcription fragment
// or a server status notice.
type Event struct {
	Type      string  `json:"type"`
	Text      string  `json:"text,omitempty"`
	Message   string  `json:"message,omitempty"`
	Timestamp float64 `json:"timestamp,omitempty"`
}

// ParseEvent decodes and validates an inbound payload. It returns an error
// for non-JSON payloads, unknown event types, and events missing their
// required field. Callers are expected to discard failures silently.
func ParseEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("transcript: parse event: %w", err)
	}
	switch ev.Type {
	case TypeTranscription:
		if ev.Text == "" {
			return Event{}, fmt.Errorf("transcript: transcription event has no text")
		}
	case TypeStatus:
		if ev.Message == "" {
			return Event{}, fmt.Errorf("transcript: status event has no message")
		}
	default:
		return Event{}, fmt.Errorf("transcript: unknown event type %q", ev.Type)
	}
	return ev, nil
}

// Transcript is an ordered, append-only accumulation of text fragments.
// Safe for concurrent use.
type Transcript struct {
	mu sync.Mutex
	b  strings.Builder
}

// Append adds a fragment followed by a single joining space.
func (t *Transcript) Append(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.b.WriteString(text)
	t.b.WriteString(" ")
}

// String returns the accumulated text.
func (t *Transcript) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.b.String()
}

// Reset discards all accumulated text.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.b.Reset()
}
