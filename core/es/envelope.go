package es

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// EventData is an event proposed for appending. The store assigns the
// revision; everything else is written as given.
type EventData struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`
	// Type is the event type tag used to pick a decoder on read.
	Type string `json:"type"`
	// Data is the JSON-encoded event payload.
	Data json.RawMessage `json:"data"`
	// Metadata is optional JSON (causation, command name, ...).
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

func (e EventData) Validate() error {
	if e.ID == "" {
		return errors.New("event id is empty")
	}
	if e.Type == "" {
		return errors.New("event type is empty")
	}
	if len(e.Data) > 0 && !json.Valid(e.Data) {
		return errors.New("event data is not valid json")
	}
	if len(e.Metadata) > 0 && !json.Valid(e.Metadata) {
		return errors.New("event metadata is not valid json")
	}
	return nil
}

// StreamRecord is a committed event as read back from a stream.
type StreamRecord struct {
	StreamName string          `json:"stream"`
	Revision   Revision        `json:"revision"`
	EventID    string          `json:"event_id"`
	EventType  string          `json:"type"`
	Data       json.RawMessage `json:"data"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

func (r StreamRecord) logAttrs() slog.Attr {
	return slog.Group(
		"record",
		slog.String("stream", r.StreamName),
		r.Revision.SlogAttr(),
		slog.String("type", r.EventType),
		slog.String("id", r.EventID),
	)
}

// Decoder turns a stored record back into a typed event. *EventRegistry
// implements it.
type Decoder interface{ Decode(r StreamRecord) (any, error) }
