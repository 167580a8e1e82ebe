package es

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Typed is implemented by events that carry an explicit, stable type tag.
// Events without it are tagged with their Go type name.
type Typed interface {
	EventType() string
}

type decodeFunc func(data json.RawMessage) (any, error)

// EventRegistry maps event type tags to decoders so persisted records can be
// turned back into typed events.
type EventRegistry struct {
	mu       sync.RWMutex
	decoders map[string]decodeFunc
}

func NewRegistry() *EventRegistry {
	return &EventRegistry{decoders: map[string]decodeFunc{}}
}

// Registrar is the part of the registry aggregates need to register their events.
type Registrar interface {
	register(eventType string, decode decodeFunc)
}

func (r *EventRegistry) register(eventType string, decode decodeFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[eventType] = decode
}

// RegisterEvent registers T under its type tag. Decoding yields a T value,
// not a pointer, so value-receiver sum types round-trip unchanged.
func RegisterEvent[T any](r Registrar) {
	var zero T
	r.register(EventTypeOf(zero), func(data json.RawMessage) (any, error) {
		var ev T
		if len(data) > 0 {
			if err := json.Unmarshal(data, &ev); err != nil {
				return nil, err
			}
		}
		return ev, nil
	})
}

// Decode decodes the payload of r using the decoder registered for its type.
func (r *EventRegistry) Decode(rec StreamRecord) (any, error) {
	r.mu.RLock()
	decode, ok := r.decoders[rec.EventType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, rec.EventType)
	}
	ev, err := decode(rec.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s at %s@%d: %w", rec.EventType, rec.StreamName, rec.Revision, err)
	}
	return ev, nil
}

// Types returns all registered type tags, sorted.
func (r *EventRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.decoders))
	for t := range r.decoders {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// EventTypeOf returns the type tag of ev.
func EventTypeOf(ev any) string {
	if t, ok := ev.(Typed); ok {
		return t.EventType()
	}
	rt := reflect.TypeOf(ev)
	if rt == nil {
		return ""
	}
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return rt.PkgPath() + "." + rt.Name()
}

// Encode serializes events into EventData ready to append. Every event gets
// a fresh id from gen and the same metadata.
func Encode(gen IDGenerator, metadata json.RawMessage, events ...any) ([]EventData, error) {
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	out := make([]EventData, 0, len(events))
	for _, ev := range events {
		if v, ok := ev.(interface{ Validate() error }); ok {
			if err := v.Validate(); err != nil {
				return nil, fmt.Errorf("invalid event %T: %w", ev, err)
			}
		}
		data, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("encode %T: %w", ev, err)
		}
		ed := EventData{
			ID:       gen(),
			Type:     EventTypeOf(ev),
			Data:     data,
			Metadata: metadata,
		}
		if err := ed.Validate(); err != nil {
			return nil, err
		}
		out = append(out, ed)
	}
	return out, nil
}
