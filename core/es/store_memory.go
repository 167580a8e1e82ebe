package es

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// InMemoryStore is a simple, correct (optimistic) store for tests and dev.
type InMemoryStore struct {
	mu      sync.RWMutex
	log     *slog.Logger
	now     func() time.Time
	streams map[string][]StreamRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		log:     slog.Default().With(slog.String("store", "memory")),
		now:     time.Now,
		streams: map[string][]StreamRecord{},
	}
}

func (s *InMemoryStore) currentLocked(stream string) ExpectedRevision {
	recs, ok := s.streams[stream]
	if !ok || len(recs) == 0 {
		return NoStream
	}
	return ExactRevision(recs[len(recs)-1].Revision)
}

func (s *InMemoryStore) Append(
	_ context.Context,
	stream string,
	expected ExpectedRevision,
	events []EventData,
) (*AppendResult, error) {
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	for _, e := range events {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	actual := s.currentLocked(stream)
	if !expected.Matches(actual) {
		return nil, NewConflictError(stream, expected, actual)
	}

	var (
		rev        = actual.NextRevision()
		recordedAt = s.now().UTC()
		appended   = make([]StreamRecord, 0, len(events))
	)
	for _, e := range events {
		appended = append(appended, StreamRecord{
			StreamName: stream,
			Revision:   rev,
			EventID:    e.ID,
			EventType:  e.Type,
			Data:       append([]byte(nil), e.Data...),
			Metadata:   append([]byte(nil), e.Metadata...),
			RecordedAt: recordedAt,
		})
		rev++
	}
	s.streams[stream] = append(s.streams[stream], appended...)
	last := appended[len(appended)-1].Revision

	s.log.Debug(
		"append",
		slog.String("stream", stream),
		last.SlogAttrWithKey("last_revision"),
		slog.Int("num_events", len(appended)),
	)

	return &AppendResult{Revision: last}, nil
}

func (s *InMemoryStore) ReadStream(_ context.Context, stream string, opts ...ReadOption) (Records, error) {
	options := NewReadOptions(opts...)

	s.mu.RLock()
	recs, ok := s.streams[stream]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrStreamNotFound
	}

	// recs is a prefix snapshot: appends only ever grow the backing slice
	// past its current length, so the records we hold are never rewritten.
	return func(yield func(StreamRecord, error) bool) {
		n := 0
		for _, r := range recs {
			if r.Revision < options.From {
				continue
			}
			if options.Done(n) {
				return
			}
			if !yield(r, nil) {
				return
			}
			n++
		}
	}, nil
}

var _ EventStore = (*InMemoryStore)(nil)
