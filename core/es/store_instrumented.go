package es

import (
	"context"
	"errors"
	"log/slog"
)

// instrumentedStore records ESMetrics and debug logs around another EventStore.
type instrumentedStore struct {
	EventStore
	log     *slog.Logger
	metrics ESMetrics
}

// InstrumentStore wraps s so every read and append is timed and counted.
// A nil log or metrics falls back to the defaults.
func InstrumentStore(s EventStore, log *slog.Logger, m ESMetrics) EventStore {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = NopESMetrics()
	}
	return &instrumentedStore{EventStore: s, log: log, metrics: m}
}

func (i *instrumentedStore) Append(
	ctx context.Context,
	stream string,
	expected ExpectedRevision,
	events []EventData,
) (*AppendResult, error) {
	kind := StreamKind(stream)
	timer := i.metrics.StoreAppendDuration(kind)
	res, err := i.EventStore.Append(ctx, stream, expected, events)
	timer.ObserveDuration()
	if err != nil {
		i.log.Debug(
			"append failed",
			slog.String("stream", stream),
			expected.SlogAttrWithKey("expected"),
			slog.Any("error", err),
		)
		return nil, err
	}
	i.metrics.EventsAppended(kind, len(events))
	return res, nil
}

func (i *instrumentedStore) ReadStream(ctx context.Context, stream string, opts ...ReadOption) (Records, error) {
	timer := i.metrics.StoreReadDuration(StreamKind(stream))
	records, err := i.EventStore.ReadStream(ctx, stream, opts...)
	if err != nil {
		timer.ObserveDuration()
		if !errors.Is(err, ErrStreamNotFound) {
			i.log.Debug("read failed", slog.String("stream", stream), slog.Any("error", err))
		}
		return nil, err
	}
	// the read is timed until the caller stops iterating
	return func(yield func(StreamRecord, error) bool) {
		defer timer.ObserveDuration()
		n := 0
		for r, err := range records {
			if err == nil {
				n++
			}
			if !yield(r, err) {
				break
			}
		}
		i.log.Debug(
			"read",
			slog.String("stream", stream),
			NewReadOptions(opts...).logAttrs(),
			slog.Int("num_records", n),
		)
	}, nil
}
