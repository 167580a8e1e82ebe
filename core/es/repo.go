package es

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
)

// FoldFunc reconstructs aggregate state from its events in stream order.
// It must return the first error it meets, from the sequence or its own.
type FoldFunc[S any, E any] func(events iter.Seq2[E, error]) (S, error)

// Repository loads aggregate state of kind S by folding its event stream and
// appends new events with optimistic concurrency. E is the event sum type
// every registered event decodes to.
//
// The repository never retries: on ErrConcurrencyConflict the caller has to
// reload and run its business logic again.
type Repository[S any, E any] struct {
	log      *slog.Logger
	kind     string
	store    EventStore
	registry Decoder
	fold     FoldFunc[S, E]
	metrics  ESMetrics
	newID    IDGenerator
}

func NewRepository[S any, E any](
	kind string,
	store EventStore,
	registry Decoder,
	fold FoldFunc[S, E],
	opts ...RepositoryOption,
) *Repository[S, E] {
	options := newRepoOpts(opts...)
	return &Repository[S, E]{
		log:      options.log.With(slog.String("repo", kind)),
		kind:     kind,
		store:    store,
		registry: registry,
		fold:     fold,
		metrics:  options.metrics,
		newID:    options.idGenerator,
	}
}

func (r *Repository[S, E]) Kind() string                { return r.kind }
func (r *Repository[S, E]) StreamName(id string) string { return StreamName(r.kind, id) }

// Load reads the full stream of aggregate id and folds it. It returns the
// state together with the revision of the last event read, which is the
// expected revision for a subsequent Save.
func (r *Repository[S, E]) Load(ctx context.Context, id string) (state S, rev Revision, err error) {
	var zero S
	if id == "" {
		return zero, 0, errors.New("aggregate id is empty")
	}

	defer r.metrics.RepoLoadDuration(r.kind).ObserveDuration()

	stream := r.StreamName(id)
	records, err := r.store.ReadStream(ctx, stream)
	if err != nil {
		return zero, 0, Transient(err)
	}

	var (
		last Revision
		seen bool
	)
	events := func(yield func(E, error) bool) {
		var zeroE E
		for rec, err := range records {
			if err != nil {
				yield(zeroE, Transient(err))
				return
			}
			expect := Revision(0)
			if seen {
				expect = last + 1
			}
			if rec.Revision != expect {
				yield(zeroE, fmt.Errorf("stream %s: expect revision %d, got %d", stream, expect, rec.Revision))
				return
			}
			decoded, err := r.registry.Decode(rec)
			if err != nil {
				r.log.Debug("decode failed", rec.logAttrs(), slog.Any("error", err))
				yield(zeroE, err)
				return
			}
			ev, ok := decoded.(E)
			if !ok {
				yield(zeroE, fmt.Errorf("%w: %s decodes to %T", ErrUnknownEventType, rec.EventType, decoded))
				return
			}
			last, seen = rec.Revision, true
			if !yield(ev, nil) {
				return
			}
		}
	}

	state, err = r.fold(events)
	if err != nil {
		return zero, 0, err
	}
	if !seen {
		return zero, 0, ErrEmptyStream
	}

	r.log.Debug("loaded", slog.Group("stream", slog.String("name", stream), last.SlogAttr()))

	return state, last, nil
}

// Save appends events to the stream of aggregate id, conditioned on expected.
// Saving no events is a no-op and returns a nil result.
func (r *Repository[S, E]) Save(
	ctx context.Context,
	id string,
	expected ExpectedRevision,
	events []E,
	opts ...SaveOption,
) (*AppendResult, error) {
	if len(events) == 0 {
		return nil, nil
	}
	if id == "" {
		return nil, errors.New("aggregate id is empty")
	}

	defer r.metrics.RepoSaveDuration(r.kind).ObserveDuration()

	saveOptions := newSaveOptions(opts...)
	raw := make([]any, 0, len(events))
	for _, ev := range events {
		raw = append(raw, ev)
	}
	data, err := Encode(r.newID, saveOptions.metadata, raw...)
	if err != nil {
		return nil, err
	}

	stream := r.StreamName(id)
	res, err := r.store.Append(ctx, stream, expected, data)
	if err != nil {
		if errors.Is(err, ErrConcurrencyConflict) {
			r.metrics.ConcurrencyConflict(r.kind)
			return nil, err
		}
		return nil, fmt.Errorf("failed to save stream=%s: %w", stream, Transient(err))
	}

	r.log.Debug(
		"saved",
		slog.Group("stream", slog.String("name", stream), res.Revision.SlogAttr()),
		expected.SlogAttrWithKey("expected"),
		slog.Int("num_events", len(data)),
	)

	return res, nil
}
