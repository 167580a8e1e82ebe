package cart

import (
	"iter"

	"github.com/codewandler/cartes-go/core/es"
)

// Reconstruct folds events into the current cart state. It fails with
// es.ErrEmptyStream on no events and es.ErrMissingOpeningEvent when the
// first event is not Opened. The first error aborts the fold.
func Reconstruct(events []Event) (*Cart, error) {
	return ReconstructSeq(func(yield func(Event, error) bool) {
		for _, ev := range events {
			if !yield(ev, nil) {
				return
			}
		}
	})
}

// ReconstructSeq is Reconstruct over a lazy sequence, as produced by a
// stream read. An error from the sequence aborts the fold.
func ReconstructSeq(events iter.Seq2[Event, error]) (*Cart, error) {
	var (
		state *Cart
		first = true
	)
	for ev, err := range events {
		if err != nil {
			return nil, err
		}
		if first {
			if _, ok := ev.(Opened); !ok {
				return nil, es.ErrMissingOpeningEvent
			}
			first = false
		}
		if state, err = Apply(state, ev); err != nil {
			return nil, err
		}
	}
	if state == nil {
		return nil, es.ErrEmptyStream
	}
	return state, nil
}
