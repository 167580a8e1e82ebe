// Package estests holds the conformance suite every es.EventStore
// implementation runs, plus a small counter domain used to exercise the
// generic repository.
package estests

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/codewandler/cartes-go/core/es"
)

// NewStoreFunc returns the store under test. Streams are named uniquely per
// test, so implementations may share one backend across calls.
type NewStoreFunc func(t *testing.T) es.EventStore

func uniqueStream(t *testing.T) string {
	t.Helper()
	return es.StreamName("suite_cart", gonanoid.MustGenerate("abcdefghijklmnopqrstuvwxyz0123456789", 12))
}

func events(t *testing.T, n int) []es.EventData {
	t.Helper()
	out := make([]es.EventData, 0, n)
	for i := range n {
		out = append(out, es.MustEventData(t, "counted", map[string]int{"n": i}))
	}
	return out
}

// RunStoreSuite runs the EventStore conformance tests against newStore.
func RunStoreSuite(t *testing.T, newStore NewStoreFunc) {
	t.Run("read missing stream", func(t *testing.T) {
		s := newStore(t)
		_, err := s.ReadStream(t.Context(), uniqueStream(t))
		require.ErrorIs(t, err, es.ErrStreamNotFound)
		require.ErrorIs(t, err, es.ErrNotFound)
	})

	t.Run("append and read back", func(t *testing.T) {
		var (
			s      = newStore(t)
			stream = uniqueStream(t)
			evs    = events(t, 3)
		)
		evs[1].Metadata = json.RawMessage(`{"command":"add"}`)

		rev := es.MustAppend(t, s, stream, es.NoStream, evs...)
		require.Equal(t, es.Revision(2), rev)

		recs := es.MustReadAll(t, s, stream)
		require.Len(t, recs, 3)
		for i, r := range recs {
			require.Equal(t, stream, r.StreamName)
			require.Equal(t, es.Revision(i), r.Revision)
			require.Equal(t, evs[i].ID, r.EventID)
			require.Equal(t, "counted", r.EventType)
			require.JSONEq(t, fmt.Sprintf(`{"n":%d}`, i), string(r.Data))
			require.False(t, r.RecordedAt.IsZero())
		}
		require.Empty(t, recs[0].Metadata)
		require.JSONEq(t, `{"command":"add"}`, string(recs[1].Metadata))

		rev = es.MustAppend(t, s, stream, es.ExactRevision(2), events(t, 2)...)
		require.Equal(t, es.Revision(4), rev)
		require.Len(t, es.MustReadAll(t, s, stream), 5)
	})

	t.Run("no events", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Append(t.Context(), uniqueStream(t), es.AnyRevision, nil)
		require.ErrorIs(t, err, es.ErrNoEvents)
	})

	t.Run("invalid event", func(t *testing.T) {
		s := newStore(t)
		stream := uniqueStream(t)
		_, err := s.Append(t.Context(), stream, es.NoStream, []es.EventData{{ID: "x"}})
		require.Error(t, err)
		_, err = s.ReadStream(t.Context(), stream)
		require.ErrorIs(t, err, es.ErrStreamNotFound)
	})

	t.Run("conflicts", func(t *testing.T) {
		var (
			s      = newStore(t)
			stream = uniqueStream(t)
			ce     *es.ConflictError
		)

		_, err := s.Append(t.Context(), stream, es.ExactRevision(0), events(t, 1))
		require.ErrorIs(t, err, es.ErrConcurrencyConflict)
		require.ErrorAs(t, err, &ce)
		require.Equal(t, es.NoStream, ce.Actual)
		require.Equal(t, es.ExactRevision(0), ce.Expected)

		es.MustAppend(t, s, stream, es.NoStream, events(t, 2)...)

		_, err = s.Append(t.Context(), stream, es.NoStream, events(t, 1))
		require.ErrorAs(t, err, &ce)
		require.Equal(t, stream, ce.Stream)
		require.Equal(t, es.ExactRevision(1), ce.Actual)

		_, err = s.Append(t.Context(), stream, es.ExactRevision(0), events(t, 1))
		require.ErrorAs(t, err, &ce)
		require.Equal(t, es.ExactRevision(1), ce.Actual)

		_, err = s.Append(t.Context(), stream, es.ExactRevision(5), events(t, 1))
		require.ErrorIs(t, err, es.ErrConcurrencyConflict)

		// failed appends leave no trace
		require.Len(t, es.MustReadAll(t, s, stream), 2)
	})

	t.Run("any revision", func(t *testing.T) {
		s := newStore(t)
		stream := uniqueStream(t)
		require.Equal(t, es.Revision(0), es.MustAppend(t, s, stream, es.AnyRevision, events(t, 1)...))
		require.Equal(t, es.Revision(2), es.MustAppend(t, s, stream, es.AnyRevision, events(t, 2)...))
	})

	t.Run("read options", func(t *testing.T) {
		s := newStore(t)
		stream := uniqueStream(t)
		es.MustAppend(t, s, stream, es.NoStream, events(t, 10)...)

		recs := es.MustReadAll(t, s, stream, es.FromRevision(4))
		require.Len(t, recs, 6)
		require.Equal(t, es.Revision(4), recs[0].Revision)

		recs = es.MustReadAll(t, s, stream, es.FromRevision(4), es.MaxCount(3))
		require.Len(t, recs, 3)
		require.Equal(t, es.Revision(6), recs[2].Revision)

		recs = es.MustReadAll(t, s, stream, es.MaxCount(0))
		require.Len(t, recs, 10)

		require.Empty(t, es.MustReadAll(t, s, stream, es.FromRevision(10)))
	})

	t.Run("stop iterating early", func(t *testing.T) {
		s := newStore(t)
		stream := uniqueStream(t)
		es.MustAppend(t, s, stream, es.NoStream, events(t, 5)...)

		records, err := s.ReadStream(t.Context(), stream)
		require.NoError(t, err)
		n := 0
		for r, err := range records {
			require.NoError(t, err)
			require.Equal(t, es.Revision(n), r.Revision)
			n++
			if n == 2 {
				break
			}
		}
		require.Equal(t, 2, n)
	})

	t.Run("large append", func(t *testing.T) {
		s := newStore(t)
		stream := uniqueStream(t)
		require.Equal(t, es.Revision(249), es.MustAppend(t, s, stream, es.NoStream, events(t, 250)...))

		recs := es.MustReadAll(t, s, stream)
		require.Len(t, recs, 250)
		for i, r := range recs {
			require.Equal(t, es.Revision(i), r.Revision)
		}
	})

	t.Run("streams are isolated", func(t *testing.T) {
		s := newStore(t)
		a, b := uniqueStream(t), uniqueStream(t)
		es.MustAppend(t, s, a, es.NoStream, events(t, 3)...)
		es.MustAppend(t, s, b, es.NoStream, events(t, 1)...)

		require.Len(t, es.MustReadAll(t, s, a), 3)
		recs := es.MustReadAll(t, s, b)
		require.Len(t, recs, 1)
		require.Equal(t, es.Revision(0), recs[0].Revision)
	})

	t.Run("names differing in punctuation are isolated", func(t *testing.T) {
		s := newStore(t)
		base := uniqueStream(t)
		names := []string{base + "-a.b", base + "-a_b", base + "-a b", base + "-a*b", base + "-a>b", base + "-a%2Eb", base + "-a:b"}
		for i, name := range names {
			es.MustAppend(t, s, name, es.NoStream, events(t, i+1)...)
		}
		for i, name := range names {
			recs := es.MustReadAll(t, s, name)
			require.Len(t, recs, i+1, name)
			for _, r := range recs {
				require.Equal(t, name, r.StreamName)
			}
		}
	})

	t.Run("concurrent appends", func(t *testing.T) {
		var (
			s          = newStore(t)
			stream     = uniqueStream(t)
			writers    = 8
			succeeded  atomic.Int32
			conflicted atomic.Int32
			g          errgroup.Group
		)
		es.MustAppend(t, s, stream, es.NoStream, events(t, 1)...)

		for range writers {
			g.Go(func() error {
				_, err := s.Append(t.Context(), stream, es.ExactRevision(0), events(t, 2))
				switch {
				case err == nil:
					succeeded.Add(1)
				case es.Outcome(err) == es.OutcomeConflict:
					conflicted.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		require.EqualValues(t, 1, succeeded.Load())
		require.EqualValues(t, writers-1, conflicted.Load())

		recs := es.MustReadAll(t, s, stream)
		require.Len(t, recs, 3)
		for i, r := range recs {
			require.Equal(t, es.Revision(i), r.Revision)
		}
	})
}
