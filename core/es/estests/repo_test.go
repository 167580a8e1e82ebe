package estests

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/cartes-go/core/es"
	"github.com/codewandler/cartes-go/core/es/estests/domain"
)

func TestRepository_notFound(t *testing.T) {
	repo := domain.NewRepository(es.NewInMemoryStore())
	_, _, err := repo.Load(t.Context(), "foobar")
	require.ErrorIs(t, err, es.ErrStreamNotFound)
	require.ErrorIs(t, err, es.ErrNotFound)
}

func TestRepository(t *testing.T) {
	var (
		store = es.NewInMemoryStore()
		repo  = domain.NewRepository(store, es.WithLog(slog.Default()))
		id    = "my-counter-1"
	)

	require.Equal(t, domain.Kind, repo.Kind())
	require.Equal(t, "test_counter-my-counter-1", repo.StreamName(id))

	res, err := repo.Save(t.Context(), id, es.NoStream, []domain.Event{domain.Created{ID: id}})
	require.NoError(t, err)
	require.Equal(t, es.Revision(0), res.Revision)

	c, rev, err := repo.Load(t.Context(), id)
	require.NoError(t, err)
	require.Equal(t, es.Revision(0), rev)
	require.Equal(t, id, c.ID)

	evs, err := domain.IncBy(c, 7)
	require.NoError(t, err)
	res, err = repo.Save(t.Context(), id, es.ExactRevision(rev), evs, es.WithMetadata(json.RawMessage(`{"command":"inc"}`)))
	require.NoError(t, err)
	require.Equal(t, es.Revision(1), res.Revision)

	c, rev, err = repo.Load(t.Context(), id)
	require.NoError(t, err)
	require.Equal(t, es.Revision(1), rev)
	require.Equal(t, 7, c.Count())
	require.Equal(t, 2, c.NumTotalEvents)

	recs := es.MustReadAll(t, store, repo.StreamName(id))
	require.Len(t, recs, 2)
	require.Equal(t, "test_counter_incremented", recs[1].EventType)
	require.JSONEq(t, `{"command":"inc"}`, string(recs[1].Metadata))

	t.Run("stale save conflicts", func(t *testing.T) {
		_, err := repo.Save(t.Context(), id, es.ExactRevision(0), []domain.Event{domain.Incremented{Inc: 1}})
		require.ErrorIs(t, err, es.ErrConcurrencyConflict)
		require.NotErrorIs(t, err, es.ErrTransient)
	})

	t.Run("domain rule", func(t *testing.T) {
		_, err := domain.IncBy(c, 20)
		require.ErrorIs(t, err, domain.ErrLimitExceeded)
		require.ErrorIs(t, err, es.ErrDomainViolation)
	})

	t.Run("nothing to save", func(t *testing.T) {
		res, err := repo.Save(t.Context(), id, es.ExactRevision(0), nil)
		require.NoError(t, err)
		require.Nil(t, res)
	})
}

func TestRepository_Load_unknownEvent(t *testing.T) {
	store := es.NewInMemoryStore()
	repo := domain.NewRepository(store)
	es.MustAppend(t, store, repo.StreamName("x"), es.NoStream, es.MustEventData(t, "nope", map[string]any{}))

	_, _, err := repo.Load(t.Context(), "x")
	require.ErrorIs(t, err, es.ErrUnknownEventType)
}

func TestRepository_Load_missingOpeningEvent(t *testing.T) {
	store := es.NewInMemoryStore()
	repo := domain.NewRepository(store)
	es.MustAppend(t, store, repo.StreamName("x"), es.NoStream, es.MustEventData(t, "test_counter_incremented", domain.Incremented{Inc: 1}))

	_, _, err := repo.Load(t.Context(), "x")
	require.ErrorIs(t, err, es.ErrMissingOpeningEvent)
}

// brokenStore fails every call with err.
type brokenStore struct{ err error }

func (b brokenStore) Append(context.Context, string, es.ExpectedRevision, []es.EventData) (*es.AppendResult, error) {
	return nil, b.err
}

func (b brokenStore) ReadStream(context.Context, string, ...es.ReadOption) (es.Records, error) {
	return nil, b.err
}

func TestRepository_transientErrors(t *testing.T) {
	down := errors.New("connection refused")
	repo := domain.NewRepository(brokenStore{err: down})

	_, _, err := repo.Load(t.Context(), "x")
	require.ErrorIs(t, err, es.ErrTransient)
	require.ErrorIs(t, err, down)

	_, err = repo.Save(t.Context(), "x", es.NoStream, []domain.Event{domain.Created{ID: "x"}})
	require.ErrorIs(t, err, es.ErrTransient)
	require.Equal(t, es.OutcomeTransient, es.Outcome(err))
}

type countingMetrics struct {
	es.ESMetrics
	mu        sync.Mutex
	conflicts map[string]int
	appended  map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		ESMetrics: es.NopESMetrics(),
		conflicts: map[string]int{},
		appended:  map[string]int{},
	}
}

func (m *countingMetrics) ConcurrencyConflict(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts[kind]++
}

func (m *countingMetrics) EventsAppended(kind string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appended[kind] += n
}

func TestRepository_metrics(t *testing.T) {
	var (
		m     = newCountingMetrics()
		store = es.InstrumentStore(es.NewInMemoryStore(), slog.Default(), m)
		repo  = domain.NewRepository(store, es.WithMetrics(m))
	)

	_, err := repo.Save(t.Context(), "m", es.NoStream, []domain.Event{domain.Created{ID: "m"}, domain.Incremented{Inc: 2}})
	require.NoError(t, err)
	_, err = repo.Save(t.Context(), "m", es.NoStream, []domain.Event{domain.Created{ID: "m"}})
	require.ErrorIs(t, err, es.ErrConcurrencyConflict)

	require.Equal(t, 1, m.conflicts[domain.Kind])
	require.Equal(t, 2, m.appended[domain.Kind])
}

func TestFold_stopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var seq iter.Seq2[domain.Event, error] = func(yield func(domain.Event, error) bool) {
		if !yield(domain.Created{ID: "a"}, nil) {
			return
		}
		yield(nil, boom)
	}
	_, err := domain.Fold(seq)
	require.ErrorIs(t, err, boom)
}
