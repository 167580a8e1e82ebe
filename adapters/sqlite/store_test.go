package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codewandler/cartes-go/core/es"
	"github.com/codewandler/cartes-go/core/es/estests"
)

func openTestStore(t *testing.T, cfg Config) *EventStore {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "events.db")
	}
	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestSQLite_EventStore(t *testing.T) {
	estests.RunStoreSuite(t, func(t *testing.T) es.EventStore {
		return openTestStore(t, Config{PageSize: 16})
	})
}

func TestSQLite_pragmas(t *testing.T) {
	s := openTestStore(t, Config{})

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	require.Equal(t, "wal", mode)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	require.Equal(t, currentSchemaVersion, version)
}

func TestSQLite_reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	s, err := Open(Config{Path: path})
	require.NoError(t, err)
	es.MustAppend(t, s, "shopping_cart-1", es.NoStream, es.MustEventData(t, "opened", map[string]string{"id": "1"}))
	require.NoError(t, s.Close())

	s = openTestStore(t, Config{Path: path})
	recs := es.MustReadAll(t, s, "shopping_cart-1")
	require.Len(t, recs, 1)
	require.Equal(t, "opened", recs[0].EventType)

	_, err = s.Append(t.Context(), "shopping_cart-1", es.NoStream, []es.EventData{es.MustEventData(t, "opened", nil)})
	require.ErrorIs(t, err, es.ErrConcurrencyConflict)
}

func TestSQLite_primaryKeyConflict(t *testing.T) {
	s := openTestStore(t, Config{})
	es.MustAppend(t, s, "shopping_cart-pk", es.NoStream, es.MustEventData(t, "opened", nil))

	// a writer that skipped the revision check still cannot overwrite history
	_, err := s.db.ExecContext(t.Context(), `
		INSERT INTO events (stream_name, revision, event_id, event_type, payload, recorded_at)
		VALUES ('shopping_cart-pk', 0, 'other', 'opened', '{}', 0)
	`)
	require.Error(t, err)

	tx, err := s.db.BeginTx(t.Context(), nil)
	require.NoError(t, err)
	defer tx.Rollback()
	_, err = tx.ExecContext(t.Context(), `
		INSERT INTO events (stream_name, revision, event_id, event_type, payload, recorded_at)
		VALUES ('shopping_cart-pk', 0, 'other', 'opened', '{}', 0)
	`)
	mapped := insertError(t.Context(), tx, "shopping_cart-pk", es.NoStream, es.EventData{ID: "other"}, err)
	var ce *es.ConflictError
	require.ErrorAs(t, mapped, &ce)
	require.Equal(t, es.ExactRevision(0), ce.Actual)
}

func TestSQLite_duplicateEventID(t *testing.T) {
	s := openTestStore(t, Config{})
	ev := es.MustEventData(t, "opened", nil)
	es.MustAppend(t, s, "shopping_cart-a", es.NoStream, ev)

	_, err := s.Append(t.Context(), "shopping_cart-b", es.NoStream, []es.EventData{ev})
	require.ErrorContains(t, err, "duplicate event id")
	require.NotErrorIs(t, err, es.ErrConcurrencyConflict)
}

func TestSQLite_open(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
}
