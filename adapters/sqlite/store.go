// Package sqlite implements es.EventStore on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/codewandler/cartes-go/core/es"
)

//go:embed schema.sql
var schemaSQL string

const (
	currentSchemaVersion = 1
	defaultPageSize      = 256
)

type Config struct {
	// Path of the database file. Created if missing.
	Path string
	Log  *slog.Logger
	// PageSize is the number of rows read per query on ReadStream (default: 256).
	PageSize int
}

// EventStore keeps all streams in a single events table. The database is
// opened with WAL mode and a single connection, so appends from this
// process are serialized; appends from other processes are guarded by the
// primary key on (stream_name, revision).
type EventStore struct {
	db       *sql.DB
	log      *slog.Logger
	pageSize int
	now      func() time.Time
}

func Open(cfg Config) (*EventStore, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}

	// immediate transactions take the write lock up front, so the revision
	// check and the insert cannot interleave with another writer
	dsn := fmt.Sprintf("file:%s?_txlock=immediate", cfg.Path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &EventStore{
		db:       db,
		log:      log.With(slog.String("store", "sqlite"), slog.String("path", cfg.Path)),
		pageSize: pageSize,
		now:      time.Now,
	}, nil
}

func (s *EventStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func (s *EventStore) Append(
	ctx context.Context,
	stream string,
	expected es.ExpectedRevision,
	events []es.EventData,
) (*es.AppendResult, error) {
	if stream == "" {
		return nil, errors.New("stream name is empty")
	}
	if len(events) == 0 {
		return nil, es.ErrNoEvents
	}
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return nil, fmt.Errorf("failed to validate event: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("append: begin tx: %w", es.Transient(err))
	}
	defer tx.Rollback()

	actual, err := currentRevision(ctx, tx, stream)
	if err != nil {
		return nil, err
	}
	if !expected.Matches(actual) {
		return nil, es.NewConflictError(stream, expected, actual)
	}

	var (
		rev        = actual.NextRevision()
		recordedAt = s.now().UTC().UnixNano()
	)
	for _, ev := range events {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO events
			(stream_name, revision, event_id, event_type, payload, metadata, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			stream,
			int64(rev),
			ev.ID,
			ev.Type,
			[]byte(ev.Data),
			nullBytes(ev.Metadata),
			recordedAt,
		)
		if err != nil {
			return nil, insertError(ctx, tx, stream, expected, ev, err)
		}
		rev++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("append: commit: %w", es.Transient(err))
	}

	last := rev - 1
	s.log.Debug(
		"appended",
		slog.Group("stream", slog.String("name", stream), last.SlogAttr()),
		slog.Int("num_events", len(events)),
	)
	return &es.AppendResult{Revision: last}, nil
}

// insertError maps constraint violations of an insert within tx.
func insertError(ctx context.Context, tx *sql.Tx, stream string, expected es.ExpectedRevision, ev es.EventData, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintPrimaryKey:
			actual, readErr := currentRevision(ctx, tx, stream)
			if readErr != nil {
				return readErr
			}
			return es.NewConflictError(stream, expected, actual)
		case sqlite3.ErrConstraintUnique:
			return fmt.Errorf("append: duplicate event id %s: %w", ev.ID, err)
		}
	}
	return fmt.Errorf("append: insert: %w", es.Transient(err))
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func currentRevision(ctx context.Context, q queryer, stream string) (es.ExpectedRevision, error) {
	var last sql.NullInt64
	if err := q.QueryRowContext(ctx, `
		SELECT MAX(revision) FROM events WHERE stream_name = ?
	`, stream).Scan(&last); err != nil {
		return es.NoStream, fmt.Errorf("query revision: %w", es.Transient(err))
	}
	return es.CurrentRevision(last.Valid, es.Revision(last.Int64)), nil
}

func (s *EventStore) ReadStream(ctx context.Context, stream string, opts ...es.ReadOption) (es.Records, error) {
	options := es.NewReadOptions(opts...)

	actual, err := currentRevision(ctx, s.db, stream)
	if err != nil {
		return nil, err
	}
	if actual.IsNoStream() {
		return nil, es.ErrStreamNotFound
	}

	return func(yield func(es.StreamRecord, error) bool) {
		var (
			from = options.From
			n    = 0
		)
		for {
			limit := s.pageSize
			if options.MaxCount > 0 {
				limit = min(limit, options.MaxCount-n)
			}
			page, err := s.readPage(ctx, stream, from, limit)
			if err != nil {
				yield(es.StreamRecord{}, err)
				return
			}
			for _, r := range page {
				if !yield(r, nil) {
					return
				}
				n++
			}
			if len(page) < limit || options.Done(n) {
				return
			}
			from = page[len(page)-1].Revision + 1
		}
	}, nil
}

func (s *EventStore) readPage(ctx context.Context, stream string, from es.Revision, limit int) ([]es.StreamRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT revision, event_id, event_type, payload, metadata, recorded_at
		FROM events
		WHERE stream_name = ? AND revision >= ?
		ORDER BY revision ASC
		LIMIT ?
	`, stream, int64(from), limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", es.Transient(err))
	}
	defer rows.Close()

	page := make([]es.StreamRecord, 0, limit)
	for rows.Next() {
		var (
			r              = es.StreamRecord{StreamName: stream}
			rev            int64
			data, metadata []byte
			recordedAt     int64
		)
		if err := rows.Scan(&rev, &r.EventID, &r.EventType, &data, &metadata, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		r.Revision = es.Revision(rev)
		r.Data = data
		r.Metadata = metadata
		r.RecordedAt = time.Unix(0, recordedAt).UTC()
		page = append(page, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", es.Transient(err))
	}
	return page, nil
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ es.EventStore = (*EventStore)(nil)
