package es

import (
	"context"
	"iter"
	"log/slog"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type (
	readOptions struct {
		from     Revision
		maxCount int
	}

	// ReadOption configures EventStore.ReadStream.
	ReadOption func(*readOptions)
)

// FromRevision starts reading at revision r (inclusive). Default: 0.
func FromRevision(r Revision) ReadOption { return func(o *readOptions) { o.from = r } }

// MaxCount limits the number of records read. 0 or less means no limit.
func MaxCount(n int) ReadOption { return func(o *readOptions) { o.maxCount = n } }

// ReadOptions is the resolved form of a ReadOption list, for store implementations.
type ReadOptions struct {
	From     Revision
	MaxCount int
}

func NewReadOptions(opts ...ReadOption) ReadOptions {
	o := readOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	return ReadOptions{From: o.from, MaxCount: o.maxCount}
}

// Done reports whether n records satisfy the MaxCount limit.
func (o ReadOptions) Done(n int) bool { return o.MaxCount > 0 && n >= o.MaxCount }

func (o ReadOptions) logAttrs() slog.Attr {
	return slog.Group("opts", o.From.SlogAttrWithKey("from"), slog.Int("max_count", o.MaxCount))
}

// Records is a lazily produced, finite sequence of stream records in strictly
// increasing revision order. Iterating it a second time is not supported;
// issue a new read instead. Breaking out of the loop releases the read.
type Records = iter.Seq2[StreamRecord, error]

// AppendResult is returned by a successful append.
type AppendResult struct {
	// Revision is the revision of the last appended event. Use it as the
	// expected revision of the next append.
	Revision Revision
}

// EventStore is an append-only log of events keyed by stream name.
//
// Implementations serialize appends per stream: out of any number of
// concurrent appends with the same expected revision at most one succeeds,
// the others fail with a *ConflictError. Reads observe a gap-free prefix of
// committed appends. There is no ordering across streams.
type EventStore interface {
	// Append writes events atomically and contiguously at the end of stream,
	// provided the stream state matches expected.
	Append(ctx context.Context, stream string, expected ExpectedRevision, events []EventData) (*AppendResult, error)
	// ReadStream reads stream forwards. It fails with ErrStreamNotFound if the
	// stream has never been appended to.
	ReadStream(ctx context.Context, stream string, opts ...ReadOption) (Records, error)
}

// StreamName derives the stream of an aggregate instance: "<kind>-<id>".
func StreamName(kind, id string) string { return kind + "-" + id }

// Collect drains records into a slice, stopping at the first error.
func Collect(records Records) ([]StreamRecord, error) {
	out := make([]StreamRecord, 0)
	for r, err := range records {
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// IDGenerator generates event ids.
type IDGenerator func() string

// DefaultIDGenerator returns the default nanoid based generator.
func DefaultIDGenerator() IDGenerator {
	return func() string { return gonanoid.Must() }
}

// StreamKind returns the aggregate kind part of a stream name built by
// StreamName. Names without a separator are returned unchanged.
func StreamKind(stream string) string {
	if i := strings.IndexByte(stream, '-'); i > 0 {
		return stream[:i]
	}
	return stream
}
