package es

import (
	"fmt"
	"log/slog"
)

// Revision is the 0-based position of an event within its stream.
// The first event of a stream has revision 0, every appended event gets
// the next revision. Revisions are assigned by the store.
type Revision uint64

func (r Revision) Uint64() uint64                          { return uint64(r) }
func (r Revision) SlogAttr() slog.Attr                     { return newSlogRevisionAttr("revision", r) }
func (r Revision) SlogAttrWithKey(key string) slog.Attr    { return newSlogRevisionAttr(key, r) }
func newSlogRevisionAttr(key string, r Revision) slog.Attr { return slog.Uint64(key, uint64(r)) }

type expectKind uint8

const (
	expectAny expectKind = iota
	expectNoStream
	expectExact
)

// ExpectedRevision is the optimistic concurrency condition of an append.
// It is also used to report the actual state of a stream in a ConflictError,
// in which case it is either NoStream or an exact revision.
type ExpectedRevision struct {
	kind expectKind
	rev  Revision
}

var (
	// AnyRevision appends regardless of the current stream state.
	AnyRevision = ExpectedRevision{kind: expectAny}
	// NoStream requires that the stream has never been appended to.
	NoStream = ExpectedRevision{kind: expectNoStream}
)

// ExactRevision requires the last event of the stream to have revision r.
func ExactRevision(r Revision) ExpectedRevision { return ExpectedRevision{kind: expectExact, rev: r} }

// CurrentRevision describes the state of a stream as seen by a store:
// NoStream when it does not exist, otherwise the revision of its last event.
func CurrentRevision(exists bool, last Revision) ExpectedRevision {
	if !exists {
		return NoStream
	}
	return ExactRevision(last)
}

func (e ExpectedRevision) IsAny() bool      { return e.kind == expectAny }
func (e ExpectedRevision) IsNoStream() bool { return e.kind == expectNoStream }

// Revision returns the exact revision and true, or false for Any and NoStream.
func (e ExpectedRevision) Revision() (Revision, bool) {
	if e.kind != expectExact {
		return 0, false
	}
	return e.rev, true
}

// Matches reports whether a stream in state actual satisfies e.
func (e ExpectedRevision) Matches(actual ExpectedRevision) bool {
	switch e.kind {
	case expectAny:
		return true
	case expectNoStream:
		return actual.kind == expectNoStream
	default:
		return actual.kind == expectExact && actual.rev == e.rev
	}
}

// NextRevision is the revision the next appended event receives on a stream
// whose current state is e. Only meaningful for NoStream and exact revisions.
func (e ExpectedRevision) NextRevision() Revision {
	if e.kind == expectExact {
		return e.rev + 1
	}
	return 0
}

func (e ExpectedRevision) String() string {
	switch e.kind {
	case expectAny:
		return "any"
	case expectNoStream:
		return "no_stream"
	default:
		return fmt.Sprintf("%d", e.rev)
	}
}

func (e ExpectedRevision) SlogAttrWithKey(key string) slog.Attr { return slog.String(key, e.String()) }
