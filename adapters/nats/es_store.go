package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/codewandler/cartes-go/core/es"
)

const (
	defaultSubjectPrefix = "cartes.es"
	defaultStreamName    = "CARTES_ES"
	defaultFetchBatch    = 100
	defaultFetchWait     = 2 * time.Second

	hdrStream        = "x-stream"
	hdrFirstRevision = "x-first-revision"
	hdrLastRevision  = "x-last-revision"

	// JetStream API error code for a failed Nats-Expected-Last-Subject-Sequence check.
	errCodeWrongLastSequence jetstream.ErrorCode = 10071
)

type EventStoreConfig struct {
	Connect       Connector    // Connect is used to create the underlying NATS connection. If nil, ConnectDefault() is used.
	Log           *slog.Logger // Log for diagnostics (optional)
	SubjectPrefix string       // SubjectPrefix is the prefix of every stream subject (default: cartes.es)
	StreamName    string       // StreamName of the JetStream stream (default: CARTES_ES)

	// InMemory stores the JetStream stream in memory instead of on disk.
	InMemory bool
	// Duplicates is the window in which a resubmitted commit is dropped (default: 2m).
	Duplicates time.Duration
	// FetchBatch is the number of commits fetched per round trip on read (default: 100).
	FetchBatch int
	// FetchWait bounds a single fetch round trip on read (default: 2s).
	FetchWait time.Duration
}

// EventStore stores every cart stream on its own subject of one JetStream
// stream. Each Append is published as a single message (a commit) holding
// all its events, so appends are atomic. Optimistic concurrency is enforced
// by the server through the expected last sequence per subject.
type EventStore struct {
	nc            *natsgo.Conn
	closeNc       closeFunc
	js            jetstream.JetStream
	stream        jetstream.Stream
	log           *slog.Logger
	subjectPrefix string
	streamName    string
	fetchBatch    int
	fetchWait     time.Duration
}

// commit is the message payload of one append.
type commit struct {
	ID            string         `json:"id"`
	Stream        string         `json:"stream"`
	FirstRevision es.Revision    `json:"first_revision"`
	Events        []es.EventData `json:"events"`
}

func NewEventStore(cfg EventStoreConfig) (*EventStore, error) {
	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	nc, closeNatsCon, err := doConnect()
	if err != nil {
		return nil, es.Transient(err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		closeNatsCon()
		return nil, err
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	streamName := strings.ToUpper(cfg.StreamName)
	if streamName == "" {
		streamName = defaultStreamName
	}

	subjectPrefix := cfg.SubjectPrefix
	if subjectPrefix == "" {
		subjectPrefix = defaultSubjectPrefix
	}

	storage := jetstream.FileStorage
	if cfg.InMemory {
		storage = jetstream.MemoryStorage
	}

	duplicates := cfg.Duplicates
	if duplicates == 0 {
		duplicates = 2 * time.Minute
	}

	log = log.With(
		slog.String("store", "nats_js"),
		slog.String("stream", streamName),
		slog.String("subjectPrefix", subjectPrefix),
	)

	log.Debug("ensuring stream")

	stream, streamInfo, err := ensureStream(js, jetstream.StreamConfig{
		Name:       streamName,
		Subjects:   []string{subjectPrefix + ".>"},
		Retention:  jetstream.LimitsPolicy,
		Storage:    storage,
		Duplicates: duplicates,
		DenyDelete: true,
		DenyPurge:  true,
		FirstSeq:   1,
	})
	if err != nil {
		closeNatsCon()
		return nil, err
	}

	log.Debug("ensured", slog.Any("stream", streamInfo.Config.Name))

	e := &EventStore{
		nc:            nc,
		closeNc:       closeNatsCon,
		js:            js,
		log:           log,
		stream:        stream,
		subjectPrefix: subjectPrefix,
		streamName:    streamName,
		fetchBatch:    cfg.FetchBatch,
		fetchWait:     cfg.FetchWait,
	}
	if e.fetchBatch <= 0 {
		e.fetchBatch = defaultFetchBatch
	}
	if e.fetchWait <= 0 {
		e.fetchWait = defaultFetchWait
	}
	return e, nil
}

func (e *EventStore) Close() error {
	e.js.CleanupPublisher()
	e.closeNc()
	e.log.Debug("closed event store")
	return nil
}

func (e *EventStore) Append(
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

	subject := e.subjectFor(stream)

	// best-effort pre-check, the server enforces it again on publish
	lastSeq, actual, err := e.head(ctx, subject)
	if err != nil {
		return nil, err
	}
	if !expected.Matches(actual) {
		return nil, es.NewConflictError(stream, expected, actual)
	}

	var (
		first = actual.NextRevision()
		last  = first + es.Revision(len(events)-1)
		c     = commit{
			ID:            stream + "/" + events[0].ID,
			Stream:        stream,
			FirstRevision: first,
			Events:        events,
		}
	)

	msg := natsgo.NewMsg(subject)
	msg.Header.Set(hdrStream, stream)
	msg.Header.Set(hdrFirstRevision, strconv.FormatUint(first.Uint64(), 10))
	msg.Header.Set(hdrLastRevision, strconv.FormatUint(last.Uint64(), 10))
	if msg.Data, err = json.Marshal(c); err != nil {
		return nil, err
	}

	ack, err := e.js.PublishMsg(
		ctx,
		msg,
		jetstream.WithMsgID(c.ID),
		jetstream.WithExpectLastSequencePerSubject(lastSeq),
	)
	if err != nil {
		var apiErr *jetstream.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode == errCodeWrongLastSequence {
			// another commit won the race; report what it left behind
			_, actual, headErr := e.head(ctx, subject)
			if headErr != nil {
				return nil, headErr
			}
			return nil, es.NewConflictError(stream, expected, actual)
		}
		return nil, fmt.Errorf("failed to append to subject %s: %w", subject, es.Transient(err))
	}

	if ack.Duplicate {
		// the same commit was stored before, answer with its revision
		if last, err = e.lastRevisionAt(ctx, ack.Sequence); err != nil {
			return nil, err
		}
		e.log.Debug("duplicate commit", slog.String("commit", c.ID), last.SlogAttr())
	}

	e.log.Debug(
		"appended",
		slog.Group("stream", slog.String("name", stream), last.SlogAttr()),
		slog.Uint64("seq", ack.Sequence),
		slog.Int("num_events", len(events)),
	)

	return &es.AppendResult{Revision: last}, nil
}

func (e *EventStore) ReadStream(ctx context.Context, stream string, opts ...es.ReadOption) (es.Records, error) {
	options := es.NewReadOptions(opts...)
	subject := e.subjectFor(stream)

	endSeq, actual, err := e.head(ctx, subject)
	if err != nil {
		return nil, err
	}
	if actual.IsNoStream() {
		return nil, es.ErrStreamNotFound
	}
	if last, _ := actual.Revision(); options.From > last {
		return func(func(es.StreamRecord, error) bool) {}, nil
	}

	return func(yield func(es.StreamRecord, error) bool) {
		cc, err := e.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
			DeliverPolicy:     jetstream.DeliverAllPolicy,
			FilterSubjects:    []string{subject},
			InactiveThreshold: 30 * time.Second,
		})
		if err != nil {
			yield(es.StreamRecord{}, es.Transient(err))
			return
		}
		defer e.dropConsumer(cc)

		n := 0
		for {
			mb, err := cc.Fetch(e.fetchBatch, jetstream.FetchMaxWait(e.fetchWait))
			if err != nil {
				yield(es.StreamRecord{}, es.Transient(err))
				return
			}

			empty := true
			for msg := range mb.Messages() {
				empty = false
				md, err := msg.Metadata()
				if err != nil {
					yield(es.StreamRecord{}, err)
					return
				}
				var c commit
				if err := json.Unmarshal(msg.Data(), &c); err != nil {
					yield(es.StreamRecord{}, fmt.Errorf("failed to decode commit at seq %d: %w", md.Sequence.Stream, err))
					return
				}
				for i, ev := range c.Events {
					rev := c.FirstRevision + es.Revision(i)
					if rev < options.From {
						continue
					}
					if options.Done(n) {
						return
					}
					if !yield(es.StreamRecord{
						StreamName: stream,
						Revision:   rev,
						EventID:    ev.ID,
						EventType:  ev.Type,
						Data:       ev.Data,
						Metadata:   ev.Metadata,
						RecordedAt: md.Timestamp.UTC(),
					}, nil) {
						return
					}
					n++
				}
				if md.Sequence.Stream >= endSeq {
					return
				}
			}
			if err := mb.Error(); err != nil && !errors.Is(err, natsgo.ErrTimeout) {
				yield(es.StreamRecord{}, es.Transient(err))
				return
			}
			if empty {
				yield(es.StreamRecord{}, es.Transient(fmt.Errorf("stream %s ended before seq %d", stream, endSeq)))
				return
			}
		}
	}, nil
}

// head returns the stream sequence of the last commit on subject and the
// stream state it left. seq is 0 if there is no commit yet.
func (e *EventStore) head(ctx context.Context, subject string) (seq uint64, actual es.ExpectedRevision, err error) {
	lm, err := e.stream.GetLastMsgForSubject(ctx, subject)
	if err != nil {
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			return 0, es.NoStream, nil
		}
		return 0, es.NoStream, fmt.Errorf("failed to get last message for subject %q: %w", subject, es.Transient(err))
	}
	last, err := lastRevision(lm)
	if err != nil {
		return 0, es.NoStream, err
	}
	return lm.Sequence, es.ExactRevision(last), nil
}

func (e *EventStore) lastRevisionAt(ctx context.Context, seq uint64) (es.Revision, error) {
	m, err := e.stream.GetMsg(ctx, seq)
	if err != nil {
		return 0, es.Transient(err)
	}
	return lastRevision(m)
}

func lastRevision(m *jetstream.RawStreamMsg) (es.Revision, error) {
	v, err := strconv.ParseUint(m.Header.Get(hdrLastRevision), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("commit at seq %d: invalid %s header: %w", m.Sequence, hdrLastRevision, err)
	}
	return es.Revision(v), nil
}

func (e *EventStore) dropConsumer(cc jetstream.Consumer) {
	info := cc.CachedInfo()
	if info == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), natsgo.DefaultTimeout)
	defer cancel()
	if err := e.stream.DeleteConsumer(ctx, info.Name); err != nil && !errors.Is(err, jetstream.ErrConsumerNotFound) {
		e.log.Debug("failed to delete read consumer", slog.String("consumer", info.Name), slog.Any("error", err))
	}
}

func ensureStream(js jetstream.JetStream, cfg jetstream.StreamConfig) (s jetstream.Stream, si *jetstream.StreamInfo, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*natsgo.DefaultTimeout)
	defer cancel()

	s, err = js.CreateOrUpdateStream(ctx, cfg)
	if err != nil {
		return nil, nil, es.Transient(err)
	}
	si, err = s.Info(ctx)
	if err != nil {
		return nil, nil, es.Transient(err)
	}
	return s, si, nil
}

// subjectFor maps a stream name to its subject. Bytes NATS reserves for
// tokens and wildcards, whitespace, non-ASCII bytes and the escape byte '%'
// itself are written as %XX, so distinct stream names never share a subject.
func (e *EventStore) subjectFor(stream string) string {
	var b strings.Builder
	b.Grow(len(e.subjectPrefix) + 1 + len(stream))
	b.WriteString(e.subjectPrefix)
	b.WriteByte('.')
	for i := 0; i < len(stream); i++ {
		c := stream[i]
		switch {
		case c == '%', c == '.', c == '*', c == '>', c <= ' ', c >= 0x7f:
			fmt.Fprintf(&b, "%%%02X", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

var _ es.EventStore = &EventStore{}
