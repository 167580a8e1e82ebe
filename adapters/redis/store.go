// Package redis implements es.EventStore on Redis. Every stream is a list;
// an event's revision is its list index.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/codewandler/cartes-go/core/es"
)

const (
	defaultAddr      = "localhost:6379"
	defaultKeyPrefix = "cartes:es"
	defaultPageSize  = 256
)

// appendScript checks the expected revision and pushes all events in one
// atomic step. ARGV[1] is "any", "none" or the expected last revision.
// Returns {1, last revision} on success and {0, current length} on conflict.
var appendScript = goredis.NewScript(`
local len = redis.call('LLEN', KEYS[1])
local expected = ARGV[1]
if expected == 'none' then
  if len ~= 0 then return {0, len} end
elseif expected ~= 'any' then
  if len ~= tonumber(expected) + 1 then return {0, len} end
end
for i = 2, #ARGV do
  redis.call('RPUSH', KEYS[1], ARGV[i])
end
return {1, len + #ARGV - 2}
`)

type Config struct {
	// Client is used when set; otherwise a client for Addr is created and
	// closed with the store.
	Client *goredis.Client
	// Addr of the server. Defaults to $REDIS_ADDR, then localhost:6379.
	Addr      string
	KeyPrefix string // KeyPrefix of stream keys (default: cartes:es)
	Log       *slog.Logger
	PageSize  int // PageSize is the number of events per LRANGE on read (default: 256)
}

type EventStore struct {
	rdb       *goredis.Client
	ownClient bool
	log       *slog.Logger
	keyPrefix string
	pageSize  int
	now       func() time.Time
}

// record is the list element of one event.
type record struct {
	EventID    string          `json:"id"`
	EventType  string          `json:"type"`
	Data       json.RawMessage `json:"data"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	RecordedAt int64           `json:"recorded_at"`
}

func NewEventStore(ctx context.Context, cfg Config) (*EventStore, error) {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	rdb, own := cfg.Client, false
	if rdb == nil {
		addr := strings.TrimSpace(cfg.Addr)
		if addr == "" {
			addr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
		}
		if addr == "" {
			addr = defaultAddr
		}
		rdb = goredis.NewClient(&goredis.Options{
			Addr:        addr,
			DialTimeout: 5 * time.Second,
		})
		own = true
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		if own {
			_ = rdb.Close()
		}
		return nil, fmt.Errorf("redis ping: %w", es.Transient(err))
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &EventStore{
		rdb:       rdb,
		ownClient: own,
		log:       log.With(slog.String("store", "redis"), slog.String("keyPrefix", keyPrefix)),
		keyPrefix: keyPrefix,
		pageSize:  pageSize,
		now:       time.Now,
	}, nil
}

func (s *EventStore) Close() error {
	if !s.ownClient {
		return nil
	}
	return s.rdb.Close()
}

func (s *EventStore) key(stream string) string { return s.keyPrefix + ":" + stream }

func expectedArg(e es.ExpectedRevision) string {
	switch {
	case e.IsAny():
		return "any"
	case e.IsNoStream():
		return "none"
	default:
		r, _ := e.Revision()
		return strconv.FormatUint(r.Uint64(), 10)
	}
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

	recordedAt := s.now().UTC().UnixNano()
	args := make([]any, 0, len(events)+1)
	args = append(args, expectedArg(expected))
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return nil, fmt.Errorf("failed to validate event: %w", err)
		}
		raw, err := json.Marshal(record{
			EventID:    ev.ID,
			EventType:  ev.Type,
			Data:       ev.Data,
			Metadata:   ev.Metadata,
			RecordedAt: recordedAt,
		})
		if err != nil {
			return nil, err
		}
		args = append(args, raw)
	}

	res, err := appendScript.Run(ctx, s.rdb, []string{s.key(stream)}, args...).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("append to %s: %w", stream, es.Transient(err))
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("append to %s: unexpected script result %v", stream, res)
	}

	if res[0] == 0 {
		length := res[1]
		return nil, es.NewConflictError(stream, expected, es.CurrentRevision(length > 0, es.Revision(length-1)))
	}

	last := es.Revision(res[1])
	s.log.Debug(
		"appended",
		slog.Group("stream", slog.String("name", stream), last.SlogAttr()),
		slog.Int("num_events", len(events)),
	)
	return &es.AppendResult{Revision: last}, nil
}

func (s *EventStore) ReadStream(ctx context.Context, stream string, opts ...es.ReadOption) (es.Records, error) {
	options := es.NewReadOptions(opts...)
	key := s.key(stream)

	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", stream, es.Transient(err))
	}
	if n == 0 {
		return nil, es.ErrStreamNotFound
	}

	return func(yield func(es.StreamRecord, error) bool) {
		var (
			from  = options.From
			count = 0
		)
		for {
			limit := s.pageSize
			if options.MaxCount > 0 {
				limit = min(limit, options.MaxCount-count)
			}
			start := int64(from)
			page, err := s.rdb.LRange(ctx, key, start, start+int64(limit)-1).Result()
			if err != nil {
				yield(es.StreamRecord{}, fmt.Errorf("read %s: %w", stream, es.Transient(err)))
				return
			}
			for i, raw := range page {
				var r record
				if err := json.Unmarshal([]byte(raw), &r); err != nil {
					yield(es.StreamRecord{}, fmt.Errorf("decode %s@%d: %w", stream, from+es.Revision(i), err))
					return
				}
				if !yield(es.StreamRecord{
					StreamName: stream,
					Revision:   from + es.Revision(i),
					EventID:    r.EventID,
					EventType:  r.EventType,
					Data:       r.Data,
					Metadata:   r.Metadata,
					RecordedAt: time.Unix(0, r.RecordedAt).UTC(),
				}, nil) {
					return
				}
				count++
			}
			if len(page) < limit || options.Done(count) {
				return
			}
			from += es.Revision(len(page))
		}
	}, nil
}

var _ es.EventStore = (*EventStore)(nil)
