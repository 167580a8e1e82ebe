package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codewandler/cartes-go/core/es"
	"github.com/codewandler/cartes-go/core/perkey"
	"github.com/codewandler/cartes-go/core/sf"
)

// Service handles cart commands: load the cart, decide, append the decided
// events at the revision the cart was loaded at.
type Service struct {
	log     *slog.Logger
	repo    *Repository
	metrics es.ESMetrics
	now     func() time.Time
	newID   func() string
	retries int
	serial  *perkey.Scheduler[string]
	reads   *sf.Singleflight[loaded]
}

type loaded struct {
	cart *Cart
	rev  es.Revision
}

type commandMetadata struct {
	Command string `json:"command"`
}

func NewService(repo *Repository, opts ...ServiceOption) *Service {
	options := newServiceOpts(opts...)
	s := &Service{
		log:     options.log.With(slog.String("service", Kind)),
		repo:    repo,
		metrics: options.metrics,
		now:     options.now,
		newID:   options.newID,
		retries: options.retries,
		reads:   sf.New[loaded](),
	}
	if options.serialized {
		s.serial = perkey.New[string]()
	}
	return s
}

// Close releases the command scheduler. Commands issued after Close fail.
func (s *Service) Close() {
	if s.serial != nil {
		s.serial.Close()
	}
}

// Open opens a new cart for clientID and returns its id.
func (s *Service) Open(ctx context.Context, clientID string) (string, error) {
	id := s.newID()
	if err := s.OpenWithID(ctx, id, clientID); err != nil {
		return "", err
	}
	return id, nil
}

// OpenWithID opens cart id. It fails with es.ErrConcurrencyConflict if the
// cart already exists.
func (s *Service) OpenWithID(ctx context.Context, id, clientID string) (err error) {
	defer s.observe("open", id, &err)

	events, err := Open(id, clientID)
	if err != nil {
		return err
	}
	return s.exec(ctx, id, func(ctx context.Context) error {
		return s.save(ctx, id, es.NoStream, events, "open")
	})
}

func (s *Service) AddItem(ctx context.Context, id string, item PricedLineItem) error {
	return s.handle(ctx, "add_item", id, func(c *Cart) ([]Event, error) { return c.AddItem(item) })
}

func (s *Service) RemoveItem(ctx context.Context, id string, item PricedLineItem) error {
	return s.handle(ctx, "remove_item", id, func(c *Cart) ([]Event, error) { return c.RemoveItem(item) })
}

func (s *Service) Confirm(ctx context.Context, id string) error {
	return s.handle(ctx, "confirm", id, func(c *Cart) ([]Event, error) { return c.Confirm(s.now()) })
}

func (s *Service) Cancel(ctx context.Context, id string) error {
	return s.handle(ctx, "cancel", id, func(c *Cart) ([]Event, error) { return c.Cancel(s.now()) })
}

// Get loads cart id. Concurrent calls for the same cart share one load;
// every caller gets its own copy. A Get issued after a command of this
// service returned never joins a load that started before the command's
// append, so callers read their own writes.
func (s *Service) Get(ctx context.Context, id string) (*Cart, es.Revision, error) {
	l, shared, err := s.reads.Do(id, func() (loaded, error) {
		c, rev, err := s.repo.Load(ctx, id)
		return loaded{cart: c, rev: rev}, err
	})
	if err != nil {
		return nil, 0, err
	}
	if shared {
		return l.cart.Clone(), l.rev, nil
	}
	return l.cart, l.rev, nil
}

// handle runs one load, decide, save cycle, repeated on conflict as configured.
func (s *Service) handle(
	ctx context.Context,
	command string,
	id string,
	decide func(c *Cart) ([]Event, error),
) (err error) {
	defer s.observe(command, id, &err)

	return s.exec(ctx, id, func(ctx context.Context) error {
		for attempt := 0; ; attempt++ {
			c, rev, err := s.repo.Load(ctx, id)
			if err != nil {
				return err
			}
			events, err := decide(c)
			if err != nil {
				return err
			}
			err = s.save(ctx, id, es.ExactRevision(rev), events, command)
			if err == nil || !errors.Is(err, es.ErrConcurrencyConflict) || attempt >= s.retries {
				return err
			}
			s.log.Debug(
				"conflict, retrying",
				slog.String("command", command),
				slog.String("cart", id),
				slog.Int("attempt", attempt+1),
			)
		}
	})
}

// save appends events and detaches in-flight Gets of id, so a Get issued
// after save returns starts a fresh load.
func (s *Service) save(ctx context.Context, id string, expected es.ExpectedRevision, events []Event, command string) error {
	if _, err := s.repo.Save(ctx, id, expected, events, metadata(command)); err != nil {
		return err
	}
	s.reads.Forget(id)
	return nil
}

func (s *Service) exec(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	if s.serial == nil {
		return fn(ctx)
	}
	return s.serial.DoContext(ctx, id, fn)
}

func (s *Service) observe(command, id string, err *error) {
	outcome := es.Outcome(*err)
	s.metrics.CommandHandled(command, outcome)

	log := s.log.With(slog.String("command", command), slog.String("cart", id), slog.String("outcome", outcome))
	switch outcome {
	case es.OutcomeOK:
		log.Debug("command handled")
	case es.OutcomeRejected, es.OutcomeConflict, es.OutcomeNotFound:
		log.Info("command rejected", slog.Any("error", *err))
	default:
		log.Error("command failed", slog.Any("error", *err))
	}
}

func metadata(command string) es.SaveOption {
	md, err := json.Marshal(commandMetadata{Command: command})
	if err != nil {
		panic(fmt.Sprintf("marshal command metadata: %v", err))
	}
	return es.WithMetadata(md)
}
