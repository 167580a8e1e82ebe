// Package domain is a minimal counter aggregate for repository tests.
package domain

import (
	"errors"
	"fmt"
	"iter"

	"github.com/codewandler/cartes-go/core/es"
	"github.com/codewandler/cartes-go/core/es/assert"
)

const Kind = "test_counter"

var ErrLimitExceeded = fmt.Errorf("%w: counter cannot exceed 24", es.ErrDomainViolation)

type (
	Event interface{ isCounterEvent() }

	Created struct {
		ID string `json:"id"`
	}

	Incremented struct {
		Inc   uint8 `json:"inc,omitempty"`
		Reset bool  `json:"reset,omitempty"`
	}

	Counter struct {
		ID             string
		Counter        uint16
		NumIncrements  int
		NumResets      int
		NumTotalEvents int
	}
)

func (Created) EventType() string     { return "test_counter_created" }
func (Incremented) EventType() string { return "test_counter_incremented" }
func (Created) isCounterEvent()       {}
func (Incremented) isCounterEvent()   {}

func Register(r es.Registrar) {
	es.RegisterEvent[Created](r)
	es.RegisterEvent[Incremented](r)
}

// Apply returns the state after ev. c is left untouched.
func Apply(c *Counter, ev Event) (*Counter, error) {
	switch e := ev.(type) {
	case Created:
		if c != nil {
			return nil, fmt.Errorf("%w: counter %s already created", es.ErrDomainViolation, c.ID)
		}
		return &Counter{ID: e.ID, NumTotalEvents: 1}, nil
	case Incremented:
		if c == nil {
			return nil, es.ErrMissingOpeningEvent
		}
		next := *c
		next.NumTotalEvents++
		if e.Inc > 0 {
			next.Counter += uint16(e.Inc)
			next.NumIncrements++
		}
		if e.Reset {
			next.Counter = 0
			next.NumResets++
		}
		return &next, nil
	}
	return nil, fmt.Errorf("unknown event: %T", ev)
}

func Fold(events iter.Seq2[Event, error]) (*Counter, error) {
	var c *Counter
	for ev, err := range events {
		if err != nil {
			return nil, err
		}
		if c, err = Apply(c, ev); err != nil {
			return nil, err
		}
	}
	if c == nil {
		return nil, es.ErrEmptyStream
	}
	return c, nil
}

// IncBy decides the events to increment c by v.
func IncBy(c *Counter, v uint8) ([]Event, error) {
	if c == nil {
		return nil, errors.New("counter is nil")
	}
	if err := assert.Check(
		ErrLimitExceeded,
		assert.True(c.Counter+uint16(v) <= 24, "counter <= 24"),
	); err != nil {
		return nil, err
	}
	return []Event{Incremented{Inc: v}}, nil
}

func (c *Counter) Count() int { return int(c.Counter) }

func NewRepository(store es.EventStore, opts ...es.RepositoryOption) *es.Repository[*Counter, Event] {
	reg := es.NewRegistry()
	Register(reg)
	return es.NewRepository[*Counter, Event](Kind, store, reg, Fold, opts...)
}
