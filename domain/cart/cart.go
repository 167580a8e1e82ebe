// Package cart implements the shopping cart aggregate: its events, the pure
// state machine folding them, the decide functions producing them and a
// service tying both to an event store.
package cart

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/codewandler/cartes-go/core/es"
)

// Kind is the aggregate kind; cart streams are named "shopping_cart-<id>".
const Kind = "shopping_cart"

// Status is the lifecycle state of a cart. Confirmed and Canceled are terminal.
type Status uint8

const (
	StatusPending Status = iota + 1
	StatusConfirmed
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Cart is the state of a shopping cart as folded from its events.
// A Cart returned by Apply is never mutated afterwards; use Clone before
// changing a copy by hand.
type Cart struct {
	ID          string           `json:"id"`
	ClientID    string           `json:"clientId"`
	Status      Status           `json:"status"`
	Items       []PricedLineItem `json:"items"`
	ConfirmedAt time.Time        `json:"confirmedAt,omitzero"`
	CanceledAt  time.Time        `json:"canceledAt,omitzero"`
}

func (c *Cart) IsPending() bool { return c != nil && c.Status == StatusPending }

// Item returns the line of productID.
func (c *Cart) Item(productID string) (PricedLineItem, bool) {
	i := c.indexOf(productID)
	if i < 0 {
		return PricedLineItem{}, false
	}
	return c.Items[i], true
}

// ItemCount returns the number of units over all lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// TotalAmount sums the total price of all lines.
func (c *Cart) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.TotalPrice())
	}
	return total
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = slices.Clone(c.Items)
	return &out
}

func (c *Cart) indexOf(productID string) int {
	return slices.IndexFunc(c.Items, func(it PricedLineItem) bool { return it.ProductID == productID })
}

func transitionError(c *Cart, ev Event) error {
	if c == nil {
		return fmt.Errorf("%w: %s on a cart that was not opened", ErrInvalidStateTransition, ev.EventType())
	}
	return fmt.Errorf("%w: %s on %s cart %s", ErrInvalidStateTransition, ev.EventType(), c.Status, c.ID)
}

// Apply returns the state after ev. prior is nil before the first event and
// is never modified. Every error matches es.ErrDomainViolation.
func Apply(prior *Cart, ev Event) (*Cart, error) {
	if ev == nil {
		return nil, fmt.Errorf("%w: nil event", es.ErrDomainViolation)
	}
	if prior != nil && ev.AggregateID() != prior.ID {
		return nil, fmt.Errorf("%w: %s for %s applied to %s", ErrCartMismatch, ev.EventType(), ev.AggregateID(), prior.ID)
	}

	if _, opening := ev.(Opened); !opening && !prior.IsPending() {
		return nil, transitionError(prior, ev)
	}

	switch e := ev.(type) {
	case Opened:
		if prior != nil {
			return nil, transitionError(prior, ev)
		}
		return &Cart{
			ID:       e.CartID,
			ClientID: e.ClientID,
			Status:   StatusPending,
			Items:    []PricedLineItem{},
		}, nil

	case ItemAdded:
		if err := e.Item.Validate(); err != nil {
			return nil, err
		}
		next := prior.Clone()
		if i := next.indexOf(e.Item.ProductID); i >= 0 {
			next.Items[i] = PricedLineItem{
				ProductID: e.Item.ProductID,
				Quantity:  next.Items[i].Quantity + e.Item.Quantity,
				UnitPrice: e.Item.UnitPrice,
			}
		} else {
			next.Items = append(next.Items, e.Item)
		}
		return next, nil

	case ItemRemoved:
		if err := e.Item.Validate(); err != nil {
			return nil, err
		}
		next := prior.Clone()
		i := next.indexOf(e.Item.ProductID)
		if i < 0 {
			return next, nil
		}
		// over-removal is clamped, deciding not to over-remove is up to the caller
		if left := next.Items[i].Quantity - e.Item.Quantity; left > 0 {
			next.Items[i].Quantity = left
		} else {
			next.Items = slices.Delete(next.Items, i, i+1)
		}
		return next, nil

	case Confirmed:
		next := prior.Clone()
		next.Status = StatusConfirmed
		next.ConfirmedAt = e.ConfirmedAt
		return next, nil

	case Canceled:
		next := prior.Clone()
		next.Status = StatusCanceled
		next.CanceledAt = e.CanceledAt
		return next, nil

	default:
		return nil, fmt.Errorf("%w: unknown event %T", es.ErrDomainViolation, ev)
	}
}
