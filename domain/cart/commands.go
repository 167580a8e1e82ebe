package cart

import (
	"time"

	"github.com/codewandler/cartes-go/core/es/assert"
)

// Decide functions. Each checks the command against the current state and
// returns the events to append, or a domain error. They never change c.

// Open decides the opening of a new cart.
func Open(cartID, clientID string) ([]Event, error) {
	if err := assert.Check(
		ErrInvalidStateTransition,
		assert.True(cartID != "", "cart id is set"),
		assert.True(clientID != "", "client id is set"),
	); err != nil {
		return nil, err
	}
	return []Event{Opened{CartID: cartID, ClientID: clientID}}, nil
}

func (c *Cart) pending() assert.Cond {
	return assert.That("cart is pending", c.IsPending)
}

func (c *Cart) AddItem(item PricedLineItem) ([]Event, error) {
	if err := assert.Check(ErrInvalidStateTransition, c.pending()); err != nil {
		return nil, err
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return []Event{ItemAdded{CartID: c.ID, Item: item}}, nil
}

// RemoveItem rejects removing a product that is not in the cart and removing
// more units than the cart holds.
func (c *Cart) RemoveItem(item PricedLineItem) ([]Event, error) {
	if err := assert.Check(ErrInvalidStateTransition, c.pending()); err != nil {
		return nil, err
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	current, ok := c.Item(item.ProductID)
	if err := assert.Check(ErrItemNotInCart, assert.True(ok, item.ProductID+" is in cart")); err != nil {
		return nil, err
	}
	if err := assert.Check(
		ErrInsufficientQuantity,
		assert.True(item.Quantity <= current.Quantity, "enough units of "+item.ProductID),
	); err != nil {
		return nil, err
	}
	return []Event{ItemRemoved{CartID: c.ID, Item: item}}, nil
}

func (c *Cart) Confirm(at time.Time) ([]Event, error) {
	if err := assert.Check(ErrInvalidStateTransition, c.pending()); err != nil {
		return nil, err
	}
	return []Event{Confirmed{CartID: c.ID, ConfirmedAt: at.UTC()}}, nil
}

func (c *Cart) Cancel(at time.Time) ([]Event, error) {
	if err := assert.Check(ErrInvalidStateTransition, c.pending()); err != nil {
		return nil, err
	}
	return []Event{Canceled{CartID: c.ID, CanceledAt: at.UTC()}}, nil
}
