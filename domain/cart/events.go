package cart

import (
	"fmt"
	"time"

	"github.com/codewandler/cartes-go/core/es"
)

// Event is a fact about one cart. The set of events is closed: only the
// types in this file implement it.
type Event interface {
	es.Typed
	AggregateID() string
	isCartEvent()
}

type (
	Opened struct {
		CartID   string `json:"shoppingCartId"`
		ClientID string `json:"clientId"`
	}

	ItemAdded struct {
		CartID string         `json:"shoppingCartId"`
		Item   PricedLineItem `json:"productItem"`
	}

	ItemRemoved struct {
		CartID string         `json:"shoppingCartId"`
		Item   PricedLineItem `json:"productItem"`
	}

	Confirmed struct {
		CartID      string    `json:"shoppingCartId"`
		ConfirmedAt time.Time `json:"confirmedAt"`
	}

	Canceled struct {
		CartID     string    `json:"shoppingCartId"`
		CanceledAt time.Time `json:"canceledAt"`
	}
)

func (Opened) EventType() string      { return "shopping-cart-opened" }
func (ItemAdded) EventType() string   { return "product-item-added-to-shopping-cart" }
func (ItemRemoved) EventType() string { return "product-item-removed-from-shopping-cart" }
func (Confirmed) EventType() string   { return "shopping-cart-confirmed" }
func (Canceled) EventType() string    { return "shopping-cart-canceled" }

func (e Opened) AggregateID() string      { return e.CartID }
func (e ItemAdded) AggregateID() string   { return e.CartID }
func (e ItemRemoved) AggregateID() string { return e.CartID }
func (e Confirmed) AggregateID() string   { return e.CartID }
func (e Canceled) AggregateID() string    { return e.CartID }

func (Opened) isCartEvent()      {}
func (ItemAdded) isCartEvent()   {}
func (ItemRemoved) isCartEvent() {}
func (Confirmed) isCartEvent()   {}
func (Canceled) isCartEvent()    {}

var errNoCartID = fmt.Errorf("%w: cart id is empty", ErrInvalidStateTransition)

func (e Opened) Validate() error {
	if e.CartID == "" {
		return errNoCartID
	}
	if e.ClientID == "" {
		return fmt.Errorf("%w: client id is empty", ErrInvalidStateTransition)
	}
	return nil
}

func (e ItemAdded) Validate() error {
	if e.CartID == "" {
		return errNoCartID
	}
	return e.Item.Validate()
}

func (e ItemRemoved) Validate() error {
	if e.CartID == "" {
		return errNoCartID
	}
	return e.Item.Validate()
}

func (e Confirmed) Validate() error {
	if e.CartID == "" {
		return errNoCartID
	}
	return nil
}

func (e Canceled) Validate() error {
	if e.CartID == "" {
		return errNoCartID
	}
	return nil
}

// Register registers all cart events with r.
func Register(r es.Registrar) {
	es.RegisterEvent[Opened](r)
	es.RegisterEvent[ItemAdded](r)
	es.RegisterEvent[ItemRemoved](r)
	es.RegisterEvent[Confirmed](r)
	es.RegisterEvent[Canceled](r)
}

// NewRegistry returns a registry with all cart events registered.
func NewRegistry() *es.EventRegistry {
	reg := es.NewRegistry()
	Register(reg)
	return reg
}
