package cart

import (
	"fmt"

	"github.com/codewandler/cartes-go/core/es"
)

// Domain errors. All of them match es.ErrDomainViolation.
var (
	ErrInvalidStateTransition = fmt.Errorf("%w: invalid state transition", es.ErrDomainViolation)
	ErrInvalidItem            = fmt.Errorf("%w: invalid item", es.ErrDomainViolation)
	ErrCartMismatch           = fmt.Errorf("%w: event belongs to another cart", es.ErrDomainViolation)
	ErrItemNotInCart          = fmt.Errorf("%w: item not in cart", es.ErrDomainViolation)
	ErrInsufficientQuantity   = fmt.Errorf("%w: insufficient quantity", es.ErrDomainViolation)
)
