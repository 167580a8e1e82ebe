package cart

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PricedLineItem is a product line of a cart. Two items with the same
// ProductID are the same product line.
type PricedLineItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func NewItem(productID string, quantity int, unitPrice decimal.Decimal) PricedLineItem {
	return PricedLineItem{ProductID: productID, Quantity: quantity, UnitPrice: unitPrice}
}

// TotalPrice returns UnitPrice * Quantity.
func (i PricedLineItem) TotalPrice() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Equal compares by value. Prices are compared numerically, so 1.0 equals 1.
func (i PricedLineItem) Equal(o PricedLineItem) bool {
	return i.ProductID == o.ProductID && i.Quantity == o.Quantity && i.UnitPrice.Equal(o.UnitPrice)
}

func (i PricedLineItem) Validate() error {
	switch {
	case i.ProductID == "":
		return fmt.Errorf("%w: product id is empty", ErrInvalidItem)
	case i.Quantity <= 0:
		return fmt.Errorf("%w: quantity of %s must be positive, got %d", ErrInvalidItem, i.ProductID, i.Quantity)
	case i.UnitPrice.IsNegative():
		return fmt.Errorf("%w: unit price of %s must not be negative, got %s", ErrInvalidItem, i.ProductID, i.UnitPrice)
	}
	return nil
}

func (i PricedLineItem) String() string {
	return fmt.Sprintf("%s x%d @%s", i.ProductID, i.Quantity, i.UnitPrice)
}
