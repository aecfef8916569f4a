package app

import (
	"fmt"
	"math"

	"github.com/bintangnusa/pos-backend/internal/pos_service/domain"
)

// CartLine is one requested sale line.
type CartLine struct {
	ProductID int64
	Quantity  int
	Discount  int64
}

// PricedLine is a cart line priced against the catalog snapshot.
type PricedLine struct {
	Product  *domain.Product
	Quantity int
	Discount int64
	Subtotal int64
}

// PricedOrder is the result of pricing a cart: per-line subtotals plus the
// aggregate amounts that end up on the transaction.
type PricedOrder struct {
	Lines      []PricedLine
	Subtotal   int64
	Discount   int64
	Tax        int64
	Total      int64
	TaxPercent float64
}

// PriceCart computes totals for a cart against the given catalog snapshot.
// Pure: no side effects, prices are whatever the snapshot says right now.
//
//	line subtotal = price*quantity - lineDiscount
//	tax           = round-half-up((subtotal - discount) * taxPercent / 100)
//	total         = (subtotal - discount) + tax
func PriceCart(products map[int64]*domain.Product, lines []CartLine, overallDiscount int64, taxPercent float64) (*PricedOrder, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", domain.ErrInvalidCart)
	}
	if overallDiscount < 0 {
		return nil, fmt.Errorf("%w: discount must not be negative", domain.ErrInvalidCart)
	}
	if taxPercent < 0 || taxPercent > 100 {
		return nil, fmt.Errorf("%w: tax percentage must be between 0 and 100", domain.ErrInvalidCart)
	}

	order := &PricedOrder{
		Lines:      make([]PricedLine, 0, len(lines)),
		Discount:   overallDiscount,
		TaxPercent: taxPercent,
	}

	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1 for product %d", domain.ErrInvalidCart, line.ProductID)
		}
		if line.Discount < 0 {
			return nil, fmt.Errorf("%w: line discount must not be negative for product %d", domain.ErrInvalidCart, line.ProductID)
		}
		product, ok := products[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d does not exist", domain.ErrInvalidCart, line.ProductID)
		}
		if !product.IsActive {
			return nil, fmt.Errorf("%w: product %s is inactive", domain.ErrInvalidCart, product.Name)
		}

		subtotal := product.Price*int64(line.Quantity) - line.Discount
		if subtotal < 0 {
			return nil, fmt.Errorf("%w: line discount exceeds line amount for product %s", domain.ErrInvalidCart, product.Name)
		}

		order.Lines = append(order.Lines, PricedLine{
			Product:  product,
			Quantity: line.Quantity,
			Discount: line.Discount,
			Subtotal: subtotal,
		})
		order.Subtotal += subtotal
	}

	taxable := order.Subtotal - order.Discount
	if taxable < 0 {
		return nil, fmt.Errorf("%w: discount exceeds subtotal", domain.ErrInvalidCart)
	}

	// Round half up on the integral currency unit. Amounts are
	// non-negative, so half away from zero is half up.
	order.Tax = int64(math.Round(float64(taxable) * taxPercent / 100))
	order.Total = taxable + order.Tax
	return order, nil
}
