package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals that a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidCart signals a malformed sale request: empty cart,
	// quantity below one, negative discounts, or a missing/inactive
	// product.
	ErrInvalidCart = errors.New("invalid cart")

	// ErrInsufficientStock signals that a requested quantity exceeds the
	// available stock. Callers usually receive it wrapped in
	// InsufficientStockError, which names the offending product.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrGatewayUnavailable signals that the payment gateway rejected or
	// never answered a request. During submit this aborts the whole unit.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrInvalidSignature signals a webhook whose signature does not match.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrSequencingConflict signals that invoice numbering could not be
	// serialized within the retry budget.
	ErrSequencingConflict = errors.New("invoice sequencing conflict")
)

// InsufficientStockError carries the product name and available quantity so
// the API can tell the cashier exactly what ran out.
type InsufficientStockError struct {
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stok %s tidak cukup. Stok tersedia: %d", e.ProductName, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
