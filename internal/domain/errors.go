package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyItems             = errors.New("at least one item is required")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidID              = errors.New("invalid id")
	ErrMissingCustomer        = errors.New("customer full name and email are required")
	ErrVariantNotFound        = errors.New("variant not found")
	ErrVariantInactive        = errors.New("variant inactive")
	ErrAmountMismatch         = errors.New("payment amount does not match order total")
	ErrInvalidStockAdjustment = errors.New("invalid stock adjustment")
	ErrInvalidPrice           = errors.New("invalid price")
	ErrSKURequired            = errors.New("sku required")
	ErrProductNameRequired    = errors.New("product name required")
	ErrSKUAlreadyExists       = errors.New("sku already exists")

	ErrInsufficientStock = errors.New("insufficient stock")

	ErrGatewayUnavailable     = errors.New("payment gateway unavailable")
	ErrPaymentRejected        = errors.New("payment request rejected by gateway")
	ErrPaymentDetailsRequired = errors.New("payment token and payer email are required")

	// ErrInvariantViolation marks ledger counters that disagree with the requested
	// transition. It is never clamped away.
	ErrInvariantViolation = errors.New("inventory invariant violation")

	ErrReservationExpiredDuringPayment = errors.New("reservation expired before payment was applied")

	ErrOrderNotFound        = errors.New("order not found")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrReservationNotActive = errors.New("reservation not active")
	ErrOrderAlreadySettled  = errors.New("order already settled")
	ErrPaymentInProgress    = errors.New("payment already in progress for order")
)

// InsufficientStockError names the line item that could not be held.
type InsufficientStockError struct {
	VariantID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %s: requested %d, available %d", e.VariantID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// invariantError wraps ErrInvariantViolation with the offending counters.
func invariantError(variantID, op string, quantity, stock, reserved int) error {
	return fmt.Errorf("%w: %s %d on variant %s (stock=%d reserved=%d)",
		ErrInvariantViolation, op, quantity, variantID, stock, reserved)
}
