package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Error kinds. Every error returned by the engine wraps exactly one of these.
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrNotFound            = errors.New("not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrAlreadyCombined     = errors.New("order already combined")
	ErrAlreadyUnpaid       = errors.New("order already in unpaid list")
	ErrNothingToCombine    = errors.New("no open orders to combine")
	ErrNoOpenOrders        = errors.New("no open orders for table")
	ErrConflict            = errors.New("conflict")
	ErrStorageFailure      = errors.New("storage failure")
)

// Validation errors.
var (
	ErrEmptyItems            = invalid("items are required")
	ErrInvalidQuantity       = invalid("quantity must be > 0")
	ErrInvalidProductID      = invalid("invalid product_id")
	ErrInvalidCustomerID     = invalid("invalid customer_id")
	ErrInvalidTableID        = invalid("invalid table_id")
	ErrInvalidOrderID        = invalid("invalid order_id")
	ErrInvalidEntryID        = invalid("invalid unpaid entry id")
	ErrPaymentMethodRequired = invalid("payment_method is required")
	ErrInvalidDiscount       = invalid("invalid discount_type")
	ErrInvalidDiscountValue  = invalid("invalid discount_value")
	ErrInvalidDiscountAmount = invalid("discount_amount must be a non-negative amount in cents")
	ErrDiscountExceedsTotal  = invalid("discount_amount exceeds the table total")
	ErrInvalidAmount         = invalid("amount_paid must be a non-negative amount in cents")
	ErrInvalidStatus         = invalid("invalid order status")
	ErrCustomerNameRequired  = invalid("customer_name is required")
	ErrInvalidStockQuantity  = invalid("quantity must be > 0")
	ErrInvalidStockDelta     = invalid("delta must not be zero")
	ErrCombinedNotParkable   = invalid("combined orders are settled at the table")
)

// Lookup errors.
var (
	ErrProductNotFound     = fmt.Errorf("product %w", ErrNotFound)
	ErrOrderNotFound       = fmt.Errorf("order %w", ErrNotFound)
	ErrTableNotFound       = fmt.Errorf("table %w", ErrNotFound)
	ErrUnpaidEntryNotFound = fmt.Errorf("unpaid entry %w", ErrNotFound)
)

// State conflicts.
var (
	ErrOrderAlreadyPaid = fmt.Errorf("%w: order is already paid", ErrConflict)
	ErrOrderClosed      = fmt.Errorf("%w: order is cancelled or refunded", ErrConflict)
)

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, msg)
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}

// InsufficientStockError reports the first product that cannot cover an order.
type InsufficientStockError struct {
	ProductID   uuid.UUID
	ProductName string
	Available   int32
	Requested   int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InsufficientPaymentError carries the amounts a cashier needs to see.
type InsufficientPaymentError struct {
	Required decimal.Decimal
	Paid     decimal.Decimal
}

func (e *InsufficientPaymentError) Shortfall() decimal.Decimal {
	return e.Required.Sub(e.Paid)
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("insufficient payment: required %s, paid %s, short %s",
		e.Required.StringFixed(2), e.Paid.StringFixed(2), e.Shortfall().StringFixed(2))
}

func (e *InsufficientPaymentError) Unwrap() error { return ErrInsufficientPayment }

// Stable kind names, used in API error bodies and logs.
const (
	KindInvalidRequest      = "INVALID_REQUEST"
	KindNotFound            = "NOT_FOUND"
	KindInsufficientStock   = "INSUFFICIENT_STOCK"
	KindInsufficientPayment = "INSUFFICIENT_PAYMENT"
	KindAlreadyCombined     = "ALREADY_COMBINED"
	KindAlreadyUnpaid       = "ALREADY_UNPAID"
	KindNothingToCombine    = "NOTHING_TO_COMBINE"
	KindNoOpenOrders        = "NO_OPEN_ORDERS"
	KindConflict            = "CONFLICT"
	KindStorageFailure      = "STORAGE_FAILURE"
	KindInternal            = "INTERNAL"
)

// KindOf classifies err. Errors that wrap none of the engine's kinds are INTERNAL.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrInsufficientPayment):
		return KindInsufficientPayment
	case errors.Is(err, ErrAlreadyCombined):
		return KindAlreadyCombined
	case errors.Is(err, ErrAlreadyUnpaid):
		return KindAlreadyUnpaid
	case errors.Is(err, ErrNothingToCombine):
		return KindNothingToCombine
	case errors.Is(err, ErrNoOpenOrders):
		return KindNoOpenOrders
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrStorageFailure):
		return KindStorageFailure
	}
	return KindInternal
}
