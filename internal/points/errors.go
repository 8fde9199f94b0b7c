package points

import (
	"errors"
	"fmt"

	"github.com/dukerupert/roadpoints/internal/model"
)

// Error kinds. Every error returned by the engine matches exactly one of
// these with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidState      = errors.New("invalid state")
	ErrInsufficientFunds = errors.New("insufficient points")
	ErrOutOfStock        = errors.New("out of stock")
	ErrValidation        = errors.New("validation failed")
	ErrStore             = errors.New("store unavailable")
)

// InsufficientFundsError carries the numbers a caller needs to explain a
// rejected debit.
type InsufficientFundsError struct {
	Balance  int64
	Required int64
}

// Shortfall is how many more points the driver needs.
func (e *InsufficientFundsError) Shortfall() int64 { return e.Required - e.Balance }

// ResultingBalance is the balance the debit would have left.
func (e *InsufficientFundsError) ResultingBalance() int64 { return e.Balance - e.Required }

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient points: balance would be %d, need %d more", e.ResultingBalance(), e.Shortfall())
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

type OutOfStockError struct {
	ItemID string
	Stock  int64
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("item %s is out of stock (stock %d)", e.ItemID, e.Stock)
}

func (e *OutOfStockError) Unwrap() error { return ErrOutOfStock }

type InvalidStateError struct {
	OrderID int64
	Status  model.OrderStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("order %d cannot change: status is %s", e.OrderID, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

func forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrForbidden}, args...)...)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// isDomain reports whether err already carries one of the engine's kinds.
func isDomain(err error) bool {
	for _, kind := range []error{
		ErrNotFound, ErrForbidden, ErrInvalidState, ErrInsufficientFunds,
		ErrOutOfStock, ErrValidation, ErrStore,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// storeErr wraps a storage failure as ErrStore while keeping the cause.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}
