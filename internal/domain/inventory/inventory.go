// Package inventory owns product stock. Every change to a stock level is an
// explicit reservation, release or adjustment recorded as a Movement.
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/xenking/kart-pos/internal/domain/fault"
)

// Reason labels why stock moved.
type Reason string

const (
	ReasonReserve Reason = "reserve"
	ReasonRelease Reason = "release"
	ReasonAdjust  Reason = "adjust"
)

// Movement is one audited stock change.
type Movement struct {
	ID        string
	ProductID string
	Delta     int
	Reason    Reason
	Ref       string
	CreatedAt time.Time
}

// InsufficientStockError is returned when a reservation exceeds the
// available stock.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// FaultKind implements fault.Kinded.
func (e *InsufficientStockError) FaultKind() fault.Kind { return fault.KindInvalid }

// Repository performs atomic stock updates. Reserve must decrement only when
// enough stock remains and report the current level otherwise.
type Repository interface {
	// Reserve decrements stock by qty if at least qty is available. ok is
	// false and available holds the current stock when it is not.
	Reserve(ctx context.Context, productID string, qty int) (available int, ok bool, err error)
	// Release increments stock by qty.
	Release(ctx context.Context, productID string, qty int) error
	// Set overwrites stock and returns the previous level.
	Set(ctx context.Context, productID string, stock int) (previous int, err error)
	RecordMovement(ctx context.Context, m *Movement) error
	ListMovements(ctx context.Context, productID string, limit int) ([]Movement, error)
}
