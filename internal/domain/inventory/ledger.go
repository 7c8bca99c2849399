package inventory

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/kart-pos/internal/domain/fault"
)

// Transactor runs fn inside a single database transaction carried by ctx.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Ledger is the only writer of stock levels.
//
// Reserve and Release do not open their own transaction; callers compose
// them into larger units of work (cart add/remove). Set runs standalone.
type Ledger struct {
	repo Repository
	tx   Transactor
	now  func() time.Time
}

// NewLedger creates a Ledger.
func NewLedger(repo Repository, tx Transactor) *Ledger {
	return &Ledger{repo: repo, tx: tx, now: time.Now}
}

// Reserve takes qty units of a product out of stock on behalf of ref.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int, ref string) error {
	if qty <= 0 {
		return fault.Invalid("quantity must be greater than 0")
	}

	available, ok, err := l.repo.Reserve(ctx, productID, qty)
	if err != nil {
		return errors.Wrap(err, "reserve stock")
	}
	if !ok {
		return &InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
	}

	return l.record(ctx, productID, -qty, ReasonReserve, ref)
}

// Release returns qty units of a product to stock on behalf of ref.
func (l *Ledger) Release(ctx context.Context, productID string, qty int, ref string) error {
	if qty <= 0 {
		return fault.Invalid("quantity must be greater than 0")
	}
	if err := l.repo.Release(ctx, productID, qty); err != nil {
		return errors.Wrap(err, "release stock")
	}
	return l.record(ctx, productID, qty, ReasonRelease, ref)
}

// Set overwrites the stock level of a product, recording the difference as
// an adjustment.
func (l *Ledger) Set(ctx context.Context, productID string, stock int, ref string) error {
	if stock < 0 {
		return fault.Invalid("stock must not be negative")
	}

	return l.tx.InTx(ctx, func(ctx context.Context) error {
		previous, err := l.repo.Set(ctx, productID, stock)
		if err != nil {
			return errors.Wrap(err, "set stock")
		}
		if delta := stock - previous; delta != 0 {
			return l.record(ctx, productID, delta, ReasonAdjust, ref)
		}
		return nil
	})
}

// Open records the stock a newly created product starts with. The level
// itself is written with the product row; callers run both in one
// transaction.
func (l *Ledger) Open(ctx context.Context, productID string, stock int, ref string) error {
	switch {
	case stock < 0:
		return fault.Invalid("stock must not be negative")
	case stock == 0:
		return nil
	}
	return l.record(ctx, productID, stock, ReasonAdjust, ref)
}

// Movements returns the most recent stock movements of a product.
func (l *Ledger) Movements(ctx context.Context, productID string, limit int) ([]Movement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	ms, err := l.repo.ListMovements(ctx, productID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list stock movements")
	}
	return ms, nil
}

func (l *Ledger) record(ctx context.Context, productID string, delta int, reason Reason, ref string) error {
	m := &Movement{
		ID:        uuid.New().String(),
		ProductID: productID,
		Delta:     delta,
		Reason:    reason,
		Ref:       ref,
		CreatedAt: l.now(),
	}
	if err := l.repo.RecordMovement(ctx, m); err != nil {
		return errors.Wrap(err, "record stock movement")
	}
	return nil
}
