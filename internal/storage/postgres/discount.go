package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-pos/internal/domain/discount"
)

const (
	discountColumns = `id, name, kind, value, starts_at, ends_at, product_id, active, created_at`

	listDiscountsSQL = `SELECT ` + discountColumns + ` FROM discounts ORDER BY created_at DESC, id`

	getDiscountByIDSQL = `SELECT ` + discountColumns + ` FROM discounts WHERE id = $1`

	findApplicableDiscountSQL = `SELECT ` + discountColumns + `
		FROM discounts
		WHERE product_id = $1 AND active
			AND (starts_at IS NULL OR starts_at <= $2)
			AND (ends_at IS NULL OR ends_at >= $2)
		ORDER BY created_at DESC, id
		LIMIT 1`

	listActiveProductDiscountsSQL = `SELECT ` + discountColumns + `
		FROM discounts WHERE product_id = $1 AND active`

	createDiscountSQL = `INSERT INTO discounts (` + discountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	updateDiscountSQL = `UPDATE discounts
		SET name = $2, kind = $3, value = $4, starts_at = $5, ends_at = $6, product_id = $7, active = $8
		WHERE id = $1`

	deleteDiscountSQL = `DELETE FROM discounts WHERE id = $1`

	lockProductDiscountsSQL = `SELECT pg_advisory_xact_lock(hashtext('discount:' || $1::text))`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	conn
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{conn{pool: pool}}
}

// List returns all discounts, newest first.
func (r *DiscountRepository) List(ctx context.Context) ([]discount.Discount, error) {
	rows, err := r.q(ctx).Query(ctx, listDiscountsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing discounts: %w", err)
	}
	return pgx.CollectRows(rows, scanDiscount)
}

// GetByID returns a discount by its identifier.
func (r *DiscountRepository) GetByID(ctx context.Context, id string) (*discount.Discount, error) {
	rows, err := r.q(ctx).Query(ctx, getDiscountByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting discount %q: %w", id, err)
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, fmt.Errorf("getting discount %q: %w", id, err)
	}
	return &d, nil
}

// FindApplicable returns the newest active discount of productID covering
// at, or nil when there is none.
func (r *DiscountRepository) FindApplicable(ctx context.Context, productID string, at time.Time) (*discount.Discount, error) {
	rows, err := r.q(ctx).Query(ctx, findApplicableDiscountSQL, productID, at)
	if err != nil {
		return nil, fmt.Errorf("resolving discount for %q: %w", productID, err)
	}

	d, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolving discount for %q: %w", productID, err)
	}
	return &d, nil
}

// ListActiveForProduct returns every active discount scoped to productID.
func (r *DiscountRepository) ListActiveForProduct(ctx context.Context, productID string) ([]discount.Discount, error) {
	rows, err := r.q(ctx).Query(ctx, listActiveProductDiscountsSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("listing discounts of %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, scanDiscount)
}

// LockProduct takes a transaction-scoped advisory lock on the discounts of
// productID. It must run inside Store.InTx.
func (r *DiscountRepository) LockProduct(ctx context.Context, productID string) error {
	if _, err := r.q(ctx).Exec(ctx, lockProductDiscountsSQL, productID); err != nil {
		return fmt.Errorf("locking discounts of %q: %w", productID, err)
	}
	return nil
}

// Create inserts a discount.
func (r *DiscountRepository) Create(ctx context.Context, d *discount.Discount) error {
	_, err := r.q(ctx).Exec(ctx, createDiscountSQL,
		d.ID, d.Name, string(d.Kind), d.Value, d.StartsAt, d.EndsAt, d.ProductID, d.Active, d.CreatedAt,
	)
	if err != nil {
		return discountWriteError(err, "creating discount %q: %w", d.Name)
	}
	return nil
}

// Update overwrites the writable columns of a discount.
func (r *DiscountRepository) Update(ctx context.Context, d *discount.Discount) error {
	tag, err := r.q(ctx).Exec(ctx, updateDiscountSQL,
		d.ID, d.Name, string(d.Kind), d.Value, d.StartsAt, d.EndsAt, d.ProductID, d.Active,
	)
	if err != nil {
		return discountWriteError(err, "updating discount %q: %w", d.ID)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrNotFound
	}
	return nil
}

// Delete removes a discount.
func (r *DiscountRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.q(ctx).Exec(ctx, deleteDiscountSQL, id)
	if err != nil {
		return fmt.Errorf("deleting discount %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return discount.ErrNotFound
	}
	return nil
}

func discountWriteError(err error, format, subject string) error {
	if pgCode(err) == codeForeignKeyViolation {
		return discount.ErrUnknownProduct
	}
	return fmt.Errorf(format, subject, err)
}

func scanDiscount(row pgx.CollectableRow) (discount.Discount, error) {
	var (
		d    discount.Discount
		kind string
	)
	err := row.Scan(
		&d.ID, &d.Name, &kind, &d.Value, &d.StartsAt, &d.EndsAt,
		&d.ProductID, &d.Active, &d.CreatedAt,
	)
	d.Kind = discount.Kind(kind)
	return d, err
}
