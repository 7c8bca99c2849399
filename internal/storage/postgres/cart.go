package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-pos/internal/domain/cart"
	"github.com/xenking/kart-pos/internal/domain/checkout"
	"github.com/xenking/kart-pos/internal/domain/product"
	"github.com/xenking/kart-pos/internal/domain/user"
)

const (
	cartColumns = `id, user_id, product_id, quantity, unit_price, line_total, created_at`

	listCartItemsSQL = `SELECT ` + cartColumns + `
		FROM cart_items WHERE user_id = $1 ORDER BY created_at, id`

	listCartItemsForUpdateSQL = listCartItemsSQL + ` FOR UPDATE`

	getCartItemSQL = `SELECT ` + cartColumns + `
		FROM cart_items WHERE id = $1 AND user_id = $2 FOR UPDATE`

	insertCartItemSQL = `INSERT INTO cart_items (` + cartColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	deleteCartItemSQL = `DELETE FROM cart_items WHERE id = $1`

	deleteUserCartItemsSQL = `DELETE FROM cart_items WHERE user_id = $1 AND id = ANY($2)`
)

var (
	_ cart.Repository    = (*CartRepository)(nil)
	_ checkout.CartStore = (*CartRepository)(nil)
)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	conn
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{conn{pool: pool}}
}

// ListByUser returns the user's items in the order they were added.
func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]cart.Item, error) {
	return r.list(ctx, listCartItemsSQL, userID)
}

// ListByUserForUpdate is ListByUser with row locks held until the
// surrounding transaction ends.
func (r *CartRepository) ListByUserForUpdate(ctx context.Context, userID string) ([]cart.Item, error) {
	return r.list(ctx, listCartItemsForUpdateSQL, userID)
}

func (r *CartRepository) list(ctx context.Context, sql, userID string) ([]cart.Item, error) {
	rows, err := r.q(ctx).Query(ctx, sql, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart of %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanCartItem)
}

// GetForUser returns an item that belongs to userID, locked for update.
func (r *CartRepository) GetForUser(ctx context.Context, userID, itemID string) (*cart.Item, error) {
	rows, err := r.q(ctx).Query(ctx, getCartItemSQL, itemID, userID)
	if err != nil {
		return nil, fmt.Errorf("getting cart item %q: %w", itemID, err)
	}

	it, err := pgx.CollectExactlyOneRow(rows, scanCartItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrItemNotFound
		}
		return nil, fmt.Errorf("getting cart item %q: %w", itemID, err)
	}
	return &it, nil
}

// Insert stores a new item.
func (r *CartRepository) Insert(ctx context.Context, it *cart.Item) error {
	_, err := r.q(ctx).Exec(ctx, insertCartItemSQL,
		it.ID, it.UserID, it.ProductID, it.Quantity, it.UnitPrice, it.LineTotal, it.CreatedAt,
	)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return cartForeignKeyError(err)
		}
		return fmt.Errorf("inserting cart item: %w", err)
	}
	return nil
}

// Delete removes one item.
func (r *CartRepository) Delete(ctx context.Context, itemID string) error {
	tag, err := r.q(ctx).Exec(ctx, deleteCartItemSQL, itemID)
	if err != nil {
		return fmt.Errorf("deleting cart item %q: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrItemNotFound
	}
	return nil
}

// DeleteItems removes the listed items of userID and returns the number
// removed. Items of other users are never touched.
func (r *CartRepository) DeleteItems(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.q(ctx).Exec(ctx, deleteUserCartItemsSQL, userID, ids)
	if err != nil {
		return 0, fmt.Errorf("clearing cart of %q: %w", userID, err)
	}
	return tag.RowsAffected(), nil
}

func cartForeignKeyError(err error) error {
	if constraint(err) == "cart_items_user_id_fkey" {
		return user.ErrNotFound
	}
	return product.ErrNotFound
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var it cart.Item
	err := row.Scan(
		&it.ID, &it.UserID, &it.ProductID, &it.Quantity,
		&it.UnitPrice, &it.LineTotal, &it.CreatedAt,
	)
	return it, err
}
