package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-pos/internal/domain/fault"
	"github.com/xenking/kart-pos/internal/domain/inventory"
	"github.com/xenking/kart-pos/internal/domain/product"
)

const (
	productColumns = `id, name, price, stock, active, created_at, updated_at, deleted_at`

	listProductsSQL = `SELECT ` + productColumns + `
		FROM products WHERE deleted_at IS NULL ORDER BY name, id`

	getProductByIDSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = $1 AND deleted_at IS NULL`

	getProductsByIDsSQL = `SELECT ` + productColumns + `
		FROM products WHERE id = ANY($1)`

	createProductSQL = `INSERT INTO products (id, name, price, stock, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	softDeleteProductSQL = `UPDATE products SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL`

	updateProductByNameSQL = `UPDATE products SET price = $2, active = $3, updated_at = now()
		WHERE LOWER(name) = LOWER($1) AND deleted_at IS NULL
		RETURNING id`

	reserveStockSQL = `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL AND stock >= $2
		RETURNING stock`

	currentStockSQL = `SELECT stock FROM products WHERE id = $1 AND deleted_at IS NULL`

	releaseStockSQL = `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`

	setStockSQL = `UPDATE products p SET stock = $2, updated_at = now()
		FROM (SELECT id, stock FROM products WHERE id = $1 AND deleted_at IS NULL FOR UPDATE) old
		WHERE p.id = old.id
		RETURNING old.stock`

	insertMovementSQL = `INSERT INTO stock_movements (id, product_id, delta, reason, ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	listMovementsSQL = `SELECT id, product_id, delta, reason, ref, created_at
		FROM stock_movements WHERE product_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`
)

var (
	_ product.Repository   = (*ProductRepository)(nil)
	_ inventory.Repository = (*ProductRepository)(nil)
)

// ProductRepository implements product.Repository and inventory.Repository
// backed by PostgreSQL.
type ProductRepository struct {
	conn
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{conn{pool: pool}}
}

// List returns all live products ordered by name.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.q(ctx).Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single live product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.q(ctx).Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs, soft-deleted
// ones included.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.q(ctx).Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create inserts a product. A live product with the same name yields
// product.ErrDuplicateName.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.q(ctx).Exec(ctx, createProductSQL,
		p.ID, p.Name, p.Price, p.Stock, p.Active, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		switch pgCode(err) {
		case codeUniqueViolation:
			return product.ErrDuplicateName
		case codeCheckViolation:
			return fault.Invalid("price and stock must not be negative")
		}
		return fmt.Errorf("creating product %q: %w", p.Name, err)
	}
	return nil
}

// UpdateByName overwrites price and active flag of the live product with
// p's name, matched case-insensitively, and sets p.ID to its id. Stock is
// left to the inventory ledger. It reports whether a row matched.
func (r *ProductRepository) UpdateByName(ctx context.Context, p *product.Product) (bool, error) {
	err := r.q(ctx).QueryRow(ctx, updateProductByNameSQL, p.Name, p.Price, p.Active).Scan(&p.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("updating product %q: %w", p.Name, err)
	}
	return true, nil
}

// SoftDelete marks a product deleted at the given time.
func (r *ProductRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	tag, err := r.q(ctx).Exec(ctx, softDeleteProductSQL, id, at)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Reserve atomically decrements stock when enough is available.
func (r *ProductRepository) Reserve(ctx context.Context, productID string, qty int) (int, bool, error) {
	var left int
	err := r.q(ctx).QueryRow(ctx, reserveStockSQL, productID, qty).Scan(&left)
	if err == nil {
		return left, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("reserving stock of %q: %w", productID, err)
	}

	var available int
	err = r.q(ctx).QueryRow(ctx, currentStockSQL, productID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, product.ErrNotFound
		}
		return 0, false, fmt.Errorf("reading stock of %q: %w", productID, err)
	}
	return available, false, nil
}

// Release increments stock.
func (r *ProductRepository) Release(ctx context.Context, productID string, qty int) error {
	tag, err := r.q(ctx).Exec(ctx, releaseStockSQL, productID, qty)
	if err != nil {
		return fmt.Errorf("releasing stock of %q: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Set overwrites stock and returns the previous level.
func (r *ProductRepository) Set(ctx context.Context, productID string, stock int) (int, error) {
	var previous int
	err := r.q(ctx).QueryRow(ctx, setStockSQL, productID, stock).Scan(&previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, product.ErrNotFound
		}
		return 0, fmt.Errorf("setting stock of %q: %w", productID, err)
	}
	return previous, nil
}

// RecordMovement appends to the stock audit trail.
func (r *ProductRepository) RecordMovement(ctx context.Context, m *inventory.Movement) error {
	_, err := r.q(ctx).Exec(ctx, insertMovementSQL,
		m.ID, m.ProductID, m.Delta, string(m.Reason), m.Ref, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording stock movement for %q: %w", m.ProductID, err)
	}
	return nil
}

// ListMovements returns the latest movements of a product, newest first.
func (r *ProductRepository) ListMovements(ctx context.Context, productID string, limit int) ([]inventory.Movement, error) {
	rows, err := r.q(ctx).Query(ctx, listMovementsSQL, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing stock movements of %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (inventory.Movement, error) {
		var (
			m      inventory.Movement
			reason string
		)
		err := row.Scan(&m.ID, &m.ProductID, &m.Delta, &reason, &m.Ref, &m.CreatedAt)
		m.Reason = inventory.Reason(reason)
		return m, err
	})
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Price, &p.Stock, &p.Active,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	return p, err
}
