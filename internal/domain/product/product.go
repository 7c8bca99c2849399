package product

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pos/internal/domain/fault"
	"github.com/xenking/kart-pos/internal/domain/money"
)

var (
	// ErrNotFound is returned when a requested product does not exist or has
	// been soft-deleted.
	ErrNotFound = fault.NotFound("product not found")
	// ErrDuplicateName is returned when another live product already uses
	// the name (case-insensitive).
	ErrDuplicateName = fault.Conflict("product name already exists")
)

// Product is a catalog item sold at the point of sale.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Stock     int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Sellable reports whether the product may be added to a cart.
func (p Product) Sellable() bool {
	return p.Active && p.DeletedAt == nil
}

// Repository defines catalog persistence. Soft-deleted products are
// invisible to List and GetByID.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	// GetByIDs includes soft-deleted products so that existing cart lines
	// keep resolving after a product is retired.
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

// CreateRequest holds the input for adding a product to the catalog.
type CreateRequest struct {
	Name   string
	Price  decimal.Decimal
	Stock  int
	Active bool
}

// Validate checks the request fields.
func (r *CreateRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	switch {
	case r.Name == "":
		return fault.Invalid("name is required")
	case r.Price.IsNegative():
		return fault.Invalid("price must not be negative")
	case r.Stock < 0:
		return fault.Invalid("stock must not be negative")
	}
	return money.Check("price", r.Price)
}
