// Package cart implements the per-user cart. Adding an item reserves stock
// immediately and removing it releases the reservation.
package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pos/internal/domain/discount"
	"github.com/xenking/kart-pos/internal/domain/fault"
	"github.com/xenking/kart-pos/internal/domain/product"
)

var (
	// ErrItemNotFound is returned when a cart item does not exist or belongs
	// to another user.
	ErrItemNotFound = fault.NotFound("cart item not found")
	// ErrEmpty is returned by operations that need at least one line.
	ErrEmpty = fault.Invalid("cart is empty")
)

// Item is a stored cart row. UnitPrice and LineTotal record the price seen
// when the item was added; reads always reprice live.
type Item struct {
	ID        string
	UserID    string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	CreatedAt time.Time
}

// Line is an Item priced at a specific instant.
type Line struct {
	Item      Item
	Product   product.Product
	Discount  *discount.Discount
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Cart is a priced view of a user's items.
type Cart struct {
	UserID string
	Lines  []Line
	Total  decimal.Decimal
}

// AddRequest asks for quantity units of a product.
type AddRequest struct {
	ProductID string
	Quantity  int
}

// Repository defines cart persistence.
type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]Item, error)
	// ListByUserForUpdate is ListByUser with the rows locked until the
	// surrounding transaction ends.
	ListByUserForUpdate(ctx context.Context, userID string) ([]Item, error)
	GetForUser(ctx context.Context, userID, itemID string) (*Item, error)
	Insert(ctx context.Context, item *Item) error
	Delete(ctx context.Context, itemID string) error
}

// ProductReader looks up catalog entries.
type ProductReader interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

// Resolver finds the discount applicable to a product.
type Resolver interface {
	Resolve(ctx context.Context, productID string, at time.Time) (*discount.Discount, error)
}
