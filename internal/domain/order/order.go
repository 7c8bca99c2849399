package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pos/internal/domain/fault"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = fault.NotFound("order not found")

// Status is the customer-facing state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// KitchenStatus tracks food preparation independently of Status.
type KitchenStatus string

const (
	KitchenPending   KitchenStatus = "pending"
	KitchenPreparing KitchenStatus = "preparing"
	KitchenCompleted KitchenStatus = "completed"
)

// Valid reports whether k is a known kitchen status.
func (k KitchenStatus) Valid() bool {
	switch k {
	case KitchenPending, KitchenPreparing, KitchenCompleted:
		return true
	}
	return false
}

// DefaultOrderType is used when checkout does not name one.
const DefaultOrderType = "dine-in"

// Order is a paid sale created from a cart.
type Order struct {
	ID             string
	UserID         string
	OrderType      string
	CustomerName   string
	StaffName      string
	TotalPrice     decimal.Decimal
	DiscountType   string
	DiscountValue  decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalPrice     decimal.Decimal
	PaymentMethod  string
	AmountPaid     decimal.Decimal
	Change         decimal.Decimal
	Status         Status
	KitchenStatus  KitchenStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Items          []Item
}

// Item is an order line. ProductID becomes nil when the product row is
// removed; ProductName keeps the name it was sold under.
type Item struct {
	ID          string
	OrderID     string
	ProductID   *string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// Repository defines order persistence.
type Repository interface {
	// Create inserts the order row only. Items are stored with AddItems.
	Create(ctx context.Context, o *Order) error
	AddItems(ctx context.Context, items []Item) error
	// Get returns an order with its items.
	Get(ctx context.Context, id string) (*Order, error)
	// List returns the orders matching f, newest first, with their items.
	List(ctx context.Context, f Filter) ([]Order, error)
	// UpdateStatus sets the status, and the kitchen status too when kitchen
	// is not empty.
	UpdateStatus(ctx context.Context, id string, status Status, kitchen KitchenStatus, at time.Time) error
	UpdateKitchenStatus(ctx context.Context, id string, kitchen KitchenStatus, at time.Time) error
}
