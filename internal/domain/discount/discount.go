// Package discount resolves and applies per-product price reductions.
package discount

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-pos/internal/domain/fault"
	"github.com/xenking/kart-pos/internal/domain/money"
)

var (
	// ErrNotFound is returned when a requested discount does not exist.
	ErrNotFound = fault.NotFound("discount not found")
	// ErrUnknownProduct is returned when a discount targets a missing product.
	ErrUnknownProduct = fault.NotFound("discount product not found")
	// ErrOverlap is returned when an active product discount would share part
	// of its validity window with another active discount of the same product.
	ErrOverlap = fault.Conflict("an active discount already covers this product for an overlapping period")
)

// Kind selects how Value reduces a price.
type Kind string

const (
	KindFixed      Kind = "fixed"
	KindPercentage Kind = "percentage"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindFixed || k == KindPercentage
}

var hundred = decimal.NewFromInt(100)

// Discount is a price reduction. A nil StartsAt means the discount has always
// been valid, a nil EndsAt means it never expires.
type Discount struct {
	ID        string
	Name      string
	Kind      Kind
	Value     decimal.Decimal
	StartsAt  *time.Time
	EndsAt    *time.Time
	ProductID *string
	Active    bool
	CreatedAt time.Time
}

// Covers reports whether d applies at instant t.
func (d *Discount) Covers(t time.Time) bool {
	if !d.Active {
		return false
	}
	if d.StartsAt != nil && d.StartsAt.After(t) {
		return false
	}
	if d.EndsAt != nil && d.EndsAt.Before(t) {
		return false
	}
	return true
}

// Overlaps reports whether the validity windows of d and o intersect.
// Window bounds are inclusive.
func (d *Discount) Overlaps(o *Discount) bool {
	// d starts after o ends, or o starts after d ends.
	if d.StartsAt != nil && o.EndsAt != nil && d.StartsAt.After(*o.EndsAt) {
		return false
	}
	if o.StartsAt != nil && d.EndsAt != nil && o.StartsAt.After(*d.EndsAt) {
		return false
	}
	return true
}

// Apply returns price reduced by d, rounded to cents. A nil discount leaves
// the price unchanged. The result is never negative.
func Apply(price decimal.Decimal, d *Discount) decimal.Decimal {
	if d == nil {
		return price.Round(2)
	}

	var out decimal.Decimal
	switch d.Kind {
	case KindPercentage:
		out = price.Sub(price.Mul(d.Value).Div(hundred))
	case KindFixed:
		out = price.Sub(d.Value)
	default:
		out = price
	}
	if out.IsNegative() {
		out = decimal.Zero
	}
	return out.Round(2)
}

// Repository defines discount persistence.
type Repository interface {
	List(ctx context.Context) ([]Discount, error)
	GetByID(ctx context.Context, id string) (*Discount, error)
	Create(ctx context.Context, d *Discount) error
	Update(ctx context.Context, d *Discount) error
	Delete(ctx context.Context, id string) error

	// FindApplicable returns the discount covering productID at t, newest
	// first with id as the tie-break. It returns nil, nil when none applies.
	FindApplicable(ctx context.Context, productID string, at time.Time) (*Discount, error)
	// ListActiveForProduct returns every active discount scoped to productID.
	ListActiveForProduct(ctx context.Context, productID string) ([]Discount, error)
	// LockProduct serializes discount writes for productID until the
	// surrounding transaction ends.
	LockProduct(ctx context.Context, productID string) error
}

// Input holds the writable fields of a discount.
type Input struct {
	Name      string
	Kind      Kind
	Value     decimal.Decimal
	StartsAt  *time.Time
	EndsAt    *time.Time
	ProductID *string
	Active    bool
}

// Validate checks the input fields.
func (in *Input) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.ProductID != nil && strings.TrimSpace(*in.ProductID) == "" {
		in.ProductID = nil
	}

	switch {
	case in.Name == "":
		return fault.Invalid("name is required")
	case !in.Kind.Valid():
		return fault.Invalidf("unknown discount type %q", in.Kind)
	case in.Value.IsNegative():
		return fault.Invalid("value must not be negative")
	case in.Kind == KindPercentage && in.Value.GreaterThan(hundred):
		return fault.Invalid("percentage must not exceed 100")
	case in.StartsAt != nil && in.EndsAt != nil && in.EndsAt.Before(*in.StartsAt):
		return fault.Invalid("end date must not be before start date")
	}
	return money.Check("value", in.Value)
}
