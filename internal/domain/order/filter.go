package order

import (
	"strings"
	"time"

	"github.com/xenking/kart-pos/internal/domain/fault"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Filter narrows an order listing. Zero fields match everything.
type Filter struct {
	// Search matches the order id, customer name or staff name,
	// case-insensitively, as a substring.
	Search        string
	OrderType     string
	PaymentMethod string
	// Date selects orders created on that UTC calendar day.
	Date          *time.Time
	Status        Status
	StatusNot     []Status
	KitchenStatus KitchenStatus
	Limit         int
	Offset        int
}

// Normalize trims text fields, validates enumerations and clamps paging.
func (f *Filter) Normalize(defaultLimit int) error {
	f.Search = strings.TrimSpace(f.Search)
	f.OrderType = strings.TrimSpace(f.OrderType)
	f.PaymentMethod = strings.TrimSpace(f.PaymentMethod)

	if f.Status != "" && !f.Status.Valid() {
		return fault.Invalidf("unknown status %q", f.Status)
	}
	for _, s := range f.StatusNot {
		if !s.Valid() {
			return fault.Invalidf("unknown status %q", s)
		}
	}
	if f.KitchenStatus != "" && !f.KitchenStatus.Valid() {
		return fault.Invalidf("unknown kitchen status %q", f.KitchenStatus)
	}
	if f.Offset < 0 {
		return fault.Invalid("offset must not be negative")
	}

	if defaultLimit <= 0 || defaultLimit > MaxLimit {
		defaultLimit = DefaultLimit
	}
	switch {
	case f.Limit <= 0:
		f.Limit = defaultLimit
	case f.Limit > MaxLimit:
		f.Limit = MaxLimit
	}

	if f.Date != nil {
		y, m, d := f.Date.UTC().Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		f.Date = &day
	}
	return nil
}

// View is a named filter preset.
type View string

const (
	// ViewActive lists every order that has not been cancelled.
	ViewActive View = "active"
	// ViewCancelled lists cancelled orders.
	ViewCancelled View = "cancelled"
	// ViewReady lists orders waiting for pickup.
	ViewReady View = "ready"
	// ViewKitchen lists orders the kitchen still has to work on.
	ViewKitchen View = "kitchen"
)

// Apply overlays the preset on f. Paging and free-text fields of f are kept.
func (v View) Apply(f Filter) (Filter, error) {
	f.Status = ""
	f.StatusNot = nil
	switch v {
	case ViewActive:
		f.StatusNot = []Status{StatusCancelled}
	case ViewCancelled:
		f.Status = StatusCancelled
	case ViewReady:
		f.Status = StatusReady
	case ViewKitchen:
		f.StatusNot = []Status{StatusReady, StatusCancelled, StatusCompleted}
	default:
		return f, fault.NotFound("unknown order view " + string(v))
	}
	return f, nil
}
