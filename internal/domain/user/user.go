package user

import (
	"context"
	"strings"
	"time"

	"github.com/xenking/kart-pos/internal/domain/fault"
)

// ErrNotFound is returned when a requested user does not exist.
var ErrNotFound = fault.NotFound("user not found")

// Role gates administrative operations.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStaff
}

// User is a member of staff operating the point of sale.
type User struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// FullName is the display name denormalized onto orders.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Repository provides user lookups.
type Repository interface {
	GetByID(ctx context.Context, id string) (*User, error)
}
