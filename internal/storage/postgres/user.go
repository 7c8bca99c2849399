package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-pos/internal/domain/user"
)

const (
	getUserByIDSQL = `SELECT id, first_name, last_name, email, role, created_at
		FROM users WHERE id = $1 AND deleted_at IS NULL`

	upsertUserSQL = `INSERT INTO users (id, first_name, last_name, email, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO UPDATE
		SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name, role = EXCLUDED.role
		RETURNING id`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	conn
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{conn{pool: pool}}
}

// GetByID returns a user that has not been deleted.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	var (
		u    user.User
		role string
	)
	err := r.q(ctx).QueryRow(ctx, getUserByIDSQL, id).Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &role, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", id, err)
	}
	u.Role = user.Role(role)
	return &u, nil
}

// Upsert inserts u or updates the user with the same email. u.ID is set to
// the stored identifier.
func (r *UserRepository) Upsert(ctx context.Context, u *user.User) error {
	err := r.q(ctx).QueryRow(ctx, upsertUserSQL,
		u.ID, u.FirstName, u.LastName, u.Email, string(u.Role), u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("upserting user %q: %w", u.Email, err)
	}
	return nil
}
