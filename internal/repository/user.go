package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchkit/catalog-api/internal/domain/auth"
)

const getUserByKeyHashSQL = `SELECT id, email, full_name, key_hash, roles, active
	FROM users WHERE key_hash = $1 AND active = TRUE`

var _ auth.Repository = (*UserRepository)(nil)

// UserRepository provides user lookups backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// FindByKeyHash looks up an active user by the peppered hash of their API key.
func (r *UserRepository) FindByKeyHash(ctx context.Context, hash string) (*auth.User, error) {
	var u auth.User
	err := r.pool.QueryRow(ctx, getUserByKeyHashSQL, hash).Scan(
		&u.ID, &u.Email, &u.FullName, &u.KeyHash, &u.Roles, &u.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("finding user by key hash: %w", err)
	}
	return &u, nil
}
