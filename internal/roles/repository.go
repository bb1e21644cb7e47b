package roles

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/shared"
)

// Repository provides PostgreSQL backed persistence for user_roles.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetRole returns the raw role string stored for userID, shared.ErrNotFound
// when the user has no row.
func (r *Repository) GetRole(ctx context.Context, userID uuid.UUID) (string, error) {
	if r.pool == nil {
		return "", shared.ErrBackendUnavailable
	}
	var role string
	err := r.pool.QueryRow(ctx, `SELECT role FROM user_roles WHERE user_id = $1`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", shared.QueryFailed("roles: get", err)
	}
	return role, nil
}

// UpsertRole writes the role for userID. Last write wins.
func (r *Repository) UpsertRole(ctx context.Context, userID uuid.UUID, role rbac.RoleTag) error {
	if r.pool == nil {
		return shared.ErrBackendUnavailable
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at`,
		userID, role.String())
	return shared.QueryFailed("roles: upsert", err)
}

// UserIDByEmail looks up an account id.
func (r *Repository) UserIDByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	if r.pool == nil {
		return uuid.Nil, shared.ErrBackendUnavailable
	}
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM auth_users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, shared.ErrNotFound
		}
		return uuid.Nil, shared.QueryFailed("roles: user by email", err)
	}
	return id, nil
}

// ListAssignments returns every account with its role, if any.
func (r *Repository) ListAssignments(ctx context.Context) ([]Assignment, error) {
	if r.pool == nil {
		return nil, shared.ErrBackendUnavailable
	}
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.email, COALESCE(ur.role, ''), ur.updated_at
		FROM auth_users u
		LEFT JOIN user_roles ur ON ur.user_id = u.id
		ORDER BY u.email`)
	if err != nil {
		return nil, shared.QueryFailed("roles: list", err)
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		var (
			a         Assignment
			role      string
			updatedAt *time.Time
		)
		if err := rows.Scan(&a.UserID, &a.Email, &role, &updatedAt); err != nil {
			return nil, shared.QueryFailed("roles: scan", err)
		}
		a.Role, _ = rbac.ParseRoleTag(role)
		a.UpdatedAt = updatedAt
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.QueryFailed("roles: rows", err)
	}
	return out, nil
}
