package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phoenix-bikes/biketrack/internal/shared"
)

// ErrEmailTaken is returned when signing up with a registered email.
var ErrEmailTaken = errors.New("auth: email already registered")

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	CreateUser(ctx context.Context, email, passwordHash string) (*User, error)
	TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository. A nil pool makes every
// call fail with shared.ErrBackendUnavailable.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, password_hash, is_active, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsActive, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindByEmail fetches a user by email, ignoring case.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	if r.pool == nil {
		return nil, shared.ErrBackendUnavailable
	}
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM auth_users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, shared.QueryFailed("auth: find by email", err)
	}
	return u, err
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	if r.pool == nil {
		return nil, shared.ErrBackendUnavailable
	}
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM auth_users WHERE id = $1`, id))
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, shared.QueryFailed("auth: find by id", err)
	}
	return u, err
}

// CreateUser inserts an active account.
func (r *PGRepository) CreateUser(ctx context.Context, email, passwordHash string) (*User, error) {
	if r.pool == nil {
		return nil, shared.ErrBackendUnavailable
	}
	u, err := scanUser(r.pool.QueryRow(ctx,
		`INSERT INTO auth_users (email, password_hash) VALUES ($1, $2) RETURNING `+userColumns,
		strings.TrimSpace(email), passwordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, shared.QueryFailed("auth: create user", err)
	}
	return u, nil
}

// TouchLogin stamps the last successful sign-in.
func (r *PGRepository) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	if r.pool == nil {
		return shared.ErrBackendUnavailable
	}
	_, err := r.pool.Exec(ctx, `UPDATE auth_users SET last_login_at = $2, updated_at = $2 WHERE id = $1`, id, at.UTC())
	return shared.QueryFailed("auth: touch login", err)
}

// CreateSession persists a new login session in the database for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	if r.pool == nil {
		return shared.ErrBackendUnavailable
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO auth_sessions (id, user_id, ip_address, user_agent, created_at, expires_at)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NOW(), $5)
		 ON CONFLICT (id) DO UPDATE SET expires_at = EXCLUDED.expires_at`,
		id, userID, ip, ua, expiresAt.UTC())
	return shared.QueryFailed("auth: create session", err)
}

// DeleteSession removes a session record from the database.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	if r.pool == nil {
		return shared.ErrBackendUnavailable
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE id = $1`, id)
	return shared.QueryFailed("auth: delete session", err)
}

var _ Repository = (*PGRepository)(nil)
