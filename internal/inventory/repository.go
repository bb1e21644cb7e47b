package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phoenix-bikes/biketrack/internal/shared"
)

// Repository persists bikes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanBike(row pgx.Row) (Bike, error) {
	var b Bike
	var status string
	err := row.Scan(&b.ID, &b.SerialNumber, &b.Brand, &b.Model, &b.Type, &b.Size, &b.Value, &b.Program,
		&b.Condition, &status, &b.DonatedTo, &b.Notes, &b.ComponentSerial, &b.CreatedAt, &b.UpdatedAt)
	b.Status = Status(status)
	return b, err
}

// ListBikes returns the bikes visible under scope that match f, newest first.
func (r *Repository) ListBikes(ctx context.Context, scope Scope, f Filters) ([]Bike, error) {
	if r.pool == nil {
		return nil, shared.ErrBackendUnavailable
	}
	query, args := buildBikeQuery(scope, f)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.QueryFailed("inventory: list bikes", err)
	}
	defer rows.Close()

	var bikes []Bike
	for rows.Next() {
		b, err := scanBike(rows)
		if err != nil {
			return nil, shared.QueryFailed("inventory: scan bike", err)
		}
		bikes = append(bikes, b)
	}
	return bikes, shared.QueryFailed("inventory: list bikes", rows.Err())
}

// GetBike loads one bike.
func (r *Repository) GetBike(ctx context.Context, id uuid.UUID) (Bike, error) {
	if r.pool == nil {
		return Bike{}, shared.ErrBackendUnavailable
	}
	b, err := scanBike(r.pool.QueryRow(ctx, `SELECT `+bikeColumns+` FROM bikes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Bike{}, shared.ErrNotFound
	}
	if err != nil {
		return Bike{}, shared.QueryFailed("inventory: get bike", err)
	}
	return b, nil
}

// InsertBike stores a new bike and returns it with generated fields.
func (r *Repository) InsertBike(ctx context.Context, b Bike) (Bike, error) {
	if r.pool == nil {
		return Bike{}, shared.ErrBackendUnavailable
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO bikes (serial_number, brand, model, type, size, value, program, condition, status, donated_to, notes, component_serial)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+bikeColumns,
		b.SerialNumber, b.Brand, b.Model, b.Type, b.Size, b.Value, b.Program, b.Condition,
		string(b.Status), b.DonatedTo, b.Notes, b.ComponentSerial)
	created, err := scanBike(row)
	if err != nil {
		return Bike{}, shared.QueryFailed("inventory: insert bike", err)
	}
	return created, nil
}

// UpdateBike overwrites the editable columns of b.
func (r *Repository) UpdateBike(ctx context.Context, b Bike) error {
	if r.pool == nil {
		return shared.ErrBackendUnavailable
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE bikes SET serial_number = $2, brand = $3, model = $4, type = $5, size = $6, value = $7,
			program = $8, condition = $9, status = $10, donated_to = $11, notes = $12,
			component_serial = $13, updated_at = NOW()
		WHERE id = $1`,
		b.ID, b.SerialNumber, b.Brand, b.Model, b.Type, b.Size, b.Value, b.Program, b.Condition,
		string(b.Status), b.DonatedTo, b.Notes, b.ComponentSerial)
	if err != nil {
		return shared.QueryFailed("inventory: update bike", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteBike removes a bike.
func (r *Repository) DeleteBike(ctx context.Context, id uuid.UUID) error {
	if r.pool == nil {
		return shared.ErrBackendUnavailable
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM bikes WHERE id = $1`, id)
	if err != nil {
		return shared.QueryFailed("inventory: delete bike", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Lookups loads the brand, model and recipient lists.
func (r *Repository) Lookups(ctx context.Context) (Lookups, error) {
	if r.pool == nil {
		return Lookups{}, shared.ErrBackendUnavailable
	}
	var out Lookups
	var err error
	if out.Brands, err = r.names(ctx, `SELECT name FROM brands ORDER BY name`); err != nil {
		return Lookups{}, err
	}
	if out.Models, err = r.names(ctx, `SELECT DISTINCT name FROM models ORDER BY name`); err != nil {
		return Lookups{}, err
	}
	if out.Recipients, err = r.names(ctx, `SELECT name FROM recipients ORDER BY name`); err != nil {
		return Lookups{}, err
	}
	return out, nil
}

func (r *Repository) names(ctx context.Context, query string) ([]string, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, shared.QueryFailed("inventory: lookups", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return names, shared.QueryFailed("inventory: lookups", err)
}
