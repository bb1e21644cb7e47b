package workorders

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phoenix-bikes/biketrack/internal/shared"
)

// Repository persists work orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectOrders = `
	SELECT w.id, w.bike_id, COALESCE(NULLIF(TRIM(b.brand || ' ' || b.model), ''), b.serial_number, ''),
		w.description, w.status, w.requested_by, COALESCE(u.email, ''), w.created_at, w.closed_at
	FROM work_orders w
	LEFT JOIN bikes b ON b.id = w.bike_id
	LEFT JOIN auth_users u ON u.id = w.requested_by`

func scanOrder(row pgx.Row) (WorkOrder, error) {
	var w WorkOrder
	var status string
	err := row.Scan(&w.ID, &w.BikeID, &w.BikeLabel, &w.Description, &status, &w.RequestedBy, &w.RequestedByEmail, &w.CreatedAt, &w.ClosedAt)
	w.Status = Status(status)
	return w, err
}

// Insert stores a new open work order.
func (r *Repository) Insert(ctx context.Context, in Input, requestedBy uuid.UUID) (WorkOrder, error) {
	if r.pool == nil {
		return WorkOrder{}, shared.ErrBackendUnavailable
	}
	var by *uuid.UUID
	if requestedBy != uuid.Nil {
		by = &requestedBy
	}
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `INSERT INTO work_orders (bike_id, description, requested_by) VALUES ($1, $2, $3) RETURNING id`,
		in.BikeID, in.Description, by).Scan(&id)
	if err != nil {
		return WorkOrder{}, shared.QueryFailed("workorders: insert", err)
	}
	wo, err := scanOrder(r.pool.QueryRow(ctx, selectOrders+` WHERE w.id = $1`, id))
	return wo, shared.QueryFailed("workorders: reload", err)
}

// List returns every work order, newest first.
func (r *Repository) List(ctx context.Context) ([]WorkOrder, error) {
	if r.pool == nil {
		return nil, shared.ErrBackendUnavailable
	}
	rows, err := r.pool.Query(ctx, selectOrders+` ORDER BY w.created_at DESC`)
	if err != nil {
		return nil, shared.QueryFailed("workorders: list", err)
	}
	defer rows.Close()
	var out []WorkOrder
	for rows.Next() {
		wo, err := scanOrder(rows)
		if err != nil {
			return nil, shared.QueryFailed("workorders: scan", err)
		}
		out = append(out, wo)
	}
	return out, shared.QueryFailed("workorders: list", rows.Err())
}

// Close closes an open work order.
func (r *Repository) Close(ctx context.Context, id uuid.UUID) error {
	if r.pool == nil {
		return shared.ErrBackendUnavailable
	}
	tag, err := r.pool.Exec(ctx, `UPDATE work_orders SET status = 'closed', closed_at = NOW() WHERE id = $1 AND status = 'open'`, id)
	if err != nil {
		return shared.QueryFailed("workorders: close", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
