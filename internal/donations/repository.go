package donations

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phoenix-bikes/biketrack/internal/platform/db"
	"github.com/phoenix-bikes/biketrack/internal/shared"
)

// TxRepository exposes the writes of one donation submission.
type TxRepository interface {
	UpsertDonor(ctx context.Context, donor DonorInput) (uuid.UUID, error)
	InsertDonation(ctx context.Context, d Donation) (uuid.UUID, error)
	InsertBikeDonated(ctx context.Context, donationID uuid.UUID, bike BikeDetail) error
	InsertPartsDonated(ctx context.Context, donationID uuid.UUID, parts PartsDetail) error
}

// Repository persists donations in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn in one transaction; any error rolls every write back.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r.pool == nil {
		return shared.ErrBackendUnavailable
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

func (t *txRepo) UpsertDonor(ctx context.Context, donor DonorInput) (uuid.UUID, error) {
	var id uuid.UUID
	err := t.tx.QueryRow(ctx, `
		INSERT INTO donors (name, email, phone, address) VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			phone = COALESCE(NULLIF(EXCLUDED.phone, ''), donors.phone),
			address = COALESCE(NULLIF(EXCLUDED.address, ''), donors.address),
			updated_at = NOW()
		RETURNING id`,
		donor.Name, donor.Email, donor.Phone, donor.Address).Scan(&id)
	return id, shared.QueryFailed("donations: upsert donor", err)
}

func (t *txRepo) InsertDonation(ctx context.Context, d Donation) (uuid.UUID, error) {
	var recordedBy *uuid.UUID
	if d.RecordedBy != uuid.Nil {
		recordedBy = &d.RecordedBy
	}
	var id uuid.UUID
	err := t.tx.QueryRow(ctx, `
		INSERT INTO donations (donor_id, email, name, donation_type, total_bikes_donated, total_estimated_value,
			total_parts_donated, notes, receipt_requested, tax_deductible, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		d.DonorID, d.Email, d.Name, string(d.Type), d.TotalBikes, d.TotalValue,
		d.TotalParts, d.Notes, d.ReceiptRequested, d.TaxDeductible, recordedBy).Scan(&id)
	return id, shared.QueryFailed("donations: insert donation", err)
}

func (t *txRepo) InsertBikeDonated(ctx context.Context, donationID uuid.UUID, bike BikeDetail) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bikes_donated (donation_id, brand, model, type, size, condition, serial_number, value, program, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		donationID, bike.Brand, bike.Model, bike.Type, bike.Size, bike.Condition, bike.SerialNumber,
		bike.Value, DonatedProgram, bike.Notes)
	return shared.QueryFailed("donations: insert bike detail", err)
}

func (t *txRepo) InsertPartsDonated(ctx context.Context, donationID uuid.UUID, parts PartsDetail) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO parts_donated (donation_id, description, number_of_parts, parts_value, condition)
		VALUES ($1, $2, $3, $4, $5)`,
		donationID, parts.Description, parts.NumberOfParts, parts.Value, parts.Condition)
	return shared.QueryFailed("donations: insert parts detail", err)
}

// ListDonations returns the newest donations first.
func (r *Repository) ListDonations(ctx context.Context, limit int) ([]Donation, error) {
	if r.pool == nil {
		return nil, shared.ErrBackendUnavailable
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, donor_id, email, name, donation_type, total_bikes_donated, total_estimated_value::float8,
			total_parts_donated, notes, receipt_requested, tax_deductible, created_at
		FROM donations ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, shared.QueryFailed("donations: list", err)
	}
	defer rows.Close()

	var out []Donation
	for rows.Next() {
		var d Donation
		var kind string
		if err := rows.Scan(&d.ID, &d.DonorID, &d.Email, &d.Name, &kind, &d.TotalBikes, &d.TotalValue,
			&d.TotalParts, &d.Notes, &d.ReceiptRequested, &d.TaxDeductible, &d.CreatedAt); err != nil {
			return nil, shared.QueryFailed("donations: scan", err)
		}
		d.Type = Type(kind)
		out = append(out, d)
	}
	return out, shared.QueryFailed("donations: list", rows.Err())
}

// ListDonors returns every donor with donation totals, most recent donor first.
func (r *Repository) ListDonors(ctx context.Context) ([]Donor, error) {
	if r.pool == nil {
		return nil, shared.ErrBackendUnavailable
	}
	rows, err := r.pool.Query(ctx, `
		SELECT d.id, d.name, d.email, d.phone, d.address,
			COUNT(n.id), COALESCE(SUM(n.total_estimated_value), 0)::float8, MAX(n.created_at)
		FROM donors d
		LEFT JOIN donations n ON n.donor_id = d.id
		GROUP BY d.id
		ORDER BY MAX(n.created_at) DESC NULLS LAST, d.name`)
	if err != nil {
		return nil, shared.QueryFailed("donations: list donors", err)
	}
	defer rows.Close()

	var out []Donor
	for rows.Next() {
		var d Donor
		if err := rows.Scan(&d.ID, &d.Name, &d.Email, &d.Phone, &d.Address, &d.Donations, &d.TotalValue, &d.LastDonationAt); err != nil {
			return nil, shared.QueryFailed("donations: scan donor", err)
		}
		out = append(out, d)
	}
	return out, shared.QueryFailed("donations: list donors", rows.Err())
}
