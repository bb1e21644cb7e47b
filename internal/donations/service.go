package donations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/phoenix-bikes/biketrack/internal/observability"
	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListDonations(ctx context.Context, limit int) ([]Donation, error)
	ListDonors(ctx context.Context) ([]Donor, error)
}

// IdempotencyPort claims and releases form submission keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// ReceiptQueue schedules receipt emails.
type ReceiptQueue interface {
	EnqueueReceipt(ctx context.Context, receipt Receipt) error
}

const idempotencyModule = "donations"

// Service records donations.
type Service struct {
	repo      RepositoryPort
	idem      IdempotencyPort
	receipts  ReceiptQueue
	metrics   *observability.Metrics
	logger    *slog.Logger
	validator *validator.Validate
}

// NewService builds Service. idem, receipts and metrics may be nil.
func NewService(repo RepositoryPort, idem IdempotencyPort, receipts ReceiptQueue, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, idem: idem, receipts: receipts, metrics: metrics, logger: logger, validator: validator.New()}
}

// ValidationError lists the offending form fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	return "donations: invalid fields " + strings.Join(names, ", ")
}

func (e *ValidationError) Unwrap() error { return shared.ErrValidationMissing }

// Validate checks the required donor fields and the donation type.
func (s *Service) Validate(sub Submission) error {
	fields := make(map[string]string)
	if err := s.validator.Struct(sub.Donor); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				fields[fe.Field()] = fe.Error()
			}
		}
	}
	if !sub.Type.Valid() {
		fields["Type"] = "Select a donation type"
	}
	if sub.Bike != nil {
		if err := s.validator.Struct(sub.Bike); err != nil {
			fields["BikeValue"] = "Bike value must not be negative"
		}
	}
	if sub.Parts != nil {
		if err := s.validator.Struct(sub.Parts); err != nil {
			fields["Parts"] = "Parts count and value must not be negative"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Submit records a donation: donor upsert, donation summary, bike detail and
// parts detail, in that order and in one transaction.
func (s *Service) Submit(ctx context.Context, p rbac.Principal, sub Submission) (Result, error) {
	if !p.CanSeeDonorForm() {
		return Result{}, shared.ErrUnauthorized
	}
	sub.Donor.Email = strings.ToLower(strings.TrimSpace(sub.Donor.Email))
	sub.Donor.Name = strings.TrimSpace(sub.Donor.Name)
	if err := s.Validate(sub); err != nil {
		return Result{}, err
	}

	if s.idem != nil && sub.IdempotencyKey != "" {
		if err := s.idem.CheckAndInsert(ctx, sub.IdempotencyKey, idempotencyModule); err != nil {
			return Result{}, err
		}
	}

	res := Result{Summary: Summarize(sub)}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		donorID, err := tx.UpsertDonor(ctx, sub.Donor)
		if err != nil {
			return err
		}
		donationID, err := tx.InsertDonation(ctx, Donation{
			DonorID:          donorID,
			Email:            sub.Donor.Email,
			Name:             sub.Donor.Name,
			Type:             sub.Type,
			TotalBikes:       res.Summary.TotalBikes,
			TotalValue:       res.Summary.TotalValue,
			TotalParts:       res.Summary.TotalParts,
			Notes:            sub.Notes,
			ReceiptRequested: sub.ReceiptRequested,
			TaxDeductible:    sub.TaxDeductible,
			RecordedBy:       p.UserID,
		})
		if err != nil {
			return err
		}
		if sub.Type.HasBike() && sub.Bike != nil {
			if err := tx.InsertBikeDonated(ctx, donationID, *sub.Bike); err != nil {
				return err
			}
		}
		if sub.Type.HasParts() && sub.Parts != nil {
			parts := *sub.Parts
			if parts.NumberOfParts <= 0 {
				parts.NumberOfParts = 1
			}
			if err := tx.InsertPartsDonated(ctx, donationID, parts); err != nil {
				return err
			}
		}
		res.DonorID = donorID
		res.DonationID = donationID
		return nil
	})
	if err != nil {
		s.metrics.Donation(string(sub.Type), "failed")
		if s.idem != nil && sub.IdempotencyKey != "" {
			if delErr := s.idem.Delete(ctx, sub.IdempotencyKey); delErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		return Result{}, fmt.Errorf("donations: submit: %w", err)
	}
	s.metrics.Donation(string(sub.Type), "recorded")

	if sub.ReceiptRequested && s.receipts != nil {
		receipt := Receipt{
			DonationID:    res.DonationID,
			Email:         sub.Donor.Email,
			Name:          sub.Donor.Name,
			Type:          sub.Type,
			TotalValue:    res.Summary.TotalValue,
			TaxDeductible: sub.TaxDeductible,
		}
		if err := s.receipts.EnqueueReceipt(ctx, receipt); err != nil {
			s.logger.Warn("enqueue donation receipt", slog.String("donation_id", res.DonationID.String()), slog.Any("error", err))
		}
	}
	return res, nil
}

// ListDonations returns recent donations, newest first.
func (s *Service) ListDonations(ctx context.Context, p rbac.Principal, limit int) ([]Donation, error) {
	if !p.HasPermission(rbac.ActionRead, rbac.ResourceDonations) {
		return nil, shared.ErrUnauthorized
	}
	return s.repo.ListDonations(ctx, limit)
}

// SearchDonors lists donors whose name, email, phone or address contains
// term, ignoring case.
func (s *Service) SearchDonors(ctx context.Context, p rbac.Principal, term string) ([]Donor, error) {
	if !p.HasPermission(rbac.ActionRead, rbac.ResourceDonors) {
		return nil, shared.ErrUnauthorized
	}
	donors, err := s.repo.ListDonors(ctx)
	if err != nil {
		return nil, err
	}
	needle := shared.Fold(strings.TrimSpace(term))
	if needle == "" {
		return donors, nil
	}
	out := make([]Donor, 0, len(donors))
	for _, d := range donors {
		for _, field := range []string{d.Name, d.Email, d.Phone, d.Address} {
			if strings.Contains(shared.Fold(field), needle) {
				out = append(out, d)
				break
			}
		}
	}
	return out, nil
}

// NewIdempotencyKey returns a key for a freshly rendered donor form.
func NewIdempotencyKey() string {
	return uuid.NewString()
}
