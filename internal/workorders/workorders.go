// Package workorders tracks repair requests raised against bikes.
package workorders

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/shared"
)

// Status of a work order.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// WorkOrder is a work_orders row joined with its bike and requester.
type WorkOrder struct {
	ID               uuid.UUID
	BikeID           *uuid.UUID
	BikeLabel        string
	Description      string
	Status           Status
	RequestedBy      *uuid.UUID
	RequestedByEmail string
	CreatedAt        time.Time
	ClosedAt         *time.Time
}

// Open reports whether the order still needs work.
func (w WorkOrder) Open() bool { return w.Status == StatusOpen }

// Input creates a work order.
type Input struct {
	BikeID      *uuid.UUID
	Description string
}

// RepositoryPort abstracts work order persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, in Input, requestedBy uuid.UUID) (WorkOrder, error)
	List(ctx context.Context) ([]WorkOrder, error)
	Close(ctx context.Context, id uuid.UUID) error
}

// AuditPort records work order changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service applies permissions around the repository.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Create opens a work order.
func (s *Service) Create(ctx context.Context, p rbac.Principal, in Input) (WorkOrder, error) {
	if !p.HasPermission(rbac.ActionCreate, rbac.ResourceWorkOrders) {
		return WorkOrder{}, shared.ErrUnauthorized
	}
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return WorkOrder{}, shared.ErrValidationMissing
	}
	wo, err := s.repo.Insert(ctx, in, p.UserID)
	if err != nil {
		return WorkOrder{}, err
	}
	s.record(ctx, p, "work_order.create", wo.ID)
	return wo, nil
}

// List returns all work orders, newest first.
func (s *Service) List(ctx context.Context, p rbac.Principal) ([]WorkOrder, error) {
	if !p.HasPermission(rbac.ActionRead, rbac.ResourceWorkOrders) {
		return nil, shared.ErrUnauthorized
	}
	return s.repo.List(ctx)
}

// Close marks an open work order closed. Closing an unknown or already
// closed order reports shared.ErrNotFound.
func (s *Service) Close(ctx context.Context, p rbac.Principal, id uuid.UUID) error {
	if !p.HasPermission(rbac.ActionUpdate, rbac.ResourceWorkOrders) {
		return shared.ErrUnauthorized
	}
	if err := s.repo.Close(ctx, id); err != nil {
		return err
	}
	s.record(ctx, p, "work_order.close", id)
	return nil
}

func (s *Service) record(ctx context.Context, p rbac.Principal, action string, id uuid.UUID) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{Action: action, Entity: "work_orders", EntityID: id.String()}
	if p.LoggedIn() {
		entry.ActorID = p.UserID.String()
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit work order", slog.String("action", action), slog.Any("error", err))
	}
}
