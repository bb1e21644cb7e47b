package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	ListBikes(ctx context.Context, scope Scope, f Filters) ([]Bike, error)
	GetBike(ctx context.Context, id uuid.UUID) (Bike, error)
	InsertBike(ctx context.Context, b Bike) (Bike, error)
	UpdateBike(ctx context.Context, b Bike) error
	DeleteBike(ctx context.Context, id uuid.UUID) error
	Lookups(ctx context.Context) (Lookups, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ErrInvalidStatus is returned for a status outside the known set.
var ErrInvalidStatus = errors.New("inventory: invalid status")

// ErrInvalidProgram is returned for a program outside the known set.
var ErrInvalidProgram = errors.New("inventory: invalid program")

// Service coordinates inventory reads and writes for a principal.
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

// ListBikes returns the bikes p may see that match f. A principal without a
// program sees nothing and the store is not consulted.
func (s *Service) ListBikes(ctx context.Context, p rbac.Principal, f Filters) ([]Bike, error) {
	scope := ScopeFor(p)
	if scope.Nothing {
		return []Bike{}, nil
	}
	bikes, err := s.repo.ListBikes(ctx, scope, f)
	if err != nil {
		return nil, err
	}
	if bikes == nil {
		bikes = []Bike{}
	}
	return bikes, nil
}

// GetFilteredBikes is ListBikes for views: failures are logged and yield an
// empty list.
func (s *Service) GetFilteredBikes(ctx context.Context, p rbac.Principal, f Filters) []Bike {
	bikes, err := s.ListBikes(ctx, p, f)
	if err != nil {
		s.logger.Error("get filtered bikes", slog.String("role", p.Role.String()), slog.Any("error", err))
		return []Bike{}
	}
	return bikes
}

// GetBikeCounts classifies the unfiltered role-scoped set.
func (s *Service) GetBikeCounts(ctx context.Context, p rbac.Principal) Counts {
	return CountBikes(s.GetFilteredBikes(ctx, p, Filters{}))
}

// Search matches term against every text column of the role-scoped set.
func (s *Service) Search(ctx context.Context, p rbac.Principal, term string) []Bike {
	return MatchBikes(s.GetFilteredBikes(ctx, p, Filters{}), term)
}

// GetBike loads a bike p may read.
func (s *Service) GetBike(ctx context.Context, p rbac.Principal, id uuid.UUID) (Bike, error) {
	if !canOnAnyBikes(p, rbac.ActionRead) {
		return Bike{}, shared.ErrUnauthorized
	}
	b, err := s.repo.GetBike(ctx, id)
	if err != nil {
		return Bike{}, err
	}
	if !p.HasPermission(rbac.ActionRead, b.Resource()) || !visible(p, b) {
		return Bike{}, shared.ErrUnauthorized
	}
	return b, nil
}

// CreateBike stores a bike. An empty program defaults to the principal's own.
func (s *Service) CreateBike(ctx context.Context, p rbac.Principal, in BikeInput) (Bike, error) {
	if in.Program == "" {
		if program, ok := p.Role.Program(); ok {
			in.Program = string(program)
		}
	}
	if err := checkInput(in); err != nil {
		return Bike{}, err
	}
	var b Bike
	in.apply(&b)
	if !p.HasPermission(rbac.ActionCreate, b.Resource()) {
		return Bike{}, shared.ErrUnauthorized
	}
	created, err := s.repo.InsertBike(ctx, b)
	if err != nil {
		return Bike{}, err
	}
	s.record(ctx, p, "bike.create", created)
	return created, nil
}

// UpdateBike edits a bike p can see. Moving a bike to another program or into
// the strip pile needs update rights on both sides.
func (s *Service) UpdateBike(ctx context.Context, p rbac.Principal, id uuid.UUID, in BikeInput) (Bike, error) {
	if !canOnAnyBikes(p, rbac.ActionUpdate) {
		return Bike{}, shared.ErrUnauthorized
	}
	if err := checkInput(in); err != nil {
		return Bike{}, err
	}
	current, err := s.repo.GetBike(ctx, id)
	if err != nil {
		return Bike{}, err
	}
	next := current
	in.apply(&next)
	if !CanEdit(p, current) || !p.HasPermission(rbac.ActionUpdate, next.Resource()) {
		return Bike{}, shared.ErrUnauthorized
	}
	if err := s.repo.UpdateBike(ctx, next); err != nil {
		return Bike{}, err
	}
	s.record(ctx, p, "bike.update", next)
	return next, nil
}

// DeleteBike removes a bike p can see and may delete.
func (s *Service) DeleteBike(ctx context.Context, p rbac.Principal, id uuid.UUID) error {
	if !canOnAnyBikes(p, rbac.ActionDelete) {
		return shared.ErrUnauthorized
	}
	b, err := s.repo.GetBike(ctx, id)
	if err != nil {
		return err
	}
	if !CanDelete(p, b) {
		return shared.ErrUnauthorized
	}
	if err := s.repo.DeleteBike(ctx, id); err != nil {
		return err
	}
	s.record(ctx, p, "bike.delete", b)
	return nil
}

// Lookups returns the bike form option lists.
func (s *Service) Lookups(ctx context.Context, p rbac.Principal) (Lookups, error) {
	if !p.HasPermission(rbac.ActionRead, rbac.ResourceLookups) {
		return Lookups{}, shared.ErrUnauthorized
	}
	return s.repo.Lookups(ctx)
}

// CanEdit reports whether p may update b; the table uses it for row actions.
// A strip bike of another program stays off limits even though strip_bikes
// is shared.
func CanEdit(p rbac.Principal, b Bike) bool {
	return visible(p, b) && p.HasPermission(rbac.ActionUpdate, b.Resource())
}

// CanDelete reports whether p may delete b.
func CanDelete(p rbac.Principal, b Bike) bool {
	return visible(p, b) && p.HasPermission(rbac.ActionDelete, b.Resource())
}

func canOnAnyBikes(p rbac.Principal, action rbac.Action) bool {
	if p.HasPermission(action, rbac.ResourceStripBikes) {
		return true
	}
	for _, program := range rbac.Programs() {
		if p.HasPermission(action, program.Resource()) {
			return true
		}
	}
	return false
}

// visible applies the same program scope as listing.
func visible(p rbac.Principal, b Bike) bool {
	scope := ScopeFor(p)
	switch {
	case scope.All:
		return true
	case scope.Nothing:
		return false
	default:
		return b.Program == string(scope.Program)
	}
}

func checkInput(in BikeInput) error {
	if !in.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
	}
	if rbac.Program(in.Program).Resource() == rbac.ResourceNone {
		return fmt.Errorf("%w: %q", ErrInvalidProgram, in.Program)
	}
	return nil
}

func (s *Service) record(ctx context.Context, p rbac.Principal, action string, b Bike) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		Action:   action,
		Entity:   "bikes",
		EntityID: b.ID.String(),
		Meta:     map[string]any{"program": b.Program, "status": string(b.Status), "serial": b.SerialNumber},
	}
	if p.LoggedIn() && p.UserID != uuid.Nil {
		entry.ActorID = p.UserID.String()
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit bike write", slog.String("action", action), slog.Any("error", err))
	}
}
