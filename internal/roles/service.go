package roles

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phoenix-bikes/biketrack/internal/rbac"
	"github.com/phoenix-bikes/biketrack/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	GetRole(ctx context.Context, userID uuid.UUID) (string, error)
	UpsertRole(ctx context.Context, userID uuid.UUID, role rbac.RoleTag) error
	UserIDByEmail(ctx context.Context, email string) (uuid.UUID, error)
	ListAssignments(ctx context.Context) ([]Assignment, error)
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles role business logic.
type Service struct {
	repo   RepositoryPort
	audit  AuditRecorder
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// ResolveRole returns the role assigned to userID. A missing row, an unknown
// role string and any store failure all resolve to absent; failures are
// logged rather than returned.
func (s *Service) ResolveRole(ctx context.Context, userID uuid.UUID) (rbac.RoleTag, bool) {
	raw, err := s.repo.GetRole(ctx, userID)
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrNotFound):
		return rbac.RoleNone, false
	case errors.Is(err, shared.ErrBackendUnavailable):
		s.logger.Error("resolve role: store not connected", slog.String("user_id", userID.String()))
		return rbac.RoleNone, false
	default:
		s.logger.Error("resolve role", slog.String("user_id", userID.String()), slog.Any("error", err))
		return rbac.RoleNone, false
	}
	role, ok := rbac.ParseRoleTag(raw)
	if !ok {
		s.logger.Warn("resolve role: unknown role", slog.String("user_id", userID.String()), slog.String("role", raw))
	}
	return role, ok
}

// InitializeSession builds the principal for a user who just signed in.
func (s *Service) InitializeSession(ctx context.Context, userID uuid.UUID, email string) rbac.Principal {
	role, _ := s.ResolveRole(ctx, userID)
	return rbac.NewPrincipal(userID, email, role)
}

// AssignRole upserts the role of userID. Only admins may assign roles; the
// check happens before any store call.
func (s *Service) AssignRole(ctx context.Context, acting rbac.Principal, userID uuid.UUID, role rbac.RoleTag) error {
	if !acting.IsAdmin() {
		return shared.ErrUnauthorized
	}
	if !role.Valid() || userID == uuid.Nil {
		return shared.ErrValidationMissing
	}
	if err := s.repo.UpsertRole(ctx, userID, role); err != nil {
		return err
	}
	if s.audit != nil {
		entry := shared.AuditLog{
			Action:   "role.assign",
			Entity:   "user_roles",
			EntityID: userID.String(),
			Meta:     map[string]any{"role": role.String()},
		}
		if acting.LoggedIn() {
			entry.ActorID = acting.UserID.String()
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			s.logger.Warn("audit role assign", slog.Any("error", err))
		}
	}
	return nil
}

// AssignRoleByEmail resolves the account by email, then assigns.
func (s *Service) AssignRoleByEmail(ctx context.Context, acting rbac.Principal, email string, role rbac.RoleTag) (uuid.UUID, error) {
	if !acting.IsAdmin() {
		return uuid.Nil, shared.ErrUnauthorized
	}
	userID, err := s.repo.UserIDByEmail(ctx, email)
	if err != nil {
		return uuid.Nil, err
	}
	return userID, s.AssignRole(ctx, acting, userID, role)
}

// ListAssignments returns accounts and roles for the admin page.
func (s *Service) ListAssignments(ctx context.Context, acting rbac.Principal) ([]Assignment, error) {
	if !acting.HasPermission(rbac.ActionRead, rbac.ResourceUserRoles) {
		return nil, shared.ErrUnauthorized
	}
	return s.repo.ListAssignments(ctx)
}
