package rbac

import (
	"context"

	"github.com/google/uuid"

	"github.com/phoenix-bikes/biketrack/internal/shared"
)

// Principal is the signed-in actor. It is built once per sign-in and passed
// explicitly to every operation that needs role information.
type Principal struct {
	UserID uuid.UUID
	Email  string
	Role   RoleTag
}

// Anonymous is the principal of a request without a signed-in user.
var Anonymous = Principal{}

// NewPrincipal returns the principal for a user with the given role.
func NewPrincipal(userID uuid.UUID, email string, role RoleTag) Principal {
	return Principal{UserID: userID, Email: email, Role: role}
}

// PrincipalFromIdentity rebuilds a principal from the session identity.
// Unparsable ids or unknown roles degrade to anonymous/RoleNone.
func PrincipalFromIdentity(id shared.Identity) Principal {
	userID, err := uuid.Parse(id.UserID)
	if err != nil {
		return Anonymous
	}
	role, _ := ParseRoleTag(id.Role)
	return Principal{UserID: userID, Email: id.Email, Role: role}
}

// Identity converts the principal into the session representation.
func (p Principal) Identity() shared.Identity {
	if !p.LoggedIn() {
		return shared.Identity{}
	}
	return shared.Identity{UserID: p.UserID.String(), Email: p.Email, Role: p.Role.String()}
}

// LoggedIn reports whether a user is attached.
func (p Principal) LoggedIn() bool {
	return p.UserID != uuid.Nil
}

// HasRole reports whether a recognised role is attached.
func (p Principal) HasRole() bool {
	return p.Role.Valid()
}

// IsAdmin reports whether the principal is an admin.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// HasPermission evaluates the permission table for action on res. Pass
// ResourceNone when no specific resource applies.
func (p Principal) HasPermission(action Action, res Resource) bool {
	if !p.HasRole() {
		return false
	}
	if p.Role == RoleAdmin {
		return true
	}
	if !action.crud() {
		return false
	}
	g := grantFor(p.Role)
	if g.canWrite(res) {
		return true
	}
	return action == ActionRead && g.canRead(res)
}

// CanAccessProgram reports whether the principal may work in program.
func (p Principal) CanAccessProgram(program Program) bool {
	if p.Role == RoleAdmin {
		return program.Resource() != ResourceNone
	}
	own, ok := p.Role.Program()
	return ok && own == program
}

// CanSeeDonorForm reports whether the donor intake form is available. This is
// an allowlist independent of the CRUD table.
func (p Principal) CanSeeDonorForm() bool {
	return p.Role == RoleSales || p.Role == RoleAdmin
}

// RoleName returns the display name of the principal's role.
func (p Principal) RoleName() string {
	return p.Role.DisplayName()
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in ctx.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the request principal, Anonymous when absent.
func PrincipalFromContext(ctx context.Context) Principal {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	if !ok {
		return Anonymous
	}
	return p
}
