package roles

import (
	"time"

	"github.com/google/uuid"

	"github.com/phoenix-bikes/biketrack/internal/rbac"
)

// Assignment is one account and the role it holds, if any.
type Assignment struct {
	UserID    uuid.UUID
	Email     string
	Role      rbac.RoleTag
	UpdatedAt *time.Time
}

// RoleName returns the display name of the assigned role.
func (a Assignment) RoleName() string {
	if !a.Role.Valid() {
		return "Unassigned"
	}
	return a.Role.DisplayName()
}
