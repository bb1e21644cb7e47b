package rbac

import "github.com/phoenix-bikes/biketrack/internal/shared"

// RoleTag is the closed set of roles a user can be assigned.
type RoleTag uint8

const (
	// RoleNone means no role is known for the principal.
	RoleNone RoleTag = iota
	RoleEarnABike
	RoleGiveABike
	RoleSales
	RoleAdmin
)

// AllRoles lists every assignable role.
func AllRoles() []RoleTag {
	return []RoleTag{RoleEarnABike, RoleGiveABike, RoleSales, RoleAdmin}
}

// ParseRoleTag matches s case-insensitively against the assignable roles.
// Unknown strings resolve to RoleNone.
func ParseRoleTag(s string) (RoleTag, bool) {
	folded := shared.Fold(s)
	for _, r := range AllRoles() {
		if shared.Fold(r.String()) == folded {
			return r, true
		}
	}
	return RoleNone, false
}

// String returns the persisted tag of the role.
func (r RoleTag) String() string {
	switch r {
	case RoleEarnABike:
		return "earn-a-bike"
	case RoleGiveABike:
		return "give-a-bike"
	case RoleSales:
		return "sales"
	case RoleAdmin:
		return "admin"
	default:
		return ""
	}
}

// DisplayName returns the label shown in the UI.
func (r RoleTag) DisplayName() string {
	switch r {
	case RoleEarnABike:
		return "Earn-A-Bike"
	case RoleGiveABike:
		return "Give-A-Bike"
	case RoleSales:
		return "Sales"
	case RoleAdmin:
		return "Admin"
	default:
		return "Not Logged In"
	}
}

// Valid reports whether r is an assignable role.
func (r RoleTag) Valid() bool {
	return r != RoleNone && r.String() != ""
}

// Program returns the inventory program the role operates. Admin and
// RoleNone have no program of their own.
func (r RoleTag) Program() (Program, bool) {
	switch r {
	case RoleEarnABike:
		return ProgramEarnABike, true
	case RoleGiveABike:
		return ProgramGiveABike, true
	case RoleSales:
		return ProgramSales, true
	default:
		return "", false
	}
}

// Program is one of the organisation's operating tracks.
type Program string

const (
	ProgramEarnABike Program = "earn-a-bike"
	ProgramGiveABike Program = "give-a-bike"
	ProgramSales     Program = "sales"
)

// Programs lists the inventory programs.
func Programs() []Program {
	return []Program{ProgramEarnABike, ProgramGiveABike, ProgramSales}
}

// Resource returns the bikes resource owned by the program.
func (p Program) Resource() Resource {
	switch p {
	case ProgramEarnABike:
		return ResourceEarnABikeBikes
	case ProgramGiveABike:
		return ResourceGiveABikeBikes
	case ProgramSales:
		return ResourceSalesBikes
	default:
		return ResourceNone
	}
}
