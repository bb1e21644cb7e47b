package rbac

// Action is a CRUD verb checked against the permission table.
type Action uint8

const (
	ActionNone Action = iota
	ActionCreate
	ActionRead
	ActionUpdate
	ActionDelete
)

// ParseAction maps the lowercase verb to an Action.
func ParseAction(s string) Action {
	switch s {
	case "create":
		return ActionCreate
	case "read":
		return ActionRead
	case "update":
		return ActionUpdate
	case "delete":
		return ActionDelete
	default:
		return ActionNone
	}
}

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionRead:
		return "read"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return ""
	}
}

func (a Action) crud() bool {
	return a >= ActionCreate && a <= ActionDelete
}

// Resource names a table-like resource guarded by the permission table.
type Resource uint8

const (
	ResourceNone Resource = iota
	ResourceEarnABikeBikes
	ResourceGiveABikeBikes
	ResourceSalesBikes
	ResourceStripBikes
	ResourceDonors
	ResourceDonations
	ResourceUserRoles
	ResourceWorkOrders
	ResourceLookups
)

var resourceNames = map[Resource]string{
	ResourceEarnABikeBikes: "earn-a-bike_bikes",
	ResourceGiveABikeBikes: "give-a-bike_bikes",
	ResourceSalesBikes:     "sales_bikes",
	ResourceStripBikes:     "strip_bikes",
	ResourceDonors:         "donors",
	ResourceDonations:      "donations",
	ResourceUserRoles:      "user_roles",
	ResourceWorkOrders:     "work_orders",
	ResourceLookups:        "lookups",
}

func (r Resource) String() string {
	return resourceNames[r]
}

// ParseResource maps a resource name to its Resource, ResourceNone when unknown.
func ParseResource(s string) Resource {
	for res, name := range resourceNames {
		if name == s {
			return res
		}
	}
	return ResourceNone
}

// grant is one row of the permission table. writeAll and readAll stand for
// the all_tables wildcard.
type grant struct {
	writeAll bool
	write    []Resource
	readAll  bool
	read     []Resource
}

// grantFor is the permission table. Every assignable RoleTag needs a case;
// TestEveryRoleHasGrant fails otherwise.
func grantFor(r RoleTag) grant {
	switch r {
	case RoleEarnABike:
		return grant{write: []Resource{ResourceEarnABikeBikes, ResourceStripBikes}, readAll: true}
	case RoleGiveABike:
		return grant{write: []Resource{ResourceGiveABikeBikes, ResourceStripBikes}, readAll: true}
	case RoleSales:
		return grant{write: []Resource{ResourceSalesBikes, ResourceStripBikes}, readAll: true}
	case RoleAdmin:
		return grant{writeAll: true, readAll: true}
	default:
		return grant{}
	}
}

func (g grant) canWrite(res Resource) bool {
	return g.writeAll || (res != ResourceNone && contains(g.write, res))
}

func (g grant) canRead(res Resource) bool {
	return g.readAll || (res != ResourceNone && contains(g.read, res))
}

func contains(set []Resource, res Resource) bool {
	for _, r := range set {
		if r == res {
			return true
		}
	}
	return false
}
