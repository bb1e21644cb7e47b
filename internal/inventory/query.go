package inventory

import (
	"fmt"
	"strings"

	"github.com/phoenix-bikes/biketrack/internal/rbac"
)

const bikeColumns = `id, serial_number, brand, model, type, size, value::float8, program, condition,
	status, donated_to, notes, component_serial, created_at, updated_at`

// Scope is the mandatory program restriction derived from a principal.
type Scope struct {
	All     bool
	Program rbac.Program
	Nothing bool
}

// ScopeFor returns the scope for p: admins are unscoped, program roles see
// their program and everyone else sees nothing.
func ScopeFor(p rbac.Principal) Scope {
	if p.IsAdmin() {
		return Scope{All: true}
	}
	if program, ok := p.Role.Program(); ok {
		return Scope{Program: program}
	}
	return Scope{Nothing: true}
}

// buildBikeQuery applies scope, equality filters, the inclusive value range
// and the status exclusion, in that order.
func buildBikeQuery(scope Scope, f Filters) (string, []any) {
	var (
		conds []string
		args  []any
	)
	argPos := 1
	add := func(cond string, arg any) {
		conds = append(conds, fmt.Sprintf(cond, argPos))
		args = append(args, arg)
		argPos++
	}

	switch {
	case scope.Nothing:
		conds = append(conds, "FALSE")
	case !scope.All:
		add("program = $%d", string(scope.Program))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.MinValue != nil {
		add("value >= $%d", *f.MinValue)
	}
	if f.MaxValue != nil {
		add("value <= $%d", *f.MaxValue)
	}
	if len(f.StatusNotIn) > 0 {
		placeholders := make([]string, len(f.StatusNotIn))
		for i, s := range f.StatusNotIn {
			placeholders[i] = fmt.Sprintf("$%d", argPos)
			args = append(args, string(s))
			argPos++
		}
		conds = append(conds, "status NOT IN ("+strings.Join(placeholders, ", ")+")")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(bikeColumns)
	sb.WriteString(" FROM bikes")
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC")
	return sb.String(), args
}
