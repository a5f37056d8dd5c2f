package authcore

import "strings"

// Role is an account privilege level. Roles form a total order through an
// explicit rank table; authorization compares ranks, never role names.
type Role string

const (
	// RoleViewer is an exported constant or variable used by the authentication engine.
	RoleViewer Role = "viewer"
	// RoleEditor is an exported constant or variable used by the authentication engine.
	RoleEditor Role = "editor"
	// RoleAdmin is an exported constant or variable used by the authentication engine.
	RoleAdmin Role = "admin"
	// RoleOwner is an exported constant or variable used by the authentication engine.
	RoleOwner Role = "owner"
)

var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

// Roles lists every role from least to most privileged.
func Roles() []Role {
	return []Role{RoleViewer, RoleEditor, RoleAdmin, RoleOwner}
}

// ParseRole normalizes s and returns the matching Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrRoleInvalid
	}
	return r, nil
}

// Rank returns the role's position in the privilege order, or 0 for an
// unknown role.
func (r Role) Rank() int {
	return roleRank[r]
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether r is at least as privileged as min. Unknown roles
// satisfy nothing.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && min.Valid() && r.Rank() >= min.Rank()
}

// Outranks reports whether r is strictly more privileged than other.
func (r Role) Outranks(other Role) bool {
	return r.Valid() && other.Valid() && r.Rank() > other.Rank()
}

func (r Role) String() string { return string(r) }

// canDelete applies the deletion rules: the actor is not the target, holds at
// least RoleAdmin and strictly outranks the target.
func canDelete(actor, target Account) bool {
	if actor.ID == "" || actor.ID == target.ID {
		return false
	}
	return actor.Role.AtLeast(RoleAdmin) && actor.Role.Outranks(target.Role)
}

// canCreate reports whether creator may create an account with role. An empty
// creator is the bootstrap path and may create any role.
func canCreate(creator *Account, role Role) bool {
	if !role.Valid() {
		return false
	}
	if creator == nil {
		return true
	}
	return creator.Role.AtLeast(RoleAdmin) && creator.Role.Outranks(role)
}
