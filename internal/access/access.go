// Package access holds the tenant isolation rule. Every tenant-scoped read or
// write (listing, single fetch, deletion, delivery, observer opt-in) asks Allow.
package access

import (
	"videoapi/internal/model"
)

// Caller is a verified identity together with its role and current partition.
type Caller struct {
	UserID   string
	Role     model.Role
	TenantID string
}

// NewCaller resolves the caller tuple for a stored user.
func NewCaller(u model.User) Caller {
	return Caller{UserID: u.ID, Role: u.Role, TenantID: u.Partition()}
}

// IsAdmin reports whether the caller holds the elevated administrative role.
func (c Caller) IsAdmin() bool {
	return c.Role == model.RoleAdmin
}

// HasRole reports whether the caller's role is one of roles.
func (c Caller) HasRole(roles ...model.Role) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

// Allow is the isolation predicate: administrators reach every partition,
// everyone else only their own.
func Allow(c Caller, resourceTenant string) bool {
	if c.IsAdmin() {
		return true
	}
	return c.TenantID != "" && c.TenantID == resourceTenant
}

// ScopeTenant resolves which partition a listing may cover. An empty request
// means "mine" for regular callers and "all" for administrators. The bool is
// false when the caller asked for a partition Allow refuses.
func ScopeTenant(c Caller, requested string) (string, bool) {
	if requested == "" {
		if c.IsAdmin() {
			return "", true
		}
		return c.TenantID, true
	}
	if !Allow(c, requested) {
		return "", false
	}
	return requested, true
}
