package model

import "time"

// Role is the coarse permission level of a user.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// User is an identity known to the system. TenantID is nil unless an
// administrator assigned the user to another user's partition.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	TenantID  *string   `json:"tenant_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Partition returns the tenant partition the user currently belongs to.
func (u User) Partition() string {
	if u.TenantID != nil && *u.TenantID != "" {
		return *u.TenantID
	}
	return u.ID
}

// TenantSummary describes one user as a potential tenant owner.
type TenantSummary struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	TenantID    string `json:"tenant_id"`
	VideoCount  int    `json:"video_count"`
	MemberCount int    `json:"member_count"`
	Active      bool   `json:"active"`
}
