package repository

import (
	"context"

	"videoapi/internal/model"
)

// UserRepository defines data access for users and their tenant assignment.
type UserRepository interface {
	// FindByID returns a user by its ID, or ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.User, error)

	// List returns users, optionally restricted to one role, ordered by creation time.
	List(ctx context.Context, role model.Role, pq PageQuery) (*PageResult[model.User], error)

	// UpdateRole sets the user's role and returns the updated row, or ErrNotFound.
	UpdateRole(ctx context.Context, id string, role model.Role) (*model.User, error)

	// UpdateTenant assigns the user to tenantID's partition; nil resets it to the user's own.
	UpdateTenant(ctx context.Context, id string, tenantID *string) (*model.User, error)

	// Tenants summarizes every user as a potential tenant owner.
	Tenants(ctx context.Context) ([]model.TenantSummary, error)
}
