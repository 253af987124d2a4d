package service

import (
	"context"
	"errors"
	"fmt"

	"videoapi/internal/model"
	"videoapi/internal/repository"
)

// UserListResult is the service-level DTO for paginated users.
type UserListResult struct {
	Items  []model.User `json:"data"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// UserService covers the administrative user and tenant operations.
// Callers are expected to have checked the admin role.
type UserService interface {
	List(ctx context.Context, role string, limit, offset int) (*UserListResult, error)
	Get(ctx context.Context, id string) (*model.User, error)
	UpdateRole(ctx context.Context, id, role string) (*model.User, error)
	// UpdateTenant assigns the user to tenantID's partition; an empty tenantID
	// returns the user to its own. Existing videos keep their tenant.
	UpdateTenant(ctx context.Context, id, tenantID string) (*model.User, error)
	Tenants(ctx context.Context) ([]model.TenantSummary, error)
}

type userService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) UserService {
	return &userService{users: users}
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *userService) List(ctx context.Context, role string, limit, offset int) (*UserListResult, error) {
	r := model.Role(role)
	if r != "" && !r.Valid() {
		return nil, ErrInvalidRole
	}
	limit, offset = clampPage(limit, offset)
	res, err := s.users.List(ctx, r, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &UserListResult{Items: res.Items, Total: res.Total, Limit: limit, Offset: offset}, nil
}

func (s *userService) Get(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *userService) UpdateRole(ctx context.Context, id, role string) (*model.User, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	r := model.Role(role)
	if !r.Valid() {
		return nil, ErrInvalidRole
	}
	u, err := s.users.UpdateRole(ctx, id, r)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *userService) UpdateTenant(ctx context.Context, id, tenantID string) (*model.User, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	var target *string
	if tenantID != "" {
		if _, err := s.users.FindByID(ctx, tenantID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrInvalidTenant
			}
			return nil, fmt.Errorf("lookup tenant: %w", err)
		}
		target = &tenantID
	}
	u, err := s.users.UpdateTenant(ctx, id, target)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *userService) Tenants(ctx context.Context) ([]model.TenantSummary, error) {
	return s.users.Tenants(ctx)
}
