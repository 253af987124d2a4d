package handler

import (
	"github.com/gofiber/fiber/v2"

	"videoapi/internal/service"
)

type roleRequest struct {
	Role string `json:"role"`
}

type tenantRequest struct {
	TenantID string `json:"tenantId"`
}

// ListUsers godoc
// @Summary List users
// @Tags users
// @Produce json
// @Param role query string false "admin|editor|viewer"
// @Param limit query int false "page size" default(10)
// @Param offset query int false "page offset" default(0)
// @Success 200 {object} service.UserListResult
// @Security BearerAuth
// @Router /users [get]
func ListUsers(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, ok := queryInt(c, "limit", 10)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, ok := queryInt(c, "offset", 0)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}
		res, err := svc.List(c.UserContext(), c.Query("role"), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// ListTenants godoc
// @Summary List tenants
// @Description Every user with its effective tenant, video count, member count and whether the tenant is in use.
// @Tags users
// @Produce json
// @Success 200 {array} model.TenantSummary
// @Security BearerAuth
// @Router /users/tenants [get]
func ListTenants(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out, err := svc.Tenants(c.UserContext())
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"data": out})
	}
}

// GetUser godoc
// @Summary Get a user
// @Tags users
// @Produce json
// @Param id path string true "user id"
// @Success 200 {object} model.User
// @Failure 404 {object} errorPayload
// @Security BearerAuth
// @Router /users/{id} [get]
func GetUser(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := svc.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(u)
	}
}

// UpdateUserRole godoc
// @Summary Change a user's role
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "user id"
// @Param body body roleRequest true "new role"
// @Success 200 {object} model.User
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Security BearerAuth
// @Router /users/{id}/role [patch]
func UpdateUserRole(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req roleRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		u, err := svc.UpdateRole(c.UserContext(), c.Params("id"), req.Role)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(u)
	}
}

// UpdateUserTenant godoc
// @Summary Move a user to another tenant
// @Description An empty tenantId returns the user to its own tenant. Existing videos keep their tenant.
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "user id"
// @Param body body tenantRequest true "target tenant"
// @Success 200 {object} model.User
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Security BearerAuth
// @Router /users/{id}/tenant [patch]
func UpdateUserTenant(svc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req tenantRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		u, err := svc.UpdateTenant(c.UserContext(), c.Params("id"), req.TenantID)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(u)
	}
}
