package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"videoapi/internal/access"
	"videoapi/internal/auth"
	"videoapi/internal/model"
)

// CallerLocalKey is where Authenticate stores the verified access.Caller.
const CallerLocalKey = "caller"

// Verifier resolves a raw token to a caller.
type Verifier interface {
	Verify(ctx context.Context, token string) (access.Caller, error)
}

// Authenticate requires a valid token from the Authorization header or, for
// clients that cannot set headers (EventSource, <video src>), the token query
// parameter.
func Authenticate(v Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			token = c.Query("token")
		}

		caller, err := v.Verify(c.UserContext(), token)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrMissingToken):
			return fiber.NewError(fiber.StatusUnauthorized, "missing token")
		case errors.Is(err, auth.ErrTokenExpired):
			return fiber.NewError(fiber.StatusUnauthorized, "token expired")
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUnknownUser):
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		default:
			return err
		}

		c.Locals(CallerLocalKey, caller)
		return c.Next()
	}
}

// CallerFrom returns the caller stored by Authenticate.
func CallerFrom(c *fiber.Ctx) (access.Caller, bool) {
	caller, ok := c.Locals(CallerLocalKey).(access.Caller)
	return caller, ok
}

// RequireRole rejects callers whose role is not listed. Mount it after Authenticate.
func RequireRole(roles ...model.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := CallerFrom(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "missing token")
		}
		if !caller.HasRole(roles...) {
			return fiber.NewError(fiber.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}
