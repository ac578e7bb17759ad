package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
)

// Permissions is the policy check RequirePermission consults.
type Permissions interface {
	Allow(role authorize.Role, obj authorize.Resource, act authorize.Action) (bool, error)
}

// RequirePermission rejects callers whose role is not granted act on obj.
// It must run after AuthRequired.
func RequirePermission(perms Permissions, obj authorize.Resource, act authorize.Action) fiber.Handler {
	return func(c fiber.Ctx) error {
		caller, ok := CallerFromFiber(c)
		if !ok {
			return fiber.ErrUnauthorized
		}
		allowed, err := perms.Allow(caller.Role, obj, act)
		if err != nil {
			slog.ErrorContext(c.Context(), "permission check failed", "resource", obj, "action", act, "error", err)
			return fiber.ErrInternalServerError
		}
		if !allowed {
			return fiber.ErrForbidden
		}
		return c.Next()
	}
}
