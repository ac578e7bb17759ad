package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
	pasetotoken "github.com/Alijeyrad/franchise_backend/pkg/paseto"
)

const LocalCaller = "caller"

// TokenVerifier is satisfied by *pasetotoken.Manager.
type TokenVerifier interface {
	Verify(token string) (*pasetotoken.Claims, error)
}

// SessionStore answers whether a session is still live. nil disables the check.
type SessionStore interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthRequired validates a Bearer PASETO access token. When sessions is set,
// tokens carrying a session id are rejected once "session:<sid>" is gone
// from Redis. On success the caller is stored in locals and in the request
// context.
func AuthRequired(v TokenVerifier, sessions SessionStore) fiber.Handler {
	return func(c fiber.Ctx) error {
		h := c.Get("Authorization")
		if h == "" {
			return fiber.ErrUnauthorized
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return fiber.ErrUnauthorized
		}

		claims, err := v.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			return fiber.ErrUnauthorized
		}

		if sessions != nil && claims.SessionID != nil {
			n, err := sessions.Exists(c.Context(), "session:"+claims.SessionID.String()).Result()
			if err != nil || n == 0 {
				return fiber.ErrUnauthorized
			}
		}

		caller := claims.Caller()
		c.Locals(LocalCaller, caller)
		c.SetContext(authorize.WithCaller(c.Context(), caller))
		return c.Next()
	}
}

// CallerFromFiber returns the caller set by AuthRequired.
func CallerFromFiber(c fiber.Ctx) (authorize.Caller, bool) {
	caller, ok := c.Locals(LocalCaller).(authorize.Caller)
	return caller, ok
}
