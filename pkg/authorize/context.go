package authorize

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNoCallerInContext = errors.New("no caller found in context")
	ErrForbidden         = errors.New("forbidden")
)

// Caller is the authenticated identity handed to services by the transport layer.
type Caller struct {
	UserID     uuid.UUID
	Role       Role
	RegionCode string
}

func (c Caller) IsHQ() bool { return c.Role.IsHQ() }

// Require returns ErrForbidden unless the caller ranks at or above role.
func (c Caller) Require(role Role) error {
	if !c.Role.AtLeast(role) {
		return ErrForbidden
	}
	return nil
}

// CanAccessRegion: HQ sees every region, everyone else only codes nested under
// their own region code.
func (c Caller) CanAccessRegion(code string) bool {
	if c.IsHQ() {
		return true
	}
	if c.RegionCode == "" {
		return false
	}
	return strings.HasPrefix(code, c.RegionCode)
}

type ctxKeyCaller struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKeyCaller{}, c)
}

func CallerFromContext(ctx context.Context) (Caller, error) {
	c, ok := ctx.Value(ctxKeyCaller{}).(Caller)
	if !ok || c.UserID == uuid.Nil {
		return Caller{}, ErrNoCallerInContext
	}
	return c, nil
}

// OwnedTier returns the commission tier the caller owns and the owner id that
// scopes it. HQ-level callers own the hq tier, which has no per-record owner.
func (c Caller) OwnedTier() (Tier, *uuid.UUID, bool) {
	t, ok := TierForRole(c.Role)
	if !ok {
		return "", nil, false
	}
	if t == TierHQ {
		return t, nil, true
	}
	id := c.UserID
	return t, &id, true
}
