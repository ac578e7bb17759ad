package pasetotoken

import (
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
)

// Identity is what the identity provider vouches for when a token is issued.
type Identity struct {
	UserID     uuid.UUID
	Role       authorize.Role
	RegionCode string
	SessionID  *uuid.UUID
}

// Claims is the app-facing token payload.
type Claims struct {
	Identity

	Issuer   string
	Audience string

	IssuedAt  time.Time
	NotBefore time.Time
	ExpiresAt time.Time
	TokenID   string // jti
	Subject   string
}

// Caller converts the verified claims into the identity services authorize
// against.
func (c *Claims) Caller() authorize.Caller {
	return authorize.Caller{UserID: c.UserID, Role: c.Role, RegionCode: c.RegionCode}
}

func (c *Claims) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}
