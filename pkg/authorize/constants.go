package authorize

import "fmt"

type Role string
type Tier string

// ----------------------------
// Roles
// ----------------------------

const (
	RoleUser     Role = "user"
	RoleMerchant Role = "merchant"
	RoleDealer   Role = "dealer"
	RoleAgency   Role = "agency"
	RoleBranch   Role = "branch"
	RoleHQ       Role = "hq"
	RoleAdmin    Role = "admin"
)

var roleRanks = map[Role]int{
	RoleUser:     0,
	RoleMerchant: 1,
	RoleDealer:   2,
	RoleAgency:   3,
	RoleBranch:   4,
	RoleHQ:       5,
	RoleAdmin:    6,
}

// Rank returns the position of r in the hierarchy; unknown roles rank below user.
func Rank(r Role) int {
	if v, ok := roleRanks[r]; ok {
		return v
	}
	return -1
}

// AtLeast reports whether r holds required or any role above it.
func (r Role) AtLeast(required Role) bool {
	return Rank(r) >= 0 && Rank(r) >= Rank(required)
}

func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

func (r Role) String() string { return string(r) }

// IsHQ covers hq and admin.
func (r Role) IsHQ() bool {
	return r.AtLeast(RoleHQ)
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// ----------------------------
// Commission tiers
// ----------------------------

const (
	TierHQ     Tier = "hq"
	TierBranch Tier = "branch"
	TierAgency Tier = "agency"
	TierDealer Tier = "dealer"
)

// Tiers lists the settleable tiers from the top of the hierarchy down.
var Tiers = []Tier{TierHQ, TierBranch, TierAgency, TierDealer}

func (t Tier) Valid() bool {
	switch t {
	case TierHQ, TierBranch, TierAgency, TierDealer:
		return true
	}
	return false
}

// TierForRole maps a role onto the commission tier it owns. Roles below
// dealer own no tier.
func TierForRole(r Role) (Tier, bool) {
	switch {
	case r.IsHQ():
		return TierHQ, true
	case r == RoleBranch:
		return TierBranch, true
	case r == RoleAgency:
		return TierAgency, true
	case r == RoleDealer:
		return TierDealer, true
	}
	return "", false
}
