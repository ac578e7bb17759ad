package authorize

import "testing"

func TestRank(t *testing.T) {
	order := []Role{RoleUser, RoleMerchant, RoleDealer, RoleAgency, RoleBranch, RoleHQ, RoleAdmin}
	for i, r := range order {
		if got := Rank(r); got != i {
			t.Errorf("Rank(%s) = %d, want %d", r, got, i)
		}
	}
	if Rank(Role("superuser")) != -1 {
		t.Error("unknown role should rank -1")
	}
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		role     Role
		required Role
		expected bool
	}{
		{RoleAdmin, RoleHQ, true},
		{RoleHQ, RoleHQ, true},
		{RoleBranch, RoleHQ, false},
		{RoleDealer, RoleDealer, true},
		{RoleMerchant, RoleDealer, false},
		{Role("ghost"), RoleUser, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+">="+string(tt.required), func(t *testing.T) {
			if got := tt.role.AtLeast(tt.required); got != tt.expected {
				t.Errorf("%s.AtLeast(%s) = %v, want %v", tt.role, tt.required, got, tt.expected)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	if _, err := ParseRole("agency"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseRole("Agency"); err == nil {
		t.Fatal("roles are case sensitive")
	}
}

func TestTierForRole(t *testing.T) {
	tests := []struct {
		role   Role
		tier   Tier
		exists bool
	}{
		{RoleAdmin, TierHQ, true},
		{RoleHQ, TierHQ, true},
		{RoleBranch, TierBranch, true},
		{RoleAgency, TierAgency, true},
		{RoleDealer, TierDealer, true},
		{RoleMerchant, "", false},
		{RoleUser, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			tier, ok := TierForRole(tt.role)
			if ok != tt.exists || tier != tt.tier {
				t.Errorf("TierForRole(%s) = (%s, %v), want (%s, %v)", tt.role, tier, ok, tt.tier, tt.exists)
			}
		})
	}
}
