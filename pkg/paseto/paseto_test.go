package pasetotoken

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
)

func newManager(t *testing.T, keys Keys, ttl time.Duration) *Manager {
	t.Helper()
	m, err := New(Config{Mode: keys.Mode, Issuer: "franchise", Audience: "franchise-api", AccessTTL: ttl}, keys)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestIssueVerify_RoundTripsIdentity(t *testing.T) {
	for _, keys := range []Keys{NewLocalKeys(), NewPublicKeys()} {
		t.Run(string(keys.Mode), func(t *testing.T) {
			m := newManager(t, keys, time.Minute)
			sid := uuid.New()
			id := Identity{UserID: uuid.New(), Role: authorize.RoleDealer, RegionCode: "11", SessionID: &sid}

			tok, err := m.IssueAccess(id)
			if err != nil {
				t.Fatalf("IssueAccess: %v", err)
			}
			claims, err := m.Verify(tok)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if claims.UserID != id.UserID || claims.Role != id.Role || claims.RegionCode != "11" {
				t.Errorf("claims = %+v", claims.Identity)
			}
			if claims.SessionID == nil || *claims.SessionID != sid {
				t.Errorf("session id lost")
			}
			c := claims.Caller()
			if c.Role != authorize.RoleDealer || c.IsHQ() {
				t.Errorf("caller = %+v", c)
			}
		})
	}
}

func TestVerify_Rejects(t *testing.T) {
	m := newManager(t, NewLocalKeys(), time.Minute)
	other := newManager(t, NewLocalKeys(), time.Minute)

	tok, err := other.IssueAccess(Identity{UserID: uuid.New(), Role: authorize.RoleHQ})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Verify(tok); err == nil {
		t.Error("token from another key verified")
	}
	if _, err := m.Verify("v4.local.garbage"); err == nil {
		t.Error("garbage verified")
	}
}

func TestIssueAccess_UnknownRole(t *testing.T) {
	m := newManager(t, NewLocalKeys(), time.Minute)
	if _, err := m.IssueAccess(Identity{UserID: uuid.New(), Role: "superuser"}); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestNew_RequiresIssuerAndAudience(t *testing.T) {
	keys := NewLocalKeys()
	if _, err := New(Config{Mode: ModeLocal, Audience: "a"}, keys); err == nil {
		t.Error("missing issuer accepted")
	}
	if _, err := New(Config{Mode: ModePublic, Issuer: "i", Audience: "a"}, keys); err == nil {
		t.Error("mode mismatch accepted")
	}
}
