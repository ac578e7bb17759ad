package directory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/internal/repo/repotest"
	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

var hq = authorize.Caller{UserID: uuid.New(), Role: authorize.RoleHQ}

func newService(t *testing.T, key string) (Service, *repotest.Store) {
	t.Helper()
	store := repotest.New()
	cfg := &config.Config{}
	cfg.Authentication.EncryptionKey = key
	svc, err := New(store, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return svc, store
}

func TestNew_RejectsBadKey(t *testing.T) {
	cfg := &config.Config{}
	cfg.Authentication.EncryptionKey = "abcd"
	if _, err := New(repotest.New(), cfg); err == nil {
		t.Fatal("expected error for a short key")
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"010-1234-5678", "+821012345678", false},
		{"+82 10 1234 5678", "+821012345678", false},
		{"+1 650-253-0000", "+16502530000", false},
		{"12", "", true},
		{"not a phone", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := NormalizePhone(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidPhone) {
					t.Fatalf("err = %v, want ErrInvalidPhone", err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("NormalizePhone(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
			}
		})
	}
}

func TestUpsertMember_EncryptsPayoutAccount(t *testing.T) {
	svc, store := newService(t, testKey)
	id := uuid.New()

	m, err := svc.UpsertMember(context.Background(), hq, id, MemberInput{
		Name: "dealer one", Role: authorize.RoleDealer, Phone: "010-1234-5678", PayoutAccount: "110-123-456789",
	})
	if err != nil {
		t.Fatalf("UpsertMember: %v", err)
	}
	if m.Phone != "+821012345678" {
		t.Fatalf("phone = %q", m.Phone)
	}
	stored, _ := store.GetMember(context.Background(), id)
	if stored.PayoutAccount == "" || strings.Contains(stored.PayoutAccount, "110-123") {
		t.Fatalf("payout account stored as %q", stored.PayoutAccount)
	}

	// A later sync without the account keeps the stored one.
	if _, err := svc.UpsertMember(context.Background(), hq, id, MemberInput{Name: "dealer one", Role: authorize.RoleDealer}); err != nil {
		t.Fatal(err)
	}
	acct, err := svc.PayoutAccount(context.Background(), id)
	if err != nil || acct != "110-123-456789" {
		t.Fatalf("PayoutAccount = %q, %v", acct, err)
	}
}

func TestUpsertMember_Errors(t *testing.T) {
	svc, _ := newService(t, "")
	tests := []struct {
		name   string
		caller authorize.Caller
		in     MemberInput
		want   error
	}{
		{"not hq", authorize.Caller{UserID: uuid.New(), Role: authorize.RoleBranch}, MemberInput{Name: "x", Role: authorize.RoleDealer}, authorize.ErrForbidden},
		{"unknown role", hq, MemberInput{Name: "x", Role: "owner"}, ErrInvalidMember},
		{"bad phone", hq, MemberInput{Name: "x", Role: authorize.RoleDealer, Phone: "12"}, ErrInvalidPhone},
		{"no key", hq, MemberInput{Name: "x", Role: authorize.RoleDealer, PayoutAccount: "1"}, ErrEncryptionDisabled},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.UpsertMember(context.Background(), tc.caller, uuid.New(), tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestUpsertMerchant_ChecksAncestors(t *testing.T) {
	svc, _ := newService(t, "")
	dealer, agency := uuid.New(), uuid.New()
	for id, role := range map[uuid.UUID]authorize.Role{dealer: authorize.RoleDealer, agency: authorize.RoleAgency} {
		if _, err := svc.UpsertMember(context.Background(), hq, id, MemberInput{Name: "n", Role: role}); err != nil {
			t.Fatal(err)
		}
	}

	in := MerchantInput{Name: "shop", Category: "food", RegionCode: "11", DealerID: &dealer, AgencyID: &agency}
	m, err := svc.UpsertMerchant(context.Background(), hq, uuid.New(), in)
	if err != nil {
		t.Fatalf("UpsertMerchant: %v", err)
	}
	if m.BranchID != nil || *m.DealerID != dealer {
		t.Fatalf("chain = %v %v %v", m.DealerID, m.AgencyID, m.BranchID)
	}

	swapped := MerchantInput{Name: "shop", Category: "food", RegionCode: "11", DealerID: &agency}
	if _, err := svc.UpsertMerchant(context.Background(), hq, uuid.New(), swapped); !errors.Is(err, ErrAncestorRole) {
		t.Fatalf("err = %v, want ErrAncestorRole", err)
	}
	missing := uuid.New()
	if _, err := svc.UpsertMerchant(context.Background(), hq, uuid.New(), MerchantInput{Name: "s", Category: "c", RegionCode: "1", BranchID: &missing}); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("err = %v, want ErrMemberNotFound", err)
	}
	if _, err := svc.UpsertMerchant(context.Background(), hq, uuid.New(), MerchantInput{Name: "s"}); !errors.Is(err, ErrInvalidMerchant) {
		t.Fatalf("err = %v, want ErrInvalidMerchant", err)
	}
}

func TestGetMember_SelfOrHQ(t *testing.T) {
	svc, _ := newService(t, "")
	id := uuid.New()
	if _, err := svc.UpsertMember(context.Background(), hq, id, MemberInput{Name: "n", Role: authorize.RoleAgency}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetMember(context.Background(), authorize.Caller{UserID: id, Role: authorize.RoleAgency}, id); err != nil {
		t.Fatalf("self get: %v", err)
	}
	other := authorize.Caller{UserID: uuid.New(), Role: authorize.RoleAgency}
	if _, err := svc.GetMember(context.Background(), other, id); !errors.Is(err, authorize.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if _, err := svc.GetMember(context.Background(), hq, uuid.New()); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("err = %v, want ErrMemberNotFound", err)
	}
}
