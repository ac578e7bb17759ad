package revenue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/internal/repo/repotest"
	"github.com/Alijeyrad/franchise_backend/internal/service/commission"
	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	store    *repotest.Store
	rules    commission.Service
	svc      Service
	merchant *repo.Merchant
	dealer   uuid.UUID
	agency   uuid.UUID
	branch   uuid.UUID
}

var hq = authorize.Caller{UserID: uuid.New(), Role: authorize.RoleHQ}

func newFixture(t *testing.T, category, region string) *fixture {
	t.Helper()
	f := &fixture{store: repotest.New(), dealer: uuid.New(), agency: uuid.New(), branch: uuid.New()}
	f.rules = commission.New(f.store)

	cfg := &config.Config{Commission: config.CommissionConfig{CurrencyScale: 0, DistributeMaxAttempts: 3}}
	svc := New(f.store, f.rules, cfg).(*revenueService)
	svc.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	f.svc = svc

	m, err := f.store.UpsertMerchant(context.Background(), &repo.Merchant{
		ID: uuid.New(), Name: "shop", Category: category, RegionCode: region,
		DealerID: &f.dealer, AgencyID: &f.agency, BranchID: &f.branch,
		Status: repo.MerchantActive, UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}
	f.merchant = m
	return f
}

func (f *fixture) rule(t *testing.T, category, region string, rates ...string) *repo.CommissionRule {
	t.Helper()
	r, err := f.rules.UpsertRule(context.Background(), hq, commission.RuleInput{
		Category: category, RegionCode: region,
		HQRate: d(rates[0]), BranchRate: d(rates[1]), AgencyRate: d(rates[2]),
		DealerRate: d(rates[3]), MemberBenefitRate: d(rates[4]),
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func assertShares(t *testing.T, rec *repo.RevenueRecord, hq, branch, agency, dealer, member string) {
	t.Helper()
	got := []decimal.Decimal{rec.HQAmount, rec.BranchAmount, rec.AgencyAmount, rec.DealerAmount, rec.MemberBenefitAmount}
	want := []string{hq, branch, agency, dealer, member}
	for i := range got {
		if !got[i].Equal(d(want[i])) {
			t.Fatalf("shares = %v, want %v", got, want)
		}
	}
	if !rec.SplitTotal().Equal(rec.TotalAmount) {
		t.Fatalf("shares sum to %s, total is %s", rec.SplitTotal(), rec.TotalAmount)
	}
}

func TestDistribute_ExactRule(t *testing.T) {
	f := newFixture(t, "catA", "regionX")
	f.rule(t, "catA", "regionX", "10", "20", "20", "20", "30")

	rec, err := f.svc.Distribute(context.Background(), DistributeInput{MerchantID: f.merchant.ID, Amount: d("1000")})
	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	assertShares(t, rec, "100", "200", "200", "200", "300")
	if rec.Status != repo.RecordPending {
		t.Fatalf("status = %s, want pending", rec.Status)
	}
	if rec.DealerID == nil || *rec.DealerID != f.dealer {
		t.Fatal("dealer id not frozen into the record")
	}
	if got := rec.PeriodEnd.Sub(rec.PeriodStart); got != 24*time.Hour {
		t.Fatalf("period length = %s, want one day", got)
	}
}

func TestDistribute_GlobalDefault(t *testing.T) {
	f := newFixture(t, "catB", "regionY")
	f.rule(t, "catA", "regionX", "10", "20", "20", "20", "30")
	f.rule(t, "any", "any", "15", "15", "20", "20", "30")

	rec, err := f.svc.Distribute(context.Background(), DistributeInput{MerchantID: f.merchant.ID, Amount: d("1000")})
	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	assertShares(t, rec, "150", "150", "200", "200", "300")
}

func TestDistribute_RoundingRemainderGoesToHQ(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		rates  []string
	}{
		{"thirds", "1001", []string{"10", "20", "20", "20", "30"}},
		{"odd amount", "7", []string{"33.3333", "33.3333", "33.3334", "0", "0"}},
		{"tiny hq rate", "3", []string{"0", "50", "50", "0", "0"}},
		{"fractional rates", "999", []string{"12.5", "17.5", "22.25", "17.75", "30"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "food", "11")
			f.rule(t, "any", "any", tt.rates...)
			rec, err := f.svc.Distribute(context.Background(), DistributeInput{MerchantID: f.merchant.ID, Amount: d(tt.amount)})
			if err != nil {
				t.Fatalf("Distribute: %v", err)
			}
			if !rec.SplitTotal().Equal(d(tt.amount)) {
				t.Fatalf("shares sum to %s, want %s", rec.SplitTotal(), tt.amount)
			}
			for _, s := range []decimal.Decimal{rec.HQAmount, rec.BranchAmount, rec.AgencyAmount, rec.DealerAmount, rec.MemberBenefitAmount} {
				if s.IsNegative() {
					t.Fatalf("negative share in %+v", rec)
				}
			}
		})
	}
}

func TestDistribute_AbsentAncestorsFoldIntoHQ(t *testing.T) {
	f := newFixture(t, "food", "11")
	f.rule(t, "any", "any", "10", "20", "20", "20", "30")
	f.merchant.AgencyID, f.merchant.BranchID = nil, nil
	if _, err := f.store.UpsertMerchant(context.Background(), f.merchant); err != nil {
		t.Fatal(err)
	}

	rec, err := f.svc.Distribute(context.Background(), DistributeInput{MerchantID: f.merchant.ID, Amount: d("1000")})
	if err != nil {
		t.Fatal(err)
	}
	assertShares(t, rec, "500", "0", "0", "200", "300")
}

func TestDistribute_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("non-positive amount", func(t *testing.T) {
		f := newFixture(t, "food", "11")
		f.rule(t, "any", "any", "10", "20", "20", "20", "30")
		for _, amount := range []string{"0", "-5"} {
			if _, err := f.svc.Distribute(ctx, DistributeInput{MerchantID: f.merchant.ID, Amount: d(amount)}); !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
			}
		}
		if n := len(f.store.Records()); n != 0 {
			t.Fatalf("expected no records, got %d", n)
		}
	})

	t.Run("sub-unit amount", func(t *testing.T) {
		f := newFixture(t, "food", "11")
		if _, err := f.svc.Distribute(ctx, DistributeInput{MerchantID: f.merchant.ID, Amount: d("10.5")}); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("unknown merchant", func(t *testing.T) {
		f := newFixture(t, "food", "11")
		if _, err := f.svc.Distribute(ctx, DistributeInput{MerchantID: uuid.New(), Amount: d("10")}); !errors.Is(err, ErrMerchantNotFound) {
			t.Fatalf("expected ErrMerchantNotFound, got %v", err)
		}
	})

	t.Run("no rule", func(t *testing.T) {
		f := newFixture(t, "food", "11")
		if _, err := f.svc.Distribute(ctx, DistributeInput{MerchantID: f.merchant.ID, Amount: d("10")}); !errors.Is(err, commission.ErrRuleNotFound) {
			t.Fatalf("expected ErrRuleNotFound, got %v", err)
		}
		if n := len(f.store.Records()); n != 0 {
			t.Fatalf("expected no records, got %d", n)
		}
	})
}

func TestDistribute_SourceEventIsIdempotent(t *testing.T) {
	f := newFixture(t, "food", "11")
	f.rule(t, "any", "any", "10", "20", "20", "20", "30")
	in := DistributeInput{MerchantID: f.merchant.ID, Amount: d("1000"), SourceEventID: "evt-1"}

	first, err := f.svc.Distribute(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.Distribute(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("redelivered event created a second record: %s vs %s", first.ID, second.ID)
	}
	if n := len(f.store.Records()); n != 1 {
		t.Fatalf("expected 1 record, got %d", n)
	}
}

func TestDistribute_RetriesWhenRuleChanges(t *testing.T) {
	f := newFixture(t, "food", "11")
	rule := f.rule(t, "any", "any", "10", "20", "20", "20", "30")

	bumps := 0
	f.store.OnLockRule = func(id uuid.UUID) {
		if bumps == 0 {
			bumps++
			f.store.BumpRuleVersion(id)
		}
	}

	rec, err := f.svc.Distribute(context.Background(), DistributeInput{MerchantID: f.merchant.ID, Amount: d("1000")})
	if err != nil {
		t.Fatalf("Distribute: %v", err)
	}
	if rec.RuleVersion != rule.Version+1 {
		t.Fatalf("record used rule version %d, want %d", rec.RuleVersion, rule.Version+1)
	}
	if n := len(f.store.Records()); n != 1 {
		t.Fatalf("expected exactly one record, got %d", n)
	}
}

func TestDistribute_GivesUpWhenRuleKeepsChanging(t *testing.T) {
	f := newFixture(t, "food", "11")
	f.rule(t, "any", "any", "10", "20", "20", "20", "30")
	f.store.OnLockRule = f.store.BumpRuleVersion

	_, err := f.svc.Distribute(context.Background(), DistributeInput{MerchantID: f.merchant.ID, Amount: d("1000")})
	if !errors.Is(err, ErrRuleChanged) {
		t.Fatalf("expected ErrRuleChanged, got %v", err)
	}
	if n := len(f.store.Records()); n != 0 {
		t.Fatalf("expected no records, got %d", n)
	}
}

func TestHistory(t *testing.T) {
	f := newFixture(t, "food", "11")
	f.rule(t, "any", "any", "10", "20", "20", "20", "30")
	for i := 0; i < 3; i++ {
		if _, err := f.svc.Distribute(context.Background(), DistributeInput{MerchantID: f.merchant.ID, Amount: d("100")}); err != nil {
			t.Fatal(err)
		}
	}

	dealer := authorize.Caller{UserID: f.dealer, Role: authorize.RoleDealer}
	recs, err := f.svc.History(context.Background(), dealer, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("dealer sees %d records, want 3", len(recs))
	}

	stranger := authorize.Caller{UserID: uuid.New(), Role: authorize.RoleDealer}
	if recs, _ := f.svc.History(context.Background(), stranger, nil, 0); len(recs) != 0 {
		t.Fatalf("other dealer sees %d records", len(recs))
	}

	user := authorize.Caller{UserID: uuid.New(), Role: authorize.RoleUser}
	if _, err := f.svc.History(context.Background(), user, nil, 0); !errors.Is(err, authorize.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
