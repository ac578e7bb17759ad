package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/internal/repo/repotest"
	"github.com/Alijeyrad/franchise_backend/internal/service/outbox"
	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
)

var (
	jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb1 = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	hq   = authorize.Caller{UserID: uuid.New(), Role: authorize.RoleHQ}
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// seedRecord stores a pending record in the day starting at day whose dealer
// share is dealerAmount.
func seedRecord(t *testing.T, store *repotest.Store, dealer uuid.UUID, day time.Time, dealerAmount string) *repo.RevenueRecord {
	t.Helper()
	amt := d(dealerAmount)
	r := &repo.RevenueRecord{
		ID:                  uuid.New(),
		MerchantID:          uuid.New(),
		RuleID:              uuid.New(),
		RuleVersion:         1,
		TotalAmount:         amt.Mul(d("5")),
		HQAmount:            amt.Mul(d("4")),
		BranchAmount:        decimal.Zero,
		AgencyAmount:        decimal.Zero,
		DealerAmount:        amt,
		MemberBenefitAmount: decimal.Zero,
		DealerID:            &dealer,
		PeriodStart:         day,
		PeriodEnd:           day.Add(24 * time.Hour),
		OccurredAt:          day.Add(time.Hour),
		Status:              repo.RecordPending,
		Claims:              repo.TierClaims{},
		CreatedAt:           day,
	}
	if err := store.InsertRevenueRecord(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	return r
}

func dealerCaller() authorize.Caller {
	return authorize.Caller{UserID: uuid.New(), Role: authorize.RoleDealer}
}

func month() RequestInput {
	return RequestInput{Type: repo.TypeRevenue, PeriodStart: jan1, PeriodEnd: feb1}
}

func TestRequest_NothingToSettle(t *testing.T) {
	store := repotest.New()
	svc := New(store)
	dealer := dealerCaller()

	// Another dealer's revenue must not count.
	seedRecord(t, store, uuid.New(), jan1, "1000")

	_, err := svc.Request(context.Background(), dealer, month())
	if !errors.Is(err, ErrNothingToSettle) {
		t.Fatalf("err = %v, want ErrNothingToSettle", err)
	}
	list, _ := store.ListSettlements(context.Background(), repo.SettlementFilter{})
	if len(list) != 0 {
		t.Fatalf("%d settlements created, want 0", len(list))
	}
	for _, r := range store.Records() {
		if r.Claims[authorize.TierDealer].SettlementID != nil {
			t.Fatal("claim was not rolled back")
		}
	}
}

func TestRequest_Validation(t *testing.T) {
	store := repotest.New()
	svc := New(store)

	tests := []struct {
		name   string
		caller authorize.Caller
		in     RequestInput
		want   error
	}{
		{"inverted period", dealerCaller(), RequestInput{PeriodStart: feb1, PeriodEnd: jan1}, ErrInvalidPeriod},
		{"empty period", dealerCaller(), RequestInput{PeriodStart: jan1, PeriodEnd: jan1}, ErrInvalidPeriod},
		{"merchant owns no tier", authorize.Caller{UserID: uuid.New(), Role: authorize.RoleMerchant}, month(), ErrNoTier},
		{"unknown type", dealerCaller(), RequestInput{Type: "bonus", PeriodStart: jan1, PeriodEnd: feb1}, ErrInvalidType},
		{"influencer without profile", dealerCaller(), RequestInput{Type: repo.TypeInfluencer, PeriodStart: jan1, PeriodEnd: feb1}, ErrNotInfluencer},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Request(context.Background(), tc.caller, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestRequest_ClaimsOwnSharesInWindow(t *testing.T) {
	store := repotest.New()
	svc := New(store)
	dealer := dealerCaller()

	seedRecord(t, store, dealer.UserID, jan1, "1000")
	seedRecord(t, store, dealer.UserID, jan1.AddDate(0, 0, 30), "500")
	seedRecord(t, store, dealer.UserID, feb1, "700") // outside the window

	st, err := svc.Request(context.Background(), dealer, month())
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !st.Amount.Equal(d("1500")) || st.RecordCount != 2 {
		t.Fatalf("amount=%s records=%d, want 1500 and 2", st.Amount, st.RecordCount)
	}
	if st.Status != repo.SettlementPending || st.OwnerTier != authorize.TierDealer {
		t.Fatalf("unexpected settlement %+v", st)
	}
	key := "revenue:dealer:" + dealer.UserID.String()
	if store.Locks[key] != 1 {
		t.Fatalf("owner lock %q taken %d times", key, store.Locks[key])
	}

	// The claimed records are not claimable again by a later window.
	_, err = svc.Request(context.Background(), dealer, RequestInput{PeriodStart: jan1.AddDate(-1, 0, 0), PeriodEnd: jan1.AddDate(0, 0, 31)})
	if !errors.Is(err, ErrDuplicatePeriod) {
		t.Fatalf("overlapping request err = %v, want ErrDuplicatePeriod", err)
	}
}

func TestRequest_ConcurrentSamePeriod(t *testing.T) {
	store := repotest.New()
	svc := New(store)
	dealer := dealerCaller()
	seedRecord(t, store, dealer.UserID, jan1, "1000")

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Request(context.Background(), dealer, month())
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicatePeriod):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != 1 {
		t.Fatalf("succeeded=%d duplicate=%d, want 1 and 1", ok, dup)
	}
}

func TestApproveThenPay(t *testing.T) {
	store := repotest.New()
	svc := New(store)
	dealer := dealerCaller()
	seedRecord(t, store, dealer.UserID, jan1, "2000")
	seedRecord(t, store, dealer.UserID, jan1.AddDate(0, 0, 1), "2000")
	seedRecord(t, store, dealer.UserID, jan1.AddDate(0, 0, 2), "1000")

	st, err := svc.Request(context.Background(), dealer, month())
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !st.Amount.Equal(d("5000")) || st.RecordCount != 3 {
		t.Fatalf("amount=%s records=%d", st.Amount, st.RecordCount)
	}

	if _, err := svc.Pay(context.Background(), hq, st.ID); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("pay before approve err = %v, want ErrNotApproved", err)
	}
	if _, err := svc.Approve(context.Background(), dealer, st.ID); !errors.Is(err, authorize.ErrForbidden) {
		t.Fatalf("dealer approve err = %v, want ErrForbidden", err)
	}

	approved, err := svc.Approve(context.Background(), hq, st.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != repo.SettlementApproved || approved.ApprovedBy == nil || *approved.ApprovedBy != hq.UserID {
		t.Fatalf("unexpected approved settlement %+v", approved)
	}
	if _, err := svc.Approve(context.Background(), hq, st.ID); err != nil {
		t.Fatalf("second approve: %v", err)
	}

	paid, err := svc.Pay(context.Background(), hq, st.ID)
	if err != nil {
		t.Fatalf("Pay: %v", err)
	}
	if paid.Status != repo.SettlementPaid || paid.PaidAt == nil || paid.TransferStatus != repo.TransferQueued {
		t.Fatalf("unexpected paid settlement %+v", paid)
	}
	for _, r := range store.Records() {
		if r.Status != repo.RecordPaid {
			t.Fatalf("record %s status = %s, want paid", r.ID, r.Status)
		}
	}

	if _, err := svc.Pay(context.Background(), hq, st.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second pay err = %v, want ErrInvalidTransition", err)
	}
	if _, err := svc.Approve(context.Background(), hq, st.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("approve after pay err = %v, want ErrInvalidTransition", err)
	}

	topics := map[string]int{}
	for _, e := range store.Outbox() {
		topics[e.Topic]++
	}
	want := map[string]int{outbox.TopicSettlementApproved: 1, outbox.TopicSettlementPaid: 1, outbox.TopicPayoutRequested: 1}
	for topic, n := range want {
		if topics[topic] != n {
			t.Errorf("outbox %s = %d events, want %d", topic, topics[topic], n)
		}
	}
}

func TestPay_OtherTiersStillClaimPaidRecords(t *testing.T) {
	store := repotest.New()
	svc := New(store)
	dealer := dealerCaller()
	seedRecord(t, store, dealer.UserID, jan1, "100")

	st, err := svc.Request(context.Background(), dealer, month())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Approve(context.Background(), hq, st.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Pay(context.Background(), hq, st.ID); err != nil {
		t.Fatal(err)
	}

	rec := store.Records()[0]
	if rec.Claims[authorize.TierDealer].PaidAt == nil {
		t.Fatal("dealer share not marked paid")
	}
	if rec.Status != repo.RecordPaid || rec.PaidAt == nil {
		t.Fatalf("record status = %s, want paid once the dealer settlement is paid", rec.Status)
	}

	hqSt, err := svc.Request(context.Background(), hq, month())
	if err != nil {
		t.Fatalf("hq request after dealer payout: %v", err)
	}
	if hqSt.RecordCount != 1 || !hqSt.Amount.Equal(d("400")) {
		t.Fatalf("hq claimed %d records for %s, want 1 for 400", hqSt.RecordCount, hqSt.Amount)
	}
	if _, err := svc.Request(context.Background(), dealer, month()); !errors.Is(err, ErrNothingToSettle) {
		t.Fatalf("dealer re-request err = %v, want ErrNothingToSettle", err)
	}
}

func TestPay_RequiresApproval(t *testing.T) {
	store := repotest.New()
	svc := New(store)
	dealer := dealerCaller()
	seedRecord(t, store, dealer.UserID, jan1, "100")

	st, err := svc.Request(context.Background(), dealer, month())
	if err != nil {
		t.Fatal(err)
	}
	_, err = svc.Pay(context.Background(), hq, st.ID)
	for _, want := range []error{ErrNotApproved, ErrInvalidTransition} {
		if !errors.Is(err, want) {
			t.Errorf("pay on pending err = %v, want it to match %v", err, want)
		}
	}
	if rec := store.Records()[0]; rec.Status != repo.RecordPending || rec.Claims[authorize.TierDealer].PaidAt != nil {
		t.Fatalf("record changed by rejected pay: status=%s", rec.Status)
	}
}

func TestRetryTransfer(t *testing.T) {
	store := repotest.New()
	svc := New(store)
	dealer := dealerCaller()
	seedRecord(t, store, dealer.UserID, jan1, "100")

	st, _ := svc.Request(context.Background(), dealer, month())
	if _, err := svc.RetryTransfer(context.Background(), hq, st.ID); !errors.Is(err, ErrTransferNotRetryable) {
		t.Fatalf("retry on pending err = %v, want ErrTransferNotRetryable", err)
	}
	_, _ = svc.Approve(context.Background(), hq, st.ID)
	_, _ = svc.Pay(context.Background(), hq, st.ID)

	reason := "bank rejected"
	if err := store.UpdateSettlementTransfer(context.Background(), st.ID, repo.TransferFailed, nil, &reason); err != nil {
		t.Fatal(err)
	}

	got, err := svc.RetryTransfer(context.Background(), hq, st.ID)
	if err != nil {
		t.Fatalf("RetryTransfer: %v", err)
	}
	if got.TransferStatus != repo.TransferQueued || got.TransferError != nil {
		t.Fatalf("unexpected transfer state %s %v", got.TransferStatus, got.TransferError)
	}
	var payouts int
	for _, e := range store.Outbox() {
		if e.Topic == outbox.TopicPayoutRequested {
			payouts++
		}
	}
	if payouts != 2 {
		t.Fatalf("payout events = %d, want 2", payouts)
	}
}

func TestInfluencerSettlement(t *testing.T) {
	store := repotest.New()
	svc := New(store)
	member := authorize.Caller{UserID: uuid.New(), Role: authorize.RoleUser}
	inf := &repo.Influencer{
		ID: uuid.New(), MemberID: member.UserID, Name: "kim", Platform: "youtube",
		ReferralCode: "INF1", CommissionRate: d("5"), Status: repo.InfluencerActive, CreatedAt: jan1,
	}
	if err := store.InsertInfluencer(context.Background(), inf); err != nil {
		t.Fatal(err)
	}
	for _, c := range []string{"50", "25", "0"} {
		_ = store.InsertConversion(context.Background(), &repo.Conversion{
			ID: uuid.New(), InfluencerID: inf.ID, ConversionType: "purchase",
			Amount: d("1000"), Commission: d(c), ConvertedAt: jan1.Add(time.Hour),
		})
	}

	in := month()
	in.Type = repo.TypeInfluencer
	st, err := svc.Request(context.Background(), member, in)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !st.Amount.Equal(d("75")) || st.RecordCount != 2 {
		t.Fatalf("amount=%s records=%d, want 75 and 2", st.Amount, st.RecordCount)
	}
	_, _ = svc.Approve(context.Background(), hq, st.ID)
	if _, err := svc.Pay(context.Background(), hq, st.ID); err != nil {
		t.Fatalf("Pay: %v", err)
	}
}

func TestGetAndList_Visibility(t *testing.T) {
	store := repotest.New()
	svc := New(store)
	a, b := dealerCaller(), dealerCaller()
	seedRecord(t, store, a.UserID, jan1, "100")
	seedRecord(t, store, b.UserID, jan1, "100")

	sa, err := svc.Request(context.Background(), a, month())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Request(context.Background(), b, month()); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Get(context.Background(), b, sa.ID); !errors.Is(err, authorize.ErrForbidden) {
		t.Fatalf("foreign get err = %v, want ErrForbidden", err)
	}
	if _, err := svc.Get(context.Background(), hq, sa.ID); err != nil {
		t.Fatalf("hq get: %v", err)
	}
	if _, err := svc.Get(context.Background(), hq, uuid.New()); !errors.Is(err, ErrSettlementNotFound) {
		t.Fatalf("missing get err = %v", err)
	}

	other := b.UserID
	own, err := svc.List(context.Background(), a, ListFilter{UserID: &other})
	if err != nil {
		t.Fatal(err)
	}
	if len(own) != 1 || own[0].UserID != a.UserID {
		t.Fatalf("dealer listed %d settlements not scoped to self", len(own))
	}
	all, _ := svc.List(context.Background(), hq, ListFilter{})
	if len(all) != 2 {
		t.Fatalf("hq listed %d settlements, want 2", len(all))
	}
}
