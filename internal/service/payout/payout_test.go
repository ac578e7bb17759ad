package payout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/internal/repo/repotest"
	"github.com/Alijeyrad/franchise_backend/internal/service/directory"
	"github.com/Alijeyrad/franchise_backend/internal/service/outbox"
	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
	"github.com/Alijeyrad/franchise_backend/pkg/payrail"
)

type staticAccounts struct {
	account string
	err     error
}

func (a staticAccounts) PayoutAccount(context.Context, uuid.UUID) (string, error) {
	return a.account, a.err
}

type fakeRail struct {
	calls []payrail.TransferRequest
	err   error
}

func (r *fakeRail) Transfer(_ context.Context, req payrail.TransferRequest) (*payrail.TransferResult, error) {
	r.calls = append(r.calls, req)
	if r.err != nil {
		return nil, r.err
	}
	return &payrail.TransferResult{Reference: "tr_" + req.IdempotencyKey[:8], Status: "accepted"}, nil
}

func seedSettlement(t *testing.T, store *repotest.Store, status repo.SettlementStatus, transfer repo.TransferStatus) (*repo.Settlement, *repo.OutboxEvent) {
	t.Helper()
	now := time.Now().UTC()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	st := &repo.Settlement{
		ID: uuid.New(), UserID: uuid.New(), OwnerTier: authorize.TierDealer, Type: repo.TypeRevenue,
		PeriodStart: start, PeriodEnd: start.AddDate(0, 1, 0),
		Amount: decimal.RequireFromString("5000"), RecordCount: 3,
		Status: status, TransferStatus: transfer, CreatedAt: now, UpdatedAt: now,
	}
	if err := store.InsertSettlement(context.Background(), st); err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(outbox.NewSettlementEvent(st, now))
	if err != nil {
		t.Fatal(err)
	}
	return st, &repo.OutboxEvent{ID: uuid.New(), Topic: outbox.TopicPayoutRequested, AggregateID: st.ID, Payload: b}
}

func TestHandle_TransfersOnce(t *testing.T) {
	store := repotest.New()
	rail := &fakeRail{}
	h := New(store, staticAccounts{account: "110-222-333"}, rail)
	st, e := seedSettlement(t, store, repo.SettlementPaid, repo.TransferQueued)

	if err := h.Handle(context.Background(), e); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(rail.calls) != 1 {
		t.Fatalf("rail calls = %d, want 1", len(rail.calls))
	}
	req := rail.calls[0]
	if req.IdempotencyKey != st.ID.String() || req.Account != "110-222-333" || !req.Amount.Equal(st.Amount) {
		t.Errorf("unexpected request: %+v", req)
	}

	got, _ := store.GetSettlement(context.Background(), st.ID)
	if got.TransferStatus != repo.TransferSucceeded || got.TransferReference == nil {
		t.Fatalf("transfer not recorded: %+v", got)
	}

	// redelivery after success is a no-op
	if err := h.Handle(context.Background(), e); err != nil {
		t.Fatalf("second Handle: %v", err)
	}
	if len(rail.calls) != 1 {
		t.Errorf("rail called again on redelivery")
	}
}

func TestHandle_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        repo.SettlementStatus
		accounts      staticAccounts
		railErr       error
		unrecoverable bool
	}{
		{"not paid", repo.SettlementApproved, staticAccounts{}, nil, true},
		{"member gone", repo.SettlementPaid, staticAccounts{err: directory.ErrMemberNotFound}, nil, true},
		{"no encryption key", repo.SettlementPaid, staticAccounts{err: directory.ErrEncryptionDisabled}, nil, true},
		{"rail rejects", repo.SettlementPaid, staticAccounts{}, fmt.Errorf("%w: closed account", payrail.ErrRejected), true},
		{"rail down", repo.SettlementPaid, staticAccounts{}, fmt.Errorf("%w: status 503", payrail.ErrUnavailable), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := repotest.New()
			h := New(store, tc.accounts, &fakeRail{err: tc.railErr})
			_, e := seedSettlement(t, store, tc.status, repo.TransferQueued)

			err := h.Handle(context.Background(), e)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, outbox.ErrUnrecoverable); got != tc.unrecoverable {
				t.Errorf("unrecoverable = %v, want %v (err %v)", got, tc.unrecoverable, err)
			}
		})
	}
}

func TestHandle_UnknownSettlement(t *testing.T) {
	store := repotest.New()
	h := New(store, staticAccounts{}, &fakeRail{})
	b, _ := json.Marshal(outbox.SettlementEvent{SettlementID: uuid.New()})
	err := h.Handle(context.Background(), &repo.OutboxEvent{ID: uuid.New(), Topic: outbox.TopicPayoutRequested, Payload: b})
	if !errors.Is(err, outbox.ErrUnrecoverable) || !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestDeadLetter_MarksFailed(t *testing.T) {
	store := repotest.New()
	h := New(store, staticAccounts{}, &fakeRail{})
	st, e := seedSettlement(t, store, repo.SettlementPaid, repo.TransferQueued)

	if err := h.DeadLetter(context.Background(), e, errors.New("rail rejected: closed account")); err != nil {
		t.Fatalf("DeadLetter: %v", err)
	}
	got, _ := store.GetSettlement(context.Background(), st.ID)
	if got.TransferStatus != repo.TransferFailed || got.TransferError == nil || *got.TransferError != "rail rejected: closed account" {
		t.Fatalf("unexpected transfer state: %+v", got)
	}
}
