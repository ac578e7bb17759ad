// Package payout moves paid settlement amounts to the owner's account on the
// payment rail. It handles payout.requested events from the outbox.
package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/internal/service/directory"
	"github.com/Alijeyrad/franchise_backend/internal/service/outbox"
	"github.com/Alijeyrad/franchise_backend/pkg/observability"
	"github.com/Alijeyrad/franchise_backend/pkg/payrail"
)

var ErrNotPaid = errors.New("payout: settlement is not paid")

type Store interface {
	GetSettlement(ctx context.Context, id uuid.UUID) (*repo.Settlement, error)
	UpdateSettlementTransfer(ctx context.Context, id uuid.UUID, status repo.TransferStatus, reference, failure *string) error
}

type Accounts interface {
	PayoutAccount(ctx context.Context, memberID uuid.UUID) (string, error)
}

// Rail is satisfied by *payrail.Client.
type Rail interface {
	Transfer(ctx context.Context, req payrail.TransferRequest) (*payrail.TransferResult, error)
}

type Handler struct {
	store    Store
	accounts Accounts
	rail     Rail
}

func New(store Store, accounts Accounts, rail Rail) *Handler {
	return &Handler{store: store, accounts: accounts, rail: rail}
}

// Handle sends one transfer per settlement. The settlement id is the
// idempotency key, so a redelivered event cannot pay twice.
func (h *Handler) Handle(ctx context.Context, e *repo.OutboxEvent) error {
	ev, err := outbox.DecodeSettlementEvent(e)
	if err != nil {
		return fmt.Errorf("%w: %w", outbox.ErrUnrecoverable, err)
	}

	st, err := h.store.GetSettlement(ctx, ev.SettlementID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: settlement %s: %w", outbox.ErrUnrecoverable, ev.SettlementID, err)
		}
		return fmt.Errorf("get settlement %s: %w", ev.SettlementID, err)
	}
	if st.TransferStatus == repo.TransferSucceeded {
		return nil
	}
	if st.Status != repo.SettlementPaid {
		return fmt.Errorf("%w: %w: %s is %s", outbox.ErrUnrecoverable, ErrNotPaid, st.ID, st.Status)
	}

	account, err := h.accounts.PayoutAccount(ctx, st.UserID)
	if err != nil {
		if errors.Is(err, directory.ErrMemberNotFound) || errors.Is(err, directory.ErrEncryptionDisabled) {
			return fmt.Errorf("%w: payout account for %s: %w", outbox.ErrUnrecoverable, st.UserID, err)
		}
		return fmt.Errorf("payout account for %s: %w", st.UserID, err)
	}

	res, err := h.rail.Transfer(ctx, payrail.TransferRequest{
		IdempotencyKey: st.ID.String(),
		BeneficiaryID:  st.UserID.String(),
		Account:        account,
		Amount:         st.Amount,
		Memo: fmt.Sprintf("%s settlement %s to %s", st.Type,
			st.PeriodStart.Format(time.DateOnly), st.PeriodEnd.Format(time.DateOnly)),
	})
	if err != nil {
		observability.Domain().PayoutTransfer(ctx, "error")
		if errors.Is(err, payrail.ErrRejected) {
			return fmt.Errorf("%w: %w", outbox.ErrUnrecoverable, err)
		}
		return fmt.Errorf("transfer settlement %s: %w", st.ID, err)
	}

	ref := res.Reference
	if err := h.store.UpdateSettlementTransfer(ctx, st.ID, repo.TransferSucceeded, &ref, nil); err != nil {
		// The rail keeps the idempotency key, so the retry gets the same reference back.
		return fmt.Errorf("record transfer of %s: %w", st.ID, err)
	}
	observability.Domain().PayoutTransfer(ctx, "succeeded")
	slog.Info("payout: transfer sent", "settlement_id", st.ID, "reference", ref, "amount", st.Amount.String())
	return nil
}

// DeadLetter marks the transfer failed so head office can retry it by hand.
func (h *Handler) DeadLetter(ctx context.Context, e *repo.OutboxEvent, cause error) error {
	ev, err := outbox.DecodeSettlementEvent(e)
	if err != nil {
		return err
	}
	msg := cause.Error()
	if err := h.store.UpdateSettlementTransfer(ctx, ev.SettlementID, repo.TransferFailed, nil, &msg); err != nil {
		return fmt.Errorf("mark transfer of %s failed: %w", ev.SettlementID, err)
	}
	observability.Domain().PayoutTransfer(ctx, "failed")
	slog.Warn("payout: transfer failed", "settlement_id", ev.SettlementID, "error", msg)
	return nil
}
