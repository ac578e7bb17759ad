package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/internal/service/outbox"
	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
	"github.com/Alijeyrad/franchise_backend/pkg/constants"
	"github.com/Alijeyrad/franchise_backend/pkg/observability"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// RequestInput asks for a settlement of the half-open window [PeriodStart,
// PeriodEnd). Source labels the origin for metrics ("manual" or "schedule").
type RequestInput struct {
	Type        repo.SettlementType
	PeriodStart time.Time
	PeriodEnd   time.Time
	Source      string
}

type ListFilter struct {
	UserID *uuid.UUID
	Status *repo.SettlementStatus
	Type   *repo.SettlementType
	Page   int
	Limit  int
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	Request(ctx context.Context, caller authorize.Caller, in RequestInput) (*repo.Settlement, error)
	Approve(ctx context.Context, caller authorize.Caller, id uuid.UUID) (*repo.Settlement, error)
	Pay(ctx context.Context, caller authorize.Caller, id uuid.UUID) (*repo.Settlement, error)
	RetryTransfer(ctx context.Context, caller authorize.Caller, id uuid.UUID) (*repo.Settlement, error)
	Get(ctx context.Context, caller authorize.Caller, id uuid.UUID) (*repo.Settlement, error)
	List(ctx context.Context, caller authorize.Caller, f ListFilter) ([]*repo.Settlement, error)
}

type Store interface {
	repo.TxRunner
	GetSettlement(ctx context.Context, id uuid.UUID) (*repo.Settlement, error)
	ListSettlements(ctx context.Context, f repo.SettlementFilter) ([]*repo.Settlement, error)
	GetInfluencerByMember(ctx context.Context, memberID uuid.UUID) (*repo.Influencer, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type settlementService struct {
	store Store
	now   func() time.Time
}

func New(store Store) Service {
	return &settlementService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// claimSource identifies what a request settles: a revenue tier or an
// influencer's conversions.
type claimSource struct {
	lockKey      string
	tier         authorize.Tier
	owner        *uuid.UUID
	influencerID uuid.UUID
}

func (s *settlementService) sourceFor(ctx context.Context, caller authorize.Caller, typ repo.SettlementType) (claimSource, error) {
	switch typ {
	case repo.TypeRevenue:
		tier, owner, ok := caller.OwnedTier()
		if !ok {
			return claimSource{}, ErrNoTier
		}
		key := "revenue:hq"
		if owner != nil {
			key = fmt.Sprintf("revenue:%s:%s", tier, owner)
		}
		return claimSource{lockKey: key, tier: tier, owner: owner}, nil
	case repo.TypeInfluencer:
		inf, err := s.store.GetInfluencerByMember(ctx, caller.UserID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return claimSource{}, ErrNotInfluencer
			}
			return claimSource{}, fmt.Errorf("get influencer: %w", err)
		}
		return claimSource{lockKey: "influencer:" + inf.ID.String(), influencerID: inf.ID}, nil
	}
	return claimSource{}, fmt.Errorf("%w: %q", ErrInvalidType, typ)
}

// Request claims the caller's unsettled shares in the window and records a
// pending settlement for their sum. Requests for one owner are serialised by
// an advisory lock; the partial unique index on open settlements backs up the
// overlap check.
func (s *settlementService) Request(ctx context.Context, caller authorize.Caller, in RequestInput) (*repo.Settlement, error) {
	if in.Type == "" {
		in.Type = repo.TypeRevenue
	}
	if !in.PeriodStart.Before(in.PeriodEnd) {
		return nil, ErrInvalidPeriod
	}
	start, end := in.PeriodStart.UTC(), in.PeriodEnd.UTC()

	src, err := s.sourceFor(ctx, caller, in.Type)
	if err != nil {
		return nil, err
	}

	now := s.now()
	st := &repo.Settlement{
		ID:             uuid.Must(uuid.NewV7()),
		UserID:         caller.UserID,
		OwnerTier:      src.tier,
		Type:           in.Type,
		PeriodStart:    start,
		PeriodEnd:      end,
		Status:         repo.SettlementPending,
		TransferStatus: repo.TransferNone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.store.WithTx(ctx, func(q repo.Queries) error {
		if err := q.LockSettlementOwner(ctx, src.lockKey); err != nil {
			return fmt.Errorf("lock owner: %w", err)
		}
		open, err := q.HasOpenSettlement(ctx, st.UserID, st.Type, start, end)
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if open {
			return ErrDuplicatePeriod
		}

		var res repo.ClaimResult
		if in.Type == repo.TypeInfluencer {
			res, err = q.ClaimConversions(ctx, src.influencerID, start, end, st.ID)
		} else {
			res, err = q.ClaimRevenueRecords(ctx, repo.Claim{
				Tier: src.tier, OwnerID: src.owner, Start: start, End: end, SettlementID: st.ID,
			})
		}
		if err != nil {
			return fmt.Errorf("claim shares: %w", err)
		}
		if res.Count == 0 || !res.Total.IsPositive() {
			return ErrNothingToSettle
		}
		st.Amount, st.RecordCount = res.Total, res.Count

		if err := q.InsertSettlement(ctx, st); err != nil {
			if errors.Is(err, repo.ErrConflict) {
				return ErrDuplicatePeriod
			}
			return fmt.Errorf("insert settlement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("request %s settlement for %s [%s, %s): %w",
			in.Type, caller.UserID, start.Format(time.DateOnly), end.Format(time.DateOnly), err)
	}

	source := in.Source
	if source == "" {
		source = "manual"
	}
	observability.Domain().SettlementCreated(ctx, string(st.Type), source)
	slog.Info("settlement requested",
		"settlement_id", st.ID, "user_id", st.UserID, "type", st.Type, "amount", st.Amount, "records", st.RecordCount)
	return st, nil
}

// transition locks the settlement, lets apply mutate it and persists the
// result. apply returns false when the transition is already in effect.
func (s *settlementService) transition(ctx context.Context, id uuid.UUID, apply func(q repo.Queries, st *repo.Settlement) (bool, error)) (*repo.Settlement, bool, error) {
	var (
		out     *repo.Settlement
		changed bool
	)
	err := s.store.WithTx(ctx, func(q repo.Queries) error {
		st, err := q.GetSettlementForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrSettlementNotFound
			}
			return err
		}
		changed, err = apply(q, st)
		if err != nil {
			return err
		}
		if changed {
			st.UpdatedAt = s.now()
			if err := q.UpdateSettlementStatus(ctx, st); err != nil {
				return fmt.Errorf("update settlement: %w", err)
			}
		}
		out = st
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("settlement %s: %w", id, err)
	}
	return out, changed, nil
}

// Approve moves a pending settlement to approved. Approving an approved
// settlement returns it unchanged.
func (s *settlementService) Approve(ctx context.Context, caller authorize.Caller, id uuid.UUID) (*repo.Settlement, error) {
	if err := caller.Require(authorize.RoleHQ); err != nil {
		return nil, err
	}
	st, changed, err := s.transition(ctx, id, func(q repo.Queries, st *repo.Settlement) (bool, error) {
		switch st.Status {
		case repo.SettlementApproved:
			return false, nil
		case repo.SettlementPaid:
			return false, fmt.Errorf("%w: settlement already paid", ErrInvalidTransition)
		case repo.SettlementPending:
		default:
			return false, ErrNotPending
		}
		now, by := s.now(), caller.UserID
		st.Status, st.ApprovedAt, st.ApprovedBy = repo.SettlementApproved, &now, &by
		return true, outbox.Enqueue(ctx, q, outbox.TopicSettlementApproved, st.ID, outbox.NewSettlementEvent(st, now))
	})
	if err != nil {
		return nil, err
	}
	if changed {
		observability.Domain().SettlementTransition(ctx, string(repo.SettlementApproved))
		slog.Info("settlement approved", "settlement_id", st.ID, "by", caller.UserID)
	}
	return st, nil
}

// Pay marks an approved settlement paid together with every share it
// claimed, and queues the transfer. The transfer itself runs after commit.
func (s *settlementService) Pay(ctx context.Context, caller authorize.Caller, id uuid.UUID) (*repo.Settlement, error) {
	if err := caller.Require(authorize.RoleHQ); err != nil {
		return nil, err
	}
	st, _, err := s.transition(ctx, id, func(q repo.Queries, st *repo.Settlement) (bool, error) {
		switch st.Status {
		case repo.SettlementApproved:
		case repo.SettlementPaid:
			return false, fmt.Errorf("%w: settlement already paid", ErrInvalidTransition)
		default:
			return false, fmt.Errorf("%w: %w", ErrInvalidTransition, ErrNotApproved)
		}

		now, by := s.now(), caller.UserID
		var (
			n   int64
			err error
		)
		if st.Type == repo.TypeInfluencer {
			n, err = q.MarkConversionsPaid(ctx, st.ID, now)
		} else {
			n, err = q.MarkTierPaid(ctx, st.OwnerTier, st.ID, now)
		}
		if err != nil {
			return false, fmt.Errorf("mark shares paid: %w", err)
		}
		if int(n) != st.RecordCount {
			return false, fmt.Errorf("marked %d shares paid, settlement claimed %d", n, st.RecordCount)
		}

		st.Status, st.PaidAt, st.PaidBy = repo.SettlementPaid, &now, &by
		st.TransferStatus = repo.TransferQueued
		ev := outbox.NewSettlementEvent(st, now)
		if err := outbox.Enqueue(ctx, q, outbox.TopicSettlementPaid, st.ID, ev); err != nil {
			return false, err
		}
		return true, outbox.Enqueue(ctx, q, outbox.TopicPayoutRequested, st.ID, ev)
	})
	if err != nil {
		return nil, err
	}
	observability.Domain().SettlementTransition(ctx, string(repo.SettlementPaid))
	slog.Info("settlement paid", "settlement_id", st.ID, "amount", st.Amount, "by", caller.UserID)
	return st, nil
}

// RetryTransfer queues another payout for a paid settlement whose transfer
// failed. Accounting state is left alone.
func (s *settlementService) RetryTransfer(ctx context.Context, caller authorize.Caller, id uuid.UUID) (*repo.Settlement, error) {
	if err := caller.Require(authorize.RoleHQ); err != nil {
		return nil, err
	}
	var out *repo.Settlement
	err := s.store.WithTx(ctx, func(q repo.Queries) error {
		st, err := q.GetSettlementForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrSettlementNotFound
			}
			return err
		}
		if st.Status != repo.SettlementPaid || st.TransferStatus != repo.TransferFailed {
			return ErrTransferNotRetryable
		}
		if err := q.UpdateSettlementTransfer(ctx, st.ID, repo.TransferQueued, st.TransferReference, nil); err != nil {
			return err
		}
		st.TransferStatus, st.TransferError = repo.TransferQueued, nil
		out = st
		return outbox.Enqueue(ctx, q, outbox.TopicPayoutRequested, st.ID, outbox.NewSettlementEvent(st, s.now()))
	})
	if err != nil {
		return nil, fmt.Errorf("retry transfer %s: %w", id, err)
	}
	slog.Info("settlement transfer re-queued", "settlement_id", id, "by", caller.UserID)
	return out, nil
}

// Get returns the settlement to its owner or to HQ.
func (s *settlementService) Get(ctx context.Context, caller authorize.Caller, id uuid.UUID) (*repo.Settlement, error) {
	st, err := s.store.GetSettlement(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSettlementNotFound
		}
		return nil, fmt.Errorf("get settlement %s: %w", id, err)
	}
	if st.UserID != caller.UserID && !caller.IsHQ() {
		return nil, authorize.ErrForbidden
	}
	return st, nil
}

// List returns the caller's settlements; HQ may list anyone's.
func (s *settlementService) List(ctx context.Context, caller authorize.Caller, f ListFilter) ([]*repo.Settlement, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = constants.DefaultPerPage
	}
	if limit > constants.MaxPerPage {
		limit = constants.MaxPerPage
	}
	page := f.Page
	if page < constants.DefaultPage {
		page = constants.DefaultPage
	}

	rf := repo.SettlementFilter{
		UserID: f.UserID,
		Status: f.Status,
		Type:   f.Type,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if !caller.IsHQ() {
		own := caller.UserID
		rf.UserID = &own
	}
	list, err := s.store.ListSettlements(ctx, rf)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	return list, nil
}
