package revenue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/internal/service/commission"
	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
	"github.com/Alijeyrad/franchise_backend/pkg/constants"
	"github.com/Alijeyrad/franchise_backend/pkg/money"
	"github.com/Alijeyrad/franchise_backend/pkg/observability"
)

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	Distribute(ctx context.Context, in DistributeInput) (*repo.RevenueRecord, error)
	History(ctx context.Context, caller authorize.Caller, merchantID *uuid.UUID, limit int) ([]*repo.RevenueRecord, error)
}

type Store interface {
	repo.TxRunner
	GetMerchant(ctx context.Context, id uuid.UUID) (*repo.Merchant, error)
	GetRevenueRecordBySourceEvent(ctx context.Context, sourceEventID string) (*repo.RevenueRecord, error)
	ListRevenueRecords(ctx context.Context, f repo.RecordFilter) ([]*repo.RevenueRecord, error)
}

type RuleResolver interface {
	Resolve(ctx context.Context, category, regionCode string) (*repo.CommissionRule, error)
}

// DistributeInput is one chargeable event. SourceEventID, when set, makes the
// call idempotent: a second call with the same id returns the first record.
type DistributeInput struct {
	MerchantID    uuid.UUID       `json:"merchant_id"`
	Amount        decimal.Decimal `json:"amount"`
	OccurredAt    time.Time       `json:"occurred_at"`
	SourceEventID string          `json:"event_id,omitempty"`
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type revenueService struct {
	store       Store
	rules       RuleResolver
	scale       int32
	maxAttempts int
	newBackOff  func() backoff.BackOff
}

func New(store Store, rules RuleResolver, cfg *config.Config) Service {
	attempts := cfg.Commission.DistributeMaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &revenueService{
		store:       store,
		rules:       rules,
		scale:       cfg.Commission.CurrencyScale,
		maxAttempts: attempts,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 20 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
}

// DayOf returns the accrual day [start, end) containing t, in UTC.
func DayOf(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

func (s *revenueService) Distribute(ctx context.Context, in DistributeInput) (*repo.RevenueRecord, error) {
	if !money.IsPositive(in.Amount) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, in.Amount)
	}
	amount, err := money.Quantize(in.Amount, s.scale)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAmount, in.Amount, err)
	}

	if in.SourceEventID != "" {
		existing, err := s.store.GetRevenueRecordBySourceEvent(ctx, in.SourceEventID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("lookup event %s: %w", in.SourceEventID, err)
		}
	}

	merchant, err := s.store.GetMerchant(ctx, in.MerchantID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMerchantNotFound, in.MerchantID)
		}
		return nil, fmt.Errorf("get merchant %s: %w", in.MerchantID, err)
	}

	occurred := in.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	rec, err := backoff.Retry(ctx, func() (*repo.RevenueRecord, error) {
		rec, err := s.distributeOnce(ctx, merchant, amount, occurred.UTC(), in.SourceEventID)
		if err != nil && !retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return rec, err
	}, backoff.WithBackOff(s.newBackOff()), backoff.WithMaxTries(uint(s.maxAttempts)))

	switch {
	case err == nil:
	case errors.Is(err, repo.ErrConflict) && in.SourceEventID != "":
		// Lost the race against a redelivery of the same event.
		return s.store.GetRevenueRecordBySourceEvent(ctx, in.SourceEventID)
	case errors.Is(err, repo.ErrStale):
		return nil, fmt.Errorf("%w: merchant %s after %d attempts", ErrRuleChanged, merchant.ID, s.maxAttempts)
	default:
		return nil, fmt.Errorf("distribute merchant %s: %w", merchant.ID, err)
	}

	observability.Domain().RevenueDistributed(ctx, merchant.Category)
	slog.Debug("revenue distributed",
		"record_id", rec.ID, "merchant_id", merchant.ID, "rule_id", rec.RuleID, "amount", rec.TotalAmount)
	return rec, nil
}

// distributeOnce resolves the rule, computes the split and writes the record
// while holding a share lock on the rule. A rule edited since resolution
// fails with repo.ErrStale and the whole attempt is redone.
func (s *revenueService) distributeOnce(ctx context.Context, m *repo.Merchant, amount decimal.Decimal, occurred time.Time, sourceEventID string) (*repo.RevenueRecord, error) {
	rule, err := s.rules.Resolve(ctx, m.Category, m.RegionCode)
	if err != nil {
		return nil, err
	}
	shares := Split(amount, rule, m, s.scale)
	start, end := DayOf(occurred)

	rec := &repo.RevenueRecord{
		ID:                  uuid.Must(uuid.NewV7()),
		MerchantID:          m.ID,
		RuleID:              rule.ID,
		RuleVersion:         rule.Version,
		TotalAmount:         amount,
		HQAmount:            shares.HQ,
		BranchAmount:        shares.Branch,
		AgencyAmount:        shares.Agency,
		DealerAmount:        shares.Dealer,
		MemberBenefitAmount: shares.MemberBenefit,
		DealerID:            m.DealerID,
		AgencyID:            m.AgencyID,
		BranchID:            m.BranchID,
		PeriodStart:         start,
		PeriodEnd:           end,
		OccurredAt:          occurred,
		Status:              repo.RecordPending,
		Claims:              repo.TierClaims{},
		CreatedAt:           time.Now().UTC(),
	}
	if sourceEventID != "" {
		rec.SourceEventID = &sourceEventID
	}

	err = s.store.WithTx(ctx, func(q repo.Queries) error {
		version, err := q.LockCommissionRule(ctx, rule.ID)
		if err != nil {
			return fmt.Errorf("lock rule %s: %w", rule.ID, err)
		}
		if version != rule.Version {
			return repo.ErrStale
		}
		return q.InsertRevenueRecord(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, repo.ErrStale):
		return true
	case errors.Is(err, commission.ErrRuleNotFound),
		errors.Is(err, repo.ErrConflict),
		errors.Is(err, repo.ErrNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	// Anything else is a storage fault worth another try.
	return true
}

// History lists the records whose share the caller owns, newest first.
func (s *revenueService) History(ctx context.Context, caller authorize.Caller, merchantID *uuid.UUID, limit int) ([]*repo.RevenueRecord, error) {
	tier, owner, ok := caller.OwnedTier()
	if !ok {
		return nil, authorize.ErrForbidden
	}
	if limit <= 0 {
		limit = constants.DefaultPerPage
	}
	if limit > constants.MaxPerPage {
		limit = constants.MaxPerPage
	}
	records, err := s.store.ListRevenueRecords(ctx, repo.RecordFilter{
		Tier:       tier,
		OwnerID:    owner,
		MerchantID: merchantID,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list revenue history: %w", err)
	}
	return records, nil
}
