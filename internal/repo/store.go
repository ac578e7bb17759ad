package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
)

// Queries is every statement the services run. Both *Client and *Tx satisfy
// it, so a service method can be written once and called inside or outside a
// transaction.
type Queries interface {
	// commission rules
	UpsertCommissionRule(ctx context.Context, r *CommissionRule) (*CommissionRule, error)
	GetCommissionRule(ctx context.Context, id uuid.UUID) (*CommissionRule, error)
	FindCommissionRule(ctx context.Context, category, regionCode *string) (*CommissionRule, error)
	ListCommissionRules(ctx context.Context, f RuleFilter) ([]*CommissionRule, error)
	// LockCommissionRule takes a share lock on the rule row and returns its
	// current version.
	LockCommissionRule(ctx context.Context, id uuid.UUID) (int64, error)

	// merchants and members
	GetMerchant(ctx context.Context, id uuid.UUID) (*Merchant, error)
	UpsertMerchant(ctx context.Context, m *Merchant) (*Merchant, error)
	GetMember(ctx context.Context, id uuid.UUID) (*Member, error)
	UpsertMember(ctx context.Context, m *Member) (*Member, error)
	ListActiveMembersByRole(ctx context.Context, role authorize.Role) ([]*Member, error)

	// revenue records
	InsertRevenueRecord(ctx context.Context, r *RevenueRecord) error
	GetRevenueRecordBySourceEvent(ctx context.Context, sourceEventID string) (*RevenueRecord, error)
	ListRevenueRecords(ctx context.Context, f RecordFilter) ([]*RevenueRecord, error)
	ClaimRevenueRecords(ctx context.Context, c Claim) (ClaimResult, error)
	// MarkTierPaid stamps the tier's paid time on every record claimed by
	// settlementID and flips those records to paid.
	MarkTierPaid(ctx context.Context, tier authorize.Tier, settlementID uuid.UUID, at time.Time) (int64, error)
	SumTier(ctx context.Context, tier authorize.Tier, ownerID *uuid.UUID) (*TierTotals, error)

	// settlements
	LockSettlementOwner(ctx context.Context, key string) error
	HasOpenSettlement(ctx context.Context, userID uuid.UUID, typ SettlementType, start, end time.Time) (bool, error)
	InsertSettlement(ctx context.Context, s *Settlement) error
	GetSettlement(ctx context.Context, id uuid.UUID) (*Settlement, error)
	GetSettlementForUpdate(ctx context.Context, id uuid.UUID) (*Settlement, error)
	UpdateSettlementStatus(ctx context.Context, s *Settlement) error
	UpdateSettlementTransfer(ctx context.Context, id uuid.UUID, status TransferStatus, reference, failure *string) error
	ListSettlements(ctx context.Context, f SettlementFilter) ([]*Settlement, error)

	// schedules
	UpsertSchedule(ctx context.Context, s *Schedule) (*Schedule, error)
	GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, error)
	ListSchedules(ctx context.Context, f ScheduleFilter) ([]*Schedule, error)
	// AdvanceSchedule moves next_run_at forward; it returns ErrStale when the
	// stored value is already at or past next.
	AdvanceSchedule(ctx context.Context, id uuid.UUID, ranAt, next time.Time) error
	InsertScheduleRun(ctx context.Context, r *ScheduleRun) error
	ListScheduleRuns(ctx context.Context, scheduleID uuid.UUID, limit int) ([]*ScheduleRun, error)

	// influencers
	InsertInfluencer(ctx context.Context, i *Influencer) error
	GetInfluencerByMember(ctx context.Context, memberID uuid.UUID) (*Influencer, error)
	GetInfluencerByCode(ctx context.Context, code string) (*Influencer, error)
	InsertConversion(ctx context.Context, c *Conversion) error
	AddInfluencerTotals(ctx context.Context, id uuid.UUID, revenue, commission decimal.Decimal) error
	SumConversions(ctx context.Context, influencerID uuid.UUID, since time.Time) (*ConversionStats, error)
	ClaimConversions(ctx context.Context, influencerID uuid.UUID, start, end time.Time, settlementID uuid.UUID) (ClaimResult, error)
	MarkConversionsPaid(ctx context.Context, settlementID uuid.UUID, at time.Time) (int64, error)

	// outbox
	InsertOutboxEvent(ctx context.Context, e *OutboxEvent) error
	ClaimOutboxEvents(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]*OutboxEvent, error)
	CompleteOutboxEvent(ctx context.Context, id uuid.UUID, at time.Time) error
	RetryOutboxEvent(ctx context.Context, id uuid.UUID, availableAt time.Time, lastErr string) error
	BuryOutboxEvent(ctx context.Context, id uuid.UUID, at time.Time, lastErr string) error
}
