package repo

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
)

// ----------------------------
// Enumerations
// ----------------------------

type (
	MerchantStatus   string
	MemberStatus     string
	RecordStatus     string
	SettlementType   string
	SettlementStatus string
	TransferStatus   string
	ScheduleType     string
	ScheduleStatus   string
	RunStatus        string
	InfluencerStatus string
	OutboxStatus     string
)

const (
	MerchantPending   MerchantStatus = "pending"
	MerchantActive    MerchantStatus = "active"
	MerchantSuspended MerchantStatus = "suspended"

	MemberActive   MemberStatus = "active"
	MemberInactive MemberStatus = "inactive"

	RecordPending RecordStatus = "pending"
	RecordPaid    RecordStatus = "paid"

	TypeRevenue    SettlementType = "revenue"
	TypeInfluencer SettlementType = "influencer"

	SettlementPending  SettlementStatus = "pending"
	SettlementApproved SettlementStatus = "approved"
	SettlementPaid     SettlementStatus = "paid"

	TransferNone      TransferStatus = "none"
	TransferQueued    TransferStatus = "queued"
	TransferSucceeded TransferStatus = "succeeded"
	TransferFailed    TransferStatus = "failed"

	ScheduleDaily   ScheduleType = "daily"
	ScheduleWeekly  ScheduleType = "weekly"
	ScheduleMonthly ScheduleType = "monthly"

	ScheduleActive ScheduleStatus = "active"
	SchedulePaused ScheduleStatus = "paused"

	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"

	InfluencerActive    InfluencerStatus = "active"
	InfluencerSuspended InfluencerStatus = "suspended"

	OutboxPending    OutboxStatus = "pending"
	OutboxProcessing OutboxStatus = "processing"
	OutboxDone       OutboxStatus = "done"
	OutboxDead       OutboxStatus = "dead"
)

func (t SettlementType) Valid() bool { return t == TypeRevenue || t == TypeInfluencer }

func (s SettlementStatus) Open() bool { return s == SettlementPending || s == SettlementApproved }

func (t ScheduleType) Valid() bool {
	return t == ScheduleDaily || t == ScheduleWeekly || t == ScheduleMonthly
}

// ----------------------------
// Entities
// ----------------------------

// CommissionRule is a five-way percentage split. A nil Category or RegionCode
// means the rule applies to any value.
type CommissionRule struct {
	ID                uuid.UUID       `json:"id"`
	Category          *string         `json:"category"`
	RegionCode        *string         `json:"region_code"`
	HQRate            decimal.Decimal `json:"hq_rate"`
	BranchRate        decimal.Decimal `json:"branch_rate"`
	AgencyRate        decimal.Decimal `json:"agency_rate"`
	DealerRate        decimal.Decimal `json:"dealer_rate"`
	MemberBenefitRate decimal.Decimal `json:"member_benefit_rate"`
	Version           int64           `json:"version"`
	UpdatedBy         *uuid.UUID      `json:"updated_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ScopeKey is the non-null uniqueness key for a (category, region) scope.
func ScopeKey(category, regionCode *string) string {
	c, r := "*", "*"
	if category != nil {
		c = *category
	}
	if regionCode != nil {
		r = *regionCode
	}
	return c + "|" + r
}

type Merchant struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	Category   string         `json:"category"`
	RegionCode string         `json:"region_code"`
	DealerID   *uuid.UUID     `json:"dealer_id"`
	AgencyID   *uuid.UUID     `json:"agency_id"`
	BranchID   *uuid.UUID     `json:"branch_id"`
	Status     MerchantStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Member is a participant of the network that can own a commission tier.
type Member struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	Role          authorize.Role `json:"role"`
	RegionCode    string         `json:"region_code"`
	ParentID      *uuid.UUID     `json:"parent_id"`
	Status        MemberStatus   `json:"status"`
	Email         string         `json:"email,omitempty"`
	Phone         string         `json:"phone,omitempty"`
	PayoutAccount string         `json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// RevenueRecord is the immutable split of one chargeable event. The claim
// fields track which settlement took each tier's share.
type RevenueRecord struct {
	ID                  uuid.UUID       `json:"id"`
	MerchantID          uuid.UUID       `json:"merchant_id"`
	RuleID              uuid.UUID       `json:"rule_id"`
	RuleVersion         int64           `json:"rule_version"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	HQAmount            decimal.Decimal `json:"hq_amount"`
	BranchAmount        decimal.Decimal `json:"branch_amount"`
	AgencyAmount        decimal.Decimal `json:"agency_amount"`
	DealerAmount        decimal.Decimal `json:"dealer_amount"`
	MemberBenefitAmount decimal.Decimal `json:"member_benefit_amount"`
	DealerID            *uuid.UUID      `json:"dealer_id"`
	AgencyID            *uuid.UUID      `json:"agency_id"`
	BranchID            *uuid.UUID      `json:"branch_id"`
	PeriodStart         time.Time       `json:"period_start"`
	PeriodEnd           time.Time       `json:"period_end"`
	OccurredAt          time.Time       `json:"occurred_at"`
	SourceEventID       *string         `json:"source_event_id,omitempty"`
	Status              RecordStatus    `json:"status"`
	PaidAt              *time.Time      `json:"paid_at,omitempty"`
	Claims              TierClaims      `json:"-"`
	CreatedAt           time.Time       `json:"created_at"`
}

// TierClaim records the settlement holding one tier of a record.
type TierClaim struct {
	SettlementID *uuid.UUID
	PaidAt       *time.Time
}

type TierClaims map[authorize.Tier]TierClaim

// TierAmount returns the share of tier t.
func (r *RevenueRecord) TierAmount(t authorize.Tier) decimal.Decimal {
	switch t {
	case authorize.TierHQ:
		return r.HQAmount
	case authorize.TierBranch:
		return r.BranchAmount
	case authorize.TierAgency:
		return r.AgencyAmount
	case authorize.TierDealer:
		return r.DealerAmount
	}
	return decimal.Zero
}

// TierOwner returns the frozen owner of tier t; hq has no per-record owner.
func (r *RevenueRecord) TierOwner(t authorize.Tier) *uuid.UUID {
	switch t {
	case authorize.TierBranch:
		return r.BranchID
	case authorize.TierAgency:
		return r.AgencyID
	case authorize.TierDealer:
		return r.DealerID
	}
	return nil
}

// Sum of the five tier amounts.
func (r *RevenueRecord) SplitTotal() decimal.Decimal {
	return r.HQAmount.Add(r.BranchAmount).Add(r.AgencyAmount).Add(r.DealerAmount).Add(r.MemberBenefitAmount)
}

type Settlement struct {
	ID                uuid.UUID        `json:"id"`
	UserID            uuid.UUID        `json:"user_id"`
	OwnerTier         authorize.Tier   `json:"owner_tier,omitempty"`
	Type              SettlementType   `json:"settlement_type"`
	PeriodStart       time.Time        `json:"period_start"`
	PeriodEnd         time.Time        `json:"period_end"`
	Amount            decimal.Decimal  `json:"amount"`
	RecordCount       int              `json:"record_count"`
	Status            SettlementStatus `json:"status"`
	ApprovedAt        *time.Time       `json:"approved_at,omitempty"`
	ApprovedBy        *uuid.UUID       `json:"approved_by,omitempty"`
	PaidAt            *time.Time       `json:"paid_at,omitempty"`
	PaidBy            *uuid.UUID       `json:"paid_by,omitempty"`
	TransferStatus    TransferStatus   `json:"transfer_status"`
	TransferReference *string          `json:"transfer_reference,omitempty"`
	TransferError     *string          `json:"transfer_error,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

type Schedule struct {
	ID         uuid.UUID      `json:"id"`
	Type       ScheduleType   `json:"schedule_type"`
	TargetRole authorize.Role `json:"target_role"`
	Status     ScheduleStatus `json:"status"`
	LastRunAt  *time.Time     `json:"last_run_at"`
	NextRunAt  *time.Time     `json:"next_run_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type RunFailure struct {
	UserID uuid.UUID `json:"user_id"`
	Error  string    `json:"error"`
}

type ScheduleRun struct {
	ID           uuid.UUID    `json:"id"`
	ScheduleID   uuid.UUID    `json:"schedule_id"`
	ScheduleType ScheduleType `json:"schedule_type"`
	WindowStart  time.Time    `json:"window_start"`
	WindowEnd    time.Time    `json:"window_end"`
	CreatedCount int          `json:"created_count"`
	SkippedCount int          `json:"skipped_count"`
	FailedCount  int          `json:"failed_count"`
	Failures     []RunFailure `json:"failures,omitempty"`
	Status       RunStatus    `json:"status"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
}

type Influencer struct {
	ID               uuid.UUID        `json:"id"`
	MemberID         uuid.UUID        `json:"member_id"`
	Name             string           `json:"name"`
	Platform         string           `json:"platform"`
	ChannelURL       string           `json:"channel_url,omitempty"`
	FollowerCount    int64            `json:"follower_count"`
	ReferralCode     string           `json:"referral_code"`
	CommissionRate   decimal.Decimal  `json:"commission_rate"`
	TotalConversions int64            `json:"total_conversions"`
	TotalRevenue     decimal.Decimal  `json:"total_revenue"`
	TotalCommission  decimal.Decimal  `json:"total_commission"`
	Status           InfluencerStatus `json:"status"`
	CreatedAt        time.Time        `json:"created_at"`
}

type Conversion struct {
	ID             uuid.UUID       `json:"id"`
	InfluencerID   uuid.UUID       `json:"influencer_id"`
	SourceUserID   *uuid.UUID      `json:"source_user_id,omitempty"`
	ConversionType string          `json:"conversion_type"`
	Amount         decimal.Decimal `json:"amount"`
	Commission     decimal.Decimal `json:"commission"`
	ConvertedAt    time.Time       `json:"converted_at"`
	SettlementID   *uuid.UUID      `json:"settlement_id,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
}

type OutboxEvent struct {
	ID          uuid.UUID    `json:"id"`
	Topic       string       `json:"topic"`
	AggregateID uuid.UUID    `json:"aggregate_id"`
	Payload     []byte       `json:"payload"`
	Status      OutboxStatus `json:"status"`
	Attempts    int          `json:"attempts"`
	AvailableAt time.Time    `json:"available_at"`
	LockedUntil *time.Time   `json:"locked_until,omitempty"`
	LastError   *string      `json:"last_error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty"`
}

// ----------------------------
// Query inputs and aggregates
// ----------------------------

// RuleFilter narrows rule listings. A pointer to "" selects the "any" scope.
type RuleFilter struct {
	Category   *string
	RegionCode *string
}

// RecordFilter selects revenue records visible to one tier owner. A nil
// OwnerID with TierHQ selects every record.
type RecordFilter struct {
	Tier       authorize.Tier
	OwnerID    *uuid.UUID
	MerchantID *uuid.UUID
	Status     *RecordStatus
	Limit      int
}

// Claim asks to attach every unclaimed, pending share of Tier owned by
// OwnerID with an accrual day in [Start, End) to SettlementID.
type Claim struct {
	Tier         authorize.Tier
	OwnerID      *uuid.UUID
	Start        time.Time
	End          time.Time
	SettlementID uuid.UUID
}

type ClaimResult struct {
	Count int
	Total decimal.Decimal
}

type TierTotals struct {
	Records   int64           `json:"records"`
	Gross     decimal.Decimal `json:"gross_revenue"`
	Earned    decimal.Decimal `json:"earned"`
	Paid      decimal.Decimal `json:"paid"`
	Unsettled decimal.Decimal `json:"unsettled"`
}

type SettlementFilter struct {
	UserID *uuid.UUID
	Status *SettlementStatus
	Type   *SettlementType
	Limit  int
	Offset int
}

type ScheduleFilter struct {
	Type      *ScheduleType
	Status    *ScheduleStatus
	DueBefore *time.Time
}

type ConversionStats struct {
	Conversions int64           `json:"conversions"`
	Revenue     decimal.Decimal `json:"revenue"`
	Commission  decimal.Decimal `json:"commission"`
}
