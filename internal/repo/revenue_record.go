package repo

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
)

var recordColumns = []string{
	"id", "merchant_id", "rule_id", "rule_version", "total_amount",
	"hq_amount", "branch_amount", "agency_amount", "dealer_amount", "member_benefit_amount",
	"dealer_id", "agency_id", "branch_id", "period_start", "period_end", "occurred_at",
	"source_event_id", "status", "paid_at",
	"hq_settlement_id", "branch_settlement_id", "agency_settlement_id", "dealer_settlement_id",
	"hq_paid_at", "branch_paid_at", "agency_paid_at", "dealer_paid_at",
	"created_at",
}

// tierColumns names the columns backing one tier's share.
type tierColumns struct {
	amount, owner, claim, paid string
}

func columnsFor(t authorize.Tier) (tierColumns, error) {
	if !t.Valid() {
		return tierColumns{}, fmt.Errorf("unknown tier %q", t)
	}
	c := tierColumns{
		amount: string(t) + "_amount",
		claim:  string(t) + "_settlement_id",
		paid:   string(t) + "_paid_at",
	}
	if t != authorize.TierHQ {
		c.owner = string(t) + "_id"
	}
	return c, nil
}

func scanRecord(s scanner) (*RevenueRecord, error) {
	var (
		r                      RevenueRecord
		dealer, agency, branch uuid.NullUUID
		source                 stdsql.NullString
		paidAt                 stdsql.NullTime
		claim                  [4]uuid.NullUUID
		tierPaid               [4]stdsql.NullTime
	)
	if err := s.Scan(
		&r.ID, &r.MerchantID, &r.RuleID, &r.RuleVersion, &r.TotalAmount,
		&r.HQAmount, &r.BranchAmount, &r.AgencyAmount, &r.DealerAmount, &r.MemberBenefitAmount,
		&dealer, &agency, &branch, &r.PeriodStart, &r.PeriodEnd, &r.OccurredAt,
		&source, &r.Status, &paidAt,
		&claim[0], &claim[1], &claim[2], &claim[3],
		&tierPaid[0], &tierPaid[1], &tierPaid[2], &tierPaid[3],
		&r.CreatedAt,
	); err != nil {
		return nil, err
	}
	r.DealerID, r.AgencyID, r.BranchID = uuidPtr(dealer), uuidPtr(agency), uuidPtr(branch)
	r.SourceEventID = strPtr(source)
	r.PaidAt = timePtr(paidAt)
	r.PeriodStart, r.PeriodEnd, r.OccurredAt = r.PeriodStart.UTC(), r.PeriodEnd.UTC(), r.OccurredAt.UTC()
	r.Claims = make(TierClaims, len(authorize.Tiers))
	// authorize.Tiers is ordered hq, branch, agency, dealer like the columns.
	for i, t := range authorize.Tiers {
		r.Claims[t] = TierClaim{SettlementID: uuidPtr(claim[i]), PaidAt: timePtr(tierPaid[i])}
	}
	return &r, nil
}

func (q queries) InsertRevenueRecord(ctx context.Context, r *RevenueRecord) error {
	query, args := pg.Insert("revenue_records").
		Columns(
			"id", "merchant_id", "rule_id", "rule_version", "total_amount",
			"hq_amount", "branch_amount", "agency_amount", "dealer_amount", "member_benefit_amount",
			"dealer_id", "agency_id", "branch_id", "period_start", "period_end", "occurred_at",
			"source_event_id", "status", "created_at",
		).
		Values(
			r.ID, r.MerchantID, r.RuleID, r.RuleVersion, r.TotalAmount,
			r.HQAmount, r.BranchAmount, r.AgencyAmount, r.DealerAmount, r.MemberBenefitAmount,
			r.DealerID, r.AgencyID, r.BranchID, r.PeriodStart, r.PeriodEnd, r.OccurredAt,
			r.SourceEventID, string(r.Status), r.CreatedAt,
		).
		Query()
	_, err := exec(ctx, q.eq, query, args)
	return err
}

func (q queries) GetRevenueRecordBySourceEvent(ctx context.Context, sourceEventID string) (*RevenueRecord, error) {
	query, args := pg.Select(recordColumns...).
		From(sql.Table("revenue_records")).
		Where(sql.EQ("source_event_id", sourceEventID)).
		Query()
	return queryOne(ctx, q.eq, query, args, scanRecord)
}

func (q queries) ListRevenueRecords(ctx context.Context, f RecordFilter) ([]*RevenueRecord, error) {
	cols, err := columnsFor(f.Tier)
	if err != nil {
		return nil, err
	}
	sel := pg.Select(recordColumns...).From(sql.Table("revenue_records"))
	if cols.owner != "" {
		if f.OwnerID == nil {
			return nil, fmt.Errorf("tier %s requires an owner", f.Tier)
		}
		sel.Where(sql.EQ(cols.owner, *f.OwnerID))
	}
	if f.MerchantID != nil {
		sel.Where(sql.EQ("merchant_id", *f.MerchantID))
	}
	if f.Status != nil {
		sel.Where(sql.EQ("status", string(*f.Status)))
	}
	sel.OrderBy(sql.Desc("occurred_at"))
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}
	query, args := sel.Query()
	return queryRows(ctx, q.eq, query, args, scanRecord)
}

// ClaimRevenueRecords marks the claimable shares as taken by the settlement
// in one statement, so two claims can never take the same share. Only the
// tier's own claim column gates the claim: a record another tier already
// paid out is still open for this tier.
func (q queries) ClaimRevenueRecords(ctx context.Context, c Claim) (ClaimResult, error) {
	cols, err := columnsFor(c.Tier)
	if err != nil {
		return ClaimResult{}, err
	}
	query := fmt.Sprintf(`UPDATE revenue_records SET %[1]s = $1
WHERE %[1]s IS NULL AND %[2]s > 0
	AND period_start >= $2 AND period_start < $3`, cols.claim, cols.amount)
	args := []any{c.SettlementID, c.Start, c.End}
	if cols.owner != "" {
		if c.OwnerID == nil {
			return ClaimResult{}, fmt.Errorf("tier %s requires an owner", c.Tier)
		}
		query += fmt.Sprintf(" AND %s = $4", cols.owner)
		args = append(args, *c.OwnerID)
	}
	query += " RETURNING " + cols.amount

	amounts, err := queryRows(ctx, q.eq, query, args, func(s scanner) (decimal.Decimal, error) {
		var d decimal.Decimal
		err := s.Scan(&d)
		return d, err
	})
	if err != nil {
		return ClaimResult{}, err
	}
	res := ClaimResult{Count: len(amounts), Total: decimal.Zero}
	for _, a := range amounts {
		res.Total = res.Total.Add(a)
	}
	return res, nil
}

// MarkTierPaid stamps the tier's paid time on every record the settlement
// claimed and flips those records to paid. Run it inside the transaction
// that moves the settlement to paid.
func (q queries) MarkTierPaid(ctx context.Context, tier authorize.Tier, settlementID uuid.UUID, at time.Time) (int64, error) {
	cols, err := columnsFor(tier)
	if err != nil {
		return 0, err
	}
	n, err := exec(ctx, q.eq,
		fmt.Sprintf(`UPDATE revenue_records SET %s = $2 WHERE %s = $1`, cols.paid, cols.claim),
		[]any{settlementID, at})
	if err != nil {
		return 0, err
	}
	_, err = exec(ctx, q.eq, fmt.Sprintf(`UPDATE revenue_records SET status = 'paid', paid_at = $2
WHERE %s = $1 AND status = 'pending'`, cols.claim),
		[]any{settlementID, at})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// SumTier aggregates one tier's earnings. A nil ownerID is only valid for hq.
func (q queries) SumTier(ctx context.Context, tier authorize.Tier, ownerID *uuid.UUID) (*TierTotals, error) {
	cols, err := columnsFor(tier)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT COUNT(*),
	COALESCE(SUM(total_amount), 0),
	COALESCE(SUM(%[1]s), 0),
	COALESCE(SUM(%[1]s) FILTER (WHERE %[2]s IS NOT NULL), 0),
	COALESCE(SUM(%[1]s) FILTER (WHERE %[3]s IS NULL), 0)
FROM revenue_records`, cols.amount, cols.paid, cols.claim)
	var args []any
	if cols.owner != "" {
		if ownerID == nil {
			return nil, fmt.Errorf("tier %s requires an owner", tier)
		}
		query += fmt.Sprintf(" WHERE %s = $1", cols.owner)
		args = append(args, *ownerID)
	}
	return queryOne(ctx, q.eq, query, args, func(s scanner) (*TierTotals, error) {
		var t TierTotals
		err := s.Scan(&t.Records, &t.Gross, &t.Earned, &t.Paid, &t.Unsettled)
		return &t, err
	})
}
