package repo

import (
	"context"
	stdsql "database/sql"
	"strings"

	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

var ruleColumns = []string{
	"id", "category", "region_code", "hq_rate", "branch_rate", "agency_rate",
	"dealer_rate", "member_benefit_rate", "version", "updated_by", "created_at", "updated_at",
}

func scanRule(s scanner) (*CommissionRule, error) {
	var (
		r               CommissionRule
		category, rcode stdsql.NullString
		updatedBy       uuid.NullUUID
	)
	if err := s.Scan(&r.ID, &category, &rcode, &r.HQRate, &r.BranchRate, &r.AgencyRate,
		&r.DealerRate, &r.MemberBenefitRate, &r.Version, &updatedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Category = strPtr(category)
	r.RegionCode = strPtr(rcode)
	r.UpdatedBy = uuidPtr(updatedBy)
	return &r, nil
}

var upsertRuleSQL = `INSERT INTO commission_rules
	(id, category, region_code, scope_key, hq_rate, branch_rate, agency_rate, dealer_rate, member_benefit_rate, version, updated_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11, $11)
ON CONFLICT (scope_key) DO UPDATE SET
	hq_rate = EXCLUDED.hq_rate,
	branch_rate = EXCLUDED.branch_rate,
	agency_rate = EXCLUDED.agency_rate,
	dealer_rate = EXCLUDED.dealer_rate,
	member_benefit_rate = EXCLUDED.member_benefit_rate,
	version = commission_rules.version + 1,
	updated_by = EXCLUDED.updated_by,
	updated_at = EXCLUDED.updated_at
RETURNING ` + strings.Join(ruleColumns, ", ")

// UpsertCommissionRule creates the rule for its scope or replaces the rates
// of the existing one, bumping its version.
func (q queries) UpsertCommissionRule(ctx context.Context, r *CommissionRule) (*CommissionRule, error) {
	args := []any{
		r.ID, r.Category, r.RegionCode, ScopeKey(r.Category, r.RegionCode),
		r.HQRate, r.BranchRate, r.AgencyRate, r.DealerRate, r.MemberBenefitRate,
		r.UpdatedBy, r.UpdatedAt,
	}
	out, err := queryOne(ctx, q.eq, upsertRuleSQL, args, scanRule)
	return out, mapErr(err)
}

func (q queries) GetCommissionRule(ctx context.Context, id uuid.UUID) (*CommissionRule, error) {
	query, args := pg.Select(ruleColumns...).
		From(sql.Table("commission_rules")).
		Where(sql.EQ("id", id)).
		Query()
	return queryOne(ctx, q.eq, query, args, scanRule)
}

// FindCommissionRule returns the rule of exactly this scope; nil means "any".
func (q queries) FindCommissionRule(ctx context.Context, category, regionCode *string) (*CommissionRule, error) {
	query, args := pg.Select(ruleColumns...).
		From(sql.Table("commission_rules")).
		Where(sql.EQ("scope_key", ScopeKey(category, regionCode))).
		Query()
	return queryOne(ctx, q.eq, query, args, scanRule)
}

func (q queries) ListCommissionRules(ctx context.Context, f RuleFilter) ([]*CommissionRule, error) {
	sel := pg.Select(ruleColumns...).From(sql.Table("commission_rules"))
	if f.Category != nil {
		sel.Where(nullableEQ("category", *f.Category))
	}
	if f.RegionCode != nil {
		sel.Where(nullableEQ("region_code", *f.RegionCode))
	}
	sel.OrderBy("category", "region_code")
	query, args := sel.Query()
	return queryRows(ctx, q.eq, query, args, scanRule)
}

func (q queries) LockCommissionRule(ctx context.Context, id uuid.UUID) (int64, error) {
	query, args := pg.Select("version").
		From(sql.Table("commission_rules")).
		Where(sql.EQ("id", id)).
		ForShare().
		Query()
	return queryOne(ctx, q.eq, query, args, func(s scanner) (int64, error) {
		var v int64
		err := s.Scan(&v)
		return v, err
	})
}

// nullableEQ matches NULL for the empty string.
func nullableEQ(col, v string) *sql.Predicate {
	if v == "" {
		return sql.IsNull(col)
	}
	return sql.EQ(col, v)
}
