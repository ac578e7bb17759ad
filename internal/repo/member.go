package repo

import (
	"context"
	stdsql "database/sql"
	"strings"

	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
)

var merchantColumns = []string{
	"id", "name", "category", "region_code", "dealer_id", "agency_id", "branch_id",
	"status", "created_at", "updated_at",
}

func scanMerchant(s scanner) (*Merchant, error) {
	var (
		m                      Merchant
		dealer, agency, branch uuid.NullUUID
	)
	if err := s.Scan(&m.ID, &m.Name, &m.Category, &m.RegionCode, &dealer, &agency, &branch,
		&m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.DealerID, m.AgencyID, m.BranchID = uuidPtr(dealer), uuidPtr(agency), uuidPtr(branch)
	return &m, nil
}

func (q queries) GetMerchant(ctx context.Context, id uuid.UUID) (*Merchant, error) {
	query, args := pg.Select(merchantColumns...).
		From(sql.Table("merchants")).
		Where(sql.EQ("id", id)).
		Query()
	return queryOne(ctx, q.eq, query, args, scanMerchant)
}

var upsertMerchantSQL = `INSERT INTO merchants
	(id, name, category, region_code, dealer_id, agency_id, branch_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	category = EXCLUDED.category,
	region_code = EXCLUDED.region_code,
	dealer_id = EXCLUDED.dealer_id,
	agency_id = EXCLUDED.agency_id,
	branch_id = EXCLUDED.branch_id,
	status = EXCLUDED.status,
	updated_at = EXCLUDED.updated_at
RETURNING ` + strings.Join(merchantColumns, ", ")

// UpsertMerchant stores the merchant and its current chain. Records already
// written keep the chain they were created with.
func (q queries) UpsertMerchant(ctx context.Context, m *Merchant) (*Merchant, error) {
	args := []any{m.ID, m.Name, m.Category, m.RegionCode, m.DealerID, m.AgencyID, m.BranchID, m.Status, m.UpdatedAt}
	out, err := queryOne(ctx, q.eq, upsertMerchantSQL, args, scanMerchant)
	return out, mapErr(err)
}

var memberColumns = []string{
	"id", "name", "role", "region_code", "parent_id", "status", "email", "phone",
	"payout_account", "created_at", "updated_at",
}

func scanMember(s scanner) (*Member, error) {
	var (
		m                            Member
		region, email, phone, payout stdsql.NullString
		parent                       uuid.NullUUID
	)
	if err := s.Scan(&m.ID, &m.Name, &m.Role, &region, &parent, &m.Status, &email, &phone,
		&payout, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.RegionCode, m.Email, m.Phone, m.PayoutAccount = region.String, email.String, phone.String, payout.String
	m.ParentID = uuidPtr(parent)
	return &m, nil
}

func (q queries) GetMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	query, args := pg.Select(memberColumns...).
		From(sql.Table("members")).
		Where(sql.EQ("id", id)).
		Query()
	return queryOne(ctx, q.eq, query, args, scanMember)
}

var upsertMemberSQL = `INSERT INTO members
	(id, name, role, region_code, parent_id, status, email, phone, payout_account, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	role = EXCLUDED.role,
	region_code = EXCLUDED.region_code,
	parent_id = EXCLUDED.parent_id,
	status = EXCLUDED.status,
	email = EXCLUDED.email,
	phone = EXCLUDED.phone,
	payout_account = COALESCE(EXCLUDED.payout_account, members.payout_account),
	updated_at = EXCLUDED.updated_at
RETURNING ` + strings.Join(memberColumns, ", ")

// UpsertMember stores the member. An empty PayoutAccount keeps the stored one.
func (q queries) UpsertMember(ctx context.Context, m *Member) (*Member, error) {
	args := []any{
		m.ID, m.Name, m.Role, nullable(m.RegionCode), m.ParentID, m.Status,
		nullable(m.Email), nullable(m.Phone), nullable(m.PayoutAccount), m.UpdatedAt,
	}
	out, err := queryOne(ctx, q.eq, upsertMemberSQL, args, scanMember)
	return out, mapErr(err)
}

func (q queries) ListActiveMembersByRole(ctx context.Context, role authorize.Role) ([]*Member, error) {
	query, args := pg.Select(memberColumns...).
		From(sql.Table("members")).
		Where(sql.And(
			sql.EQ("role", string(role)),
			sql.EQ("status", string(MemberActive)),
		)).
		OrderBy("id").
		Query()
	return queryRows(ctx, q.eq, query, args, scanMember)
}
