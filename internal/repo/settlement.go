package repo

import (
	"context"
	stdsql "database/sql"
	"errors"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
)

var settlementColumns = []string{
	"id", "user_id", "owner_tier", "settlement_type", "period_start", "period_end",
	"amount", "record_count", "status", "approved_at", "approved_by", "paid_at", "paid_by",
	"transfer_status", "transfer_reference", "transfer_error", "created_at", "updated_at",
}

func scanSettlement(s scanner) (*Settlement, error) {
	var (
		st                 Settlement
		tier, ref, failure stdsql.NullString
		approvedAt, paidAt stdsql.NullTime
		approvedBy, paidBy uuid.NullUUID
	)
	if err := s.Scan(&st.ID, &st.UserID, &tier, &st.Type, &st.PeriodStart, &st.PeriodEnd,
		&st.Amount, &st.RecordCount, &st.Status, &approvedAt, &approvedBy, &paidAt, &paidBy,
		&st.TransferStatus, &ref, &failure, &st.CreatedAt, &st.UpdatedAt); err != nil {
		return nil, err
	}
	st.OwnerTier = authorize.Tier(tier.String)
	st.PeriodStart, st.PeriodEnd = st.PeriodStart.UTC(), st.PeriodEnd.UTC()
	st.ApprovedAt, st.PaidAt = timePtr(approvedAt), timePtr(paidAt)
	st.ApprovedBy, st.PaidBy = uuidPtr(approvedBy), uuidPtr(paidBy)
	st.TransferReference, st.TransferError = strPtr(ref), strPtr(failure)
	return &st, nil
}

// LockSettlementOwner serialises settlement requests for one key until the
// surrounding transaction ends.
func (q queries) LockSettlementOwner(ctx context.Context, key string) error {
	_, err := exec(ctx, q.eq, `SELECT pg_advisory_xact_lock(hashtext($1))`, []any{key})
	return err
}

// HasOpenSettlement reports whether a pending or approved settlement of the
// user overlaps the half-open window [start, end).
func (q queries) HasOpenSettlement(ctx context.Context, userID uuid.UUID, typ SettlementType, start, end time.Time) (bool, error) {
	query, args := pg.Select("id").
		From(sql.Table("settlements")).
		Where(sql.And(
			sql.EQ("user_id", userID),
			sql.EQ("settlement_type", string(typ)),
			sql.In("status", string(SettlementPending), string(SettlementApproved)),
			sql.LT("period_start", end),
			sql.GT("period_end", start),
		)).
		Limit(1).
		Query()
	_, err := queryOne(ctx, q.eq, query, args, func(s scanner) (uuid.UUID, error) {
		var v uuid.UUID
		err := s.Scan(&v)
		return v, err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (q queries) InsertSettlement(ctx context.Context, s *Settlement) error {
	var tier any
	if s.OwnerTier != "" {
		tier = string(s.OwnerTier)
	}
	query, args := pg.Insert("settlements").
		Columns("id", "user_id", "owner_tier", "settlement_type", "period_start", "period_end",
			"amount", "record_count", "status", "transfer_status", "created_at", "updated_at").
		Values(s.ID, s.UserID, tier, string(s.Type), s.PeriodStart, s.PeriodEnd,
			s.Amount, s.RecordCount, string(s.Status), string(s.TransferStatus), s.CreatedAt, s.UpdatedAt).
		Query()
	_, err := exec(ctx, q.eq, query, args)
	return err
}

func (q queries) GetSettlement(ctx context.Context, id uuid.UUID) (*Settlement, error) {
	query, args := pg.Select(settlementColumns...).
		From(sql.Table("settlements")).
		Where(sql.EQ("id", id)).
		Query()
	return queryOne(ctx, q.eq, query, args, scanSettlement)
}

func (q queries) GetSettlementForUpdate(ctx context.Context, id uuid.UUID) (*Settlement, error) {
	query, args := pg.Select(settlementColumns...).
		From(sql.Table("settlements")).
		Where(sql.EQ("id", id)).
		ForUpdate().
		Query()
	return queryOne(ctx, q.eq, query, args, scanSettlement)
}

// UpdateSettlementStatus writes the state-machine columns of s.
func (q queries) UpdateSettlementStatus(ctx context.Context, s *Settlement) error {
	query, args := pg.Update("settlements").
		Set("status", string(s.Status)).
		Set("approved_at", s.ApprovedAt).
		Set("approved_by", s.ApprovedBy).
		Set("paid_at", s.PaidAt).
		Set("paid_by", s.PaidBy).
		Set("transfer_status", string(s.TransferStatus)).
		Set("updated_at", s.UpdatedAt).
		Where(sql.EQ("id", s.ID)).
		Query()
	n, err := exec(ctx, q.eq, query, args)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q queries) UpdateSettlementTransfer(ctx context.Context, id uuid.UUID, status TransferStatus, reference, failure *string) error {
	query, args := pg.Update("settlements").
		Set("transfer_status", string(status)).
		Set("transfer_reference", reference).
		Set("transfer_error", failure).
		Set("updated_at", time.Now().UTC()).
		Where(sql.EQ("id", id)).
		Query()
	n, err := exec(ctx, q.eq, query, args)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q queries) ListSettlements(ctx context.Context, f SettlementFilter) ([]*Settlement, error) {
	sel := pg.Select(settlementColumns...).From(sql.Table("settlements"))
	if f.UserID != nil {
		sel.Where(sql.EQ("user_id", *f.UserID))
	}
	if f.Status != nil {
		sel.Where(sql.EQ("status", string(*f.Status)))
	}
	if f.Type != nil {
		sel.Where(sql.EQ("settlement_type", string(*f.Type)))
	}
	sel.OrderBy(sql.Desc("period_start"), sql.Desc("created_at"))
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}
	if f.Offset > 0 {
		sel.Offset(f.Offset)
	}
	query, args := sel.Query()
	return queryRows(ctx, q.eq, query, args, scanSettlement)
}
