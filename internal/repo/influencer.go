package repo

import (
	"context"
	stdsql "database/sql"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var influencerColumns = []string{
	"id", "member_id", "name", "platform", "channel_url", "follower_count", "referral_code",
	"commission_rate", "total_conversions", "total_revenue", "total_commission", "status", "created_at",
}

func scanInfluencer(s scanner) (*Influencer, error) {
	var (
		i       Influencer
		channel stdsql.NullString
	)
	if err := s.Scan(&i.ID, &i.MemberID, &i.Name, &i.Platform, &channel, &i.FollowerCount, &i.ReferralCode,
		&i.CommissionRate, &i.TotalConversions, &i.TotalRevenue, &i.TotalCommission, &i.Status, &i.CreatedAt); err != nil {
		return nil, err
	}
	i.ChannelURL = channel.String
	return &i, nil
}

func (q queries) InsertInfluencer(ctx context.Context, i *Influencer) error {
	query, args := pg.Insert("influencers").
		Columns("id", "member_id", "name", "platform", "channel_url", "follower_count",
			"referral_code", "commission_rate", "status", "created_at").
		Values(i.ID, i.MemberID, i.Name, i.Platform, nullable(i.ChannelURL), i.FollowerCount,
			i.ReferralCode, i.CommissionRate, string(i.Status), i.CreatedAt).
		Query()
	_, err := exec(ctx, q.eq, query, args)
	return err
}

func (q queries) GetInfluencerByMember(ctx context.Context, memberID uuid.UUID) (*Influencer, error) {
	query, args := pg.Select(influencerColumns...).
		From(sql.Table("influencers")).
		Where(sql.EQ("member_id", memberID)).
		Query()
	return queryOne(ctx, q.eq, query, args, scanInfluencer)
}

func (q queries) GetInfluencerByCode(ctx context.Context, code string) (*Influencer, error) {
	query, args := pg.Select(influencerColumns...).
		From(sql.Table("influencers")).
		Where(sql.EQ("referral_code", code)).
		Query()
	return queryOne(ctx, q.eq, query, args, scanInfluencer)
}

func (q queries) InsertConversion(ctx context.Context, c *Conversion) error {
	query, args := pg.Insert("influencer_conversions").
		Columns("id", "influencer_id", "source_user_id", "conversion_type", "amount", "commission", "converted_at").
		Values(c.ID, c.InfluencerID, c.SourceUserID, c.ConversionType, c.Amount, c.Commission, c.ConvertedAt).
		Query()
	_, err := exec(ctx, q.eq, query, args)
	return err
}

// AddInfluencerTotals increments the running totals in place so concurrent
// conversions never lose an update.
func (q queries) AddInfluencerTotals(ctx context.Context, id uuid.UUID, revenue, commission decimal.Decimal) error {
	n, err := exec(ctx, q.eq, `UPDATE influencers SET
	total_conversions = total_conversions + 1,
	total_revenue = total_revenue + $2,
	total_commission = total_commission + $3
WHERE id = $1`, []any{id, revenue, commission})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q queries) SumConversions(ctx context.Context, influencerID uuid.UUID, since time.Time) (*ConversionStats, error) {
	return queryOne(ctx, q.eq, `SELECT COUNT(*), COALESCE(SUM(amount), 0), COALESCE(SUM(commission), 0)
FROM influencer_conversions WHERE influencer_id = $1 AND converted_at >= $2`,
		[]any{influencerID, since},
		func(s scanner) (*ConversionStats, error) {
			var st ConversionStats
			err := s.Scan(&st.Conversions, &st.Revenue, &st.Commission)
			return &st, err
		})
}

func (q queries) ClaimConversions(ctx context.Context, influencerID uuid.UUID, start, end time.Time, settlementID uuid.UUID) (ClaimResult, error) {
	amounts, err := queryRows(ctx, q.eq, `UPDATE influencer_conversions SET settlement_id = $1
WHERE influencer_id = $2 AND settlement_id IS NULL AND commission > 0
	AND converted_at >= $3 AND converted_at < $4
RETURNING commission`,
		[]any{settlementID, influencerID, start, end},
		func(s scanner) (decimal.Decimal, error) {
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

func (q queries) MarkConversionsPaid(ctx context.Context, settlementID uuid.UUID, at time.Time) (int64, error) {
	return exec(ctx, q.eq, `UPDATE influencer_conversions SET paid_at = $2 WHERE settlement_id = $1`,
		[]any{settlementID, at})
}
