package influencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
	"github.com/Alijeyrad/franchise_backend/pkg/money"
	"github.com/Alijeyrad/franchise_backend/pkg/util/codes"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

type RegisterInput struct {
	Name          string `json:"influencer_name"`
	Platform      string `json:"platform"`
	ChannelURL    string `json:"channel_url"`
	FollowerCount int64  `json:"follower_count"`
}

type ConversionInput struct {
	ReferralCode   string          `json:"referral_code"`
	ConversionType string          `json:"conversion_type"`
	Amount         decimal.Decimal `json:"amount"`
	SourceUserID   *uuid.UUID      `json:"user_id,omitempty"`
	ConvertedAt    time.Time       `json:"converted_at"`
}

type Dashboard struct {
	Influencer *repo.Influencer     `json:"influencer"`
	Last30Days repo.ConversionStats `json:"stats"`
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	Register(ctx context.Context, caller authorize.Caller, in RegisterInput) (*repo.Influencer, error)
	TrackConversion(ctx context.Context, caller authorize.Caller, in ConversionInput) (*repo.Conversion, error)
	Dashboard(ctx context.Context, caller authorize.Caller) (*Dashboard, error)
}

type Store interface {
	repo.TxRunner
	InsertInfluencer(ctx context.Context, i *repo.Influencer) error
	GetInfluencerByMember(ctx context.Context, memberID uuid.UUID) (*repo.Influencer, error)
	GetInfluencerByCode(ctx context.Context, code string) (*repo.Influencer, error)
	SumConversions(ctx context.Context, influencerID uuid.UUID, since time.Time) (*repo.ConversionStats, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type influencerService struct {
	store Store
	scale int32
	now   func() time.Time
}

func New(store Store, cfg *config.Config) Service {
	return &influencerService{
		store: store,
		scale: cfg.Commission.CurrencyScale,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// RateForFollowers returns the commission percentage for an audience size.
func RateForFollowers(followers int64) decimal.Decimal {
	switch {
	case followers >= 100_000:
		return decimal.NewFromInt(10)
	case followers >= 50_000:
		return decimal.NewFromInt(8)
	case followers >= 10_000:
		return decimal.NewFromInt(6)
	default:
		return decimal.NewFromInt(5)
	}
}

func (s *influencerService) Register(ctx context.Context, caller authorize.Caller, in RegisterInput) (*repo.Influencer, error) {
	in.Name, in.Platform = strings.TrimSpace(in.Name), strings.TrimSpace(in.Platform)
	if in.Name == "" || in.Platform == "" || in.FollowerCount < 0 {
		return nil, fmt.Errorf("%w: name and platform are required", ErrInvalidInput)
	}

	if _, err := s.store.GetInfluencerByMember(ctx, caller.UserID); err == nil {
		return nil, ErrAlreadyRegistered
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("get influencer: %w", err)
	}

	code, err := codes.GenerateReferralCode("INF")
	if err != nil {
		return nil, fmt.Errorf("referral code: %w", err)
	}
	inf := &repo.Influencer{
		ID:              uuid.Must(uuid.NewV7()),
		MemberID:        caller.UserID,
		Name:            in.Name,
		Platform:        in.Platform,
		ChannelURL:      strings.TrimSpace(in.ChannelURL),
		FollowerCount:   in.FollowerCount,
		ReferralCode:    code,
		CommissionRate:  RateForFollowers(in.FollowerCount),
		TotalRevenue:    decimal.Zero,
		TotalCommission: decimal.Zero,
		Status:          repo.InfluencerActive,
		CreatedAt:       s.now(),
	}
	if err := s.store.InsertInfluencer(ctx, inf); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("insert influencer: %w", err)
	}
	slog.Info("influencer registered", "influencer_id", inf.ID, "member_id", inf.MemberID, "rate", inf.CommissionRate)
	return inf, nil
}

// TrackConversion records one referred signup or purchase. The influencer's
// running totals are incremented in the same transaction.
func (s *influencerService) TrackConversion(ctx context.Context, caller authorize.Caller, in ConversionInput) (*repo.Conversion, error) {
	if err := caller.Require(authorize.RoleHQ); err != nil {
		return nil, err
	}
	if in.Amount.IsNegative() {
		return nil, ErrInvalidAmount
	}
	amount, err := money.Quantize(in.Amount, s.scale)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if in.ConversionType == "" {
		in.ConversionType = "signup"
	}
	at := in.ConvertedAt
	if at.IsZero() {
		at = s.now()
	}

	inf, err := s.store.GetInfluencerByCode(ctx, codes.NormalizeCode(in.ReferralCode))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUnknownCode
		}
		return nil, fmt.Errorf("get influencer by code: %w", err)
	}
	if inf.Status != repo.InfluencerActive {
		return nil, ErrSuspended
	}

	conv := &repo.Conversion{
		ID:             uuid.Must(uuid.NewV7()),
		InfluencerID:   inf.ID,
		SourceUserID:   in.SourceUserID,
		ConversionType: in.ConversionType,
		Amount:         amount,
		Commission:     money.Percent(amount, inf.CommissionRate, s.scale),
		ConvertedAt:    at.UTC(),
	}
	err = s.store.WithTx(ctx, func(q repo.Queries) error {
		if err := q.InsertConversion(ctx, conv); err != nil {
			return fmt.Errorf("insert conversion: %w", err)
		}
		return q.AddInfluencerTotals(ctx, inf.ID, conv.Amount, conv.Commission)
	})
	if err != nil {
		return nil, fmt.Errorf("track conversion for %s: %w", inf.ReferralCode, err)
	}
	return conv, nil
}

func (s *influencerService) Dashboard(ctx context.Context, caller authorize.Caller) (*Dashboard, error) {
	inf, err := s.store.GetInfluencerByMember(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotRegistered
		}
		return nil, fmt.Errorf("get influencer: %w", err)
	}
	stats, err := s.store.SumConversions(ctx, inf.ID, s.now().AddDate(0, 0, -30))
	if err != nil {
		return nil, fmt.Errorf("sum conversions: %w", err)
	}
	return &Dashboard{Influencer: inf, Last30Days: *stats}, nil
}
