// Package stats reports per-tier revenue totals.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
)

type Summary struct {
	Tier    authorize.Tier `json:"tier"`
	OwnerID *uuid.UUID     `json:"owner_id,omitempty"`
	repo.TierTotals
	ComputedAt time.Time `json:"computed_at"`
}

type Service interface {
	TierSummary(ctx context.Context, caller authorize.Caller) (*Summary, error)
}

type Store interface {
	SumTier(ctx context.Context, tier authorize.Tier, ownerID *uuid.UUID) (*repo.TierTotals, error)
}

// Cache holds computed summaries for a short time. *redis.Cache satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

const summaryTTL = 30 * time.Second

type statsService struct {
	store Store
	cache Cache
	now   func() time.Time
}

// New returns the stats service. cache may be nil.
func New(store Store, cache Cache) Service {
	return &statsService{store: store, cache: cache, now: func() time.Time { return time.Now().UTC() }}
}

func summaryKey(tier authorize.Tier, owner *uuid.UUID) string {
	if owner == nil {
		return "stats:summary:" + string(tier)
	}
	return "stats:summary:" + string(tier) + ":" + owner.String()
}

func (s *statsService) TierSummary(ctx context.Context, caller authorize.Caller) (*Summary, error) {
	tier, owner, ok := caller.OwnedTier()
	if !ok {
		return nil, authorize.ErrForbidden
	}
	key := summaryKey(tier, owner)

	if s.cache != nil {
		if b, err := s.cache.Get(ctx, key); err == nil {
			var cached Summary
			if json.Unmarshal(b, &cached) == nil {
				return &cached, nil
			}
		}
	}

	totals, err := s.store.SumTier(ctx, tier, owner)
	if err != nil {
		return nil, fmt.Errorf("sum %s tier: %w", tier, err)
	}
	out := &Summary{Tier: tier, OwnerID: owner, TierTotals: *totals, ComputedAt: s.now()}

	if s.cache != nil {
		if b, err := json.Marshal(out); err == nil {
			if err := s.cache.Set(ctx, key, b, summaryTTL); err != nil {
				slog.Warn("stats: cache summary failed", "key", key, "err", err)
			}
		}
	}
	return out, nil
}
