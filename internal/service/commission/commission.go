package commission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
	"github.com/Alijeyrad/franchise_backend/pkg/money"
)

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	UpsertRule(ctx context.Context, caller authorize.Caller, in RuleInput) (*repo.CommissionRule, error)
	ListRules(ctx context.Context, caller authorize.Caller, category, regionCode *string) ([]*repo.CommissionRule, error)
	Resolve(ctx context.Context, category, regionCode string) (*repo.CommissionRule, error)
}

// Store is the slice of the repository the rule service reads and writes.
type Store interface {
	UpsertCommissionRule(ctx context.Context, r *repo.CommissionRule) (*repo.CommissionRule, error)
	FindCommissionRule(ctx context.Context, category, regionCode *string) (*repo.CommissionRule, error)
	ListCommissionRules(ctx context.Context, f repo.RuleFilter) ([]*repo.CommissionRule, error)
}

// RuleInput scopes a rule. An empty or "any" Category/RegionCode matches
// every value.
type RuleInput struct {
	Category          string          `json:"category"`
	RegionCode        string          `json:"region_code"`
	HQRate            decimal.Decimal `json:"hq_rate"`
	BranchRate        decimal.Decimal `json:"branch_rate"`
	AgencyRate        decimal.Decimal `json:"agency_rate"`
	DealerRate        decimal.Decimal `json:"dealer_rate"`
	MemberBenefitRate decimal.Decimal `json:"member_benefit_rate"`
}

func (in RuleInput) rates() []decimal.Decimal {
	return []decimal.Decimal{in.HQRate, in.BranchRate, in.AgencyRate, in.DealerRate, in.MemberBenefitRate}
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type commissionService struct {
	store Store
}

func New(store Store) Service {
	return &commissionService{store: store}
}

var hundred = decimal.NewFromInt(100)

// ValidateRates checks the five-way split before anything is written.
func ValidateRates(rates ...decimal.Decimal) error {
	for _, r := range rates {
		if r.IsNegative() || !r.Equal(r.Round(4)) {
			return ErrInvalidRates
		}
	}
	if sum := money.Sum(rates...); !sum.Equal(hundred) {
		return fmt.Errorf("%w: got %s", ErrInvalidRates, sum)
	}
	return nil
}

// Scope normalises a user-supplied scope value; nil means "any".
func Scope(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "any") {
		return nil
	}
	return &v
}

func (s *commissionService) UpsertRule(ctx context.Context, caller authorize.Caller, in RuleInput) (*repo.CommissionRule, error) {
	if err := caller.Require(authorize.RoleHQ); err != nil {
		return nil, err
	}
	if err := ValidateRates(in.rates()...); err != nil {
		return nil, err
	}

	by := caller.UserID
	rule := &repo.CommissionRule{
		ID:                uuid.Must(uuid.NewV7()),
		Category:          Scope(in.Category),
		RegionCode:        Scope(in.RegionCode),
		HQRate:            in.HQRate,
		BranchRate:        in.BranchRate,
		AgencyRate:        in.AgencyRate,
		DealerRate:        in.DealerRate,
		MemberBenefitRate: in.MemberBenefitRate,
		UpdatedBy:         &by,
		UpdatedAt:         time.Now().UTC(),
	}
	saved, err := s.store.UpsertCommissionRule(ctx, rule)
	if err != nil {
		return nil, fmt.Errorf("upsert rule %s: %w", repo.ScopeKey(rule.Category, rule.RegionCode), err)
	}
	return saved, nil
}

// ListRules returns the rules matching the filter. Callers below HQ only see
// global rules and rules of regions they can access.
func (s *commissionService) ListRules(ctx context.Context, caller authorize.Caller, category, regionCode *string) ([]*repo.CommissionRule, error) {
	f := repo.RuleFilter{}
	if category != nil {
		f.Category = scopeFilter(*category)
	}
	if regionCode != nil {
		f.RegionCode = scopeFilter(*regionCode)
	}
	rules, err := s.store.ListCommissionRules(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	if caller.IsHQ() {
		return rules, nil
	}
	visible := rules[:0]
	for _, r := range rules {
		if r.RegionCode == nil || caller.CanAccessRegion(*r.RegionCode) {
			visible = append(visible, r)
		}
	}
	return visible, nil
}

// scopeFilter maps "any" onto the empty string the repository reads as NULL.
func scopeFilter(v string) *string {
	if p := Scope(v); p != nil {
		return p
	}
	empty := ""
	return &empty
}

// Resolve walks the fallback chain from the most specific scope to the global
// default: (category, region), (category, any), (any, region), (any, any).
func (s *commissionService) Resolve(ctx context.Context, category, regionCode string) (*repo.CommissionRule, error) {
	cat, region := Scope(category), Scope(regionCode)

	candidates := make([][2]*string, 0, 4)
	if cat != nil && region != nil {
		candidates = append(candidates, [2]*string{cat, region})
	}
	if cat != nil {
		candidates = append(candidates, [2]*string{cat, nil})
	}
	if region != nil {
		candidates = append(candidates, [2]*string{nil, region})
	}
	candidates = append(candidates, [2]*string{nil, nil})

	for _, c := range candidates {
		rule, err := s.store.FindCommissionRule(ctx, c[0], c[1])
		if err == nil {
			return rule, nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("resolve rule %s: %w", repo.ScopeKey(c[0], c[1]), err)
		}
	}
	return nil, fmt.Errorf("%w: category=%q region=%q", ErrRuleNotFound, category, regionCode)
}
