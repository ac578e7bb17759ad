package revenue

import (
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/pkg/money"
)

// Shares is a five-way split of one amount.
type Shares struct {
	HQ            decimal.Decimal
	Branch        decimal.Decimal
	Agency        decimal.Decimal
	Dealer        decimal.Decimal
	MemberBenefit decimal.Decimal
}

func (s Shares) Total() decimal.Decimal {
	return money.Sum(s.HQ, s.Branch, s.Agency, s.Dealer, s.MemberBenefit)
}

// Split applies rule to amount. Each non-hq share is rounded half-to-even at
// scale; hq takes whatever is left, so the shares always add up to amount.
// A tier without an ancestor on the merchant gets zero and its share stays
// with hq.
func Split(amount decimal.Decimal, rule *repo.CommissionRule, m *repo.Merchant, scale int32) Shares {
	s := Shares{
		Branch:        decimal.Zero,
		Agency:        decimal.Zero,
		Dealer:        decimal.Zero,
		MemberBenefit: money.Percent(amount, rule.MemberBenefitRate, scale),
	}
	if m.BranchID != nil {
		s.Branch = money.Percent(amount, rule.BranchRate, scale)
	}
	if m.AgencyID != nil {
		s.Agency = money.Percent(amount, rule.AgencyRate, scale)
	}
	if m.DealerID != nil {
		s.Dealer = money.Percent(amount, rule.DealerRate, scale)
	}
	s.HQ = amount.Sub(money.Sum(s.Branch, s.Agency, s.Dealer, s.MemberBenefit))

	// Rounding several shares up can overshoot when hq's own rate is tiny.
	// Give units back from the largest share until hq is non-negative.
	unit := decimal.New(1, -scale)
	for s.HQ.IsNegative() {
		largest := s.largestNonHQ()
		*largest = largest.Sub(unit)
		s.HQ = s.HQ.Add(unit)
	}
	return s
}

func (s *Shares) largestNonHQ() *decimal.Decimal {
	best := &s.Branch
	for _, p := range []*decimal.Decimal{&s.Agency, &s.Dealer, &s.MemberBenefit} {
		if p.GreaterThan(*best) {
			best = p
		}
	}
	return best
}
