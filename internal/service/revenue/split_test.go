package revenue

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/franchise_backend/internal/repo"
)

func TestSplit_TinyHQRateStaysNonNegative(t *testing.T) {
	// Every non-hq share rounds up, so the raw hq remainder comes out one
	// unit below zero and a unit has to move back from the largest share.
	rule := &repo.CommissionRule{
		HQRate:            d("0.0001"),
		BranchRate:        d("10.75"),
		AgencyRate:        d("20.75"),
		DealerRate:        d("30.75"),
		MemberBenefitRate: d("37.7499"),
	}
	branch, agency, dealer := uuid.New(), uuid.New(), uuid.New()
	m := &repo.Merchant{BranchID: &branch, AgencyID: &agency, DealerID: &dealer}

	tests := []struct {
		name   string
		amount string
		scale  int32
		want   [5]string
	}{
		{name: "whole units", amount: "100", scale: 0, want: [5]string{"0", "11", "21", "31", "37"}},
		{name: "cents", amount: "1", scale: 2, want: [5]string{"0", "0.11", "0.21", "0.31", "0.37"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount := d(tt.amount)
			s := Split(amount, rule, m, tt.scale)

			got := []decimal.Decimal{s.HQ, s.Branch, s.Agency, s.Dealer, s.MemberBenefit}
			for i := range got {
				if !got[i].Equal(d(tt.want[i])) {
					t.Fatalf("shares = %v, want %v", got, tt.want)
				}
			}
			if s.HQ.IsNegative() {
				t.Fatalf("hq share %s is negative", s.HQ)
			}
			if !s.Total().Equal(amount) {
				t.Fatalf("shares sum to %s, want %s", s.Total(), amount)
			}
		})
	}
}

func TestSplit_MissingAncestorsStayWithHQ(t *testing.T) {
	rule := &repo.CommissionRule{
		HQRate: d("10"), BranchRate: d("20"), AgencyRate: d("20"), DealerRate: d("20"), MemberBenefitRate: d("30"),
	}
	dealer := uuid.New()
	s := Split(d("1000"), rule, &repo.Merchant{DealerID: &dealer}, 0)

	if !s.HQ.Equal(d("500")) || !s.Branch.IsZero() || !s.Agency.IsZero() || !s.Dealer.Equal(d("200")) {
		t.Fatalf("unexpected split %+v", s)
	}
	if !s.Total().Equal(d("1000")) {
		t.Fatalf("shares sum to %s, want 1000", s.Total())
	}
}
