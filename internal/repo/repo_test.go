package repo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewClient(sql.OpenDB(dialect.Postgres, db)), mock
}

func TestScopeKey(t *testing.T) {
	food, seoul := "food", "11"
	tests := []struct {
		name     string
		category *string
		region   *string
		want     string
	}{
		{"exact", &food, &seoul, "food|11"},
		{"any region", &food, nil, "food|*"},
		{"any category", nil, &seoul, "*|11"},
		{"default", nil, nil, "*|*"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ScopeKey(tc.category, tc.region); got != tc.want {
				t.Errorf("ScopeKey = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMapErr(t *testing.T) {
	if err := mapErr(nil); err != nil {
		t.Fatalf("mapErr(nil) = %v", err)
	}
	dup := &pq.Error{Code: "23505"}
	if err := mapErr(dup); !errors.Is(err, ErrConflict) {
		t.Errorf("unique violation not mapped to ErrConflict: %v", err)
	}
	other := &pq.Error{Code: "23503"}
	if err := mapErr(other); errors.Is(err, ErrConflict) {
		t.Errorf("foreign key violation mapped to ErrConflict")
	}
}

func TestClaimRevenueRecords_SumsReturnedShares(t *testing.T) {
	c, mock := newMockClient(t)
	owner := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE revenue_records SET dealer_settlement_id = $1 WHERE dealer_settlement_id IS NULL AND dealer_amount > 0`)+
		`.*dealer_id = \$4 RETURNING dealer_amount`).
		WillReturnRows(sqlmock.NewRows([]string{"dealer_amount"}).AddRow("3000").AddRow("1500"))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := c.ClaimRevenueRecords(context.Background(), Claim{
		Tier:         authorize.TierDealer,
		OwnerID:      &owner,
		Start:        start,
		End:          start.AddDate(0, 1, 0),
		SettlementID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("ClaimRevenueRecords: %v", err)
	}
	if res.Count != 2 || res.Total.String() != "4500" {
		t.Errorf("got count=%d total=%s, want 2 and 4500", res.Count, res.Total)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMarkTierPaid(t *testing.T) {
	c, mock := newMockClient(t)
	id := uuid.New()
	at := time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE revenue_records SET agency_paid_at = $2 WHERE agency_settlement_id = $1`)).
		WithArgs(id, at).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE revenue_records SET status = 'paid', paid_at = $2 WHERE agency_settlement_id = $1 AND status = 'pending'`)).
		WithArgs(id, at).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := c.MarkTierPaid(context.Background(), authorize.TierAgency, id, at)
	if err != nil {
		t.Fatalf("MarkTierPaid: %v", err)
	}
	// Records another tier already paid out keep their status but still count.
	if n != 3 {
		t.Errorf("marked %d shares, want 3", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMarkTierPaid_StopsOnStampError(t *testing.T) {
	c, mock := newMockClient(t)
	boom := errors.New("connection reset")
	mock.ExpectExec(`UPDATE revenue_records SET hq_paid_at`).WillReturnError(boom)

	if _, err := c.MarkTierPaid(context.Background(), authorize.TierHQ, uuid.New(), time.Now()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestClaimRevenueRecords_HQHasNoOwnerFilter(t *testing.T) {
	c, mock := newMockClient(t)

	mock.ExpectQuery(`UPDATE revenue_records SET hq_settlement_id = \$1.*period_start < \$3 RETURNING hq_amount`).
		WillReturnRows(sqlmock.NewRows([]string{"hq_amount"}))

	res, err := c.ClaimRevenueRecords(context.Background(), Claim{
		Tier:         authorize.TierHQ,
		Start:        time.Now().UTC(),
		End:          time.Now().UTC().Add(time.Hour),
		SettlementID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("ClaimRevenueRecords: %v", err)
	}
	if res.Count != 0 || !res.Total.IsZero() {
		t.Errorf("expected empty claim, got %+v", res)
	}
}

func TestClaimRevenueRecords_RejectsUnknownTier(t *testing.T) {
	c, _ := newMockClient(t)
	if _, err := c.ClaimRevenueRecords(context.Background(), Claim{Tier: "merchant"}); err == nil {
		t.Fatal("expected error for unknown tier")
	}
}

func TestLockCommissionRule_TakesShareLock(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectQuery(`SELECT "version" FROM "commission_rules" WHERE "id" = \$1 FOR SHARE`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(3)))

	v, err := c.LockCommissionRule(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("LockCommissionRule: %v", err)
	}
	if v != 3 {
		t.Errorf("version = %d, want 3", v)
	}
}

func TestGetSettlement_NotFound(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectQuery(`SELECT .* FROM "settlements"`).
		WillReturnRows(sqlmock.NewRows(settlementColumns))

	if _, err := c.GetSettlement(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestAdvanceSchedule_StaleWhenNotIncreasing(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectExec(`UPDATE settlement_schedules`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	now := time.Now().UTC()
	if err := c.AdvanceSchedule(context.Background(), uuid.New(), now, now.Add(time.Hour)); !errors.Is(err, ErrStale) {
		t.Fatalf("err = %v, want ErrStale", err)
	}
}

func TestInsertSettlement_ConflictMapped(t *testing.T) {
	c, mock := newMockClient(t)
	mock.ExpectExec(`INSERT INTO "settlements"`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "settlement_open_period"})

	now := time.Now().UTC()
	err := c.InsertSettlement(context.Background(), &Settlement{
		ID: uuid.New(), UserID: uuid.New(), OwnerTier: authorize.TierDealer, Type: TypeRevenue,
		PeriodStart: now, PeriodEnd: now.Add(24 * time.Hour),
		Status: SettlementPending, TransferStatus: TransferNone, CreatedAt: now, UpdatedAt: now,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestWithTx(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		c, mock := newMockClient(t)
		mock.ExpectBegin()
		mock.ExpectExec(`SELECT pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := c.WithTx(context.Background(), func(q Queries) error {
			return q.LockSettlementOwner(context.Background(), "hq")
		})
		if err != nil {
			t.Fatalf("WithTx: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})

	t.Run("rolls back on error", func(t *testing.T) {
		c, mock := newMockClient(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := c.WithTx(context.Background(), func(Queries) error { return boom })
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want boom", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Error(err)
		}
	})
}
