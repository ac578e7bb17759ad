// Package repotest provides an in-memory repo.Queries for service tests.
package repotest

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
)

// Store keeps every table in maps. Transactions are serialised and restored
// from a snapshot when fn fails, which is enough to observe rollbacks.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	rules       map[uuid.UUID]*repo.CommissionRule
	merchants   map[uuid.UUID]*repo.Merchant
	members     map[uuid.UUID]*repo.Member
	records     []*repo.RevenueRecord
	settlements map[uuid.UUID]*repo.Settlement
	schedules   map[uuid.UUID]*repo.Schedule
	runs        []*repo.ScheduleRun
	influencers map[uuid.UUID]*repo.Influencer
	conversions []*repo.Conversion
	outbox      []*repo.OutboxEvent

	// OnLockRule runs before LockCommissionRule reads the version.
	OnLockRule func(id uuid.UUID)
	// bumps counts BumpRuleVersion calls per rule. They stand for edits
	// committed by another session, so a rollback must not undo them.
	bumps map[uuid.UUID]int64
	// Locks counts LockSettlementOwner calls per key.
	Locks map[string]int
}

func New() *Store {
	return &Store{
		rules:       map[uuid.UUID]*repo.CommissionRule{},
		merchants:   map[uuid.UUID]*repo.Merchant{},
		members:     map[uuid.UUID]*repo.Member{},
		settlements: map[uuid.UUID]*repo.Settlement{},
		schedules:   map[uuid.UUID]*repo.Schedule{},
		influencers: map[uuid.UUID]*repo.Influencer{},
		Locks:       map[string]int{},
		bumps:       map[uuid.UUID]int64{},
	}
}

var (
	_ repo.Queries  = (*Store)(nil)
	_ repo.TxRunner = (*Store)(nil)
)

// ----------------------------
// Transactions
// ----------------------------

type snapshot struct {
	rules       map[uuid.UUID]*repo.CommissionRule
	merchants   map[uuid.UUID]*repo.Merchant
	members     map[uuid.UUID]*repo.Member
	records     []*repo.RevenueRecord
	settlements map[uuid.UUID]*repo.Settlement
	schedules   map[uuid.UUID]*repo.Schedule
	runs        []*repo.ScheduleRun
	influencers map[uuid.UUID]*repo.Influencer
	conversions []*repo.Conversion
	outbox      []*repo.OutboxEvent
	bumps       map[uuid.UUID]int64
}

func cloneMap[T any](m map[uuid.UUID]*T) map[uuid.UUID]*T {
	out := make(map[uuid.UUID]*T, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}

func cloneSlice[T any](s []*T) []*T {
	out := make([]*T, len(s))
	for i, v := range s {
		c := *v
		out[i] = &c
	}
	return out
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := cloneSlice(s.records)
	for _, r := range records {
		claims := make(repo.TierClaims, len(r.Claims))
		for k, v := range r.Claims {
			claims[k] = v
		}
		r.Claims = claims
	}
	return snapshot{
		rules:       cloneMap(s.rules),
		merchants:   cloneMap(s.merchants),
		members:     cloneMap(s.members),
		records:     records,
		settlements: cloneMap(s.settlements),
		schedules:   cloneMap(s.schedules),
		runs:        cloneSlice(s.runs),
		influencers: cloneMap(s.influencers),
		conversions: cloneSlice(s.conversions),
		outbox:      cloneSlice(s.outbox),
		bumps:       maps.Clone(s.bumps),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.bumps {
		if r, ok := snap.rules[id]; ok {
			r.Version += n - snap.bumps[id]
		}
	}
	s.rules, s.merchants, s.members = snap.rules, snap.merchants, snap.members
	s.records, s.settlements, s.schedules = snap.records, snap.settlements, snap.schedules
	s.runs, s.influencers, s.conversions, s.outbox = snap.runs, snap.influencers, snap.conversions, snap.outbox
}

func (s *Store) WithTx(ctx context.Context, fn func(q repo.Queries) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// ----------------------------
// Commission rules
// ----------------------------

func (s *Store) UpsertCommissionRule(_ context.Context, r *repo.CommissionRule) (*repo.CommissionRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := repo.ScopeKey(r.Category, r.RegionCode)
	for _, existing := range s.rules {
		if repo.ScopeKey(existing.Category, existing.RegionCode) == key {
			existing.HQRate, existing.BranchRate = r.HQRate, r.BranchRate
			existing.AgencyRate, existing.DealerRate = r.AgencyRate, r.DealerRate
			existing.MemberBenefitRate = r.MemberBenefitRate
			existing.Version++
			existing.UpdatedBy, existing.UpdatedAt = r.UpdatedBy, r.UpdatedAt
			out := *existing
			return &out, nil
		}
	}
	c := *r
	c.Version = 1
	c.CreatedAt = r.UpdatedAt
	s.rules[c.ID] = &c
	out := c
	return &out, nil
}

func (s *Store) GetCommissionRule(_ context.Context, id uuid.UUID) (*repo.CommissionRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	out := *r
	return &out, nil
}

func (s *Store) FindCommissionRule(_ context.Context, category, regionCode *string) (*repo.CommissionRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := repo.ScopeKey(category, regionCode)
	for _, r := range s.rules {
		if repo.ScopeKey(r.Category, r.RegionCode) == key {
			out := *r
			return &out, nil
		}
	}
	return nil, repo.ErrNotFound
}

func matchNullable(col *string, want string) bool {
	if want == "" {
		return col == nil
	}
	return col != nil && *col == want
}

func (s *Store) ListCommissionRules(_ context.Context, f repo.RuleFilter) ([]*repo.CommissionRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repo.CommissionRule
	for _, r := range s.rules {
		if f.Category != nil && !matchNullable(r.Category, *f.Category) {
			continue
		}
		if f.RegionCode != nil && !matchNullable(r.RegionCode, *f.RegionCode) {
			continue
		}
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return repo.ScopeKey(out[i].Category, out[i].RegionCode) < repo.ScopeKey(out[j].Category, out[j].RegionCode)
	})
	return out, nil
}

func (s *Store) LockCommissionRule(_ context.Context, id uuid.UUID) (int64, error) {
	if s.OnLockRule != nil {
		s.OnLockRule(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return 0, repo.ErrNotFound
	}
	return r.Version, nil
}

// BumpRuleVersion simulates a concurrent rule edit.
func (s *Store) BumpRuleVersion(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rules[id]; ok {
		r.Version++
		s.bumps[id]++
	}
}

// ----------------------------
// Merchants and members
// ----------------------------

func (s *Store) GetMerchant(_ context.Context, id uuid.UUID) (*repo.Merchant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.merchants[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	out := *m
	return &out, nil
}

func (s *Store) UpsertMerchant(_ context.Context, m *repo.Merchant) (*repo.Merchant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *m
	if existing, ok := s.merchants[m.ID]; ok {
		c.CreatedAt = existing.CreatedAt
	} else {
		c.CreatedAt = m.UpdatedAt
	}
	s.merchants[m.ID] = &c
	out := c
	return &out, nil
}

func (s *Store) GetMember(_ context.Context, id uuid.UUID) (*repo.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	out := *m
	return &out, nil
}

func (s *Store) UpsertMember(_ context.Context, m *repo.Member) (*repo.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *m
	if existing, ok := s.members[m.ID]; ok {
		c.CreatedAt = existing.CreatedAt
		if c.PayoutAccount == "" {
			c.PayoutAccount = existing.PayoutAccount
		}
	} else {
		c.CreatedAt = m.UpdatedAt
	}
	s.members[m.ID] = &c
	out := c
	return &out, nil
}

func (s *Store) ListActiveMembersByRole(_ context.Context, role authorize.Role) ([]*repo.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repo.Member
	for _, m := range s.members {
		if m.Role == role && m.Status == repo.MemberActive {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// ----------------------------
// Revenue records
// ----------------------------

func cloneRecord(r *repo.RevenueRecord) *repo.RevenueRecord {
	c := *r
	c.Claims = make(repo.TierClaims, len(r.Claims))
	for k, v := range r.Claims {
		c.Claims[k] = v
	}
	return &c
}

func (s *Store) InsertRevenueRecord(_ context.Context, r *repo.RevenueRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if r.SourceEventID != nil && existing.SourceEventID != nil && *existing.SourceEventID == *r.SourceEventID {
			return repo.ErrConflict
		}
	}
	s.records = append(s.records, cloneRecord(r))
	return nil
}

func (s *Store) GetRevenueRecordBySourceEvent(_ context.Context, sourceEventID string) (*repo.RevenueRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.SourceEventID != nil && *r.SourceEventID == sourceEventID {
			return cloneRecord(r), nil
		}
	}
	return nil, repo.ErrNotFound
}

func ownedBy(r *repo.RevenueRecord, tier authorize.Tier, owner *uuid.UUID) bool {
	if tier == authorize.TierHQ {
		return true
	}
	o := r.TierOwner(tier)
	return o != nil && owner != nil && *o == *owner
}

func (s *Store) ListRevenueRecords(_ context.Context, f repo.RecordFilter) ([]*repo.RevenueRecord, error) {
	if !f.Tier.Valid() {
		return nil, fmt.Errorf("unknown tier %q", f.Tier)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repo.RevenueRecord
	for _, r := range s.records {
		if !ownedBy(r, f.Tier, f.OwnerID) {
			continue
		}
		if f.MerchantID != nil && r.MerchantID != *f.MerchantID {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		out = append(out, cloneRecord(r))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) ClaimRevenueRecords(_ context.Context, c repo.Claim) (repo.ClaimResult, error) {
	if !c.Tier.Valid() {
		return repo.ClaimResult{}, fmt.Errorf("unknown tier %q", c.Tier)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res := repo.ClaimResult{Total: decimal.Zero}
	for _, r := range s.records {
		if r.Claims[c.Tier].SettlementID != nil {
			continue
		}
		if !r.TierAmount(c.Tier).IsPositive() || !ownedBy(r, c.Tier, c.OwnerID) {
			continue
		}
		if r.PeriodStart.Before(c.Start) || !r.PeriodStart.Before(c.End) {
			continue
		}
		id := c.SettlementID
		r.Claims[c.Tier] = repo.TierClaim{SettlementID: &id}
		res.Count++
		res.Total = res.Total.Add(r.TierAmount(c.Tier))
	}
	return res, nil
}

func (s *Store) MarkTierPaid(_ context.Context, tier authorize.Tier, settlementID uuid.UUID, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.records {
		cl := r.Claims[tier]
		if cl.SettlementID == nil || *cl.SettlementID != settlementID {
			continue
		}
		paid := at
		cl.PaidAt = &paid
		r.Claims[tier] = cl
		n++
		if r.Status == repo.RecordPending {
			r.Status = repo.RecordPaid
			r.PaidAt = &paid
		}
	}
	return n, nil
}

func (s *Store) SumTier(_ context.Context, tier authorize.Tier, ownerID *uuid.UUID) (*repo.TierTotals, error) {
	if !tier.Valid() {
		return nil, fmt.Errorf("unknown tier %q", tier)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &repo.TierTotals{Gross: decimal.Zero, Earned: decimal.Zero, Paid: decimal.Zero, Unsettled: decimal.Zero}
	for _, r := range s.records {
		if !ownedBy(r, tier, ownerID) {
			continue
		}
		amt := r.TierAmount(tier)
		t.Records++
		t.Gross = t.Gross.Add(r.TotalAmount)
		t.Earned = t.Earned.Add(amt)
		cl := r.Claims[tier]
		if cl.PaidAt != nil {
			t.Paid = t.Paid.Add(amt)
		}
		if cl.SettlementID == nil {
			t.Unsettled = t.Unsettled.Add(amt)
		}
	}
	return t, nil
}

// Records returns a copy of every stored revenue record.
func (s *Store) Records() []*repo.RevenueRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*repo.RevenueRecord, len(s.records))
	for i, r := range s.records {
		out[i] = cloneRecord(r)
	}
	return out
}

// ----------------------------
// Settlements
// ----------------------------

func (s *Store) LockSettlementOwner(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Locks[key]++
	return nil
}

func (s *Store) HasOpenSettlement(_ context.Context, userID uuid.UUID, typ repo.SettlementType, start, end time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.settlements {
		if st.UserID == userID && st.Type == typ && st.Status.Open() &&
			st.PeriodStart.Before(end) && st.PeriodEnd.After(start) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) InsertSettlement(_ context.Context, st *repo.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.settlements {
		if o.Status.Open() && o.UserID == st.UserID && o.Type == st.Type &&
			o.PeriodStart.Equal(st.PeriodStart) && o.PeriodEnd.Equal(st.PeriodEnd) {
			return repo.ErrConflict
		}
	}
	c := *st
	s.settlements[st.ID] = &c
	return nil
}

func (s *Store) GetSettlement(_ context.Context, id uuid.UUID) (*repo.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settlements[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	out := *st
	return &out, nil
}

func (s *Store) GetSettlementForUpdate(ctx context.Context, id uuid.UUID) (*repo.Settlement, error) {
	return s.GetSettlement(ctx, id)
}

func (s *Store) UpdateSettlementStatus(_ context.Context, st *repo.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.settlements[st.ID]
	if !ok {
		return repo.ErrNotFound
	}
	cur.Status = st.Status
	cur.ApprovedAt, cur.ApprovedBy = st.ApprovedAt, st.ApprovedBy
	cur.PaidAt, cur.PaidBy = st.PaidAt, st.PaidBy
	cur.TransferStatus = st.TransferStatus
	cur.UpdatedAt = st.UpdatedAt
	return nil
}

func (s *Store) UpdateSettlementTransfer(_ context.Context, id uuid.UUID, status repo.TransferStatus, reference, failure *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.settlements[id]
	if !ok {
		return repo.ErrNotFound
	}
	cur.TransferStatus, cur.TransferReference, cur.TransferError = status, reference, failure
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ListSettlements(_ context.Context, f repo.SettlementFilter) ([]*repo.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repo.Settlement
	for _, st := range s.settlements {
		if f.UserID != nil && st.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && st.Status != *f.Status {
			continue
		}
		if f.Type != nil && st.Type != *f.Type {
			continue
		}
		c := *st
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PeriodStart.Equal(out[j].PeriodStart) {
			return out[i].PeriodStart.After(out[j].PeriodStart)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// ----------------------------
// Schedules
// ----------------------------

func (s *Store) UpsertSchedule(_ context.Context, sc *repo.Schedule) (*repo.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.schedules {
		if existing.Type == sc.Type && existing.TargetRole == sc.TargetRole {
			existing.Status = sc.Status
			if sc.NextRunAt != nil {
				existing.NextRunAt = sc.NextRunAt
			}
			existing.UpdatedAt = sc.UpdatedAt
			out := *existing
			return &out, nil
		}
	}
	c := *sc
	c.CreatedAt = sc.UpdatedAt
	s.schedules[c.ID] = &c
	out := c
	return &out, nil
}

func (s *Store) GetSchedule(_ context.Context, id uuid.UUID) (*repo.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.schedules[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	out := *sc
	return &out, nil
}

func (s *Store) ListSchedules(_ context.Context, f repo.ScheduleFilter) ([]*repo.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repo.Schedule
	for _, sc := range s.schedules {
		if f.Type != nil && sc.Type != *f.Type {
			continue
		}
		if f.Status != nil && sc.Status != *f.Status {
			continue
		}
		if f.DueBefore != nil && sc.NextRunAt != nil && sc.NextRunAt.After(*f.DueBefore) {
			continue
		}
		c := *sc
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].Type)+string(out[i].TargetRole) < string(out[j].Type)+string(out[j].TargetRole)
	})
	return out, nil
}

func (s *Store) AdvanceSchedule(_ context.Context, id uuid.UUID, ranAt, next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.schedules[id]
	if !ok || (sc.NextRunAt != nil && !sc.NextRunAt.Before(next)) {
		return repo.ErrStale
	}
	r, n := ranAt, next
	sc.LastRunAt, sc.NextRunAt, sc.UpdatedAt = &r, &n, ranAt
	return nil
}

func (s *Store) InsertScheduleRun(_ context.Context, r *repo.ScheduleRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *r
	s.runs = append(s.runs, &c)
	return nil
}

func (s *Store) ListScheduleRuns(_ context.Context, scheduleID uuid.UUID, limit int) ([]*repo.ScheduleRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repo.ScheduleRun
	for i := len(s.runs) - 1; i >= 0; i-- {
		if s.runs[i].ScheduleID == scheduleID {
			c := *s.runs[i]
			out = append(out, &c)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ----------------------------
// Influencers
// ----------------------------

func (s *Store) InsertInfluencer(_ context.Context, i *repo.Influencer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.influencers {
		if o.MemberID == i.MemberID || strings.EqualFold(o.ReferralCode, i.ReferralCode) {
			return repo.ErrConflict
		}
	}
	c := *i
	s.influencers[i.ID] = &c
	return nil
}

func (s *Store) GetInfluencerByMember(_ context.Context, memberID uuid.UUID) (*repo.Influencer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.influencers {
		if i.MemberID == memberID {
			out := *i
			return &out, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *Store) GetInfluencerByCode(_ context.Context, code string) (*repo.Influencer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.influencers {
		if i.ReferralCode == code {
			out := *i
			return &out, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *Store) InsertConversion(_ context.Context, c *repo.Conversion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.conversions = append(s.conversions, &cp)
	return nil
}

func (s *Store) AddInfluencerTotals(_ context.Context, id uuid.UUID, revenue, commission decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.influencers[id]
	if !ok {
		return repo.ErrNotFound
	}
	i.TotalConversions++
	i.TotalRevenue = i.TotalRevenue.Add(revenue)
	i.TotalCommission = i.TotalCommission.Add(commission)
	return nil
}

func (s *Store) SumConversions(_ context.Context, influencerID uuid.UUID, since time.Time) (*repo.ConversionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &repo.ConversionStats{Revenue: decimal.Zero, Commission: decimal.Zero}
	for _, c := range s.conversions {
		if c.InfluencerID != influencerID || c.ConvertedAt.Before(since) {
			continue
		}
		st.Conversions++
		st.Revenue = st.Revenue.Add(c.Amount)
		st.Commission = st.Commission.Add(c.Commission)
	}
	return st, nil
}

func (s *Store) ClaimConversions(_ context.Context, influencerID uuid.UUID, start, end time.Time, settlementID uuid.UUID) (repo.ClaimResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := repo.ClaimResult{Total: decimal.Zero}
	for _, c := range s.conversions {
		if c.InfluencerID != influencerID || c.SettlementID != nil || !c.Commission.IsPositive() {
			continue
		}
		if c.ConvertedAt.Before(start) || !c.ConvertedAt.Before(end) {
			continue
		}
		id := settlementID
		c.SettlementID = &id
		res.Count++
		res.Total = res.Total.Add(c.Commission)
	}
	return res, nil
}

func (s *Store) MarkConversionsPaid(_ context.Context, settlementID uuid.UUID, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, c := range s.conversions {
		if c.SettlementID != nil && *c.SettlementID == settlementID {
			t := at
			c.PaidAt = &t
			n++
		}
	}
	return n, nil
}

// ----------------------------
// Outbox
// ----------------------------

func (s *Store) InsertOutboxEvent(_ context.Context, e *repo.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *e
	c.Status = repo.OutboxPending
	c.Attempts = 0
	s.outbox = append(s.outbox, &c)
	return nil
}

func (s *Store) ClaimOutboxEvents(_ context.Context, now time.Time, lease time.Duration, limit int) ([]*repo.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*repo.OutboxEvent
	for _, e := range s.outbox {
		if limit > 0 && len(out) >= limit {
			break
		}
		due := e.Status == repo.OutboxPending && !e.AvailableAt.After(now)
		expired := e.Status == repo.OutboxProcessing && e.LockedUntil != nil && e.LockedUntil.Before(now)
		if !due && !expired {
			continue
		}
		until := now.Add(lease)
		e.Status, e.LockedUntil = repo.OutboxProcessing, &until
		e.Attempts++
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

func (s *Store) findOutbox(id uuid.UUID) *repo.OutboxEvent {
	for _, e := range s.outbox {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (s *Store) CompleteOutboxEvent(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.findOutbox(id)
	if e == nil {
		return repo.ErrNotFound
	}
	t := at
	e.Status, e.ProcessedAt, e.LockedUntil, e.LastError = repo.OutboxDone, &t, nil, nil
	return nil
}

func (s *Store) RetryOutboxEvent(_ context.Context, id uuid.UUID, availableAt time.Time, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.findOutbox(id)
	if e == nil {
		return repo.ErrNotFound
	}
	msg := lastErr
	e.Status, e.AvailableAt, e.LockedUntil, e.LastError = repo.OutboxPending, availableAt, nil, &msg
	return nil
}

func (s *Store) BuryOutboxEvent(_ context.Context, id uuid.UUID, at time.Time, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.findOutbox(id)
	if e == nil {
		return repo.ErrNotFound
	}
	t, msg := at, lastErr
	e.Status, e.ProcessedAt, e.LockedUntil, e.LastError = repo.OutboxDead, &t, nil, &msg
	return nil
}

// Outbox returns a copy of every queued event.
func (s *Store) Outbox() []*repo.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSlice(s.outbox)
}
