// Package directory keeps the merchant and member network in sync with the
// upstream franchise system.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/internal/repo"
	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
	"github.com/Alijeyrad/franchise_backend/pkg/constants"
	"github.com/Alijeyrad/franchise_backend/pkg/crypto"
)

type MerchantInput struct {
	Name       string              `json:"name"`
	Category   string              `json:"category"`
	RegionCode string              `json:"region_code"`
	DealerID   *uuid.UUID          `json:"dealer_id"`
	AgencyID   *uuid.UUID          `json:"agency_id"`
	BranchID   *uuid.UUID          `json:"branch_id"`
	Status     repo.MerchantStatus `json:"status"`
}

type MemberInput struct {
	Name          string            `json:"name"`
	Role          authorize.Role    `json:"role"`
	RegionCode    string            `json:"region_code"`
	ParentID      *uuid.UUID        `json:"parent_id"`
	Status        repo.MemberStatus `json:"status"`
	Email         string            `json:"email"`
	Phone         string            `json:"phone"`
	PayoutAccount string            `json:"payout_account"`
}

type Service interface {
	// UpsertMerchant creates or re-parents a merchant. Revenue already
	// recorded keeps the chain frozen into it.
	UpsertMerchant(ctx context.Context, caller authorize.Caller, id uuid.UUID, in MerchantInput) (*repo.Merchant, error)
	UpsertMember(ctx context.Context, caller authorize.Caller, id uuid.UUID, in MemberInput) (*repo.Member, error)
	GetMember(ctx context.Context, caller authorize.Caller, id uuid.UUID) (*repo.Member, error)
	// PayoutAccount returns the decrypted payout account of a member.
	PayoutAccount(ctx context.Context, memberID uuid.UUID) (string, error)
}

type Store interface {
	GetMerchant(ctx context.Context, id uuid.UUID) (*repo.Merchant, error)
	UpsertMerchant(ctx context.Context, m *repo.Merchant) (*repo.Merchant, error)
	GetMember(ctx context.Context, id uuid.UUID) (*repo.Member, error)
	UpsertMember(ctx context.Context, m *repo.Member) (*repo.Member, error)
}

type directoryService struct {
	store Store
	key   []byte
	now   func() time.Time
}

// New returns the directory service. A malformed encryption key is a
// configuration error; an empty one disables payout account storage.
func New(store Store, cfg *config.Config) (Service, error) {
	s := &directoryService{store: store, now: func() time.Time { return time.Now().UTC() }}
	if hexKey := cfg.Authentication.EncryptionKey; hexKey != "" {
		key, err := crypto.KeyFromHex(hexKey)
		if err != nil {
			return nil, fmt.Errorf("directory: %w", err)
		}
		s.key = key
	}
	return s, nil
}

// NormalizePhone returns the E.164 form of raw. Numbers without a country
// code are read as DefaultPhoneRegion numbers.
func NormalizePhone(raw string) (string, error) {
	num, err := phonenumbers.Parse(strings.TrimSpace(raw), constants.DefaultPhoneRegion)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func (s *directoryService) checkAncestor(ctx context.Context, id *uuid.UUID, role authorize.Role) error {
	if id == nil {
		return nil
	}
	m, err := s.store.GetMember(ctx, *id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s %s", ErrMemberNotFound, role, id)
		}
		return err
	}
	if m.Role != role {
		return fmt.Errorf("%w: %s is %s, want %s", ErrAncestorRole, id, m.Role, role)
	}
	return nil
}

func (s *directoryService) UpsertMerchant(ctx context.Context, caller authorize.Caller, id uuid.UUID, in MerchantInput) (*repo.Merchant, error) {
	if err := caller.Require(authorize.RoleHQ); err != nil {
		return nil, err
	}
	in.Name, in.Category, in.RegionCode = strings.TrimSpace(in.Name), strings.TrimSpace(in.Category), strings.TrimSpace(in.RegionCode)
	if id == uuid.Nil || in.Name == "" || in.Category == "" || in.RegionCode == "" {
		return nil, fmt.Errorf("%w: id, name, category and region_code are required", ErrInvalidMerchant)
	}
	switch in.Status {
	case "":
		in.Status = repo.MerchantActive
	case repo.MerchantPending, repo.MerchantActive, repo.MerchantSuspended:
	default:
		return nil, fmt.Errorf("%w: status %q", ErrInvalidMerchant, in.Status)
	}

	for _, a := range []struct {
		id   *uuid.UUID
		role authorize.Role
	}{
		{in.DealerID, authorize.RoleDealer},
		{in.AgencyID, authorize.RoleAgency},
		{in.BranchID, authorize.RoleBranch},
	} {
		if err := s.checkAncestor(ctx, a.id, a.role); err != nil {
			return nil, err
		}
	}

	m, err := s.store.UpsertMerchant(ctx, &repo.Merchant{
		ID:         id,
		Name:       in.Name,
		Category:   in.Category,
		RegionCode: in.RegionCode,
		DealerID:   in.DealerID,
		AgencyID:   in.AgencyID,
		BranchID:   in.BranchID,
		Status:     in.Status,
		UpdatedAt:  s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("upsert merchant %s: %w", id, err)
	}
	slog.Info("merchant synced", "merchant_id", id, "category", m.Category, "region", m.RegionCode)
	return m, nil
}

func (s *directoryService) UpsertMember(ctx context.Context, caller authorize.Caller, id uuid.UUID, in MemberInput) (*repo.Member, error) {
	if err := caller.Require(authorize.RoleHQ); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if id == uuid.Nil || in.Name == "" || !in.Role.Valid() {
		return nil, fmt.Errorf("%w: id, name and a known role are required", ErrInvalidMember)
	}
	switch in.Status {
	case "":
		in.Status = repo.MemberActive
	case repo.MemberActive, repo.MemberInactive:
	default:
		return nil, fmt.Errorf("%w: status %q", ErrInvalidMember, in.Status)
	}

	m := &repo.Member{
		ID:         id,
		Name:       in.Name,
		Role:       in.Role,
		RegionCode: strings.TrimSpace(in.RegionCode),
		ParentID:   in.ParentID,
		Status:     in.Status,
		Email:      strings.ToLower(strings.TrimSpace(in.Email)),
		UpdatedAt:  s.now(),
	}
	if in.Phone != "" {
		phone, err := NormalizePhone(in.Phone)
		if err != nil {
			return nil, err
		}
		m.Phone = phone
	}
	if acct := strings.TrimSpace(in.PayoutAccount); acct != "" {
		if s.key == nil {
			return nil, ErrEncryptionDisabled
		}
		enc, err := crypto.Encrypt(s.key, acct, id[:])
		if err != nil {
			return nil, fmt.Errorf("encrypt payout account: %w", err)
		}
		m.PayoutAccount = enc
	}

	out, err := s.store.UpsertMember(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("upsert member %s: %w", id, err)
	}
	slog.Info("member synced", "member_id", id, "role", out.Role, "region", out.RegionCode)
	return out, nil
}

func (s *directoryService) GetMember(ctx context.Context, caller authorize.Caller, id uuid.UUID) (*repo.Member, error) {
	if caller.UserID != id {
		if err := caller.Require(authorize.RoleHQ); err != nil {
			return nil, err
		}
	}
	m, err := s.store.GetMember(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("get member %s: %w", id, err)
	}
	return m, nil
}

func (s *directoryService) PayoutAccount(ctx context.Context, memberID uuid.UUID) (string, error) {
	m, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrMemberNotFound
		}
		return "", err
	}
	if m.PayoutAccount == "" {
		return "", nil
	}
	if s.key == nil {
		return "", ErrEncryptionDisabled
	}
	return crypto.Decrypt(s.key, m.PayoutAccount, m.ID[:])
}
