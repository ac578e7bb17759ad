package pasetotoken

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/google/uuid"

	"github.com/Alijeyrad/franchise_backend/config"
	"github.com/Alijeyrad/franchise_backend/pkg/authorize"
)

type Config struct {
	Mode Mode

	Issuer   string
	Audience string

	AccessTTL time.Duration

	Implicit []byte
}

type Manager struct {
	cfg  Config
	keys Keys
}

// NewFromConfig creates a PASETO manager from the authentication section.
func NewFromConfig(cfg *config.Config) (*Manager, error) {
	p := cfg.Authentication.Paseto
	mode := Mode(strings.ToLower(p.Mode))
	if mode == "" {
		mode = ModeLocal
	}

	keys, err := LoadKeys(KeyStrings{
		Mode:         mode,
		SymmetricHex: p.LocalKeyHex,
		SecretHex:    p.SecretKeyHex,
		PublicHex:    p.PublicKeyHex,
	})
	if err != nil {
		return nil, err
	}

	return New(Config{
		Mode:      mode,
		Issuer:    p.Issuer,
		Audience:  p.Audience,
		AccessTTL: time.Duration(p.AccessTTLMinutes) * time.Minute,
	}, keys)
}

func New(cfg Config, keys Keys) (*Manager, error) {
	if cfg.Mode != keys.Mode {
		return nil, ErrConfig{Msg: "cfg.Mode must match keys.Mode"}
	}
	if cfg.Issuer == "" {
		return nil, ErrConfig{Msg: "Issuer is required"}
	}
	if cfg.Audience == "" {
		return nil, ErrConfig{Msg: "Audience is required"}
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	return &Manager{cfg: cfg, keys: keys}, nil
}

// parser is rebuilt per call so the time rules use the current clock.
func (m *Manager) parser() paseto.Parser {
	p := paseto.NewParser()
	p.AddRule(paseto.IssuedBy(m.cfg.Issuer))
	p.AddRule(paseto.ForAudience(m.cfg.Audience))
	p.AddRule(paseto.NotExpired())
	p.AddRule(paseto.ValidAt(time.Now()))
	return p
}

// IssueAccess mints a token for id. The franchise backend only verifies
// tokens in production; issuing exists for the seed command and tests.
func (m *Manager) IssueAccess(id Identity) (string, error) {
	if !id.Role.Valid() {
		return "", ErrConfig{Msg: fmt.Sprintf("unknown role %q", id.Role)}
	}
	now := time.Now()

	tok := paseto.NewToken()
	tok.SetIssuer(m.cfg.Issuer)
	tok.SetAudience(m.cfg.Audience)
	tok.SetJti(randHex(16))
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(now.Add(m.cfg.AccessTTL))
	tok.SetSubject(id.UserID.String())

	tok.SetString("uid", id.UserID.String())
	tok.SetString("role", string(id.Role))
	if id.RegionCode != "" {
		tok.SetString("region", id.RegionCode)
	}
	if id.SessionID != nil {
		tok.SetString("sid", id.SessionID.String())
	}

	switch m.cfg.Mode {
	case ModeLocal:
		if m.keys.Symmetric == nil {
			return "", ErrConfig{Msg: "missing symmetric key"}
		}
		return tok.V4Encrypt(*m.keys.Symmetric, m.cfg.Implicit), nil
	case ModePublic:
		if m.keys.Secret == nil {
			return "", ErrConfig{Msg: "missing secret key"}
		}
		return tok.V4Sign(*m.keys.Secret, m.cfg.Implicit), nil
	default:
		return "", ErrConfig{Msg: "unknown mode"}
	}
}

func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	var (
		tok *paseto.Token
		err error
	)

	switch m.cfg.Mode {
	case ModeLocal:
		if m.keys.Symmetric == nil {
			return nil, ErrConfig{Msg: "missing symmetric key"}
		}
		tok, err = m.parser().ParseV4Local(*m.keys.Symmetric, tokenStr, m.cfg.Implicit)
	case ModePublic:
		if m.keys.Public == nil {
			return nil, ErrConfig{Msg: "missing public key"}
		}
		tok, err = m.parser().ParseV4Public(*m.keys.Public, tokenStr, m.cfg.Implicit)
	default:
		return nil, ErrConfig{Msg: "unknown mode"}
	}
	if err != nil {
		return nil, ErrInvalidToken{Err: err}
	}

	claims, err := extractClaims(tok, m.cfg.Issuer, m.cfg.Audience)
	if err != nil {
		return nil, ErrInvalidToken{Err: err}
	}
	return claims, nil
}

func randHex(nBytes int) string {
	b := make([]byte, nBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func extractClaims(tok *paseto.Token, iss, aud string) (*Claims, error) {
	jti, err := tok.GetJti()
	if err != nil {
		return nil, err
	}
	sub, err := tok.GetSubject()
	if err != nil {
		return nil, err
	}
	iat, err := tok.GetIssuedAt()
	if err != nil {
		return nil, err
	}
	nbf, err := tok.GetNotBefore()
	if err != nil {
		return nil, err
	}
	exp, err := tok.GetExpiration()
	if err != nil {
		return nil, err
	}

	out := &Claims{
		Issuer:    iss,
		Audience:  aud,
		TokenID:   jti,
		Subject:   sub,
		IssuedAt:  iat,
		NotBefore: nbf,
		ExpiresAt: exp,
	}

	uidStr, err := tok.GetString("uid")
	if err != nil {
		return nil, err
	}
	if out.UserID, err = uuid.Parse(uidStr); err != nil {
		return nil, err
	}

	role, err := tok.GetString("role")
	if err != nil {
		return nil, err
	}
	out.Role = authorize.Role(role)
	if !out.Role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	// region and sid are optional
	if region, err := tok.GetString("region"); err == nil {
		out.RegionCode = region
	}
	if sidStr, err := tok.GetString("sid"); err == nil {
		sid, err := uuid.Parse(sidStr)
		if err != nil {
			return nil, err
		}
		out.SessionID = &sid
	}

	return out, nil
}
