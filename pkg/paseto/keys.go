package pasetotoken

import (
	"strings"

	paseto "aidanwoods.dev/go-paseto"
)

type Mode string

const (
	ModeLocal  Mode = "local"  // v4.local, shared secret
	ModePublic Mode = "public" // v4.public, HQ signs and regions verify
)

// Keys carries the material for one mode; the fields of the other mode stay nil.
type Keys struct {
	Mode Mode

	Symmetric *paseto.V4SymmetricKey

	Secret *paseto.V4AsymmetricSecretKey
	Public *paseto.V4AsymmetricPublicKey
}

// CanIssue reports whether the keys can mint tokens. A public-only key set
// can verify but not issue.
func (k Keys) CanIssue() bool {
	switch k.Mode {
	case ModeLocal:
		return k.Symmetric != nil
	case ModePublic:
		return k.Secret != nil
	}
	return false
}

type KeyStrings struct {
	Mode Mode

	SymmetricHex string
	SecretHex    string
	PublicHex    string
}

func LoadKeys(in KeyStrings) (Keys, error) {
	switch in.Mode {
	case ModeLocal:
		return loadLocal(strings.TrimSpace(in.SymmetricHex))
	case ModePublic:
		return loadPublic(strings.TrimSpace(in.SecretHex), strings.TrimSpace(in.PublicHex))
	default:
		return Keys{}, ErrConfig{Msg: "unknown mode " + string(in.Mode) + " (use local|public)"}
	}
}

func loadLocal(symHex string) (Keys, error) {
	if symHex == "" {
		return Keys{}, ErrConfig{Msg: "local mode requires local_key_hex"}
	}
	k, err := paseto.V4SymmetricKeyFromHex(symHex)
	if err != nil {
		return Keys{}, ErrConfig{Msg: "local_key_hex", Err: err}
	}
	return Keys{Mode: ModeLocal, Symmetric: &k}, nil
}

// loadPublic accepts a secret key (public half derived), a public key for
// verify-only deployments, or both. An explicit public key wins.
func loadPublic(secHex, pubHex string) (Keys, error) {
	out := Keys{Mode: ModePublic}
	if secHex != "" {
		sk, err := paseto.NewV4AsymmetricSecretKeyFromHex(secHex)
		if err != nil {
			return Keys{}, ErrConfig{Msg: "secret_key_hex", Err: err}
		}
		pk := sk.Public()
		out.Secret, out.Public = &sk, &pk
	}
	if pubHex != "" {
		pk, err := paseto.NewV4AsymmetricPublicKeyFromHex(pubHex)
		if err != nil {
			return Keys{}, ErrConfig{Msg: "public_key_hex", Err: err}
		}
		out.Public = &pk
	}
	if out.Public == nil {
		return Keys{}, ErrConfig{Msg: "public mode requires secret_key_hex or public_key_hex"}
	}
	return out, nil
}

func NewLocalKeys() Keys {
	k := paseto.NewV4SymmetricKey()
	return Keys{Mode: ModeLocal, Symmetric: &k}
}

func NewPublicKeys() Keys {
	sk := paseto.NewV4AsymmetricSecretKey()
	pk := sk.Public()
	return Keys{Mode: ModePublic, Secret: &sk, Public: &pk}
}
