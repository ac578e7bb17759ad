package directory

import "errors"

var (
	ErrMerchantNotFound   = errors.New("merchant not found")
	ErrMemberNotFound     = errors.New("member not found")
	ErrInvalidMerchant    = errors.New("invalid merchant")
	ErrInvalidMember      = errors.New("invalid member")
	ErrInvalidPhone       = errors.New("invalid phone number")
	ErrAncestorRole       = errors.New("ancestor does not hold the expected role")
	ErrEncryptionDisabled = errors.New("payout accounts require authentication.encryption_key")
)
