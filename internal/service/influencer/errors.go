package influencer

import "errors"

var (
	ErrAlreadyRegistered = errors.New("member is already registered as an influencer")
	ErrNotRegistered     = errors.New("influencer registration required")
	ErrUnknownCode       = errors.New("unknown referral code")
	ErrSuspended         = errors.New("influencer is suspended")
	ErrInvalidAmount     = errors.New("conversion amount must not be negative")
	ErrInvalidInput      = errors.New("invalid influencer input")
)
