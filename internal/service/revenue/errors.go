package revenue

import "errors"

var (
	ErrMerchantNotFound = errors.New("merchant not found")
	ErrInvalidAmount    = errors.New("amount must be positive and representable in the currency unit")
	ErrRuleChanged      = errors.New("commission rule changed while distributing")
)
