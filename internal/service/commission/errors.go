package commission

import "errors"

var (
	ErrRuleNotFound = errors.New("no commission rule matches the scope")
	ErrInvalidRates = errors.New("commission rates must be non-negative, have at most 4 decimals and sum to 100")
)
