package settlement

import "errors"

var (
	ErrSettlementNotFound   = errors.New("settlement not found")
	ErrNothingToSettle      = errors.New("nothing to settle for the period")
	ErrDuplicatePeriod      = errors.New("an open settlement already covers an overlapping period")
	ErrNotPending           = errors.New("settlement is not pending")
	ErrNotApproved          = errors.New("settlement is not approved")
	ErrInvalidTransition    = errors.New("invalid settlement transition")
	ErrInvalidPeriod        = errors.New("period start must be before period end")
	ErrInvalidType          = errors.New("unknown settlement type")
	ErrNoTier               = errors.New("caller owns no commission tier")
	ErrNotInfluencer        = errors.New("caller is not a registered influencer")
	ErrTransferNotRetryable = errors.New("transfer can only be retried for paid settlements whose transfer failed")
)
