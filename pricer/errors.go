package pricer

import "errors"

var (
	ErrExpiryInPast  = errors.New("pricer: expiry must be in the future")
	ErrExpiryTooFar  = errors.New("pricer: expiry too far in the future")
	ErrVolOutOfRange = errors.New("pricer: volatility out of range")

	// Degenerate inputs to the d1/d2 terms, kept distinct so callers can
	// diagnose which argument was invalid.
	ErrZeroSqrtTerm = errors.New("pricer: sqrt time term is zero")
	ErrZeroSpot     = errors.New("pricer: spot price is zero")
	ErrZeroStrike   = errors.New("pricer: strike price is zero")
)
