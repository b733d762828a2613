package oracle

import "errors"

var (
	ErrNotInitialized     = errors.New("oracle: instrument not initialized")
	ErrAlreadyInitialized = errors.New("oracle: instrument already initialized")
	ErrNotCommitPhase     = errors.New("oracle: not commit phase")
	ErrAlreadyCommitted   = errors.New("oracle: already committed this period")
	ErrPriceUnavailable   = errors.New("oracle: price unavailable")
	ErrUnauthorized       = errors.New("oracle: caller not authorized")
	ErrVolOutOfBounds     = errors.New("oracle: annualized vol outside guard rails")

	// ErrLogReturnOutOfRange guards the estimator's int64 headroom: one
	// observation may not exceed ±1000% in log terms.
	ErrLogReturnOutOfRange = errors.New("oracle: log return out of range")
)

// IsExpectedCommitSkip reports whether a commit rejection is part of the
// normal cadence between period boundaries rather than a fault.
func IsExpectedCommitSkip(err error) bool {
	return errors.Is(err, ErrNotCommitPhase) || errors.Is(err, ErrAlreadyCommitted)
}
