// Package welford implements the sliding-window variant of Welford's online
// mean/variance algorithm over fixed-point log returns. The functions are
// pure: they operate on explicit state and return new state, so a failed
// update never corrupts an accumulator.
package welford

import (
	"errors"

	"vol-oracle-go/fixedpoint"
)

const (
	// MaxAbsMean bounds the running mean so every product in an update
	// stays well inside int64.
	MaxAbsMean = int64(1) << 47
	// MaxDSQ bounds the sum of squared deviations.
	MaxDSQ = int64(1) << 62
)

var (
	ErrZeroCount      = errors.New("welford: count must be positive")
	ErrNegativeDSQ    = errors.New("welford: negative dsq")
	ErrMeanOutOfRange = errors.New("welford: mean out of range")
	ErrDSQOutOfRange  = errors.New("welford: dsq out of range")
)

// Update folds one observation into the running mean and sum of squared
// deviations. count is the number of valid observations after the insertion,
// capped at the window size. A zero evicted value marks an empty slot: the
// slot being overwritten was never filled, so the standard Welford step with
// denominator count applies. A non-zero evicted value means the window is
// full; count then equals the window size and the windowed adjustment both
// adds the new observation and removes the evicted one.
//
// All divisions truncate toward zero. A negative dsq is a numerical-invariant
// violation and is reported, never clamped: silently zeroing it would corrupt
// every future variance.
func Update(count int64, evicted, newValue, curMean, curDSQ int64) (mean, dsq int64, err error) {
	if count <= 0 {
		return 0, 0, ErrZeroCount
	}
	if evicted == 0 {
		delta := newValue - curMean
		mean = curMean + delta/count
		dsq = curDSQ + delta*(newValue-mean)
	} else {
		diff := newValue - evicted
		mean = curMean + diff/count
		dsq = curDSQ + diff*(newValue+evicted-mean-curMean)
	}
	if dsq < 0 {
		return 0, 0, ErrNegativeDSQ
	}
	if dsq > MaxDSQ {
		return 0, 0, ErrDSQOutOfRange
	}
	if mean > MaxAbsMean || mean < -MaxAbsMean {
		return 0, 0, ErrMeanOutOfRange
	}
	return mean, dsq, nil
}

// Variance returns dsq/count, truncating toward zero. count must be positive
// for a meaningful result; a non-positive count yields zero.
func Variance(count, dsq int64) int64 {
	if count <= 0 {
		return 0
	}
	return dsq / count
}

// Stdev returns the floor square root of the variance, in the same 1e8
// domain as the observations.
func Stdev(count, dsq int64) int64 {
	return fixedpoint.Sqrt(Variance(count, dsq))
}
