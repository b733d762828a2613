// Package oracle maintains a rolling realized-volatility estimate per
// instrument. Observations are accepted through a time-gated commit: at most
// one price sample per period, only within the commit phase around a period
// boundary. The estimator itself is the pure welford package; this package
// owns the state, the gating and the collaborator boundaries.
package oracle

import (
	"errors"
	"fmt"
	"sync"

	"vol-oracle-go/fixedpoint"
	"vol-oracle-go/welford"
)

// PriceSource supplies the current 1e8 fixed-point price for an instrument.
// The oracle treats it as synchronous and side-effect free; the upstream
// TWAP/feed mechanics are not its concern.
type PriceSource interface {
	GetPrice(instrument string) (int64, error)
}

// Authorizer gates the manual override path.
type Authorizer interface {
	Authorize(caller string) bool
}

// EventSink receives audit events for state mutations.
type EventSink func(event string, fields map[string]interface{})

// Recorder receives operational metrics for commits.
type Recorder interface {
	CommitAccepted(instrument string, annualizedVol int64, boundary int64)
	CommitRejected(instrument, reason string)
}

const (
	secondsPerYear = int64(31_536_000)

	// MaxLogReturn bounds a single observation so every product in the
	// Welford update stays inside int64.
	MaxLogReturn = int64(1_000_000_000)

	// Manual override guard rails, 1e8 scale: 50% and 400% inclusive.
	MinManualVol = int64(50_000_000)
	MaxManualVol = int64(400_000_000)
)

// Config fixes the commit cadence and window geometry.
type Config struct {
	Period              int64 // seconds per observation period
	CommitPhaseDuration int64 // seconds around a boundary in which commits land
	WindowSize          int   // observations retained
}

type instrumentState struct {
	mu  sync.Mutex
	acc Accumulator

	// manualVol, when non-zero, overrides the reported annualized vol until
	// the next accepted commit.
	manualVol int64
}

// Oracle owns one Accumulator per initialized instrument. Commits for
// different instruments proceed independently; commits for the same
// instrument serialize on the per-instrument lock.
type Oracle struct {
	period        int64
	commitPhase   int64
	windowSize    int
	annualization int64 // isqrt(secondsPerYear / period)

	clock  Clock
	source PriceSource
	auth   Authorizer
	sink   EventSink
	rec    Recorder

	mu          sync.RWMutex
	instruments map[string]*instrumentState
}

// New builds an oracle from cfg and a price source. The annualization
// constant is fixed here, once, from the period length.
func New(cfg Config, source PriceSource) (*Oracle, error) {
	if cfg.Period <= 0 {
		return nil, errors.New("oracle: period must be positive")
	}
	if cfg.CommitPhaseDuration <= 0 || cfg.CommitPhaseDuration*2 > cfg.Period {
		return nil, errors.New("oracle: commit phase must be positive and at most half the period")
	}
	if cfg.WindowSize <= 0 {
		return nil, errors.New("oracle: window size must be positive")
	}
	if source == nil {
		return nil, errors.New("oracle: price source is required")
	}
	return &Oracle{
		period:        cfg.Period,
		commitPhase:   cfg.CommitPhaseDuration,
		windowSize:    cfg.WindowSize,
		annualization: fixedpoint.Sqrt(secondsPerYear / cfg.Period),
		clock:         SystemClock,
		source:        source,
		instruments:   make(map[string]*instrumentState),
	}, nil
}

func (o *Oracle) SetClock(c Clock) {
	if c != nil {
		o.clock = c
	}
}

func (o *Oracle) SetAuthorizer(a Authorizer) { o.auth = a }

func (o *Oracle) SetEventSink(s EventSink) { o.sink = s }

func (o *Oracle) SetRecorder(r Recorder) { o.rec = r }

// SetCommitPhaseDuration adjusts the commit window at runtime, under the same
// bounds New enforces. The period and window geometry stay fixed for the life
// of the oracle.
func (o *Oracle) SetCommitPhaseDuration(d int64) error {
	if d <= 0 || d*2 > o.period {
		return errors.New("oracle: commit phase must be positive and at most half the period")
	}
	o.mu.Lock()
	o.commitPhase = d
	o.mu.Unlock()
	return nil
}

func (o *Oracle) commitPhaseDuration() int64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.commitPhase
}

// AnnualizationConstant exposes the fixed sqrt(secondsPerYear/period) factor.
func (o *Oracle) AnnualizationConstant() int64 { return o.annualization }

// Initialize allocates the observation window for an instrument. It must be
// called exactly once per instrument before the first commit.
func (o *Oracle) Initialize(instrument string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.instruments[instrument]; ok {
		return ErrAlreadyInitialized
	}
	o.instruments[instrument] = &instrumentState{acc: newAccumulator(o.windowSize)}
	return nil
}

// Commit folds one price sample into the instrument's rolling window. On any
// failure the accumulator is left untouched: all new values are computed and
// validated before the first field is assigned.
func (o *Oracle) Commit(instrument, caller string) error {
	err := o.commit(instrument, caller)
	if err != nil && o.rec != nil {
		o.rec.CommitRejected(instrument, rejectReason(err))
	}
	return err
}

func (o *Oracle) commit(instrument, caller string) error {
	st, err := o.state(instrument)
	if err != nil {
		return err
	}

	now := o.clock.Now().Unix()
	phase := o.commitPhaseDuration()
	boundary, gap := o.nearestBoundary(now)
	if gap >= phase {
		return ErrNotCommitPhase
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	acc := &st.acc

	if acc.LastTimestamp != 0 && now < acc.LastTimestamp+o.period-phase {
		return ErrAlreadyCommitted
	}

	price, err := o.source.GetPrice(instrument)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, instrument, err)
	}
	if price <= 0 {
		return ErrPriceUnavailable
	}

	// First observation has no prior price; its log return is zero.
	logReturn := int64(0)
	if acc.LastPrice > 0 {
		lnWad, err := fixedpoint.LnRatioWad(price, acc.LastPrice)
		if err != nil {
			return err
		}
		logReturn = fixedpoint.FloorDiv(lnWad, fixedpoint.WadToReturn)
	}
	if logReturn > MaxLogReturn || logReturn < -MaxLogReturn {
		return ErrLogReturnOutOfRange
	}

	count := acc.Count
	if count < acc.WindowSize {
		count++
	}
	evicted := acc.Observations[acc.CurrentIndex]
	mean, dsq, err := welford.Update(int64(count), evicted, logReturn, acc.Mean, acc.DSQ)
	if err != nil {
		return err
	}

	acc.Observations[acc.CurrentIndex] = logReturn
	acc.CurrentIndex = (acc.CurrentIndex + 1) % acc.WindowSize
	acc.Count = count
	acc.Mean = mean
	acc.DSQ = dsq
	acc.LastTimestamp = boundary
	acc.LastPrice = price
	st.manualVol = 0

	annualized := welford.Stdev(int64(count), dsq) * o.annualization
	if o.rec != nil {
		o.rec.CommitAccepted(instrument, annualized, boundary)
	}
	o.emit("commit", map[string]interface{}{
		"instrument": instrument,
		"caller":     caller,
		"price":      price,
		"log_return": logReturn,
		"mean":       mean,
		"dsq":        dsq,
		"timestamp":  boundary,
	})
	return nil
}

// Vol returns the per-period standard deviation at 1e8 scale. It is zero
// until the first commit.
func (o *Oracle) Vol(instrument string) (int64, error) {
	st, err := o.state(instrument)
	if err != nil {
		return 0, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.acc.Count == 0 {
		return 0, nil
	}
	return welford.Stdev(int64(st.acc.Count), st.acc.DSQ), nil
}

// AnnualizedVol returns the annualized standard deviation at 1e8 scale
// (1e8 = 100%). A pending manual override takes precedence.
func (o *Oracle) AnnualizedVol(instrument string) (int64, error) {
	st, err := o.state(instrument)
	if err != nil {
		return 0, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.manualVol > 0 {
		return st.manualVol, nil
	}
	if st.acc.Count == 0 {
		return 0, nil
	}
	return welford.Stdev(int64(st.acc.Count), st.acc.DSQ) * o.annualization, nil
}

// SetAnnualizedVol installs a manual annualized-vol override. The caller must
// pass the authorizer and the value must sit inside the 50%-400% guard
// rails; the override lasts until the next accepted commit.
func (o *Oracle) SetAnnualizedVol(caller, instrument string, vol int64) error {
	if o.auth == nil || !o.auth.Authorize(caller) {
		return ErrUnauthorized
	}
	if vol < MinManualVol || vol > MaxManualVol {
		return ErrVolOutOfBounds
	}
	st, err := o.state(instrument)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.manualVol = vol
	st.mu.Unlock()
	o.emit("manual_vol", map[string]interface{}{
		"instrument": instrument,
		"caller":     caller,
		"vol":        vol,
	})
	return nil
}

// Snapshot returns a copy of the instrument's accumulator for tooling and
// observability.
func (o *Oracle) Snapshot(instrument string) (Accumulator, error) {
	st, err := o.state(instrument)
	if err != nil {
		return Accumulator{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.acc.snapshot(), nil
}

func (o *Oracle) state(instrument string) (*instrumentState, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	st, ok := o.instruments[instrument]
	if !ok {
		return nil, ErrNotInitialized
	}
	return st, nil
}

// nearestBoundary returns the multiple of the period closest to now, and the
// distance to it. The two-sided window tolerates scheduling jitter on either
// side of the boundary.
func (o *Oracle) nearestBoundary(now int64) (boundary, gap int64) {
	rem := now % o.period
	if rem < o.period-rem {
		return now - rem, rem
	}
	return now - rem + o.period, o.period - rem
}

func (o *Oracle) emit(event string, fields map[string]interface{}) {
	if o.sink != nil {
		o.sink(event, fields)
	}
}

// rejectReason maps a commit error onto a short stable tag for metrics
// labels.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, ErrNotCommitPhase):
		return "not_commit_phase"
	case errors.Is(err, ErrAlreadyCommitted):
		return "already_committed"
	case errors.Is(err, ErrPriceUnavailable):
		return "price_unavailable"
	case errors.Is(err, ErrLogReturnOutOfRange):
		return "log_return_out_of_range"
	case errors.Is(err, welford.ErrNegativeDSQ):
		return "negative_dsq"
	case errors.Is(err, welford.ErrDSQOutOfRange), errors.Is(err, welford.ErrMeanOutOfRange):
		return "accumulator_out_of_range"
	default:
		return "error"
	}
}
