// Package pricer computes European option premiums and deltas from the
// oracle's annualized volatility, entirely in fixed-point integer arithmetic
// (zero-rate Black-Scholes). Prices and premiums are 1e8-scaled, d1/d2 and
// CDF intermediates wad-scaled, deltas 1e4-scaled.
package pricer

import (
	"math/big"
	"time"

	"vol-oracle-go/fixedpoint"
)

// VolSource yields the annualized volatility for an instrument, 1e8 scale.
type VolSource interface {
	AnnualizedVol(instrument string) (int64, error)
}

// PriceSource supplies the 1e8 spot price of the underlying.
type PriceSource interface {
	GetPrice(instrument string) (int64, error)
}

// Clock abstracts time for expiry checks.
type Clock interface {
	Now() time.Time
}

// Recorder receives a tick per served quote.
type Recorder interface {
	QuoteServed(side string)
}

const (
	daysPerYear   = int64(365)
	secondsPerDay = int64(86_400)

	// volToWad lifts a 1e8 volatility into the wad domain.
	volToWad = fixedpoint.WadScale / fixedpoint.PriceScale
	// probToDelta divides a 1e14 probability down to the 1e4 delta domain.
	probToDelta = fixedpoint.ProbScale / fixedpoint.DeltaScale

	// maxDaysToExpiry and maxPricingVol keep every intermediate inside
	// int64: two years at the oracle's own 400% vol rail is the worst case
	// the wad math is sized for.
	maxDaysToExpiry = 2 * daysPerYear
	maxPricingVol   = int64(400_000_000)

	// maxDWad saturates d1/d2 outside the CDF's resolving range. The CDF is
	// pinned at 0 or 1 well before 9 sigma, and 9 wad is the widest clamp
	// int64 can carry.
	maxDWad = 9 * fixedpoint.WadScale
)

// Config fixes the instrument and the decimal scaling of returned premiums.
// Call premiums are denominated in the underlying asset, put premiums in the
// quote asset; the decimals select the token units at the boundary.
type Config struct {
	Instrument         string
	UnderlyingDecimals int
	QuoteDecimals      int
}

type Pricer struct {
	cfg   Config
	vols  VolSource
	spots PriceSource
	clock Clock
	rec   Recorder
}

func New(cfg Config, vols VolSource, spots PriceSource) *Pricer {
	return &Pricer{cfg: cfg, vols: vols, spots: spots, clock: systemClock{}}
}

func (p *Pricer) SetClock(c Clock) {
	if c != nil {
		p.clock = c
	}
}

func (p *Pricer) SetRecorder(r Recorder) { p.rec = r }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// GetPremium quotes one side of the option. The premium is returned in the
// smallest unit of the premium asset: the underlying for calls, the quote
// asset for puts.
func (p *Pricer) GetPremium(strike, expiry int64, isPut bool) (int64, error) {
	if strike <= 0 {
		return 0, ErrZeroStrike
	}
	spot, vol, days, err := p.blackScholesParams(expiry)
	if err != nil {
		return 0, err
	}
	call, put, err := quoteAll(days, vol, spot, strike)
	if err != nil {
		return 0, err
	}
	if isPut {
		if p.rec != nil {
			p.rec.QuoteServed("put")
		}
		return fixedpoint.MulDiv(put, fixedpoint.Pow10(p.cfg.QuoteDecimals), fixedpoint.PriceScale), nil
	}
	if p.rec != nil {
		p.rec.QuoteServed("call")
	}
	return fixedpoint.MulDiv(call, fixedpoint.Pow10(p.cfg.UnderlyingDecimals), spot), nil
}

// GetOptionDelta returns the call delta at 1e4 scale (8100 = 0.81). When the
// strike dominates the spot the prices are swapped for numeric stability and
// the result recovered through d2(K,S) = -d1(S,K).
func (p *Pricer) GetOptionDelta(strike, expiry int64) (int64, error) {
	if strike <= 0 {
		return 0, ErrZeroStrike
	}
	spot, vol, days, err := p.blackScholesParams(expiry)
	if err != nil {
		return 0, err
	}
	if spot >= strike {
		d1, _, err := derivatives(days, vol, spot, strike)
		if err != nil {
			return 0, err
		}
		return fixedpoint.NormCDF(d1) / probToDelta, nil
	}
	_, d2, err := derivatives(days, vol, strike, spot)
	if err != nil {
		return 0, err
	}
	return fixedpoint.DeltaScale - fixedpoint.NormCDF(d2)/probToDelta, nil
}

// GetUnderlyingPrice reports the 1e8 spot price the pricer quotes against.
func (p *Pricer) GetUnderlyingPrice() (int64, error) {
	return p.spots.GetPrice(p.cfg.Instrument)
}

// blackScholesParams gathers spot, vol and days-to-expiry for one quote.
func (p *Pricer) blackScholesParams(expiry int64) (spot, vol, days int64, err error) {
	now := p.clock.Now().Unix()
	if expiry <= now {
		return 0, 0, 0, ErrExpiryInPast
	}
	days = (expiry - now) / secondsPerDay
	if days > maxDaysToExpiry {
		return 0, 0, 0, ErrExpiryTooFar
	}
	spot, err = p.spots.GetPrice(p.cfg.Instrument)
	if err != nil {
		return 0, 0, 0, err
	}
	if spot <= 0 {
		return 0, 0, 0, ErrZeroSpot
	}
	vol, err = p.vols.AnnualizedVol(p.cfg.Instrument)
	if err != nil {
		return 0, 0, 0, err
	}
	if vol < 0 || vol > maxPricingVol {
		return 0, 0, 0, ErrVolOutOfRange
	}
	return spot, vol, days, nil
}

// sqrtTimeTerm returns v*sqrt(t/365) in wad.
func sqrtTimeTerm(days, vol int64) (int64, error) {
	tauWad := fixedpoint.Div(days, daysPerYear)
	vSqrtTau := fixedpoint.Mul(vol*volToWad, fixedpoint.SqrtWad(tauWad))
	if vSqrtTau == 0 {
		return 0, ErrZeroSqrtTerm
	}
	return vSqrtTau, nil
}

// derivatives computes the Black-Scholes d1/d2 pair in wad. higher must be
// the larger of spot and strike so the logarithm sees a ratio of at least
// one; the zero-rate symmetry lets quoteAll recover the other side.
func derivatives(days, vol, higher, lower int64) (d1, d2 int64, err error) {
	if higher <= 0 {
		return 0, 0, ErrZeroSpot
	}
	if lower <= 0 {
		return 0, 0, ErrZeroStrike
	}
	vSqrtTau, err := sqrtTimeTerm(days, vol)
	if err != nil {
		return 0, 0, err
	}
	lnRatio, err := fixedpoint.LnRatioWad(higher, lower)
	if err != nil {
		return 0, 0, err
	}

	// The numerator (v^2/2)*tau + ln(higher/lower) can leave the int64 wad
	// range at high vol and long expiry, so it is carried in big.Int.
	vWad := big.NewInt(vol * volToWad)
	tauWad := fixedpoint.Div(days, daysPerYear)
	num := new(big.Int).Mul(vWad, vWad)
	num.Quo(num, big.NewInt(2*fixedpoint.WadScale))
	num.Mul(num, big.NewInt(tauWad))
	num.Quo(num, big.NewInt(fixedpoint.WadScale))
	num.Add(num, big.NewInt(lnRatio))
	num.Mul(num, big.NewInt(fixedpoint.WadScale))
	num.Quo(num, big.NewInt(vSqrtTau))

	d1 = clampD(num)
	num.Sub(num, big.NewInt(vSqrtTau))
	d2 = clampD(num)
	return d1, d2, nil
}

// premium prices the dominant side, higher >= lower, result 1e8. At the money
// the formula collapses to spot*v*sqrt(t/365)/sqrt(2*pi).
func premium(days, vol, higher, lower int64) (int64, error) {
	vSqrtTau, err := sqrtTimeTerm(days, vol)
	if err != nil {
		return 0, err
	}
	if higher == lower {
		atm := fixedpoint.MulDiv(higher, vSqrtTau, fixedpoint.WadScale)
		return fixedpoint.MulDiv(atm, fixedpoint.InvSqrt2Pi, fixedpoint.PriceScale), nil
	}
	d1, d2, err := derivatives(days, vol, higher, lower)
	if err != nil {
		return 0, err
	}
	c := fixedpoint.MulDiv(higher, fixedpoint.NormCDF(d1), fixedpoint.ProbScale) -
		fixedpoint.MulDiv(lower, fixedpoint.NormCDF(d2), fixedpoint.ProbScale)
	if c < 0 {
		c = 0
	}
	return c, nil
}

// quoteAll prices both sides: the dominant side directly, the other through
// put-call parity, guarded against negative artifacts of truncation.
func quoteAll(days, vol, spot, strike int64) (call, put int64, err error) {
	switch {
	case spot > strike:
		call, err = premium(days, vol, spot, strike)
		if err != nil {
			return 0, 0, err
		}
		put = call + strike - spot
		if put < 0 {
			put = 0
		}
	case strike > spot:
		put, err = premium(days, vol, strike, spot)
		if err != nil {
			return 0, 0, err
		}
		call = put + spot - strike
		if call < 0 {
			call = 0
		}
	default:
		call, err = premium(days, vol, spot, strike)
		if err != nil {
			return 0, 0, err
		}
		put = call
	}
	return call, put, nil
}

func clampD(x *big.Int) int64 {
	if x.IsInt64() {
		d := x.Int64()
		if d > maxDWad {
			return maxDWad
		}
		if d < -maxDWad {
			return -maxDWad
		}
		return d
	}
	if x.Sign() > 0 {
		return maxDWad
	}
	return -maxDWad
}
