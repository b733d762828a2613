package fixedpoint

import "math/big"

// Standard normal CDF in fixed point. ncdf computes the upper-tail
// probability for non-negative arguments using the Zelen & Severo rational
// approximation (Abramowitz & Stegun 26.2.17, absolute error below 7.5e-8);
// NormCDF handles the sign split the way the pricer expects.

const (
	// maxCdfArg: the largest wad multiple that fits int64. The tail is below
	// the 1e-14 resolution well before 9 sigma, so cutting off here loses
	// nothing.
	maxCdfArg = 9 * WadScale

	invSqrt2PiWad = int64(398_942_280_401_432_678) // 1/sqrt(2*pi) * 1e18
	cdfTScale     = int64(231_641_900_000_000_000) // 0.2316419 * 1e18

	expSeriesTerms = 20
	expReduceBound = WadScale / 2
)

// maxExpArg: e^-x underflows the wad domain past ~41.5. The exponent argument
// x^2/2 exceeds the int64 wad range near maxCdfArg, so the bound and the
// argument both live in big.Int.
var maxExpArg = new(big.Int).Mul(big.NewInt(42), bigWad)

// Zelen & Severo polynomial coefficients b1..b5, wad scale.
var cdfCoeff = [5]int64{
	319_381_530_000_000_000,
	-356_563_782_000_000_000,
	1_781_477_937_000_000_000,
	-1_821_255_978_000_000_000,
	1_330_274_429_000_000_000,
}

// NormCDF returns P(Z <= x) at 1e14 scale for a wad-scaled x of either sign.
func NormCDF(x int64) int64 {
	if x < 0 {
		return ncdf(-x)
	}
	return ProbScale - ncdf(x)
}

// ncdf returns the upper-tail probability P(Z > x) at 1e14 scale, x >= 0 wad.
func ncdf(x int64) int64 {
	if x >= maxCdfArg {
		return 0
	}
	t := Div(WadScale, WadScale+Mul(cdfTScale, x))

	// Horner: t*(b1 + t*(b2 + t*(b3 + t*(b4 + t*b5))))
	poly := cdfCoeff[4]
	for i := 3; i >= 0; i-- {
		poly = cdfCoeff[i] + Mul(poly, t)
	}
	poly = Mul(poly, t)

	phi := Mul(invSqrt2PiWad, expNegWad(halfSquareWad(x)))
	tail := Mul(phi, poly)
	if tail < 0 {
		tail = 0
	}
	return tail / (WadScale / ProbScale)
}

// expNegWad returns floor-ish e^-x at wad scale for x >= 0 wad. The argument
// is halved until it fits the alternating Taylor series, then squared back.
func expNegWad(x *big.Int) int64 {
	if x.Sign() <= 0 {
		return WadScale
	}
	if x.Cmp(maxExpArg) >= 0 {
		return 0
	}

	n := 0
	br := new(big.Int).Set(x)
	bound := big.NewInt(expReduceBound)
	for br.Cmp(bound) > 0 {
		br.Rsh(br, 1)
		n++
	}

	sum := big.NewInt(WadScale)
	term := big.NewInt(WadScale)
	for i := int64(1); i <= expSeriesTerms; i++ {
		term.Mul(term, br)
		term.Quo(term, bigWad)
		term.Quo(term, big.NewInt(i))
		if term.Sign() == 0 {
			break
		}
		if i%2 == 1 {
			sum.Sub(sum, term)
		} else {
			sum.Add(sum, term)
		}
	}
	for ; n > 0; n-- {
		sum.Mul(sum, sum)
		sum.Quo(sum, bigWad)
	}
	return sum.Int64()
}

// halfSquareWad returns x*x/2 in wad. The result stays in big.Int: near the
// CDF cutoff the square is over 40 wad, past what int64 holds.
func halfSquareWad(x int64) *big.Int {
	p := new(big.Int).Mul(big.NewInt(x), big.NewInt(x))
	return p.Quo(p, big.NewInt(2*WadScale))
}
