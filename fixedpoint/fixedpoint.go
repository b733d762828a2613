// Package fixedpoint implements the deterministic integer arithmetic shared by
// the volatility oracle and the option pricer. Prices and volatilities live in
// the 1e8 domain, logarithm and distribution intermediates in the 1e18 "wad"
// domain, normal-CDF probabilities in the 1e14 domain. No floating point is
// used anywhere: reproducibility across platforms is a correctness requirement.
package fixedpoint

import (
	"errors"
	"math"
	"math/big"
)

const (
	// WadScale is the 1e18 scale of logarithm and CDF intermediates.
	WadScale = int64(1_000_000_000_000_000_000)
	// PriceScale is the 1e8 scale of prices, log returns and volatilities.
	PriceScale = int64(100_000_000)
	// ProbScale is the 1e14 scale of normal-CDF probabilities.
	ProbScale = int64(100_000_000_000_000)
	// DeltaScale is the 1e4 scale of option deltas (8100 = 0.81).
	DeltaScale = int64(10_000)
	// WadToReturn divides a wad logarithm down to the 1e8 log-return domain.
	WadToReturn = WadScale / PriceScale
	// InvSqrt2Pi is 1/sqrt(2*pi) at 1e8 scale.
	InvSqrt2Pi = int64(39_894_228)
)

var ErrNonPositive = errors.New("fixedpoint: ln of non-positive value")

var bigWad = big.NewInt(WadScale)

// Mul multiplies two wad values, truncating toward zero. The intermediate
// product is taken at full width, so no operand-ordering tricks are needed.
func Mul(a, b int64) int64 {
	p := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	p.Quo(p, bigWad)
	return clampInt64(p)
}

// Div returns a*1e18/b truncating toward zero. With 1e8-scaled inputs the
// result is the wad-scaled ratio a/b.
func Div(a, b int64) int64 {
	n := new(big.Int).Mul(big.NewInt(a), bigWad)
	n.Quo(n, big.NewInt(b))
	return clampInt64(n)
}

// MulDiv returns a*b/den truncating toward zero, with a full-width
// intermediate product. The result saturates at the int64 range.
func MulDiv(a, b, den int64) int64 {
	p := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	p.Quo(p, big.NewInt(den))
	return clampInt64(p)
}

// FloorDiv divides rounding toward negative infinity. b must be positive.
func FloorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}

// Sqrt returns the floor square root of x via Newton iteration.
// Non-positive inputs yield zero.
func Sqrt(x int64) int64 {
	if x <= 0 {
		return 0
	}
	z := x
	y := x/2 + 1
	for y < z {
		z = y
		y = (x/y + y) / 2
	}
	return z
}

// SqrtWad returns the floor square root of a wad value as a wad:
// isqrt(x * 1e18).
func SqrtWad(x int64) int64 {
	if x <= 0 {
		return 0
	}
	n := new(big.Int).Mul(big.NewInt(x), bigWad)
	return n.Sqrt(n).Int64()
}

// Pow10 returns 10^n for n in [0, 18].
func Pow10(n int) int64 {
	p := int64(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}

func clampInt64(x *big.Int) int64 {
	if x.IsInt64() {
		return x.Int64()
	}
	if x.Sign() > 0 {
		return math.MaxInt64
	}
	return math.MinInt64
}
