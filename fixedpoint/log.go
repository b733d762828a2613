package fixedpoint

import "math/big"

// Natural log via a bit-wise base-2 logarithm. The ratio is normalized into
// [1, 2) as a Q192 value and 96 fractional bits of log2 are extracted by
// repeated squaring; the Q192 working precision keeps the accumulated
// truncation error of the squaring loop far below one output bit. The Q96
// log2 is then scaled by ln(2) with a floor division, so the returned wad is
// floor(ln(num/den) * 1e18), rounded toward negative infinity. Callers rely
// on that rounding direction for negative log returns.

const log2FracBits = 96

var (
	bigLn2Wad   = big.NewInt(693_147_180_559_945_309) // floor(ln(2) * 1e18)
	bigTwoQ192  = new(big.Int).Lsh(big.NewInt(1), 193)
	bigQ96Shift = uint(log2FracBits)
)

// LnRatioWad returns floor(ln(num/den) * 1e18). Both arguments must be
// positive; they share a scale, which cancels in the ratio. The result
// saturates at the int64 range.
func LnRatioWad(num, den int64) (int64, error) {
	if num <= 0 || den <= 0 {
		return 0, ErrNonPositive
	}

	// m = num/den in Q192.
	m := new(big.Int).Lsh(big.NewInt(num), 192)
	m.Quo(m, big.NewInt(den))

	// Normalize m into [2^192, 2^193), tracking the log2 integer part.
	k := m.BitLen() - 193
	if k > 0 {
		m.Rsh(m, uint(k))
	} else if k < 0 {
		m.Lsh(m, uint(-k))
	}

	// Extract fractional log2 bits: square, and when the square crosses 2,
	// record a one and halve.
	frac := new(big.Int)
	for i := 0; i < log2FracBits; i++ {
		m.Mul(m, m)
		m.Rsh(m, 192)
		frac.Lsh(frac, 1)
		if m.Cmp(bigTwoQ192) >= 0 {
			m.Rsh(m, 1)
			frac.SetBit(frac, 0, 1)
		}
	}

	// log2(num/den) = k + frac/2^96; multiply by ln(2) and floor.
	t := new(big.Int).Lsh(big.NewInt(int64(k)), bigQ96Shift)
	t.Add(t, frac)
	t.Mul(t, bigLn2Wad)
	t.Rsh(t, bigQ96Shift) // arithmetic shift: floors for negative values
	return clampInt64(t), nil
}

// LnWad returns floor(ln(x/1e18) * 1e18) for a positive wad x.
func LnWad(x int64) (int64, error) {
	return LnRatioWad(x, WadScale)
}
