package fixedmath

import (
	"errors"

	"github.com/holiman/uint256"
)

// WadDecimals is the fixed-point scale used across the pricing engine.
const WadDecimals = 18

// expTermFloor is the magnitude below which further Taylor terms are ignored.
const expTermFloor = 1_000

// expTaylorTerms bounds the exponential series expansion.
const expTaylorTerms = 10

var (
	// ErrDivByZero is returned when a denominator is zero.
	ErrDivByZero = errors.New("division by zero")

	// ErrMulDivOverflow is returned when a mul-div result exceeds 256 bits.
	ErrMulDivOverflow = errors.New("muldiv result overflow")

	// ErrExpUnderflow is returned when the exponential series produces a
	// value below the fixed-point unit. e^x >= 1 for x >= 0, so this only
	// happens if the series itself broke down.
	ErrExpUnderflow = errors.New("result overflow")
)

// Wad returns the fixed-point unit 1e18 as a fresh value.
func Wad() *uint256.Int {
	return uint256.NewInt(1_000_000_000_000_000_000)
}

// MaxUint128 returns 2^128 - 1 as a fresh value.
func MaxUint128() *uint256.Int {
	z := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	return z.SubUint64(z, 1)
}

// MulDiv computes floor(x*y/d) with a 512-bit intermediate product.
// It fails if d is zero or the quotient does not fit in 256 bits.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrMulDivOverflow
	}
	return z, nil
}

// MulDivSat128 computes floor(x*y/d) and clamps the result to the maximum
// 128-bit value instead of failing on overflow. A zero denominator still
// fails.
func MulDivSat128(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivByZero
	}
	max128 := MaxUint128()
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow || z.Gt(max128) {
		return max128, nil
	}
	return z, nil
}

// AddSat128 sums x and y, clamping to the maximum 128-bit value.
func AddSat128(x, y *uint256.Int) *uint256.Int {
	max128 := MaxUint128()
	z, carry := new(uint256.Int).AddOverflow(x, y)
	if carry || z.Gt(max128) {
		return max128
	}
	return z
}

// Sqrt returns the integer square root of x.
func Sqrt(x *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sqrt(x)
}

// ExpWad approximates e^x for a WAD-scaled x using a truncated Taylor
// series: sum of x^i/i! for i in [0, 10). The loop exits early once a
// term falls below expTermFloor, since later terms only shrink.
func ExpWad(x *uint256.Int) (*uint256.Int, error) {
	wad := Wad()
	sum := Wad()
	term := Wad()
	floor := uint256.NewInt(expTermFloor)

	for i := uint64(1); i < expTaylorTerms; i++ {
		next, err := MulDiv(term, x, wad)
		if err != nil {
			return nil, err
		}
		term = next.Div(next, uint256.NewInt(i))
		if term.IsZero() {
			break
		}
		sum.Add(sum, term)
		if term.Lt(floor) {
			break
		}
	}

	if sum.Lt(wad) {
		return nil, ErrExpUnderflow
	}
	return sum, nil
}
