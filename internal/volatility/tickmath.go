package volatility

import (
	"errors"

	"github.com/holiman/uint256"

	"volmint/internal/fixedmath"
)

// Tick bounds of the Q64.96 price grid.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// ErrTickRange is returned for ticks outside [MinTick, MaxTick].
var ErrTickRange = errors.New("tick out of range")

// Per-bit multipliers for sqrt(1.0001^-(2^i)) in Q128.128, bits 1..19.
// Bit 0 is handled separately in SqrtRatioAtTick.
var sqrtRatioMultipliers = [...]string{
	"0xfff97272373d413259a46990580e213a",
	"0xfff2e50f5f656932ef12357cf3c7fdcc",
	"0xffe5caca7e10e4e61c3624eaa0941cd0",
	"0xffcb9843d60f6159c9db58835c926644",
	"0xff973b41fa98c081472e6896dfb254c0",
	"0xff2ea16466c96a3843ec78b326b52861",
	"0xfe5dee046a99a2a811c461f1969c3053",
	"0xfcbe86c7900a88aedcffc83b479aa3a4",
	"0xf987a7253ac413176f2b074cf7815e54",
	"0xf3392b0822b70005940c7a398e4b70f3",
	"0xe7159475a2c29b7443b29c7fa6e889d9",
	"0xd097f3bdfd2022b8845ad8f792aa5825",
	"0xa9f746462d870fdf8a65dc1f90e061e5",
	"0x70d869a156d2a1b890bb3df62baf32f7",
	"0x31be135f97d08fd981231505542fcfa6",
	"0x9aa508b5b7a84e1c677de54f3e99bc9",
	"0x5d6af8dedb81196699c329225ee604",
	"0x2216e584f5fa1ea926041bedfe98",
	"0x48a170391f7dc42444e8fa2",
}

// Q96 returns 2^96, the sqrt-price fixed-point unit.
func Q96() *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(1), 96)
}

// SqrtRatioAtTick returns sqrt(1.0001^tick) * 2^96.
func SqrtRatioAtTick(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, ErrTickRange
	}

	absTick := uint64(tick)
	if tick < 0 {
		absTick = uint64(-int64(tick))
	}

	ratio := new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	if absTick&1 != 0 {
		ratio = uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001")
	}
	for i, mult := range sqrtRatioMultipliers {
		if absTick&(1<<(i+1)) != 0 {
			ratio.Mul(ratio, uint256.MustFromHex(mult))
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(new(uint256.Int).SetAllOne(), ratio)
	}

	// Q128.128 -> Q64.96, rounding up so the tick boundary is never
	// understated.
	rem := new(uint256.Int).And(ratio, uint256.NewInt(0xffffffff))
	ratio.Rsh(ratio, 32)
	if !rem.IsZero() {
		ratio.AddUint64(ratio, 1)
	}
	return ratio, nil
}

// FloorTick rounds a tick down to the nearest multiple of spacing.
func FloorTick(tick, spacing int32) int32 {
	floored := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		floored--
	}
	return floored * spacing
}

// amount0ForLiquidity returns the token0 amount held by liquidity between
// two sqrt prices.
func amount0ForLiquidity(sqrtA, sqrtB, liquidity *uint256.Int) (*uint256.Int, error) {
	if sqrtA.Gt(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	if sqrtA.IsZero() {
		return nil, fixedmath.ErrDivByZero
	}

	num1 := new(uint256.Int).Lsh(liquidity, 96)
	num2 := new(uint256.Int).Sub(sqrtB, sqrtA)

	v, err := fixedmath.MulDiv(num1, num2, sqrtB)
	if err != nil {
		return nil, err
	}
	return v.Div(v, sqrtA), nil
}

// amount1ForLiquidity returns the token1 amount held by liquidity between
// two sqrt prices.
func amount1ForLiquidity(sqrtA, sqrtB, liquidity *uint256.Int) (*uint256.Int, error) {
	if sqrtA.Gt(sqrtB) {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	return fixedmath.MulDiv(liquidity, diff, Q96())
}
