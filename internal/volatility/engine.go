package volatility

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"volmint/internal/fixedmath"
)

// feeDenominator scales pool fees expressed in hundredths of a bip.
const feeDenominator = 1_000_000

// secondsPerDay is the fixed normalization window of Estimate24H.
const secondsPerDay = 86_400

var (
	// ErrZeroDuration is returned when the option horizon is zero.
	ErrZeroDuration = errors.New("total duration is zero")

	// ErrExpiryExceedsHorizon is returned when timeToExpiry is not
	// strictly inside the total duration.
	ErrExpiryExceedsHorizon = errors.New("expiry exceeds horizon")

	// ErrInvalidFee is returned when the pool base fee is zero.
	ErrInvalidFee = errors.New("invalid fee")

	// ErrZeroLiquidity is returned when the tick has no liquidity.
	ErrZeroLiquidity = errors.New("zero liquidity")

	// ErrSnapshotOrder is returned when the fee-growth snapshots are not
	// strictly ordered in time.
	ErrSnapshotOrder = errors.New("fee growth snapshots out of order")

	// ErrInvalidSnapshot is returned for unusable oracle data, such as a
	// zero seconds-per-liquidity accumulator or zero tick spacing.
	ErrInvalidSnapshot = errors.New("invalid pool snapshot")

	// ErrZeroTVL is returned when the tick-local locked value rounds to
	// zero.
	ErrZeroTVL = errors.New("tvl cannot be zero")

	// ErrInvalidRate is returned when the risk-free rate exceeds 100%.
	ErrInvalidRate = errors.New("risk free rate exceeds one")
)

// PoolMetadata holds the immutable pool parameters the engine needs.
type PoolMetadata struct {
	BaseFeePPM  uint32
	TickSpacing int32
}

// PoolSnapshot is a point-in-time oracle observation of the pool.
type PoolSnapshot struct {
	SqrtPriceX96            *uint256.Int
	Tick                    int32
	TickLiquidity           *uint256.Int
	SecondsPerLiquidityX128 *uint256.Int
	LookbackSeconds         uint64
}

// FeeGrowthSnapshot captures the global fee-growth accumulators at a
// timestamp. Accumulators wrap mod 2^256; deltas are taken with wrapping
// subtraction.
type FeeGrowthSnapshot struct {
	FeeGrowthGlobal0X128 *uint256.Int
	FeeGrowthGlobal1X128 *uint256.Int
	Timestamp            uint64
}

// Estimate computes the implied-volatility estimate for an option with
// the given time to expiry inside the total duration horizon. The result
// is WAD-scaled.
//
// The raw estimate is the gamma-scaled fee revenue over the lookback
// window, time-decayed by e^-(tte/total), haircut by (1 - riskFreeRate),
// and divided by the square root of the tick-local TVL.
func Estimate(
	meta PoolMetadata,
	snap PoolSnapshot,
	past, now FeeGrowthSnapshot,
	timeToExpiry uint64,
	riskFreeRateWad *uint256.Int,
	totalDuration uint64,
) (*uint256.Int, error) {
	if totalDuration == 0 {
		return nil, ErrZeroDuration
	}
	if timeToExpiry >= totalDuration {
		return nil, ErrExpiryExceedsHorizon
	}
	if err := checkInputs(meta, snap); err != nil {
		return nil, err
	}

	gamma, err := volumeGamma(snap, past, now, snap.LookbackSeconds, meta.BaseFeePPM)
	if err != nil {
		return nil, err
	}

	sqrtTVL, err := tickTVLSqrt(meta, snap)
	if err != nil {
		return nil, err
	}

	wad := fixedmath.Wad()

	// Theta: already at expiry means no decay left to apply.
	if timeToExpiry > 0 {
		norm, err := fixedmath.MulDiv(uint256.NewInt(timeToExpiry), wad, uint256.NewInt(totalDuration))
		if err != nil {
			return nil, err
		}
		expVal, err := fixedmath.ExpWad(norm)
		if err != nil {
			return nil, fmt.Errorf("theta decay: %w", err)
		}
		decay, err := fixedmath.MulDiv(wad, wad, expVal)
		if err != nil {
			return nil, err
		}
		gamma, err = fixedmath.MulDiv(gamma, decay, wad)
		if err != nil {
			return nil, err
		}
	}

	// Rho: linear haircut by the risk-free rate.
	if riskFreeRateWad != nil && !riskFreeRateWad.IsZero() {
		if riskFreeRateWad.Gt(wad) {
			return nil, ErrInvalidRate
		}
		haircut := new(uint256.Int).Sub(wad, riskFreeRateWad)
		var err error
		gamma, err = fixedmath.MulDiv(gamma, haircut, wad)
		if err != nil {
			return nil, err
		}
	}

	return fixedmath.MulDiv(gamma, wad, sqrtTVL)
}

// Estimate24H computes the simplified estimate normalized to a fixed
// 24-hour revenue window, without the theta/rho adjustments. It shares
// the revenue and TVL subroutines with Estimate.
func Estimate24H(meta PoolMetadata, snap PoolSnapshot, past, now FeeGrowthSnapshot) (*uint256.Int, error) {
	if err := checkInputs(meta, snap); err != nil {
		return nil, err
	}

	gamma, err := volumeGamma(snap, past, now, secondsPerDay, meta.BaseFeePPM)
	if err != nil {
		return nil, err
	}

	sqrtTVL, err := tickTVLSqrt(meta, snap)
	if err != nil {
		return nil, err
	}

	return fixedmath.MulDiv(gamma, fixedmath.Wad(), sqrtTVL)
}

func checkInputs(meta PoolMetadata, snap PoolSnapshot) error {
	if meta.BaseFeePPM == 0 {
		return ErrInvalidFee
	}
	if meta.TickSpacing <= 0 {
		return ErrInvalidSnapshot
	}
	if snap.TickLiquidity == nil || snap.TickLiquidity.IsZero() {
		return ErrZeroLiquidity
	}
	if snap.SqrtPriceX96 == nil || snap.SqrtPriceX96.IsZero() {
		return ErrInvalidSnapshot
	}
	return nil
}

// volumeGamma combines the per-token gamma-scaled revenues into a single
// token1-denominated volume figure, saturating at the 128-bit maximum.
func volumeGamma(snap PoolSnapshot, past, now FeeGrowthSnapshot, windowSeconds uint64, baseFeePPM uint32) (*uint256.Int, error) {
	if now.Timestamp <= past.Timestamp {
		return nil, ErrSnapshotOrder
	}
	if snap.SecondsPerLiquidityX128 == nil || snap.SecondsPerLiquidityX128.IsZero() {
		return nil, ErrInvalidSnapshot
	}
	if windowSeconds == 0 {
		return nil, ErrInvalidSnapshot
	}

	rev0, err := revenueGamma(past.FeeGrowthGlobal0X128, now.FeeGrowthGlobal0X128, windowSeconds, baseFeePPM, snap.SecondsPerLiquidityX128)
	if err != nil {
		return nil, err
	}
	rev1, err := revenueGamma(past.FeeGrowthGlobal1X128, now.FeeGrowthGlobal1X128, windowSeconds, baseFeePPM, snap.SecondsPerLiquidityX128)
	if err != nil {
		return nil, err
	}

	// token0 revenue valued in token1 at the current price:
	// price = sqrtPriceX96^2 / 2^192.
	q96 := Q96()
	rev0, err = fixedmath.MulDivSat128(rev0, snap.SqrtPriceX96, q96)
	if err != nil {
		return nil, err
	}
	rev0, err = fixedmath.MulDivSat128(rev0, snap.SqrtPriceX96, q96)
	if err != nil {
		return nil, err
	}

	return fixedmath.AddSat128(rev0, rev1), nil
}

// revenueGamma estimates the fee revenue of one token over the window,
// scaled by (windowSeconds * baseFee) / (secondsPerLiquidity * 1e6) and
// clamped to the 128-bit maximum.
func revenueGamma(pastFees, nowFees *uint256.Int, windowSeconds uint64, baseFeePPM uint32, secondsPerLiquidity *uint256.Int) (*uint256.Int, error) {
	// Growth accumulators wrap; the delta must too.
	delta := new(uint256.Int).Sub(nowFees, pastFees)

	scale := new(uint256.Int).Mul(uint256.NewInt(windowSeconds), uint256.NewInt(uint64(baseFeePPM)))

	denom, overflow := new(uint256.Int).MulOverflow(secondsPerLiquidity, uint256.NewInt(feeDenominator))
	if overflow {
		return nil, ErrInvalidSnapshot
	}

	return fixedmath.MulDivSat128(delta, scale, denom)
}

// tickTVLSqrt values the liquidity sitting between the tick-spacing floor
// and its upper neighbor in token1 terms and returns the integer square
// root of that value.
func tickTVLSqrt(meta PoolMetadata, snap PoolSnapshot) (*uint256.Int, error) {
	floor := FloorTick(snap.Tick, meta.TickSpacing)

	sqrtLower, err := SqrtRatioAtTick(floor)
	if err != nil {
		return nil, err
	}
	sqrtUpper, err := SqrtRatioAtTick(floor + meta.TickSpacing)
	if err != nil {
		return nil, err
	}

	// Clamp the spot into the tick range so the split below stays valid
	// even when the observed price sits on a boundary.
	sqrtSpot := snap.SqrtPriceX96
	if sqrtSpot.Lt(sqrtLower) {
		sqrtSpot = sqrtLower
	} else if sqrtSpot.Gt(sqrtUpper) {
		sqrtSpot = sqrtUpper
	}

	amount0, err := amount0ForLiquidity(sqrtSpot, sqrtUpper, snap.TickLiquidity)
	if err != nil {
		return nil, err
	}
	amount1, err := amount1ForLiquidity(sqrtLower, sqrtSpot, snap.TickLiquidity)
	if err != nil {
		return nil, err
	}

	q96 := Q96()
	value0, err := fixedmath.MulDiv(amount0, sqrtSpot, q96)
	if err != nil {
		return nil, err
	}
	value0, err = fixedmath.MulDiv(value0, sqrtSpot, q96)
	if err != nil {
		return nil, err
	}

	tvl, carry := new(uint256.Int).AddOverflow(value0, amount1)
	if carry {
		return nil, fixedmath.ErrMulDivOverflow
	}

	sqrtTVL := fixedmath.Sqrt(tvl)
	if sqrtTVL.IsZero() {
		return nil, ErrZeroTVL
	}
	return sqrtTVL, nil
}
