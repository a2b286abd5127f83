package pricing

import (
	"errors"

	"github.com/holiman/uint256"

	"volmint/internal/fixedmath"
)

// Multiplier bounds, stored scaled by 10 (12 = 1.2x).
const (
	multiplierScale = 10
	minMultiplierLo = 12
	maxMultiplierHi = 32
)

var (
	// ErrMultiplierBounds is returned when min/max violate
	// 12 <= min < max <= 32.
	ErrMultiplierBounds = errors.New("multiplier out of bounds")

	// ErrZeroThreshold is returned for a zero liquidity threshold.
	ErrZeroThreshold = errors.New("threshold cannot be zero")

	// ErrZeroFactor is returned for a zero volume factor.
	ErrZeroFactor = errors.New("factor cannot be zero")

	// ErrZeroSpot is returned for a zero spot price.
	ErrZeroSpot = errors.New("spot price cannot be zero")

	// ErrZeroStrike is returned for a zero strike price.
	ErrZeroStrike = errors.New("strike price cannot be zero")
)

// Params is the pricing configuration. It is owned by the Pricer and
// mutated only through validated setters.
type Params struct {
	// MinMultiplier and MaxMultiplier bound the strike as a multiple of
	// spot, scaled by 10.
	MinMultiplier uint64
	MaxMultiplier uint64

	// ThresholdLiquidity is the liquidity above which the strike sits on
	// the flat floor.
	ThresholdLiquidity *uint256.Int

	// FactorWad converts traded volume into minted option amount,
	// WAD-scaled.
	FactorWad *uint256.Int
}

// DefaultParams returns the stock configuration: 1.2x floor, 3.2x
// zero-liquidity extreme, 100 ether threshold, 1.0 factor.
func DefaultParams() Params {
	threshold := new(uint256.Int).Mul(uint256.NewInt(100), fixedmath.Wad())
	return Params{
		MinMultiplier:      12,
		MaxMultiplier:      32,
		ThresholdLiquidity: threshold,
		FactorWad:          fixedmath.Wad(),
	}
}

// Validate checks the configuration invariants.
func (p Params) Validate() error {
	if p.MinMultiplier < minMultiplierLo || p.MinMultiplier >= p.MaxMultiplier {
		return ErrMultiplierBounds
	}
	if p.MaxMultiplier > maxMultiplierHi {
		return ErrMultiplierBounds
	}
	if p.ThresholdLiquidity == nil || p.ThresholdLiquidity.IsZero() {
		return ErrZeroThreshold
	}
	if p.FactorWad == nil || p.FactorWad.IsZero() {
		return ErrZeroFactor
	}
	return nil
}

// Pricer derives strike and expiry prices from pool observations.
type Pricer struct {
	params Params
}

// NewPricer builds a Pricer after validating the configuration.
func NewPricer(params Params) (*Pricer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Pricer{params: params}, nil
}

// Params returns a copy of the current configuration.
func (p *Pricer) Params() Params {
	out := p.params
	out.ThresholdLiquidity = new(uint256.Int).Set(p.params.ThresholdLiquidity)
	out.FactorWad = new(uint256.Int).Set(p.params.FactorWad)
	return out
}

// SetMultipliers updates the strike multipliers, enforcing
// 12 <= min < max <= 32.
func (p *Pricer) SetMultipliers(min, max uint64) error {
	next := p.params
	next.MinMultiplier = min
	next.MaxMultiplier = max
	if err := next.Validate(); err != nil {
		return err
	}
	p.params = next
	return nil
}

// SetThreshold updates the liquidity threshold.
func (p *Pricer) SetThreshold(threshold *uint256.Int) error {
	if threshold == nil || threshold.IsZero() {
		return ErrZeroThreshold
	}
	p.params.ThresholdLiquidity = new(uint256.Int).Set(threshold)
	return nil
}

// SetFactor updates the WAD-scaled volume factor.
func (p *Pricer) SetFactor(factor *uint256.Int) error {
	if factor == nil || factor.IsZero() {
		return ErrZeroFactor
	}
	p.params.FactorWad = new(uint256.Int).Set(factor)
	return nil
}

// Strike derives the strike price from spot and current liquidity.
//
// Above the threshold the strike sits on the flat floor spot*min/10.
// Below it the strike follows the line from (threshold, spot*min/10) to
// (0, spot*max/10).
func (p *Pricer) Strike(spot, liquidity *uint256.Int) (*uint256.Int, error) {
	if spot == nil || spot.IsZero() {
		return nil, ErrZeroSpot
	}

	ten := uint256.NewInt(multiplierScale)
	floor, err := fixedmath.MulDiv(spot, uint256.NewInt(p.params.MinMultiplier), ten)
	if err != nil {
		return nil, err
	}

	threshold := p.params.ThresholdLiquidity
	if liquidity != nil && liquidity.Gt(threshold) {
		return floor, nil
	}

	shortfall := new(uint256.Int).Set(threshold)
	if liquidity != nil {
		shortfall.Sub(threshold, liquidity)
	}

	span := uint256.NewInt(p.params.MaxMultiplier - p.params.MinMultiplier)
	num, overflow := new(uint256.Int).MulOverflow(shortfall, span)
	if overflow {
		return nil, fixedmath.ErrMulDivOverflow
	}
	denom, overflow := new(uint256.Int).MulOverflow(threshold, ten)
	if overflow {
		return nil, fixedmath.ErrMulDivOverflow
	}

	ramp, err := fixedmath.MulDiv(spot, num, denom)
	if err != nil {
		return nil, err
	}

	strike, carry := new(uint256.Int).AddOverflow(floor, ramp)
	if carry {
		return nil, fixedmath.ErrMulDivOverflow
	}
	return strike, nil
}

// Expiry derives the expiry price from spot and strike: spot^2/strike,
// placing strike and expiry symmetric around spot in log space.
func (p *Pricer) Expiry(spot, strike *uint256.Int) (*uint256.Int, error) {
	if spot == nil || spot.IsZero() {
		return nil, ErrZeroSpot
	}
	if strike == nil || strike.IsZero() {
		return nil, ErrZeroStrike
	}
	return fixedmath.MulDiv(spot, spot, strike)
}

// Quote converts an option amount into settlement funds at the strike
// price, with strike in Q64.96 sqrt-price form.
func (p *Pricer) Quote(strike, amount *uint256.Int) (*uint256.Int, error) {
	if strike == nil || strike.IsZero() {
		return nil, ErrZeroStrike
	}
	q96 := new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	v, err := fixedmath.MulDiv(amount, strike, q96)
	if err != nil {
		return nil, err
	}
	return fixedmath.MulDiv(v, strike, q96)
}

// ScaleVolume converts traded volume into the minted option amount using
// the configured factor.
func (p *Pricer) ScaleVolume(volume *uint256.Int) (*uint256.Int, error) {
	return fixedmath.MulDiv(volume, p.params.FactorWad, fixedmath.Wad())
}
