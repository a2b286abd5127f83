package volatility

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestSqrtRatioAtTickZero(t *testing.T) {
	got, err := SqrtRatioAtTick(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Eq(Q96()) {
		t.Fatalf("tick 0 ratio mismatch: got %s want %s", got, Q96())
	}
}

func TestSqrtRatioAtTickKnownValues(t *testing.T) {
	cases := []struct {
		tick int32
		want string
	}{
		{1, "79236085330515764027303304731"},
		{-1, "79224201403219477170569942574"},
		{MinTick, "4295128739"},
		{MaxTick, "1461446703485210103287273052203988822378723970342"},
	}
	for _, tc := range cases {
		got, err := SqrtRatioAtTick(tc.tick)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", tc.tick, err)
		}
		want := uint256.MustFromDecimal(tc.want)
		if !got.Eq(want) {
			t.Fatalf("tick %d ratio mismatch: got %s want %s", tc.tick, got, want)
		}
	}
}

func TestSqrtRatioAtTickMonotonic(t *testing.T) {
	prev, err := SqrtRatioAtTick(-120)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, tick := range []int32{-60, 0, 60, 120, 6000} {
		cur, err := SqrtRatioAtTick(tick)
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", tick, err)
		}
		if !prev.Lt(cur) {
			t.Fatalf("ratio not increasing at tick %d: %s >= %s", tick, prev, cur)
		}
		prev = cur
	}
}

func TestSqrtRatioAtTickOutOfRange(t *testing.T) {
	if _, err := SqrtRatioAtTick(MaxTick + 1); !errors.Is(err, ErrTickRange) {
		t.Fatalf("expected ErrTickRange, got %v", err)
	}
	if _, err := SqrtRatioAtTick(MinTick - 1); !errors.Is(err, ErrTickRange) {
		t.Fatalf("expected ErrTickRange, got %v", err)
	}
}

func TestFloorTick(t *testing.T) {
	cases := []struct {
		tick, spacing, want int32
	}{
		{5, 60, 0},
		{60, 60, 60},
		{125, 60, 120},
		{-5, 60, -60},
		{-60, 60, -60},
		{-125, 60, -180},
	}
	for _, tc := range cases {
		if got := FloorTick(tc.tick, tc.spacing); got != tc.want {
			t.Fatalf("floor(%d, %d) = %d, want %d", tc.tick, tc.spacing, got, tc.want)
		}
	}
}

func TestAmountsForLiquidityAtUnitPrice(t *testing.T) {
	liquidity := uint256.NewInt(1_000_000_000_000_000_000)
	lower, _ := SqrtRatioAtTick(0)
	upper, _ := SqrtRatioAtTick(60)

	amount0, err := amount0ForLiquidity(lower, upper, liquidity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if amount0.IsZero() {
		t.Fatalf("amount0 should be non-zero for a non-empty range")
	}

	amount1, err := amount1ForLiquidity(lower, upper, liquidity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// At price ~1 a symmetric range holds near-equal values of each token.
	diff := new(uint256.Int)
	if amount0.Gt(amount1) {
		diff.Sub(amount0, amount1)
	} else {
		diff.Sub(amount1, amount0)
	}
	limit := new(uint256.Int).Div(amount1, uint256.NewInt(100))
	if diff.Gt(limit) {
		t.Fatalf("amounts diverge too much at unit price: %s vs %s", amount0, amount1)
	}
}
