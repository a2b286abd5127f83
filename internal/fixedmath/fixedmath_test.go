package fixedmath

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestMulDivTruncates(t *testing.T) {
	got, err := MulDiv(uint256.NewInt(7), uint256.NewInt(3), uint256.NewInt(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 10 {
		t.Fatalf("muldiv mismatch: got %d want 10", got.Uint64())
	}
}

func TestMulDivWideIntermediate(t *testing.T) {
	// x*y overflows 256 bits but the quotient fits.
	x := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	y := new(uint256.Int).Lsh(uint256.NewInt(1), 100)
	d := new(uint256.Int).Lsh(uint256.NewInt(1), 150)

	got, err := MulDiv(x, y, d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := new(uint256.Int).Lsh(uint256.NewInt(1), 150)
	if !got.Eq(want) {
		t.Fatalf("muldiv mismatch: got %s want %s", got, want)
	}
}

func TestMulDivZeroDenominator(t *testing.T) {
	if _, err := MulDiv(uint256.NewInt(1), uint256.NewInt(1), uint256.NewInt(0)); !errors.Is(err, ErrDivByZero) {
		t.Fatalf("expected ErrDivByZero, got %v", err)
	}
}

func TestMulDivOverflowFails(t *testing.T) {
	x := new(uint256.Int).Lsh(uint256.NewInt(1), 255)
	if _, err := MulDiv(x, uint256.NewInt(4), uint256.NewInt(1)); !errors.Is(err, ErrMulDivOverflow) {
		t.Fatalf("expected ErrMulDivOverflow, got %v", err)
	}
}

func TestMulDivSat128Clamps(t *testing.T) {
	x := new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	got, err := MulDivSat128(x, uint256.NewInt(1), uint256.NewInt(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Eq(MaxUint128()) {
		t.Fatalf("expected clamp to max uint128, got %s", got)
	}

	got, err = MulDivSat128(uint256.NewInt(10), uint256.NewInt(10), uint256.NewInt(4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 25 {
		t.Fatalf("saturating muldiv mismatch: got %d want 25", got.Uint64())
	}
}

func TestAddSat128(t *testing.T) {
	got := AddSat128(MaxUint128(), uint256.NewInt(1))
	if !got.Eq(MaxUint128()) {
		t.Fatalf("expected clamp to max uint128, got %s", got)
	}

	got = AddSat128(uint256.NewInt(2), uint256.NewInt(3))
	if got.Uint64() != 5 {
		t.Fatalf("saturating add mismatch: got %d want 5", got.Uint64())
	}
}

func TestSqrt(t *testing.T) {
	got := Sqrt(uint256.NewInt(144))
	if got.Uint64() != 12 {
		t.Fatalf("sqrt mismatch: got %d want 12", got.Uint64())
	}

	// 1e18 squared.
	x := new(uint256.Int).Mul(Wad(), Wad())
	if !Sqrt(x).Eq(Wad()) {
		t.Fatalf("sqrt of wad^2 should be wad")
	}
}

func TestExpWadAtZero(t *testing.T) {
	got, err := ExpWad(uint256.NewInt(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Eq(Wad()) {
		t.Fatalf("e^0 mismatch: got %s want %s", got, Wad())
	}
}

func TestExpWadAtOne(t *testing.T) {
	got, err := ExpWad(Wad())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// e = 2.718281828... The 10-term series is accurate well past 1e-6.
	lo := uint256.NewInt(2_718_280_000_000_000_000)
	hi := uint256.NewInt(2_718_283_000_000_000_000)
	if got.Lt(lo) || got.Gt(hi) {
		t.Fatalf("e^1 out of tolerance: got %s", got)
	}
}

func TestExpWadHalf(t *testing.T) {
	half := uint256.NewInt(500_000_000_000_000_000)
	got, err := ExpWad(half)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// e^0.5 = 1.648721270...
	lo := uint256.NewInt(1_648_720_000_000_000_000)
	hi := uint256.NewInt(1_648_722_000_000_000_000)
	if got.Lt(lo) || got.Gt(hi) {
		t.Fatalf("e^0.5 out of tolerance: got %s", got)
	}
}
