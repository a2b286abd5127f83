package oracle

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

func buildSwapLog(t *testing.T, amount0, amount1, sqrtPrice, liquidity, tick *big.Int) types.Log {
	t.Helper()

	poolABI, err := getPoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		amount0, amount1, sqrtPrice, liquidity, tick,
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")

	return types.Log{
		Address: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Topics: []common.Hash{
			poolABI.Events["Swap"].ID,
			common.BytesToHash(sender.Bytes()),
			common.BytesToHash(recipient.Bytes()),
		},
		Data:        data,
		BlockNumber: 42,
		TxHash:      common.HexToHash("0xdead"),
		Index:       5,
	}
}

func TestDecodeSwap(t *testing.T) {
	log := buildSwapLog(t,
		big.NewInt(-1000),
		big.NewInt(2000),
		big.NewInt(123456789),
		big.NewInt(987654321),
		big.NewInt(-15),
	)

	swap, err := DecodeSwap(log)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}

	if swap.Amount0.Cmp(big.NewInt(-1000)) != 0 || swap.Amount1.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.Tick != -15 {
		t.Fatalf("tick mismatch: %d", swap.Tick)
	}
	if swap.Recipient != common.HexToAddress("0x3333333333333333333333333333333333333333") {
		t.Fatalf("recipient mismatch: %s", swap.Recipient.Hex())
	}
	if swap.BlockNumber != 42 || swap.LogIndex != 5 {
		t.Fatalf("log position mismatch: block %d index %d", swap.BlockNumber, swap.LogIndex)
	}
	if !swap.SqrtPriceX96.Eq(uint256.NewInt(123456789)) {
		t.Fatalf("sqrt price mismatch: %s", swap.SqrtPriceX96)
	}
}

func TestSwapVolumeIsAbsAmount1(t *testing.T) {
	log := buildSwapLog(t,
		big.NewInt(500),
		big.NewInt(-2000),
		big.NewInt(1),
		big.NewInt(1),
		big.NewInt(0),
	)

	swap, err := DecodeSwap(log)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	if !swap.Volume().Eq(uint256.NewInt(2000)) {
		t.Fatalf("volume mismatch: %s", swap.Volume())
	}
}

func TestDecodeSwapRejectsWrongTopicCount(t *testing.T) {
	log := buildSwapLog(t, big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(1), big.NewInt(0))
	log.Topics = log.Topics[:2]

	if _, err := DecodeSwap(log); err == nil {
		t.Fatalf("expected error for missing recipient topic")
	}
}

func TestSwapTopicStable(t *testing.T) {
	a, err := SwapTopic()
	if err != nil {
		t.Fatalf("swap topic: %v", err)
	}
	b, err := SwapTopic()
	if err != nil {
		t.Fatalf("swap topic: %v", err)
	}
	if a != b || a == (common.Hash{}) {
		t.Fatalf("topic should be stable and non-zero: %s %s", a.Hex(), b.Hex())
	}
}
