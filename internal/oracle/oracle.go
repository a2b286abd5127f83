package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"volmint/internal/chain"
	"volmint/internal/volatility"
)

const poolABIJSON = `[
  {
    "inputs": [],
    "name": "slot0",
    "outputs": [
      {"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"internalType": "int24", "name": "tick", "type": "int24"},
      {"internalType": "uint16", "name": "observationIndex", "type": "uint16"},
      {"internalType": "uint16", "name": "observationCardinality", "type": "uint16"},
      {"internalType": "uint16", "name": "observationCardinalityNext", "type": "uint16"},
      {"internalType": "uint8", "name": "feeProtocol", "type": "uint8"},
      {"internalType": "bool", "name": "unlocked", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "liquidity",
    "outputs": [{"internalType": "uint128", "name": "", "type": "uint128"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "fee",
    "outputs": [{"internalType": "uint24", "name": "", "type": "uint24"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "tickSpacing",
    "outputs": [{"internalType": "int24", "name": "", "type": "int24"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "feeGrowthGlobal0X128",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "feeGrowthGlobal1X128",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint32[]", "name": "secondsAgos", "type": "uint32[]"}],
    "name": "observe",
    "outputs": [
      {"internalType": "int56[]", "name": "tickCumulatives", "type": "int56[]"},
      {"internalType": "uint160[]", "name": "secondsPerLiquidityCumulativeX128s", "type": "uint160[]"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "recipient", "type": "address"},
      {"indexed": false, "internalType": "int256", "name": "amount0", "type": "int256"},
      {"indexed": false, "internalType": "int256", "name": "amount1", "type": "int256"},
      {"indexed": false, "internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"indexed": false, "internalType": "uint128", "name": "liquidity", "type": "uint128"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"}
    ],
    "name": "Swap",
    "type": "event"
  }
]`

var (
	poolABI     abi.ABI
	poolABIOnce sync.Once
	poolABIErr  error
)

func getPoolABI() (abi.ABI, error) {
	poolABIOnce.Do(func() {
		poolABI, poolABIErr = abi.JSON(strings.NewReader(poolABIJSON))
	})
	return poolABI, poolABIErr
}

// SwapTopic returns the topic0 of the pool Swap event.
func SwapTopic() (common.Hash, error) {
	poolABI, err := getPoolABI()
	if err != nil {
		return common.Hash{}, err
	}
	return poolABI.Events["Swap"].ID, nil
}

// SwapObservation is one decoded Swap log.
type SwapObservation struct {
	Recipient    common.Address
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *uint256.Int
	Liquidity    *uint256.Int
	Tick         int32
	BlockNumber  uint64
	TxHash       common.Hash
	LogIndex     uint
}

// Volume returns the traded volume in token1 terms: |amount1|.
func (s SwapObservation) Volume() *uint256.Int {
	v, _ := uint256.FromBig(new(big.Int).Abs(s.Amount1))
	return v
}

// DecodeSwap parses a raw Swap log.
func DecodeSwap(log types.Log) (SwapObservation, error) {
	poolABI, err := getPoolABI()
	if err != nil {
		return SwapObservation{}, err
	}
	if len(log.Topics) != 3 {
		return SwapObservation{}, fmt.Errorf("swap log has %d topics", len(log.Topics))
	}

	var data struct {
		Amount0      *big.Int
		Amount1      *big.Int
		SqrtPriceX96 *big.Int
		Liquidity    *big.Int
		Tick         *big.Int
	}
	if err := poolABI.UnpackIntoInterface(&data, "Swap", log.Data); err != nil {
		return SwapObservation{}, fmt.Errorf("unpack swap: %w", err)
	}

	sqrtPrice, overflow := uint256.FromBig(data.SqrtPriceX96)
	if overflow {
		return SwapObservation{}, fmt.Errorf("sqrt price overflows uint256")
	}
	liq, overflow := uint256.FromBig(data.Liquidity)
	if overflow {
		return SwapObservation{}, fmt.Errorf("liquidity overflows uint256")
	}

	return SwapObservation{
		Recipient:    common.BytesToAddress(log.Topics[2].Bytes()),
		Amount0:      data.Amount0,
		Amount1:      data.Amount1,
		SqrtPriceX96: sqrtPrice,
		Liquidity:    liq,
		Tick:         int32(data.Tick.Int64()),
		BlockNumber:  log.BlockNumber,
		TxHash:       log.TxHash,
		LogIndex:     log.Index,
	}, nil
}

// Oracle reads pool state over eth_call. The pool is trusted and assumed
// always available.
type Oracle struct {
	chain  *chain.Client
	pool   common.Address
	logger *zap.Logger
}

// New builds an Oracle for one pool.
func New(chainClient *chain.Client, pool common.Address, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{chain: chainClient, pool: pool, logger: logger}
}

// Pool returns the observed pool address.
func (o *Oracle) Pool() common.Address {
	return o.pool
}

// Metadata reads the immutable pool parameters.
func (o *Oracle) Metadata(ctx context.Context) (volatility.PoolMetadata, error) {
	feeVals, err := o.call(ctx, "fee")
	if err != nil {
		return volatility.PoolMetadata{}, err
	}
	fee, err := asBigInt(feeVals[0])
	if err != nil {
		return volatility.PoolMetadata{}, fmt.Errorf("fee: %w", err)
	}

	spacingVals, err := o.call(ctx, "tickSpacing")
	if err != nil {
		return volatility.PoolMetadata{}, err
	}
	spacing, err := asBigInt(spacingVals[0])
	if err != nil {
		return volatility.PoolMetadata{}, fmt.Errorf("tick spacing: %w", err)
	}

	return volatility.PoolMetadata{
		BaseFeePPM:  uint32(fee.Uint64()),
		TickSpacing: int32(spacing.Int64()),
	}, nil
}

// Snapshot reads slot0, the active liquidity, and the mean
// seconds-per-liquidity over the lookback window.
func (o *Oracle) Snapshot(ctx context.Context, lookbackSeconds uint64) (volatility.PoolSnapshot, error) {
	slot0, err := o.call(ctx, "slot0")
	if err != nil {
		return volatility.PoolSnapshot{}, err
	}
	sqrtPriceBig, err := asBigInt(slot0[0])
	if err != nil {
		return volatility.PoolSnapshot{}, fmt.Errorf("sqrt price: %w", err)
	}
	tickBig, err := asBigInt(slot0[1])
	if err != nil {
		return volatility.PoolSnapshot{}, fmt.Errorf("tick: %w", err)
	}

	liqVals, err := o.call(ctx, "liquidity")
	if err != nil {
		return volatility.PoolSnapshot{}, err
	}
	liqBig, err := asBigInt(liqVals[0])
	if err != nil {
		return volatility.PoolSnapshot{}, fmt.Errorf("liquidity: %w", err)
	}

	spl, err := o.meanSecondsPerLiquidity(ctx, lookbackSeconds)
	if err != nil {
		return volatility.PoolSnapshot{}, err
	}

	sqrtPrice, _ := uint256.FromBig(sqrtPriceBig)
	liq, _ := uint256.FromBig(liqBig)

	return volatility.PoolSnapshot{
		SqrtPriceX96:            sqrtPrice,
		Tick:                    int32(tickBig.Int64()),
		TickLiquidity:           liq,
		SecondsPerLiquidityX128: spl,
		LookbackSeconds:         lookbackSeconds,
	}, nil
}

// FeeGrowth reads the global fee-growth accumulators stamped with the
// latest block time.
func (o *Oracle) FeeGrowth(ctx context.Context) (volatility.FeeGrowthSnapshot, error) {
	latest, err := o.chain.LatestBlockNumber(ctx)
	if err != nil {
		return volatility.FeeGrowthSnapshot{}, fmt.Errorf("latest block: %w", err)
	}
	return o.FeeGrowthAt(ctx, latest)
}

// FeeGrowthAt reads the accumulators at a specific block. Historical
// blocks require an archive-capable RPC.
func (o *Oracle) FeeGrowthAt(ctx context.Context, blockNumber uint64) (volatility.FeeGrowthSnapshot, error) {
	block := new(big.Int).SetUint64(blockNumber)

	g0Vals, err := o.callAt(ctx, block, "feeGrowthGlobal0X128")
	if err != nil {
		return volatility.FeeGrowthSnapshot{}, err
	}
	g0, err := asBigInt(g0Vals[0])
	if err != nil {
		return volatility.FeeGrowthSnapshot{}, fmt.Errorf("fee growth 0: %w", err)
	}

	g1Vals, err := o.callAt(ctx, block, "feeGrowthGlobal1X128")
	if err != nil {
		return volatility.FeeGrowthSnapshot{}, err
	}
	g1, err := asBigInt(g1Vals[0])
	if err != nil {
		return volatility.FeeGrowthSnapshot{}, fmt.Errorf("fee growth 1: %w", err)
	}

	ts, err := o.chain.BlockTimestamp(ctx, blockNumber)
	if err != nil {
		return volatility.FeeGrowthSnapshot{}, fmt.Errorf("block timestamp: %w", err)
	}

	growth0, _ := uint256.FromBig(g0)
	growth1, _ := uint256.FromBig(g1)

	return volatility.FeeGrowthSnapshot{
		FeeGrowthGlobal0X128: growth0,
		FeeGrowthGlobal1X128: growth1,
		Timestamp:            ts,
	}, nil
}

// meanSecondsPerLiquidity diffs the secondsPerLiquidity accumulator over
// the lookback window. The accumulator is 160 bits and wraps.
func (o *Oracle) meanSecondsPerLiquidity(ctx context.Context, lookbackSeconds uint64) (*uint256.Int, error) {
	values, err := o.call(ctx, "observe", []uint32{uint32(lookbackSeconds), 0})
	if err != nil {
		return nil, err
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("observe returned %d values", len(values))
	}
	cumulatives, ok := values[1].([]*big.Int)
	if !ok || len(cumulatives) != 2 {
		return nil, fmt.Errorf("observe returned unexpected accumulators %T", values[1])
	}

	delta := new(big.Int).Sub(cumulatives[1], cumulatives[0])
	if delta.Sign() < 0 {
		wrap := new(big.Int).Lsh(big.NewInt(1), 160)
		delta.Add(delta, wrap)
	}

	spl, overflow := uint256.FromBig(delta)
	if overflow {
		return nil, fmt.Errorf("seconds per liquidity overflows uint256")
	}
	return spl, nil
}

func (o *Oracle) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	return o.callAt(ctx, nil, method, args...)
}

func (o *Oracle) callAt(ctx context.Context, block *big.Int, method string, args ...interface{}) ([]interface{}, error) {
	if o.chain == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	poolABI, err := getPoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}

	data, err := poolABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	to := o.pool
	resp, err := o.chain.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	values, err := poolABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	v, ok := value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected type %T", value)
	}
	return v, nil
}
