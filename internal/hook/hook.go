package hook

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"volmint/internal/ledger"
	"volmint/internal/model"
	"volmint/internal/pricing"
	"volmint/internal/volatility"
)

var (
	// ErrUnauthorized is returned when a non-admin calls a privileged
	// setter.
	ErrUnauthorized = errors.New("caller is not the admin")

	// ErrInvalidOption is returned when exercise targets an id that is
	// zero, unknown, or void.
	ErrInvalidOption = errors.New("invalid option id")

	// ErrDustTrade is returned when the traded volume scales to a zero
	// mint amount. Such trades do not qualify and mint nothing.
	ErrDustTrade = errors.New("scaled volume rounds to zero")
)

// PoolObserver is the oracle surface the hook reads from.
type PoolObserver interface {
	Pool() common.Address
	Metadata(ctx context.Context) (volatility.PoolMetadata, error)
	Snapshot(ctx context.Context, lookbackSeconds uint64) (volatility.PoolSnapshot, error)
	FeeGrowth(ctx context.Context) (volatility.FeeGrowthSnapshot, error)
}

// EventSink receives option lifecycle events.
type EventSink interface {
	AppendEvents(events []model.LifecycleEvent) error
}

// Config holds the hook's fixed settings.
type Config struct {
	Admin           common.Address
	LookbackSeconds uint64
}

// Trade identifies one qualifying swap: who gets the option, how much
// was traded, and where the trade sits on chain. The chain reference is
// journaled with the mint so a resume can recognize already-processed
// swaps.
type Trade struct {
	Recipient   common.Address
	Volume      *uint256.Int
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
}

// MintResult describes one swap-triggered mint.
type MintResult struct {
	TokenID    uint64
	Created    bool
	Amount     *uint256.Int
	Strike     *uint256.Int
	Expiry     *uint256.Int
	Volatility *uint256.Int
}

// Hook is the serialized boundary around the pricing engine and the
// option ledger. Every externally triggered operation runs under one
// mutex, so no partial state is ever visible between operations.
type Hook struct {
	mu sync.Mutex

	cfg      Config
	observer PoolObserver
	pricer   *pricing.Pricer
	book     *ledger.Ledger
	sink     EventSink
	logger   *zap.Logger

	// prevFeeGrowth is the last observed accumulator pair; nil until the
	// first swap has been processed.
	prevFeeGrowth *volatility.FeeGrowthSnapshot
}

// New builds a Hook. The sink may be nil.
func New(cfg Config, observer PoolObserver, pricer *pricing.Pricer, book *ledger.Ledger, sink EventSink, logger *zap.Logger) *Hook {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LookbackSeconds == 0 {
		cfg.LookbackSeconds = 3600
	}
	return &Hook{
		cfg:      cfg,
		observer: observer,
		pricer:   pricer,
		book:     book,
		sink:     sink,
		logger:   logger,
	}
}

// Ledger exposes the option book for queries and persistence snapshots.
func (h *Hook) Ledger() *ledger.Ledger {
	return h.book
}

// OnSwap handles one qualifying trade: it derives strike and expiry from
// the current pool state, sizes the mint from the traded volume, and
// credits the recipient. The volatility estimate is computed alongside
// and recorded with the mint; it is zero for the first swap, before a
// past fee-growth snapshot exists.
func (h *Hook) OnSwap(ctx context.Context, trade Trade) (MintResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap, err := h.observer.Snapshot(ctx, h.cfg.LookbackSeconds)
	if err != nil {
		return MintResult{}, fmt.Errorf("observe pool: %w", err)
	}
	growthNow, err := h.observer.FeeGrowth(ctx)
	if err != nil {
		return MintResult{}, fmt.Errorf("observe fee growth: %w", err)
	}

	strike, err := h.pricer.Strike(snap.SqrtPriceX96, snap.TickLiquidity)
	if err != nil {
		return MintResult{}, err
	}
	expiry, err := h.pricer.Expiry(snap.SqrtPriceX96, strike)
	if err != nil {
		return MintResult{}, err
	}
	amount, err := h.pricer.ScaleVolume(trade.Volume)
	if err != nil {
		return MintResult{}, err
	}
	if amount.IsZero() {
		return MintResult{}, ErrDustTrade
	}

	vol := new(uint256.Int)
	if h.prevFeeGrowth != nil && growthNow.Timestamp > h.prevFeeGrowth.Timestamp {
		meta, err := h.observer.Metadata(ctx)
		if err != nil {
			return MintResult{}, fmt.Errorf("pool metadata: %w", err)
		}
		vol, err = volatility.Estimate24H(meta, snap, *h.prevFeeGrowth, growthNow)
		if err != nil {
			return MintResult{}, fmt.Errorf("estimate volatility: %w", err)
		}
	}

	id, created, err := h.book.Mint(trade.Recipient, amount, strike, expiry)
	if err != nil {
		return MintResult{}, err
	}
	h.prevFeeGrowth = &growthNow

	txHash := ""
	if trade.TxHash != (common.Hash{}) {
		txHash = trade.TxHash.Hex()
	}
	h.emit(model.LifecycleEvent{
		Kind:        model.EventMint,
		PoolAddress: h.observer.Pool().Hex(),
		TokenID:     id,
		Recipient:   trade.Recipient.Hex(),
		Amount:      amount.Dec(),
		StrikePrice: strike.Dec(),
		ExpiryPrice: expiry.Dec(),
		Volatility:  vol.Dec(),
		BlockNumber: trade.BlockNumber,
		TxHash:      txHash,
		LogIndex:    trade.LogIndex,
		Timestamp:   growthNow.Timestamp,
	})

	return MintResult{
		TokenID:    id,
		Created:    created,
		Amount:     amount,
		Strike:     strike,
		Expiry:     expiry,
		Volatility: vol,
	}, nil
}

// SweepExpiries voids every live option under each expiry price whose
// crossing condition holds: the current spot has fallen to or below the
// expiry price. The check is evaluated once per call, not continuously.
func (h *Hook) SweepExpiries(ctx context.Context, expiryPrices []*uint256.Int) ([]uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap, err := h.observer.Snapshot(ctx, h.cfg.LookbackSeconds)
	if err != nil {
		return nil, fmt.Errorf("observe pool: %w", err)
	}

	var voided []uint64
	for _, price := range expiryPrices {
		if price == nil || snap.SqrtPriceX96.Gt(price) {
			continue
		}
		ids := h.book.VoidByExpiryPrice(price)
		for _, id := range ids {
			h.emit(model.LifecycleEvent{
				Kind:        model.EventVoid,
				PoolAddress: h.observer.Pool().Hex(),
				TokenID:     id,
				ExpiryPrice: price.Dec(),
				Timestamp:   uint64(time.Now().Unix()),
			})
		}
		voided = append(voided, ids...)
	}
	return voided, nil
}

// SweepTokens voids each listed id whose expiry price has been crossed.
// Unknown and already-void ids are skipped.
func (h *Hook) SweepTokens(ctx context.Context, ids []uint64) ([]uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap, err := h.observer.Snapshot(ctx, h.cfg.LookbackSeconds)
	if err != nil {
		return nil, fmt.Errorf("observe pool: %w", err)
	}

	var voided []uint64
	for _, id := range ids {
		tok, err := h.book.Token(id)
		if err != nil || tok.Void {
			continue
		}
		if snap.SqrtPriceX96.Gt(tok.ExpiryPrice) {
			continue
		}
		if h.book.VoidByTokenID(id) {
			voided = append(voided, id)
			h.emit(model.LifecycleEvent{
				Kind:        model.EventVoid,
				PoolAddress: h.observer.Pool().Hex(),
				TokenID:     id,
				ExpiryPrice: tok.ExpiryPrice.Dec(),
				Timestamp:   uint64(time.Now().Unix()),
			})
		}
	}
	return voided, nil
}

// Exercise burns amount of a live option from the caller and returns the
// settlement value quoted at the option's strike price.
func (h *Hook) Exercise(ctx context.Context, caller common.Address, id uint64, amount *uint256.Int) (*uint256.Int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.book.IsValid(id) {
		return nil, ErrInvalidOption
	}
	tok, err := h.book.Token(id)
	if err != nil {
		return nil, ErrInvalidOption
	}

	settlement, err := h.pricer.Quote(tok.StrikePrice, amount)
	if err != nil {
		return nil, err
	}
	if err := h.book.Burn(caller, id, amount); err != nil {
		return nil, err
	}

	h.emit(model.LifecycleEvent{
		Kind:        model.EventExercise,
		PoolAddress: h.observer.Pool().Hex(),
		TokenID:     id,
		Recipient:   caller.Hex(),
		Amount:      amount.Dec(),
		Settlement:  settlement.Dec(),
		Timestamp:   uint64(time.Now().Unix()),
	})
	return settlement, nil
}

// SetMultipliers updates the strike multipliers. Admin only.
func (h *Hook) SetMultipliers(caller common.Address, min, max uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if caller != h.cfg.Admin {
		return ErrUnauthorized
	}
	return h.pricer.SetMultipliers(min, max)
}

// SetThreshold updates the liquidity threshold. Admin only.
func (h *Hook) SetThreshold(caller common.Address, threshold *uint256.Int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if caller != h.cfg.Admin {
		return ErrUnauthorized
	}
	return h.pricer.SetThreshold(threshold)
}

// SetFactor updates the volume factor. Admin only.
func (h *Hook) SetFactor(caller common.Address, factor *uint256.Int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if caller != h.cfg.Admin {
		return ErrUnauthorized
	}
	return h.pricer.SetFactor(factor)
}

// emit hands an event to the sink. Journal failures are logged, not
// surfaced: core state has already committed atomically.
func (h *Hook) emit(event model.LifecycleEvent) {
	if h.sink == nil {
		return
	}
	if err := h.sink.AppendEvents([]model.LifecycleEvent{event}); err != nil {
		h.logger.Warn("journal event",
			zap.Error(err),
			zap.String("kind", event.Kind),
			zap.Uint64("token_id", event.TokenID),
		)
	}
}
