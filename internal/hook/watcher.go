package hook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"volmint/internal/chain"
	"volmint/internal/model"
	"volmint/internal/oracle"
)

// WatcherConfig holds runtime settings for the swap watcher.
type WatcherConfig struct {
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Watcher streams Swap logs from the pool and feeds each qualifying
// trade into the hook's mint trigger.
type Watcher struct {
	cfg    WatcherConfig
	chain  *chain.Client
	hook   *Hook
	logger *zap.Logger
	cursor *CursorStore

	// replayed holds the chain references of swaps the journal already
	// recorded. The cursor is saved per batch while mints are journaled
	// per swap, so after a mid-batch crash the journal runs ahead of the
	// cursor; this set keeps those swaps from minting twice on resume.
	replayed map[string]struct{}
}

// NewWatcher builds a Watcher with its dependencies.
func NewWatcher(cfg WatcherConfig, chainClient *chain.Client, h *Hook, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		cfg:      cfg,
		chain:    chainClient,
		hook:     h,
		logger:   logger,
		cursor:   NewCursorStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
		replayed: make(map[string]struct{}),
	}
}

// MarkProcessed seeds the duplicate filter from journaled mint events so
// a resume never re-mints a trade the journal has already recorded.
func (w *Watcher) MarkProcessed(events []model.LifecycleEvent) {
	for _, ev := range events {
		if ev.Kind != model.EventMint || ev.TxHash == "" {
			continue
		}
		w.replayed[swapKey(ev.BlockNumber, ev.TxHash, ev.LogIndex)] = struct{}{}
	}
}

// Run processes the configured block range to completion.
func (w *Watcher) Run(ctx context.Context) error {
	if w.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if w.hook == nil {
		return fmt.Errorf("hook is nil")
	}
	if w.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}

	topic, err := oracle.SwapTopic()
	if err != nil {
		return fmt.Errorf("swap topic: %w", err)
	}

	from := w.cfg.FromBlock
	to := w.cfg.ToBlock
	if to == 0 {
		latest, err := w.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if w.cursor != nil {
		cur, ok, err := w.cursor.Load()
		if err != nil {
			return err
		}
		if ok && cur.LastProcessedBlock >= from {
			from = cur.LastProcessedBlock + 1
			w.logger.Info("resume from cursor", zap.Uint64("last_processed", cur.LastProcessedBlock), zap.Uint64("from", from))
			if cur.NextTokenID > w.hook.book.NextTokenID() {
				w.logger.Warn("journal is behind the cursor",
					zap.Uint64("cursor_next_token_id", cur.NextTokenID),
					zap.Uint64("ledger_next_token_id", w.hook.book.NextTokenID()),
				)
			}
		}
	}

	if from > to {
		w.logger.Info("nothing to process", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, w.cfg.BatchSize)
	if err != nil {
		return err
	}

	pool := w.hook.observer.Pool()
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		logs, err := w.filterLogsWithRetry(ctx, blockRange.From, blockRange.To, pool, topic)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		// Logs cannot repeat across batches: ranges are inclusive and
		// non-overlapping. Dedup within the batch only.
		seen := make(map[string]struct{}, len(logs))

		minted := 0
		for _, log := range logs {
			if w.isDuplicate(seen, log) {
				continue
			}

			swap, err := oracle.DecodeSwap(log)
			if err != nil {
				w.logger.Warn("decode swap", zap.Error(err), zap.String("tx", log.TxHash.Hex()))
				continue
			}
			volume := swap.Volume()
			if volume.IsZero() {
				continue
			}

			result, err := w.hook.OnSwap(ctx, Trade{
				Recipient:   swap.Recipient,
				Volume:      volume,
				BlockNumber: swap.BlockNumber,
				TxHash:      swap.TxHash,
				LogIndex:    swap.LogIndex,
			})
			if errors.Is(err, ErrDustTrade) {
				w.logger.Debug("skip dust trade", zap.String("tx", log.TxHash.Hex()), zap.String("volume", volume.Dec()))
				continue
			}
			if err != nil {
				return fmt.Errorf("mint for swap %s: %w", log.TxHash.Hex(), err)
			}
			minted++

			w.logger.Debug("minted option",
				zap.Uint64("token_id", result.TokenID),
				zap.Bool("created", result.Created),
				zap.String("recipient", swap.Recipient.Hex()),
				zap.String("amount", result.Amount.Dec()),
			)
		}

		if w.cursor != nil {
			if err := w.cursor.Save(blockRange.To, w.hook.book.NextTokenID()); err != nil {
				return err
			}
		}

		w.logger.Info("batch complete",
			zap.Int("swaps", minted),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
		)
	}

	return nil
}

func (w *Watcher) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64, pool common.Address, topic common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, w.cfg.MaxRetries, w.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = w.chain.FilterLogs(ctx, fromBlock, toBlock, pool, []common.Hash{topic})
		if err != nil {
			w.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (w *Watcher) isDuplicate(seen map[string]struct{}, log types.Log) bool {
	key := swapKey(log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := w.replayed[key]; ok {
		return true
	}
	if _, ok := seen[key]; ok {
		return true
	}
	seen[key] = struct{}{}
	return false
}

func swapKey(blockNumber uint64, txHash string, logIndex uint) string {
	return fmt.Sprintf("%d:%s:%d", blockNumber, txHash, logIndex)
}

// BlockRange is an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// SplitRange splits a block range into batches of size batchSize.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	ranges := make([]BlockRange, 0)
	start := from
	for start <= to {
		remaining := to - start + 1
		var end uint64
		if remaining <= batchSize {
			end = to
		} else {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return ranges, nil
}

func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
