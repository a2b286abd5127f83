package hook

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"volmint/internal/ledger"
)

func TestOnSwapRecordsSwapReference(t *testing.T) {
	h, _, sink := newTestHook(t)
	ctx := context.Background()

	txHash := common.HexToHash("0xabcdef")
	if _, err := h.OnSwap(ctx, Trade{
		Recipient:   trader,
		Volume:      ether(2),
		BlockNumber: 100,
		TxHash:      txHash,
		LogIndex:    3,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sink.events) != 1 {
		t.Fatalf("expected one mint event, got %d", len(sink.events))
	}
	ev := sink.events[0]
	if ev.BlockNumber != 100 || ev.TxHash != txHash.Hex() || ev.LogIndex != 3 {
		t.Fatalf("swap reference not journaled: %+v", ev)
	}
}

// A crash between the per-swap journal write and the per-batch cursor
// save leaves the journal ahead of the cursor. On restart the replayed
// journal must keep those swaps from minting twice.
func TestResumeSkipsJournaledSwaps(t *testing.T) {
	h, _, sink := newTestHook(t)
	ctx := context.Background()

	txHash := common.HexToHash("0x1234")
	minted, err := h.OnSwap(ctx, Trade{
		Recipient:   trader,
		Volume:      ether(2),
		BlockNumber: 100,
		TxHash:      txHash,
		LogIndex:    0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Restart: ledger rebuilt from the journal, cursor still behind.
	book, err := ledger.Replay(sink.events)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if got := book.BalanceOf(trader, minted.TokenID); !got.Eq(ether(2)) {
		t.Fatalf("replayed balance mismatch: got %s", got)
	}

	w := NewWatcher(WatcherConfig{BatchSize: 10}, nil, nil, nil)
	w.MarkProcessed(sink.events)

	seen := make(map[string]struct{})
	journaledLog := types.Log{BlockNumber: 100, TxHash: txHash, Index: 0}
	if !w.isDuplicate(seen, journaledLog) {
		t.Fatalf("journaled swap must be filtered on resume")
	}

	freshLog := types.Log{BlockNumber: 101, TxHash: common.HexToHash("0x5678"), Index: 0}
	if w.isDuplicate(seen, freshLog) {
		t.Fatalf("unseen swap must pass the filter")
	}
}

func TestDuplicateFilterScopedToBatch(t *testing.T) {
	w := NewWatcher(WatcherConfig{BatchSize: 10}, nil, nil, nil)

	log := types.Log{BlockNumber: 7, TxHash: common.HexToHash("0x77"), Index: 1}

	batch := make(map[string]struct{})
	if w.isDuplicate(batch, log) {
		t.Fatalf("first sighting must not be a duplicate")
	}
	if !w.isDuplicate(batch, log) {
		t.Fatalf("repeat within the batch must be a duplicate")
	}

	// Nothing was journaled, so a fresh batch map starts clean.
	if w.isDuplicate(make(map[string]struct{}), log) {
		t.Fatalf("filter must not persist across batches")
	}
}

func TestOnSwapSkipsDustVolume(t *testing.T) {
	h, _, sink := newTestHook(t)
	ctx := context.Background()

	// One wei per WAD of volume: anything below 1e18 scales to zero.
	if err := h.SetFactor(admin, uint256.NewInt(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := h.OnSwap(ctx, tradeOf(trader, uint256.NewInt(1000)))
	if !errors.Is(err, ErrDustTrade) {
		t.Fatalf("expected ErrDustTrade, got %v", err)
	}
	if h.Ledger().NextTokenID() != 1 {
		t.Fatalf("dust trade must not allocate an id")
	}
	if len(sink.events) != 0 {
		t.Fatalf("dust trade must not journal events, got %+v", sink.events)
	}
}
