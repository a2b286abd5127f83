package ledger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"volmint/internal/model"
)

func TestReplayRebuildsState(t *testing.T) {
	holder := common.HexToAddress("0x1111111111111111111111111111111111111111")
	events := []model.LifecycleEvent{
		{Kind: model.EventMint, TokenID: 1, Recipient: holder.Hex(), Amount: "500", StrikePrice: "1200", ExpiryPrice: "830"},
		{Kind: model.EventMint, TokenID: 1, Recipient: holder.Hex(), Amount: "250", StrikePrice: "1200", ExpiryPrice: "830"},
		{Kind: model.EventExercise, TokenID: 1, Recipient: holder.Hex(), Amount: "100"},
		{Kind: model.EventVoid, TokenID: 1},
		{Kind: model.EventMint, TokenID: 2, Recipient: holder.Hex(), Amount: "10", StrikePrice: "1200", ExpiryPrice: "830"},
	}

	l, err := Replay(events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if l.IsValid(1) {
		t.Fatalf("token 1 was voided, must stay invalid")
	}
	if !l.IsValid(2) {
		t.Fatalf("token 2 should be live")
	}
	if got := l.BalanceOf(holder, 1); !got.Eq(uint256.NewInt(650)) {
		t.Fatalf("token 1 balance mismatch: got %s", got)
	}
	if got := l.BalanceOf(holder, 2); !got.Eq(uint256.NewInt(10)) {
		t.Fatalf("token 2 balance mismatch: got %s", got)
	}
	if l.NextTokenID() != 3 {
		t.Fatalf("next id should be 3, got %d", l.NextTokenID())
	}
}

func TestReplayRejectsIDDrift(t *testing.T) {
	events := []model.LifecycleEvent{
		{Kind: model.EventMint, TokenID: 7, Recipient: "0x1111111111111111111111111111111111111111", Amount: "1", StrikePrice: "12", ExpiryPrice: "8"},
	}
	if _, err := Replay(events); err == nil {
		t.Fatalf("expected id mismatch error")
	}
}

func TestReplayRejectsUnknownKind(t *testing.T) {
	events := []model.LifecycleEvent{{Kind: "transfer", TokenID: 1}}
	if _, err := Replay(events); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
