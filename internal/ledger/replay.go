package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"volmint/internal/model"
)

// Replay rebuilds a ledger from an ordered lifecycle event stream.
// Token ids are allocated sequentially, so replaying the journal in
// append order reproduces the exact ids it recorded.
func Replay(events []model.LifecycleEvent) (*Ledger, error) {
	l := New()
	for i, ev := range events {
		if err := l.apply(ev); err != nil {
			return nil, fmt.Errorf("event %d (%s): %w", i, ev.Kind, err)
		}
	}
	return l, nil
}

func (l *Ledger) apply(ev model.LifecycleEvent) error {
	switch ev.Kind {
	case model.EventMint:
		amount, err := uint256.FromDecimal(ev.Amount)
		if err != nil {
			return fmt.Errorf("amount %q: %w", ev.Amount, err)
		}
		strike, err := uint256.FromDecimal(ev.StrikePrice)
		if err != nil {
			return fmt.Errorf("strike %q: %w", ev.StrikePrice, err)
		}
		expiry, err := uint256.FromDecimal(ev.ExpiryPrice)
		if err != nil {
			return fmt.Errorf("expiry %q: %w", ev.ExpiryPrice, err)
		}
		id, _, err := l.Mint(common.HexToAddress(ev.Recipient), amount, strike, expiry)
		if err != nil {
			return err
		}
		if id != ev.TokenID {
			return fmt.Errorf("replayed id %d, journal has %d", id, ev.TokenID)
		}
	case model.EventVoid:
		l.VoidByTokenID(ev.TokenID)
	case model.EventExercise:
		amount, err := uint256.FromDecimal(ev.Amount)
		if err != nil {
			return fmt.Errorf("amount %q: %w", ev.Amount, err)
		}
		return l.Burn(common.HexToAddress(ev.Recipient), ev.TokenID, amount)
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return nil
}
