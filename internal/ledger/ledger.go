package ledger

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var (
	// ErrZeroAmount is returned for zero mint/burn amounts.
	ErrZeroAmount = errors.New("amount cannot be zero")

	// ErrZeroPrice is returned for a zero strike or expiry price.
	ErrZeroPrice = errors.New("price cannot be zero")

	// ErrUnknownToken is returned for an id the ledger never issued.
	ErrUnknownToken = errors.New("unknown token id")

	// ErrVoidToken is returned when an operation requires a live id.
	ErrVoidToken = errors.New("token is void")

	// ErrInsufficientBalance is returned when a burn exceeds the holder's
	// balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// OptionToken is the recorded identity of an issued option.
type OptionToken struct {
	ID          uint64
	StrikePrice *uint256.Int
	ExpiryPrice *uint256.Int
	Void        bool
}

type priceKey [32]byte

// Ledger tracks option identities, their lifecycle, and holder balances.
// Exactly one live id exists per (strike, expiry) pair; voided ids are
// terminal and a later mint for the same pair allocates a fresh id.
//
// Ledger is not safe for concurrent use; the hook serializes access.
type Ledger struct {
	nextTokenID uint64
	tokens      map[uint64]*OptionToken
	pairIndex   map[common.Hash]uint64
	expiryIndex map[priceKey][]uint64
	balances    map[uint64]map[common.Address]*uint256.Int
}

// New returns an empty ledger with the id counter at one.
func New() *Ledger {
	return &Ledger{
		nextTokenID: 1,
		tokens:      make(map[uint64]*OptionToken),
		pairIndex:   make(map[common.Hash]uint64),
		expiryIndex: make(map[priceKey][]uint64),
		balances:    make(map[uint64]map[common.Address]*uint256.Int),
	}
}

// PairKey is the canonical identity of a (strike, expiry) pair.
func PairKey(strike, expiry *uint256.Int) common.Hash {
	s := strike.Bytes32()
	e := expiry.Bytes32()
	return crypto.Keccak256Hash(s[:], e[:])
}

func expiryKey(expiry *uint256.Int) priceKey {
	return expiry.Bytes32()
}

// Mint credits amount of the live option for the (strike, expiry) pair
// to the recipient, allocating a fresh id when the pair has no live id.
// It returns the id credited and whether a new id was allocated.
func (l *Ledger) Mint(recipient common.Address, amount, strike, expiry *uint256.Int) (uint64, bool, error) {
	if amount == nil || amount.IsZero() {
		return 0, false, ErrZeroAmount
	}
	if strike == nil || strike.IsZero() || expiry == nil || expiry.IsZero() {
		return 0, false, ErrZeroPrice
	}

	key := PairKey(strike, expiry)
	if id, ok := l.pairIndex[key]; ok {
		if tok := l.tokens[id]; tok != nil && !tok.Void {
			l.credit(id, recipient, amount)
			return id, false, nil
		}
	}

	id := l.nextTokenID
	l.nextTokenID++

	l.tokens[id] = &OptionToken{
		ID:          id,
		StrikePrice: new(uint256.Int).Set(strike),
		ExpiryPrice: new(uint256.Int).Set(expiry),
	}
	l.pairIndex[key] = id

	ek := expiryKey(expiry)
	l.expiryIndex[ek] = append(l.expiryIndex[ek], id)

	l.credit(id, recipient, amount)
	return id, true, nil
}

func (l *Ledger) credit(id uint64, recipient common.Address, amount *uint256.Int) {
	holders := l.balances[id]
	if holders == nil {
		holders = make(map[common.Address]*uint256.Int)
		l.balances[id] = holders
	}
	bal := holders[recipient]
	if bal == nil {
		bal = new(uint256.Int)
		holders[recipient] = bal
	}
	bal.Add(bal, amount)
}

// Burn removes amount of id from the holder, for the exercise flow.
func (l *Ledger) Burn(holder common.Address, id uint64, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	tok, ok := l.tokens[id]
	if !ok {
		return ErrUnknownToken
	}
	if tok.Void {
		return ErrVoidToken
	}

	bal := l.balances[id][holder]
	if bal == nil || bal.Lt(amount) {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	return nil
}

// VoidByExpiryPrice voids every live id recorded under the expiry price
// and drops the emptied bucket. Already-void ids are a no-op, so the
// call is idempotent.
func (l *Ledger) VoidByExpiryPrice(expiry *uint256.Int) []uint64 {
	if expiry == nil {
		return nil
	}
	ek := expiryKey(expiry)
	ids := l.expiryIndex[ek]
	if len(ids) == 0 {
		return nil
	}

	voided := make([]uint64, 0, len(ids))
	// The bucket is consumed front-first so a mutation mid-sweep can
	// never skip an element.
	for len(ids) > 0 {
		id := ids[0]
		ids = ids[1:]
		if l.voidOne(id) {
			voided = append(voided, id)
		}
	}
	delete(l.expiryIndex, ek)
	return voided
}

// VoidByTokenID voids a single id. Unknown and already-void ids are
// no-ops; it reports whether a transition happened.
func (l *Ledger) VoidByTokenID(id uint64) bool {
	tok, ok := l.tokens[id]
	if !ok || tok.Void {
		return false
	}
	l.removeFromExpiry(tok)
	return l.voidOne(id)
}

func (l *Ledger) voidOne(id uint64) bool {
	tok, ok := l.tokens[id]
	if !ok || tok.Void {
		return false
	}
	tok.Void = true
	return true
}

func (l *Ledger) removeFromExpiry(tok *OptionToken) {
	ek := expiryKey(tok.ExpiryPrice)
	ids := l.expiryIndex[ek]
	for i, id := range ids {
		if id == tok.ID {
			// Order is not guaranteed across mutations; swap-remove.
			ids[i] = ids[len(ids)-1]
			ids = ids[:len(ids)-1]
			break
		}
	}
	if len(ids) == 0 {
		delete(l.expiryIndex, ek)
	} else {
		l.expiryIndex[ek] = ids
	}
}

// IsValid reports whether id refers to a live option. Zero, unknown, and
// void ids are invalid.
func (l *Ledger) IsValid(id uint64) bool {
	if id == 0 {
		return false
	}
	tok, ok := l.tokens[id]
	return ok && !tok.Void
}

// Token returns the recorded option for id.
func (l *Ledger) Token(id uint64) (OptionToken, error) {
	tok, ok := l.tokens[id]
	if !ok {
		return OptionToken{}, ErrUnknownToken
	}
	out := *tok
	out.StrikePrice = new(uint256.Int).Set(tok.StrikePrice)
	out.ExpiryPrice = new(uint256.Int).Set(tok.ExpiryPrice)
	return out, nil
}

// BalanceOf returns the holder's balance of id.
func (l *Ledger) BalanceOf(holder common.Address, id uint64) *uint256.Int {
	bal := l.balances[id][holder]
	if bal == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(bal)
}

// CountLiveForExpiry returns the number of live ids under an expiry
// price.
func (l *Ledger) CountLiveForExpiry(expiry *uint256.Int) int {
	return len(l.expiryIndex[expiryKey(expiry)])
}

// LiveForExpiry returns a page of live ids under an expiry price. The
// listing is a snapshot: ordering is not stable across interleaved void
// calls.
func (l *Ledger) LiveForExpiry(expiry *uint256.Int, offset, limit int) []uint64 {
	ids := l.expiryIndex[expiryKey(expiry)]
	if offset < 0 || offset >= len(ids) || limit <= 0 {
		return nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	out := make([]uint64, end-offset)
	copy(out, ids[offset:end])
	return out
}

// NextTokenID exposes the id counter for persistence snapshots.
func (l *Ledger) NextTokenID() uint64 {
	return l.nextTokenID
}

// Tokens returns a copy of every recorded option, live or void.
func (l *Ledger) Tokens() []OptionToken {
	out := make([]OptionToken, 0, len(l.tokens))
	for _, tok := range l.tokens {
		cp := *tok
		cp.StrikePrice = new(uint256.Int).Set(tok.StrikePrice)
		cp.ExpiryPrice = new(uint256.Int).Set(tok.ExpiryPrice)
		out = append(out, cp)
	}
	return out
}
