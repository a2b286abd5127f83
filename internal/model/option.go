package model

// OptionRecord is a persisted option identity. Prices are decimal
// strings since they exceed 64 bits.
type OptionRecord struct {
	PoolAddress string `json:"pool_address"`
	TokenID     uint64 `json:"token_id"`
	StrikePrice string `json:"strike_price"`
	ExpiryPrice string `json:"expiry_price"`
	Void        bool   `json:"void"`
}

// Lifecycle event kinds.
const (
	EventMint     = "mint"
	EventVoid     = "void"
	EventExercise = "exercise"
)

// LifecycleEvent records one option state transition.
type LifecycleEvent struct {
	Kind        string `json:"kind"`
	PoolAddress string `json:"pool_address"`
	TokenID     uint64 `json:"token_id"`
	Recipient   string `json:"recipient,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Settlement  string `json:"settlement,omitempty"`
	StrikePrice string `json:"strike_price,omitempty"`
	ExpiryPrice string `json:"expiry_price,omitempty"`
	Volatility  string `json:"volatility,omitempty"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	TxHash      string `json:"tx_hash,omitempty"`
	LogIndex    uint   `json:"log_index,omitempty"`
	Timestamp   uint64 `json:"timestamp"`
}
