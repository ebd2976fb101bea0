package module

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FeeSuggestion carries the fee parameters for an EIP-1559 transaction.
type FeeSuggestion struct {
	GasTipCap *big.Int
	GasFeeCap *big.Int
	GasLimit  uint64
}

// Chain is the narrow surface of a blockchain adapter used by the signing
// core. The wire-level RPC implementation lives outside this module.
type Chain interface {
	// GetNonce returns the authoritative next nonce for the address.
	GetNonce(ctx context.Context, address common.Address) (uint64, error)

	// SuggestFees returns fee parameters for a new transaction.
	SuggestFees(ctx context.Context) (*FeeSuggestion, error)

	// BroadcastTransaction submits a serialized signed transaction and
	// returns its hash.
	BroadcastTransaction(ctx context.Context, raw []byte) (common.Hash, error)
}
