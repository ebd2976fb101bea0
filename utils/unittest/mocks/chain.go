package mocks

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/quorumkey/quorumkey/module"
)

// Chain is an in-memory chain adapter. Nonces are served from the Nonces
// map; broadcasts are recorded.
type Chain struct {
	mu sync.Mutex

	Nonces map[common.Address]uint64

	// NonceErr and BroadcastErr force the corresponding calls to fail.
	NonceErr     error
	BroadcastErr error

	// NonceQueries counts GetNonce calls per address.
	NonceQueries map[common.Address]int

	// Broadcasts records every raw transaction submitted.
	Broadcasts [][]byte
}

var _ module.Chain = (*Chain)(nil)

func NewChain() *Chain {
	return &Chain{
		Nonces:       make(map[common.Address]uint64),
		NonceQueries: make(map[common.Address]int),
	}
}

func (c *Chain) GetNonce(ctx context.Context, address common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.NonceQueries[address]++
	if c.NonceErr != nil {
		return 0, c.NonceErr
	}
	return c.Nonces[address], nil
}

func (c *Chain) SuggestFees(ctx context.Context) (*module.FeeSuggestion, error) {
	return &module.FeeSuggestion{
		GasTipCap: big.NewInt(1_500_000_000),
		GasFeeCap: big.NewInt(30_000_000_000),
		GasLimit:  21_000,
	}, nil
}

func (c *Chain) BroadcastTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.BroadcastErr != nil {
		return common.Hash{}, c.BroadcastErr
	}
	c.Broadcasts = append(c.Broadcasts, append([]byte{}, raw...))
	return ethcrypto.Keccak256Hash(raw), nil
}
