// Package noncer implements the per-address transaction nonce sequencer.
//
// All reservations for all addresses are serialized behind a single mutex.
// The critical section spans the authoritative chain query, so per-address
// locking would buy little; one serialization point with a microsecond hold
// time (plus the occasional RPC on a cold cache) keeps the invariant simple:
// two concurrent reservations for the same address never return the same
// nonce.
package noncer

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/quorumkey/quorumkey/model"
	"github.com/quorumkey/quorumkey/module"
)

type account struct {
	// next is the cached next-nonce counter; only meaningful while cached
	// is true. The chain, not this cache, is ground truth for finality: a
	// release invalidates the cache so the next reservation re-queries.
	next     uint64
	cached   bool
	reserved map[uint64]struct{}
}

// Sequencer hands out per-address monotonic nonces with reservation and
// release semantics, backed by the chain adapter's authoritative view.
type Sequencer struct {
	log      zerolog.Logger
	chain    module.Chain
	metrics  module.SigningMetrics
	mu       sync.Mutex
	accounts map[common.Address]*account
}

func New(log zerolog.Logger, chain module.Chain, metrics module.SigningMetrics) *Sequencer {
	return &Sequencer{
		log:      log.With().Str("component", "nonce_sequencer").Logger(),
		chain:    chain,
		metrics:  metrics,
		accounts: make(map[common.Address]*account),
	}
}

// GetNext reserves and returns the next available nonce for the address.
// The first call for an address (and the first call after a release)
// queries the chain; subsequent calls serve from the cache, skipping past
// any nonce still reserved in flight.
func (s *Sequencer) GetNext(ctx context.Context, address common.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[address]
	if !ok {
		acct = &account{reserved: make(map[uint64]struct{})}
		s.accounts[address] = acct
	}

	if !acct.cached {
		onchain, err := s.chain.GetNonce(ctx, address)
		if err != nil {
			return 0, model.NewTransientError(fmt.Errorf("could not query chain nonce for %s: %w", address.Hex(), err))
		}
		acct.next = onchain
		acct.cached = true
	}

	candidate := acct.next
	for {
		if _, taken := acct.reserved[candidate]; !taken {
			break
		}
		candidate++
	}

	acct.reserved[candidate] = struct{}{}
	acct.next = candidate + 1
	s.metrics.NonceReserved()

	s.log.Debug().
		Str("address", address.Hex()).
		Uint64("nonce", candidate).
		Msg("nonce reserved")

	return candidate, nil
}

// Release returns a reserved nonce after a failed or rejected signing
// attempt. It invalidates the cached counter: whether the nonce is reusable
// depends on what reached the chain, so the next reservation must ask the
// chain rather than trust the cache.
func (s *Sequencer) Release(address common.Address, nonce uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[address]
	if !ok {
		return
	}
	if _, reserved := acct.reserved[nonce]; !reserved {
		return
	}

	delete(acct.reserved, nonce)
	acct.cached = false
	s.metrics.NonceReleased()

	s.log.Debug().
		Str("address", address.Hex()).
		Uint64("nonce", nonce).
		Msg("nonce released, cache invalidated")
}

// Reserved returns the number of in-flight reservations for the address.
func (s *Sequencer) Reserved(address common.Address) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[address]
	if !ok {
		return 0
	}
	return len(acct.reserved)
}
