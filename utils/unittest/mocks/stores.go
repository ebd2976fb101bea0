package mocks

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumkey/quorumkey/model"
	"github.com/quorumkey/quorumkey/module"
	"github.com/quorumkey/quorumkey/storage"
)

// SignerStore is an in-memory implementation of module.SignerStore.
type SignerStore struct {
	mu      sync.Mutex
	signers map[string]*model.Signer

	// CreateErr, StatusErr, and ResultErr force the corresponding calls to
	// fail when set.
	CreateErr error
	StatusErr error
	ResultErr error
}

var _ module.SignerStore = (*SignerStore)(nil)

func NewSignerStore(signers ...*model.Signer) *SignerStore {
	store := &SignerStore{signers: make(map[string]*model.Signer)}
	for _, signer := range signers {
		store.signers[signer.ID] = signer
	}
	return store
}

func (s *SignerStore) ByID(ctx context.Context, signerID string) (*model.Signer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	signer, ok := s.signers[signerID]
	if !ok {
		return nil, model.NewNotFoundError("signer", signerID)
	}
	clone := *signer
	return &clone, nil
}

func (s *SignerStore) Create(ctx context.Context, signer *model.Signer) error {
	if s.CreateErr != nil {
		return s.CreateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *signer
	s.signers[signer.ID] = &clone
	return nil
}

func (s *SignerStore) SetDKGResult(ctx context.Context, signerID string, address common.Address, sharePath string) error {
	if s.ResultErr != nil {
		return s.ResultErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	signer, ok := s.signers[signerID]
	if !ok {
		return model.NewNotFoundError("signer", signerID)
	}
	signer.EthAddress = address
	signer.SharePath = sharePath
	signer.DKGCompleted = true
	return nil
}

func (s *SignerStore) SetStatus(ctx context.Context, signerID string, status model.SignerStatus) error {
	if s.StatusErr != nil {
		return s.StatusErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	signer, ok := s.signers[signerID]
	if !ok {
		return model.NewNotFoundError("signer", signerID)
	}
	signer.Status = status
	return nil
}

// All returns the stored signers, keyed by id.
func (s *SignerStore) All() map[string]*model.Signer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*model.Signer, len(s.signers))
	for id, signer := range s.signers {
		clone := *signer
		out[id] = &clone
	}
	return out
}

// ShareStore is an in-memory implementation of storage.ShareStore.
type ShareStore struct {
	mu     sync.Mutex
	shares map[string][]byte

	// StoreErr and DeleteErr force the corresponding calls to fail when set.
	StoreErr  error
	DeleteErr error

	// Deleted records every deleted path in order.
	Deleted []string
}

var _ storage.ShareStore = (*ShareStore)(nil)

func NewShareStore() *ShareStore {
	return &ShareStore{shares: make(map[string][]byte)}
}

func (s *ShareStore) StoreShare(ctx context.Context, path string, data []byte) error {
	if s.StoreErr != nil {
		return s.StoreErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shares[path] = append([]byte{}, data...)
	return nil
}

func (s *ShareStore) GetShare(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.shares[path]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte{}, data...), nil
}

func (s *ShareStore) DeleteShare(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deleted = append(s.Deleted, path)
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	delete(s.shares, path)
	return nil
}

func (s *ShareStore) HealthCheck(ctx context.Context) bool {
	return true
}

// Has reports whether a path is stored.
func (s *ShareStore) Has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.shares[path]
	return ok
}

// PolicyStore returns a fixed policy list for every signer.
type PolicyStore struct {
	Policies []model.Policy
	Err      error
}

var _ module.PolicyStore = (*PolicyStore)(nil)

func (p *PolicyStore) PoliciesForSigner(ctx context.Context, signerID string) ([]model.Policy, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Policies, nil
}

// UsageSource returns fixed rolling aggregates.
type UsageSource struct {
	Daily    *big.Int
	Monthly  *big.Int
	LastHour int
}

var _ module.UsageSource = (*UsageSource)(nil)

func (u *UsageSource) DailySpend(ctx context.Context, signerID string) (*big.Int, error) {
	if u.Daily == nil {
		return new(big.Int), nil
	}
	return u.Daily, nil
}

func (u *UsageSource) MonthlySpend(ctx context.Context, signerID string) (*big.Int, error) {
	if u.Monthly == nil {
		return new(big.Int), nil
	}
	return u.Monthly, nil
}

func (u *UsageSource) RequestCountLastHour(ctx context.Context, signerID string) (int, error) {
	return u.LastHour, nil
}
