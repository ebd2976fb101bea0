package dkg

import (
	"context"
	"encoding/base64"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quorumkey/quorumkey/model"
	"github.com/quorumkey/quorumkey/module/auxpool"
	"github.com/quorumkey/quorumkey/module/metrics"
	storagemock "github.com/quorumkey/quorumkey/storage/mock"
	"github.com/quorumkey/quorumkey/utils/unittest"
	"github.com/quorumkey/quorumkey/utils/unittest/mocks"
)

// fixedPool serves pre-loaded entries, recording how many were taken.
type fixedPool struct {
	entries []*auxpool.Entry
	taken   int
}

func (p *fixedPool) Take(ctx context.Context) *auxpool.Entry {
	if len(p.entries) == 0 {
		return nil
	}
	entry := p.entries[0]
	p.entries = p.entries[1:]
	p.taken++
	return entry
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	scheme       *mocks.Scheme
	signers      *mocks.SignerStore
	store        *mocks.ShareStore
	pool         *fixedPool
}

func newFixture(signers ...*model.Signer) *orchestratorFixture {
	f := &orchestratorFixture{
		scheme:  &mocks.Scheme{},
		signers: mocks.NewSignerStore(signers...),
		store:   mocks.NewShareStore(),
		pool:    &fixedPool{},
	}
	f.orchestrator = NewOrchestrator(
		unittest.Logger(),
		DefaultConfig(),
		f.scheme,
		f.signers,
		f.store,
		f.pool,
		metrics.NewNoopCollector(),
	)
	return f
}

func TestInitAndFinalize(t *testing.T) {
	signer := unittest.SignerFixture()
	f := newFixture(signer)
	ctx := context.Background()

	sessionID, err := f.orchestrator.Init(ctx, signer.ID)
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)
	assert.Equal(t, 1, f.orchestrator.PendingCount())

	result, err := f.orchestrator.Finalize(ctx, sessionID, signer.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.orchestrator.PendingCount())

	// an empty pool means a cold ceremony
	assert.Equal(t, model.AuxProvenanceCold, result.Provenance)
	assert.NotEqual(t, common.Address{}, result.EthAddress)

	// both returned shares are valid base64 key-material blobs and differ
	for _, blob := range []string{result.SignerShare, result.UserShare} {
		raw, err := base64.StdEncoding.DecodeString(blob)
		require.NoError(t, err)
		_, err = model.DecodeKeyMaterial(raw)
		require.NoError(t, err)
	}
	assert.NotEqual(t, result.SignerShare, result.UserShare)

	// the server's share is persisted at path = signer id
	assert.True(t, f.store.Has(signer.ID))

	// the signer record carries the ceremony outcome
	updated, err := f.signers.ByID(ctx, signer.ID)
	require.NoError(t, err)
	assert.True(t, updated.DKGCompleted)
	assert.Equal(t, result.EthAddress, updated.EthAddress)
	assert.Equal(t, signer.ID, updated.SharePath)
}

func TestFinalize_UsesPooledMaterial(t *testing.T) {
	signer := unittest.SignerFixture()
	f := newFixture(signer)
	ctx := context.Background()

	auxData := []byte(`["a","b","c"]`)
	f.pool.entries = []*auxpool.Entry{{ID: "pooled", CreatedAt: time.Now(), Data: append([]byte{}, auxData...)}}

	sessionID, err := f.orchestrator.Init(ctx, signer.ID)
	require.NoError(t, err)

	result, err := f.orchestrator.Finalize(ctx, sessionID, signer.ID)
	require.NoError(t, err)

	assert.Equal(t, model.AuxProvenancePooled, result.Provenance)
	assert.Equal(t, 1, f.pool.taken)
	assert.Equal(t, auxData, f.scheme.DKGAuxInfo)
}

func TestInit_Errors(t *testing.T) {
	t.Run("unknown signer", func(t *testing.T) {
		f := newFixture()
		_, err := f.orchestrator.Init(context.Background(), "missing")
		assert.True(t, model.IsNotFoundError(err))
	})

	t.Run("already completed", func(t *testing.T) {
		signer := unittest.SignerFixture(unittest.WithDKGCompleted())
		f := newFixture(signer)
		_, err := f.orchestrator.Init(context.Background(), signer.ID)
		assert.True(t, model.IsInvalidStateError(err))
	})
}

func TestFinalize_SessionBinding(t *testing.T) {
	first := unittest.SignerFixture()
	second := unittest.SignerFixture()
	f := newFixture(first, second)
	ctx := context.Background()

	sessionID, err := f.orchestrator.Init(ctx, first.ID)
	require.NoError(t, err)

	t.Run("unknown session", func(t *testing.T) {
		_, err := f.orchestrator.Finalize(ctx, "bogus", first.ID)
		assert.True(t, model.IsInvalidStateError(err))
	})

	t.Run("session bound to another signer", func(t *testing.T) {
		_, err := f.orchestrator.Finalize(ctx, sessionID, second.ID)
		assert.True(t, model.IsInvalidStateError(err))
		// the mismatch consumes nothing; the rightful signer can still finalize
		_, err = f.orchestrator.Finalize(ctx, sessionID, first.ID)
		assert.NoError(t, err)
	})

	t.Run("session consumed exactly once", func(t *testing.T) {
		_, err := f.orchestrator.Finalize(ctx, sessionID, first.ID)
		assert.True(t, model.IsInvalidStateError(err))
	})
}

// TestFinalize_ShareCountViolation forces the primitive to emit the wrong
// number of bundles and expects a security error, with every produced buffer
// wiped on the way out.
func TestFinalize_ShareCountViolation(t *testing.T) {
	signer := unittest.SignerFixture()
	f := newFixture(signer)
	f.scheme.ShareCount = 2
	ctx := context.Background()

	sessionID, err := f.orchestrator.Init(ctx, signer.ID)
	require.NoError(t, err)

	_, err = f.orchestrator.Finalize(ctx, sessionID, signer.ID)
	require.Error(t, err)
	assert.True(t, model.IsSecurityError(err))

	requireSharesWiped(t, f.scheme)
	assert.False(t, f.store.Has(signer.ID))
}

// TestFinalize_WipesOnStorageFailure drives the persistence step into failure
// and checks the secrecy contract still holds: all share buffers zeroed, a
// transient error surfaced, no partial signer update.
func TestFinalize_WipesOnStorageFailure(t *testing.T) {
	signer := unittest.SignerFixture()

	scheme := &mocks.Scheme{}
	signers := mocks.NewSignerStore(signer)

	store := storagemock.NewShareStore(t)
	store.On("StoreShare", mock.Anything, signer.ID, mock.Anything).Return(errors.New("vault sealed"))

	o := NewOrchestrator(
		unittest.Logger(),
		DefaultConfig(),
		scheme,
		signers,
		store,
		nil,
		metrics.NewNoopCollector(),
	)
	ctx := context.Background()

	sessionID, err := o.Init(ctx, signer.ID)
	require.NoError(t, err)

	_, err = o.Finalize(ctx, sessionID, signer.ID)
	require.Error(t, err)
	assert.True(t, model.IsTransientError(err))

	requireSharesWiped(t, scheme)

	updated, err := signers.ByID(ctx, signer.ID)
	require.NoError(t, err)
	assert.False(t, updated.DKGCompleted)
}

// TestFinalize_WipesOnSuccess checks that the intermediate buffers are zeroed
// even on the happy path; only the encoded copies in the result survive.
func TestFinalize_WipesOnSuccess(t *testing.T) {
	signer := unittest.SignerFixture()
	f := newFixture(signer)
	ctx := context.Background()

	sessionID, err := f.orchestrator.Init(ctx, signer.ID)
	require.NoError(t, err)
	_, err = f.orchestrator.Finalize(ctx, sessionID, signer.ID)
	require.NoError(t, err)

	requireSharesWiped(t, f.scheme)
}

func TestCreateWithDKG(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	result, err := f.orchestrator.CreateWithDKG(ctx, CreateParams{
		Name:    "treasury",
		ChainID: big.NewInt(11155111),
		Scheme:  "cggmp24",
		Curve:   "secp256k1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.SignerID)

	// credential is a 32-byte hex digest, not the share itself
	assert.Len(t, result.OwnerCredential, 66)
	assert.NotContains(t, result.OwnerCredential, result.UserShare)

	signer, err := f.signers.ByID(ctx, result.SignerID)
	require.NoError(t, err)
	assert.Equal(t, model.SignerStatusActive, signer.Status)
	assert.Equal(t, model.OwnerPending, signer.Owner)
	assert.True(t, signer.DKGCompleted)
	assert.Equal(t, result.EthAddress, signer.EthAddress)
}

// TestCreateWithDKG_RevokesOnFailure checks that a ceremony failure inside
// the composite flow leaves the signer revoked instead of half-initialized.
func TestCreateWithDKG_RevokesOnFailure(t *testing.T) {
	f := newFixture()
	f.scheme.DKGErr = errors.New("party 2 dropped out")
	ctx := context.Background()

	_, err := f.orchestrator.CreateWithDKG(ctx, CreateParams{
		Name:    "doomed",
		ChainID: big.NewInt(1),
		Scheme:  "cggmp24",
		Curve:   "secp256k1",
	})
	require.Error(t, err)

	// the one created signer ends up revoked
	var revoked *model.Signer
	for _, created := range f.signers.All() {
		revoked = created
	}
	require.NotNil(t, revoked)
	assert.Equal(t, model.SignerStatusRevoked, revoked.Status)
}

// TestSweep checks that pending sessions past the TTL are evicted by the
// background sweep and can no longer be finalized.
func TestSweep(t *testing.T) {
	signer := unittest.SignerFixture()
	f := newFixture(signer)
	ctx := context.Background()

	sessionID, err := f.orchestrator.Init(ctx, signer.ID)
	require.NoError(t, err)

	// age the session past the TTL
	f.orchestrator.mu.Lock()
	f.orchestrator.pending[sessionID].CreatedAt = time.Now().Add(-f.orchestrator.cfg.PendingTTL - time.Second)
	f.orchestrator.mu.Unlock()

	f.orchestrator.sweep()
	assert.Equal(t, 0, f.orchestrator.PendingCount())

	_, err = f.orchestrator.Finalize(ctx, sessionID, signer.ID)
	assert.True(t, model.IsInvalidStateError(err))
}

func TestSweepLoop_StopsOnCancel(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	f.orchestrator.Start(ctx)
	cancel()
	unittest.RequireCloseBefore(t, f.orchestrator.Done(), time.Second, "sweep did not stop")
}

// requireSharesWiped asserts every buffer the scheme produced is zero-filled.
func requireSharesWiped(t *testing.T, scheme *mocks.Scheme) {
	t.Helper()
	require.NotNil(t, scheme.LastResult)
	for i, share := range scheme.LastResult.Shares {
		assert.True(t, allZero(share.CoreShare), "core share %d not wiped", i)
		assert.True(t, allZero(share.AuxInfo), "aux info %d not wiped", i)
	}
}

func allZero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
