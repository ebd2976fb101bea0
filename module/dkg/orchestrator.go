// Package dkg orchestrates the 3-party distributed key-generation ceremony
// around the opaque threshold-scheme primitive: it tracks pending ceremony
// sessions, feeds the primitive with pooled auxiliary material, persists the
// server's share, and guarantees that every secret buffer it touches is
// zero-filled before returning, on success and failure alike.
package dkg

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/quorumkey/quorumkey/model"
	"github.com/quorumkey/quorumkey/module"
	"github.com/quorumkey/quorumkey/module/auxpool"
	"github.com/quorumkey/quorumkey/module/secret"
	"github.com/quorumkey/quorumkey/storage"
)

const (
	// Parties and Threshold are fixed by the product: signing authority is
	// split three ways, any two cooperate to sign.
	Parties   = 3
	Threshold = 2

	// serverShareIndex is the bundle reserved for server-side custody; the
	// other two are returned to the caller.
	serverShareIndex = 1
)

// Config holds the orchestrator tunables.
type Config struct {
	// PendingTTL is how long an initialized ceremony may wait for finalize.
	PendingTTL time.Duration
	// SweepInterval is the period of the abandoned-session sweep.
	SweepInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		PendingTTL:    180 * time.Second,
		SweepInterval: 30 * time.Second,
	}
}

// AuxInfoSource supplies pre-generated auxiliary material. A nil return is
// the normal cold-start case.
type AuxInfoSource interface {
	Take(ctx context.Context) *auxpool.Entry
}

// FinalizeResult is the outcome of a completed ceremony. The two returned
// shares are base64-encoded key-material JSON blobs destined for client-side
// custody; the server's share never leaves storage.
type FinalizeResult struct {
	EthAddress  common.Address
	SignerShare string
	UserShare   string
	Provenance  model.AuxProvenance
}

// CreateParams describes the signer row the composite create-with-DKG flow
// inserts before running the ceremony.
type CreateParams struct {
	Name    string
	ChainID *big.Int
	Scheme  string
	Curve   string
}

// CreateWithDKGResult extends FinalizeResult with the new signer's identity
// and the anonymous-owner credential derived from the user share.
type CreateWithDKGResult struct {
	SignerID        string
	OwnerCredential string
	FinalizeResult
}

// Orchestrator runs DKG ceremonies. It is safe for concurrent use.
type Orchestrator struct {
	log     zerolog.Logger
	cfg     Config
	scheme  module.ThresholdScheme
	signers module.SignerStore
	store   storage.ShareStore
	pool    AuxInfoSource
	metrics module.DKGMetrics

	mu      sync.Mutex
	pending map[string]*model.PendingDKGSession

	done chan struct{}
}

func NewOrchestrator(
	log zerolog.Logger,
	cfg Config,
	scheme module.ThresholdScheme,
	signers module.SignerStore,
	store storage.ShareStore,
	pool AuxInfoSource,
	metrics module.DKGMetrics,
) *Orchestrator {
	return &Orchestrator{
		log:     log.With().Str("component", "dkg_orchestrator").Logger(),
		cfg:     cfg,
		scheme:  scheme,
		signers: signers,
		store:   store,
		pool:    pool,
		metrics: metrics,
		pending: make(map[string]*model.PendingDKGSession),
		done:    make(chan struct{}),
	}
}

// Start launches the abandoned-session sweep.
func (o *Orchestrator) Start(ctx context.Context) {
	go o.sweepLoop(ctx)
}

// Done returns a channel closed once the sweep has exited.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// Init begins a ceremony for the signer and returns the session id to be
// presented to Finalize.
func (o *Orchestrator) Init(ctx context.Context, signerID string) (string, error) {

	signer, err := o.signers.ByID(ctx, signerID)
	if err != nil {
		return "", err
	}
	if signer.DKGCompleted {
		return "", model.NewInvalidStateError("key generation already completed for signer %s", signerID)
	}

	session := &model.PendingDKGSession{
		SessionID: uuid.New().String(),
		SignerID:  signerID,
		CreatedAt: time.Now(),
	}

	o.mu.Lock()
	o.pending[session.SessionID] = session
	o.mu.Unlock()

	o.metrics.DKGStarted()
	o.log.Info().Str("signer", signerID).Str("session", session.SessionID).Msg("key-generation ceremony initialized")

	return session.SessionID, nil
}

// Finalize consumes the pending session, runs the 3-party ceremony, persists
// the server's share at path = signerID, updates the signer record, and
// returns the two client-custody shares. Every intermediate secret buffer is
// wiped before this function returns, whatever the outcome.
func (o *Orchestrator) Finalize(ctx context.Context, sessionID string, signerID string) (*FinalizeResult, error) {

	start := time.Now()

	signer, err := o.signers.ByID(ctx, signerID)
	if err != nil {
		return nil, err
	}
	if signer.DKGCompleted {
		return nil, model.NewInvalidStateError("key generation already completed for signer %s", signerID)
	}

	if err := o.consumePending(sessionID, signerID); err != nil {
		return nil, err
	}

	guard := secret.NewGuard()
	defer guard.Wipe()

	result, provenance, err := o.runCeremony(ctx, guard)
	if err != nil {
		o.metrics.DKGFailed()
		return nil, err
	}

	address, err := o.scheme.DeriveAddress(result.PublicKey)
	if err != nil {
		o.metrics.DKGFailed()
		return nil, fmt.Errorf("could not derive address: %w", err)
	}

	serverBlob, err := result.Shares[serverShareIndex].Encode()
	if err != nil {
		o.metrics.DKGFailed()
		return nil, fmt.Errorf("could not encode server share: %w", err)
	}
	guard.AddBytes(serverBlob)

	if err := o.store.StoreShare(ctx, signerID, serverBlob); err != nil {
		o.metrics.DKGFailed()
		return nil, model.NewTransientError(fmt.Errorf("could not persist server share: %w", err))
	}

	if err := o.signers.SetDKGResult(ctx, signerID, address, signerID); err != nil {
		o.metrics.DKGFailed()
		return nil, fmt.Errorf("could not update signer record: %w", err)
	}

	signerBlob, err := result.Shares[0].Encode()
	if err != nil {
		o.metrics.DKGFailed()
		return nil, fmt.Errorf("could not encode signer share: %w", err)
	}
	guard.AddBytes(signerBlob)

	userBlob, err := result.Shares[2].Encode()
	if err != nil {
		o.metrics.DKGFailed()
		return nil, fmt.Errorf("could not encode user share: %w", err)
	}
	guard.AddBytes(userBlob)

	o.metrics.DKGFinalized(time.Since(start))
	o.log.Info().
		Str("signer", signerID).
		Str("session", sessionID).
		Str("address", address.Hex()).
		Str("aux_provenance", string(provenance)).
		Dur("elapsed", time.Since(start)).
		Msg("key-generation ceremony finalized")

	return &FinalizeResult{
		EthAddress:  address,
		SignerShare: base64.StdEncoding.EncodeToString(signerBlob),
		UserShare:   base64.StdEncoding.EncodeToString(userBlob),
		Provenance:  provenance,
	}, nil
}

// CreateWithDKG creates the signer row (owner = pending sentinel), runs
// init + finalize, and derives an anonymous-owner credential from the user
// share. On any failure the signer is marked revoked rather than left
// half-initialized; that cleanup is best-effort and logged if it also fails.
func (o *Orchestrator) CreateWithDKG(ctx context.Context, params CreateParams) (*CreateWithDKGResult, error) {

	signer := &model.Signer{
		ID:        uuid.New().String(),
		Name:      params.Name,
		ChainID:   params.ChainID,
		Scheme:    params.Scheme,
		Curve:     params.Curve,
		Status:    model.SignerStatusActive,
		Owner:     model.OwnerPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := o.signers.Create(ctx, signer); err != nil {
		return nil, fmt.Errorf("could not create signer: %w", err)
	}

	sessionID, err := o.Init(ctx, signer.ID)
	if err != nil {
		o.revokeAfterFailure(ctx, signer.ID, err)
		return nil, err
	}

	finalized, err := o.Finalize(ctx, sessionID, signer.ID)
	if err != nil {
		o.revokeAfterFailure(ctx, signer.ID, err)
		return nil, err
	}

	// double hash so the credential reveals nothing about the share even if
	// a preimage of the outer hash leaks
	inner := ethcrypto.Keccak256([]byte(finalized.UserShare))
	credential := hexutil.Encode(ethcrypto.Keccak256(inner))

	return &CreateWithDKGResult{
		SignerID:        signer.ID,
		OwnerCredential: credential,
		FinalizeResult:  *finalized,
	}, nil
}

// consumePending removes the session from the pending map, enforcing the
// session/signer binding. A session is consumed exactly once.
func (o *Orchestrator) consumePending(sessionID string, signerID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	session, ok := o.pending[sessionID]
	if !ok {
		return model.NewInvalidStateError("no pending ceremony session %s", sessionID)
	}
	if session.SignerID != signerID {
		return model.NewInvalidStateError("session/signer mismatch for session %s", sessionID)
	}
	delete(o.pending, sessionID)
	return nil
}

// runCeremony obtains auxiliary material (pooled when available, generated
// cold otherwise) and executes the underlying DKG primitive, verifying the
// share-count invariant. All secret outputs are registered with the guard.
func (o *Orchestrator) runCeremony(ctx context.Context, guard *secret.Guard) (*module.DKGResult, model.AuxProvenance, error) {

	var auxData []byte
	provenance := model.AuxProvenanceCold
	if o.pool != nil {
		if entry := o.pool.Take(ctx); entry != nil {
			auxData = guard.AddBytes(entry.Data)
			provenance = model.AuxProvenancePooled
		} else {
			// an empty pool degrades latency, never availability
			o.log.Info().Msg("auxiliary-material pool empty, running cold ceremony")
		}
	}

	result, err := o.scheme.RunDKG(ctx, Parties, Threshold, auxData)
	if err != nil {
		return nil, provenance, fmt.Errorf("ceremony failed: %w", err)
	}

	for _, share := range result.Shares {
		guard.AddBytes(share.CoreShare)
		guard.AddBytes(share.AuxInfo)
	}
	guard.AddBytes(result.PublicKey)

	if len(result.Shares) != Parties {
		return nil, provenance, model.NewSecurityError("expected %d shares, got %d", Parties, len(result.Shares))
	}

	return result, provenance, nil
}

// revokeAfterFailure marks a half-initialized signer revoked.
func (o *Orchestrator) revokeAfterFailure(ctx context.Context, signerID string, cause error) {
	if revokeErr := o.signers.SetStatus(ctx, signerID, model.SignerStatusRevoked); revokeErr != nil {
		combined := multierror.Append(cause, revokeErr)
		o.log.Error().Err(combined).Str("signer", signerID).Msg("could not revoke signer after failed ceremony")
		return
	}
	o.log.Warn().Err(cause).Str("signer", signerID).Msg("signer revoked after failed ceremony")
}

// sweepLoop evicts pending sessions older than the TTL.
func (o *Orchestrator) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(o.done)
			return
		case <-ticker.C:
			o.sweep()
		}
	}
}

func (o *Orchestrator) sweep() {
	cutoff := time.Now().Add(-o.cfg.PendingTTL)

	o.mu.Lock()
	defer o.mu.Unlock()
	for id, session := range o.pending {
		if session.CreatedAt.Before(cutoff) {
			delete(o.pending, id)
			o.metrics.DKGSessionEvicted()
			o.log.Info().Str("session", id).Str("signer", session.SignerID).Msg("abandoned ceremony session evicted")
		}
	}
}

// PendingCount returns the number of ceremonies awaiting finalize.
func (o *Orchestrator) PendingCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}
