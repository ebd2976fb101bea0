// Package signing implements the multi-round interactive signing session
// manager. A session runs the 2-of-3 threshold ECDSA protocol between the
// server's share and a client-held share, producing a signed transaction or
// an EIP-191 message signature without ever reconstructing the private key.
//
// Every session is gated by the policy engine before any cryptographic work
// begins, and transaction sessions hold a nonce reservation that is released
// on any failure or eviction after the reservation was made.
package signing

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quorumkey/quorumkey/model"
	"github.com/quorumkey/quorumkey/module"
	"github.com/quorumkey/quorumkey/module/noncer"
	"github.com/quorumkey/quorumkey/module/policy"
	"github.com/quorumkey/quorumkey/storage"
)

// Config holds the session manager tunables.
type Config struct {
	// SessionTTL is how long an untouched session survives before the sweep
	// evicts it.
	SessionTTL time.Duration
	// SweepInterval is the period of the eviction sweep.
	SweepInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		SessionTTL:    2 * time.Minute,
		SweepInterval: 15 * time.Second,
	}
}

// Request describes a new signing session.
type Request struct {
	SignerID      string
	Kind          model.SignRequestKind
	Transaction   *model.TransactionRequest // transaction kind only
	Message       []byte                    // message kind only, signed per EIP-191
	FirstMessages [][]byte                  // initiator's first protocol round
	Path          model.SigningPath
	CallerIP      string
}

// CreateResult is returned by CreateSession.
type CreateResult struct {
	SessionID   string
	OutMessages [][]byte
}

// RoundResult is returned by ProcessRound. MessageHash is non-nil once
// presigning has completed and the digest to be signed is known; for
// transaction flows that is the point where nonce and fee fields have been
// fixed.
type RoundResult struct {
	OutMessages [][]byte
	Presigned   bool
	MessageHash []byte
}

// CompleteResult is returned by CompleteSign. For transaction sessions the
// transaction has been broadcast and TxHash is set; for message sessions
// Signature carries the 65-byte [R || S || V] signature with V in 27/28
// convention.
type CompleteResult struct {
	Signature []byte
	SignedTx  []byte
	TxHash    common.Hash
}

// Manager owns all in-flight signing sessions.
type Manager struct {
	log      zerolog.Logger
	cfg      Config
	scheme   module.ThresholdScheme
	signers  module.SignerStore
	policies module.PolicyStore
	usage    module.UsageSource
	store    storage.ShareStore
	chain    module.Chain
	noncer   *noncer.Sequencer
	engine   *policy.Engine
	metrics  module.SigningMetrics

	mu       sync.Mutex
	sessions map[string]*session

	done chan struct{}
}

func NewManager(
	log zerolog.Logger,
	cfg Config,
	scheme module.ThresholdScheme,
	signers module.SignerStore,
	policies module.PolicyStore,
	usage module.UsageSource,
	store storage.ShareStore,
	chain module.Chain,
	sequencer *noncer.Sequencer,
	engine *policy.Engine,
	metrics module.SigningMetrics,
) *Manager {
	return &Manager{
		log:      log.With().Str("engine", "signing_manager").Logger(),
		cfg:      cfg,
		scheme:   scheme,
		signers:  signers,
		policies: policies,
		usage:    usage,
		store:    store,
		chain:    chain,
		noncer:   sequencer,
		engine:   engine,
		metrics:  metrics,
		sessions: make(map[string]*session),
		done:     make(chan struct{}),
	}
}

// Start launches the eviction sweep.
func (m *Manager) Start(ctx context.Context) {
	go m.sweepLoop(ctx)
}

// Done returns a channel closed once the sweep has exited.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// CreateSession authorizes, prepares, and opens a signing session. The
// policy evaluation happens before the nonce reservation, the share load,
// and any protocol computation; a denied request performs no cryptographic
// work at all.
func (m *Manager) CreateSession(ctx context.Context, req Request) (*CreateResult, error) {

	signer, err := m.signers.ByID(ctx, req.SignerID)
	if err != nil {
		return nil, err
	}
	if signer.Status != model.SignerStatusActive {
		return nil, model.NewInvalidStateError("signer %s is %s", signer.ID, signer.Status)
	}
	if !signer.DKGCompleted {
		return nil, model.NewInvalidStateError("signer %s has no generated key", signer.ID)
	}

	pctx, err := m.buildPolicyContext(ctx, signer, req)
	if err != nil {
		return nil, err
	}
	policies, err := m.policies.PoliciesForSigner(ctx, signer.ID)
	if err != nil {
		return nil, model.NewTransientError(fmt.Errorf("could not load policies: %w", err))
	}
	result := m.engine.Evaluate(policies, *pctx)
	if !result.Allowed {
		return nil, model.NewPolicyViolationError(result.Violations)
	}

	s := &session{
		id:        uuid.New().String(),
		signerID:  signer.ID,
		signer:    signer,
		path:      req.Path,
		callerIP:  req.CallerIP,
		kind:      req.Kind,
		state:     model.SignSessionCreated,
		txRequest: req.Transaction,
		message:   req.Message,
		createdAt: time.Now(),
	}

	// message sessions know their digest up front; transaction digests
	// arrive only after nonce and fee fields are fixed
	if req.Kind == model.SignRequestMessage {
		copy(s.digest[:], accounts.TextHash(req.Message))
		s.digestKnown = true
	}

	if req.Kind == model.SignRequestTransaction {
		nonce, err := m.noncer.GetNext(ctx, signer.EthAddress)
		if err != nil {
			return nil, err
		}
		s.nonce = nonce
		s.nonceReserved = true
	}

	proto, out, err := m.initProtocol(ctx, signer, req.FirstMessages)
	if err != nil {
		m.releaseNonce(s)
		return nil, err
	}
	s.proto = proto
	s.state = model.SignSessionRound

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.metrics.SignSessionStarted()
	m.log.Info().
		Str("signer", signer.ID).
		Str("session", s.id).
		Str("kind", string(req.Kind)).
		Str("path", string(req.Path)).
		Msg("signing session created")

	return &CreateResult{SessionID: s.id, OutMessages: out}, nil
}

// ProcessRound feeds the counterparty's messages into the session and
// returns this party's next messages. Once presigning completes for a
// transaction session, the nonce and fee fields are fixed and the digest to
// be signed becomes available.
func (m *Manager) ProcessRound(ctx context.Context, sessionID string, signerID string, incoming [][]byte) (*RoundResult, error) {

	s, err := m.lookup(sessionID, signerID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != model.SignSessionRound && s.state != model.SignSessionPresigned {
		return nil, model.NewInvalidStateError("session %s is %s", sessionID, s.state)
	}

	out, presigned, err := s.proto.NextRound(incoming)
	if err != nil {
		m.failSession(s, err)
		return nil, fmt.Errorf("protocol round failed: %w", err)
	}
	s.rounds++

	result := &RoundResult{OutMessages: out, Presigned: presigned}
	if !presigned {
		return result, nil
	}
	s.state = model.SignSessionPresigned

	if s.kind == model.SignRequestTransaction && !s.digestKnown {
		if err := m.fixTransactionDigest(ctx, s); err != nil {
			m.failSession(s, err)
			return nil, err
		}
	}
	result.MessageHash = append([]byte{}, s.digest[:]...)

	return result, nil
}

// CompleteSign feeds the final protocol message together with the digest and
// finishes the flow: transaction sessions are serialized and broadcast,
// message sessions return the raw signature.
func (m *Manager) CompleteSign(ctx context.Context, sessionID string, signerID string, lastMessage []byte, digest []byte) (*CompleteResult, error) {

	s, err := m.lookup(sessionID, signerID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != model.SignSessionPresigned {
		return nil, model.NewInvalidStateError("session %s is %s, expected presigned", sessionID, s.state)
	}
	if s.digestKnown && digest != nil && !equalDigest(s.digest, digest) {
		return nil, model.NewInvalidStateError("digest mismatch for session %s", sessionID)
	}

	sig, err := s.proto.Complete(lastMessage, s.digest)
	if err != nil {
		m.failSession(s, err)
		return nil, fmt.Errorf("could not complete signature: %w", err)
	}

	switch s.kind {

	case model.SignRequestTransaction:
		raw, txHash, err := m.broadcast(ctx, s, sig)
		if err != nil {
			m.failSession(s, err)
			return nil, err
		}
		m.finishSession(s)
		return &CompleteResult{SignedTx: raw, TxHash: txHash}, nil

	case model.SignRequestMessage:
		m.finishSession(s)
		return &CompleteResult{Signature: packSignature(sig, 27)}, nil

	default:
		m.failSession(s, fmt.Errorf("unknown request kind %q", s.kind))
		return nil, model.NewInvalidStateError("unknown request kind %q", s.kind)
	}
}

// SessionCount returns the number of in-flight sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// initProtocol loads the server's persisted key material and initializes the
// scheme's session state. The decoded material is wiped as soon as the
// scheme has consumed it.
func (m *Manager) initProtocol(ctx context.Context, signer *model.Signer, first [][]byte) (module.SignSession, [][]byte, error) {

	blob, err := m.store.GetShare(ctx, signer.SharePath)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, nil, model.NewNotFoundError("server share", signer.SharePath)
		}
		return nil, nil, model.NewTransientError(fmt.Errorf("could not load server share: %w", err))
	}

	material, err := model.DecodeKeyMaterial(blob)
	if err != nil {
		return nil, nil, model.NewSecurityError("server share at %s is corrupt: %v", signer.SharePath, err)
	}
	defer material.Wipe()

	proto, out, err := m.scheme.NewSignSession(material, first)
	if err != nil {
		return nil, nil, fmt.Errorf("could not initialize protocol state: %w", err)
	}
	return proto, out, nil
}

// fixTransactionDigest obtains fee parameters, assembles the unsigned
// transaction with the reserved nonce, and computes the signing digest.
func (m *Manager) fixTransactionDigest(ctx context.Context, s *session) error {

	fees, err := m.chain.SuggestFees(ctx)
	if err != nil {
		return model.NewTransientError(fmt.Errorf("could not obtain fee suggestion: %w", err))
	}

	gasLimit := s.txRequest.GasLimit
	if gasLimit == 0 {
		gasLimit = fees.GasLimit
	}

	value := s.txRequest.ValueWei
	if value == nil {
		value = new(big.Int)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.signer.ChainID,
		Nonce:     s.nonce,
		GasTipCap: fees.GasTipCap,
		GasFeeCap: fees.GasFeeCap,
		Gas:       gasLimit,
		To:        s.txRequest.To,
		Value:     value,
		Data:      s.txRequest.Data,
	})

	s.unsigned = tx
	s.digest = types.LatestSignerForChainID(s.signer.ChainID).Hash(tx)
	s.digestKnown = true

	return nil
}

// broadcast attaches the signature, serializes, and submits the transaction.
func (m *Manager) broadcast(ctx context.Context, s *session, sig *module.Signature) ([]byte, common.Hash, error) {

	signedTx, err := s.unsigned.WithSignature(
		types.LatestSignerForChainID(s.signer.ChainID),
		packSignature(sig, 0),
	)
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("could not attach signature: %w", err)
	}

	raw, err := signedTx.MarshalBinary()
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("could not serialize transaction: %w", err)
	}

	txHash, err := m.chain.BroadcastTransaction(ctx, raw)
	if err != nil {
		return nil, common.Hash{}, model.NewTransientError(fmt.Errorf("could not broadcast transaction: %w", err))
	}

	m.log.Info().
		Str("session", s.id).
		Str("signer", s.signerID).
		Uint64("nonce", s.nonce).
		Str("tx_hash", txHash.Hex()).
		Msg("transaction broadcast")

	return raw, txHash, nil
}

// buildPolicyContext freezes the request snapshot policies evaluate against.
func (m *Manager) buildPolicyContext(ctx context.Context, signer *model.Signer, req Request) (*model.PolicyContext, error) {

	daily, err := m.usage.DailySpend(ctx, signer.ID)
	if err != nil {
		return nil, model.NewTransientError(fmt.Errorf("could not load daily spend: %w", err))
	}
	monthly, err := m.usage.MonthlySpend(ctx, signer.ID)
	if err != nil {
		return nil, model.NewTransientError(fmt.Errorf("could not load monthly spend: %w", err))
	}
	recent, err := m.usage.RequestCountLastHour(ctx, signer.ID)
	if err != nil {
		return nil, model.NewTransientError(fmt.Errorf("could not load request count: %w", err))
	}

	now := time.Now().UTC()
	pctx := &model.PolicyContext{
		SignerAddress:        signer.EthAddress,
		ChainID:              signer.ChainID,
		ValueWei:             new(big.Int),
		DailySpendWei:        daily,
		MonthlySpendWei:      monthly,
		RequestCountLastHour: recent,
		HourUTC:              now.Hour(),
		CallerIP:             req.CallerIP,
		Timestamp:            now,
	}

	switch req.Kind {
	case model.SignRequestTransaction:
		if req.Transaction == nil {
			return nil, model.NewInvalidStateError("transaction request missing transaction payload")
		}
		pctx.ToAddress = req.Transaction.To
		if req.Transaction.ValueWei != nil {
			pctx.ValueWei = new(big.Int).Set(req.Transaction.ValueWei)
		}
		pctx.Calldata = req.Transaction.Data
		if len(req.Transaction.Data) >= 4 {
			pctx.FunctionSelector = hexutil.Encode(req.Transaction.Data[:4])
		}
	case model.SignRequestMessage:
		// message signing moves no value and has no destination; the
		// signer's own address stands in so address-list policies do not
		// misread it as a contract deployment
		self := signer.EthAddress
		pctx.ToAddress = &self
		pctx.Calldata = req.Message
	default:
		return nil, model.NewInvalidStateError("unknown request kind %q", req.Kind)
	}

	return pctx, nil
}

func (m *Manager) lookup(sessionID string, signerID string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, model.NewNotFoundError("signing session", sessionID)
	}
	if s.signerID != signerID {
		return nil, model.NewInvalidStateError("session/signer mismatch for session %s", sessionID)
	}
	return s, nil
}

// failSession moves the session to the failed absorbing state, releasing its
// nonce reservation and protocol state. Callers hold s.mu.
func (m *Manager) failSession(s *session, cause error) {
	s.state = model.SignSessionFailed
	if s.proto != nil {
		s.proto.Abort()
	}
	m.releaseNonce(s)

	m.mu.Lock()
	delete(m.sessions, s.id)
	m.mu.Unlock()

	m.metrics.SignSessionFailed()
	m.log.Warn().Err(cause).Str("session", s.id).Str("signer", s.signerID).Msg("signing session failed")
}

// finishSession moves the session to finalized and removes it. Callers hold
// s.mu.
func (m *Manager) finishSession(s *session) {
	s.state = model.SignSessionFinalized

	m.mu.Lock()
	delete(m.sessions, s.id)
	m.mu.Unlock()

	m.metrics.SignSessionCompleted(time.Since(s.createdAt))
}

func (m *Manager) releaseNonce(s *session) {
	if !s.nonceReserved {
		return
	}
	s.nonceReserved = false
	m.noncer.Release(s.signer.EthAddress, s.nonce)
}

// sweepLoop evicts sessions that outlived the TTL, releasing their nonce
// reservations. There is no mechanism to cancel an in-flight scheme
// computation; an abandoned session simply becomes unreachable.
func (m *Manager) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(m.done)
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	now := time.Now()

	m.mu.Lock()
	var expired []*session
	for id, s := range m.sessions {
		if s.expired(m.cfg.SessionTTL, now) {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.mu.Lock()
		s.state = model.SignSessionAborted
		if s.proto != nil {
			s.proto.Abort()
		}
		m.releaseNonce(s)
		s.mu.Unlock()

		m.metrics.SignSessionEvicted()
		m.log.Info().Str("session", s.id).Str("signer", s.signerID).Msg("stale signing session evicted")
	}
}

// packSignature flattens (r, s, v) into the canonical 65-byte form, adding
// vOffset to the recovery id (0 for transaction signatures, 27 for EIP-191).
func packSignature(sig *module.Signature, vOffset byte) []byte {
	out := make([]byte, 65)
	copy(out[32-len(sig.R):32], sig.R)
	copy(out[64-len(sig.S):64], sig.S)
	out[64] = sig.V + vOffset
	return out
}

func equalDigest(want [32]byte, got []byte) bool {
	if len(got) != 32 {
		return false
	}
	for i := range want {
		if want[i] != got[i] {
			return false
		}
	}
	return true
}
