package module

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumkey/quorumkey/model"
)

// DKGResult is the output of one threshold key-generation ceremony: one
// key-material bundle per participant plus the shared public key.
type DKGResult struct {
	Shares    []*model.KeyMaterial
	PublicKey []byte
}

// Signature is a recoverable ECDSA signature as produced by the final
// signing round.
type Signature struct {
	R []byte
	S []byte
	V byte
}

// SignSession is one party's protocol state for an in-flight interactive
// signing ceremony. Messages are opaque to the orchestration layer.
//
// Sessions are not safe for concurrent use; the signing manager serializes
// round processing per session.
type SignSession interface {
	// NextRound consumes the counterparty's messages for the current round
	// and produces this party's outgoing messages. presigned reports whether
	// the presigning portion of the protocol has completed, after which only
	// Complete may be called.
	NextRound(in [][]byte) (out [][]byte, presigned bool, err error)

	// Complete consumes the counterparty's final message together with the
	// now-known 32-byte digest and produces the signature.
	Complete(last []byte, digest [32]byte) (*Signature, error)

	// Abort releases the session's protocol state.
	Abort()
}

// ThresholdScheme is the narrow boundary around the underlying MPC engine.
// The orchestration layer never inspects shares, aux material, or protocol
// messages; it only moves them between participants and storage.
type ThresholdScheme interface {
	// RunDKG executes a complete key-generation ceremony for n parties with
	// the given signing threshold, optionally seeded with pre-generated
	// auxiliary material. auxInfo may be nil, in which case the ceremony
	// generates its own (the cold path).
	RunDKG(ctx context.Context, n int, threshold int, auxInfo []byte) (*DKGResult, error)

	// GenerateAuxInfo pre-computes the auxiliary cryptographic material for
	// an n-party ceremony. The output is opaque but must decode to at least
	// n per-party entries.
	GenerateAuxInfo(ctx context.Context, n int) ([]byte, error)

	// DeriveAddress computes the Ethereum address controlled by the given
	// group public key.
	DeriveAddress(publicKey []byte) (common.Address, error)

	// NewSignSession initializes this party's protocol state from its
	// persisted key material and the initiator's first message, returning
	// the session and the first outgoing round messages.
	NewSignSession(material *model.KeyMaterial, first [][]byte) (SignSession, [][]byte, error)
}
