package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PendingDKGSession is the ephemeral record created by a DKG init call and
// consumed exactly once by finalize. Abandoned sessions are garbage-collected
// by a periodic sweep.
type PendingDKGSession struct {
	SessionID string
	SignerID  string
	CreatedAt time.Time
}

// SignSessionState is the state of an interactive signing ceremony.
type SignSessionState string

const (
	SignSessionCreated   SignSessionState = "created"
	SignSessionRound     SignSessionState = "round"
	SignSessionPresigned SignSessionState = "presigned"
	SignSessionFinalized SignSessionState = "finalized"
	SignSessionFailed    SignSessionState = "failed"
	SignSessionAborted   SignSessionState = "aborted"
)

// SignRequestKind distinguishes transaction signing, which reserves a nonce
// and broadcasts, from message signing, which does neither.
type SignRequestKind string

const (
	SignRequestTransaction SignRequestKind = "transaction"
	SignRequestMessage     SignRequestKind = "message"
)

// TransactionRequest describes the transaction a signing session should
// produce. Fee fields are filled in from the chain adapter after the session
// is created; they are not part of the caller-facing request.
type TransactionRequest struct {
	To       *common.Address // nil deploys a contract
	ValueWei *big.Int
	Data     []byte
	GasLimit uint64
}

// AuxProvenance records which generation path produced the auxiliary
// material consumed by a ceremony.
type AuxProvenance string

const (
	AuxProvenancePooled AuxProvenance = "pooled"
	AuxProvenanceCold   AuxProvenance = "cold"
)
