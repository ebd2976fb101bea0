package signing

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/quorumkey/quorumkey/model"
	"github.com/quorumkey/quorumkey/module"
)

// session is one in-flight interactive signing ceremony. The manager's map
// lock only guards lookup; each session carries its own mutex so concurrent
// round submissions for the same session are serialized without blocking
// unrelated sessions.
type session struct {
	mu sync.Mutex

	id       string
	signerID string
	signer   *model.Signer
	path     model.SigningPath
	callerIP string
	kind     model.SignRequestKind
	state    model.SignSessionState

	// protocol state held by the scheme primitive
	proto module.SignSession

	// transaction flow
	txRequest     *model.TransactionRequest
	unsigned      *types.Transaction
	nonce         uint64
	nonceReserved bool

	// message flow
	message []byte

	digest      [32]byte
	digestKnown bool

	createdAt time.Time
	rounds    int
}

func (s *session) expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(s.createdAt) > ttl
}
