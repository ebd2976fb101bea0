// Package mocks provides stateful in-memory fakes for the signing core's
// collaborator interfaces, for tests that need working behavior rather than
// call expectations.
package mocks

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/quorumkey/quorumkey/model"
	"github.com/quorumkey/quorumkey/module"
)

// Scheme is a deterministic stand-in for the MPC engine. It produces
// structurally valid artifacts without any real cryptography, and retains
// references to its outputs so tests can assert on buffer wiping.
type Scheme struct {
	// ShareCount overrides the number of bundles RunDKG returns; 0 means n.
	ShareCount int
	// RoundsUntilPresigned is how many NextRound calls a session takes to
	// reach the presigned state; 0 means 1.
	RoundsUntilPresigned int

	DKGErr     error
	AuxErr     error
	SessionErr error

	// LastResult is the most recent RunDKG output, retained so tests can
	// inspect the buffers after the caller returns.
	LastResult *module.DKGResult

	// AuxCalls counts GenerateAuxInfo invocations.
	AuxCalls int
	// DKGAuxInfo records the aux material passed to the last RunDKG call.
	DKGAuxInfo []byte
}

var _ module.ThresholdScheme = (*Scheme)(nil)

func (s *Scheme) RunDKG(ctx context.Context, n int, threshold int, auxInfo []byte) (*module.DKGResult, error) {
	if s.DKGErr != nil {
		return nil, s.DKGErr
	}
	// snapshot: the caller wipes its aux buffer after the ceremony
	s.DKGAuxInfo = append([]byte(nil), auxInfo...)

	count := s.ShareCount
	if count == 0 {
		count = n
	}

	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}

	result := &module.DKGResult{
		PublicKey: ethcrypto.FromECDSAPub(&key.PublicKey),
	}
	for i := 0; i < count; i++ {
		result.Shares = append(result.Shares, &model.KeyMaterial{
			CoreShare: randomBytes(64),
			AuxInfo:   randomBytes(128),
		})
	}

	s.LastResult = result
	return result, nil
}

func (s *Scheme) GenerateAuxInfo(ctx context.Context, n int) ([]byte, error) {
	s.AuxCalls++
	if s.AuxErr != nil {
		return nil, s.AuxErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries := make([]string, n)
	for i := range entries {
		entries[i] = base64.StdEncoding.EncodeToString(randomBytes(32))
	}
	return json.Marshal(entries)
}

func (s *Scheme) DeriveAddress(publicKey []byte) (common.Address, error) {
	pub, err := ethcrypto.UnmarshalPubkey(publicKey)
	if err != nil {
		return common.Address{}, fmt.Errorf("could not parse public key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

func (s *Scheme) NewSignSession(material *model.KeyMaterial, first [][]byte) (module.SignSession, [][]byte, error) {
	if s.SessionErr != nil {
		return nil, nil, s.SessionErr
	}
	rounds := s.RoundsUntilPresigned
	if rounds == 0 {
		rounds = 1
	}
	session := &SignSession{remaining: rounds}
	return session, [][]byte{[]byte("server-round-0")}, nil
}

// SignSession is the fake protocol state produced by Scheme.
type SignSession struct {
	remaining int
	RoundErr  error
	aborted   bool
}

func (ss *SignSession) NextRound(in [][]byte) ([][]byte, bool, error) {
	if ss.RoundErr != nil {
		return nil, false, ss.RoundErr
	}
	ss.remaining--
	presigned := ss.remaining <= 0
	return [][]byte{[]byte("server-round")}, presigned, nil
}

func (ss *SignSession) Complete(last []byte, digest [32]byte) (*module.Signature, error) {
	return &module.Signature{
		R: randomBytes(32),
		S: randomBytes(32),
		V: 0,
	}, nil
}

func (ss *SignSession) Abort() {
	ss.aborted = true
}

// Aborted reports whether the session was released.
func (ss *SignSession) Aborted() bool {
	return ss.aborted
}

func randomBytes(n int) []byte {
	data := make([]byte, n)
	_, _ = rand.Read(data)
	return data
}
