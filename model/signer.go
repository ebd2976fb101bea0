package model

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// SignerStatus captures the lifecycle of a threshold-controlled account.
type SignerStatus string

const (
	SignerStatusActive  SignerStatus = "active"
	SignerStatusPaused  SignerStatus = "paused"
	SignerStatusRevoked SignerStatus = "revoked"
)

// OwnerPending is the sentinel owner used while a signer created through the
// composite create-with-DKG flow has not yet been claimed by its anonymous
// owner credential.
const OwnerPending = "pending"

// Signer is the identity record for an address under 2-of-3 threshold
// control. The record is owned by the account-management layer; the core
// components read it and update only the DKG-result fields.
type Signer struct {
	ID           string
	Name         string
	ChainID      *big.Int
	Scheme       string
	Curve        string
	Status       SignerStatus
	Owner        string
	EthAddress   common.Address
	SharePath    string
	DKGCompleted bool
	CreatedAt    time.Time
}

// SigningPath distinguishes the trust boundary a signing request arrived
// through.
type SigningPath string

const (
	// SigningPathAPIKey marks requests from API-key-authenticated automated
	// callers.
	SigningPathAPIKey SigningPath = "api_key"
	// SigningPathSession marks requests approved through an authenticated
	// human session.
	SigningPathSession SigningPath = "session"
)
