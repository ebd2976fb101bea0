package module

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quorumkey/quorumkey/model"
)

// SignerStore is the read/update view of the account-management layer's
// signer records. The core components look signers up by id and write back
// only the DKG-result fields and lifecycle status.
type SignerStore interface {
	// ByID returns the signer record, or a model.NotFoundError.
	ByID(ctx context.Context, signerID string) (*model.Signer, error)

	// Create inserts a new signer record.
	Create(ctx context.Context, signer *model.Signer) error

	// SetDKGResult records the derived address and share path and marks the
	// DKG completed.
	SetDKGResult(ctx context.Context, signerID string, address common.Address, sharePath string) error

	// SetStatus updates the signer's lifecycle status.
	SetStatus(ctx context.Context, signerID string, status model.SignerStatus) error
}

// PolicyStore returns the policies configured for a signer. Policy rows are
// owned by the account-management layer.
type PolicyStore interface {
	PoliciesForSigner(ctx context.Context, signerID string) ([]model.Policy, error)
}

// UsageSource supplies the rolling aggregates a policy context is built
// from. Implementations live with the account-management layer.
type UsageSource interface {
	DailySpend(ctx context.Context, signerID string) (*big.Int, error)
	MonthlySpend(ctx context.Context, signerID string) (*big.Int, error)
	RequestCountLastHour(ctx context.Context, signerID string) (int, error)
}
