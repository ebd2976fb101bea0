package unittest

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/quorumkey/quorumkey/model"
)

// SignerFixture returns an active signer without a generated key. Options
// mutate the fixture before it is returned.
func SignerFixture(opts ...func(*model.Signer)) *model.Signer {
	signer := &model.Signer{
		ID:        uuid.New().String(),
		Name:      "test-signer",
		ChainID:   big.NewInt(11155111),
		Scheme:    "cggmp24",
		Curve:     "secp256k1",
		Status:    model.SignerStatusActive,
		Owner:     "owner@example.com",
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(signer)
	}
	return signer
}

// WithDKGCompleted marks the fixture as holding a generated key.
func WithDKGCompleted() func(*model.Signer) {
	return func(signer *model.Signer) {
		signer.DKGCompleted = true
		signer.EthAddress = AddressFixture()
		signer.SharePath = signer.ID
	}
}

// AddressFixture returns a random Ethereum address.
func AddressFixture() common.Address {
	var addr common.Address
	_, _ = rand.Read(addr[:])
	return addr
}

// SpendingLimitPolicy returns an enabled flat policy capping transfer value.
func SpendingLimitPolicy(maxWei string) model.Policy {
	return model.Policy{
		ID:      uuid.New().String(),
		Type:    model.PolicyTypeSpendingLimit,
		Enabled: true,
		Config:  model.PolicyConfig{MaxWei: maxWei},
	}
}

// RateLimitPolicy returns an enabled flat policy capping hourly requests.
func RateLimitPolicy(maxPerHour int) model.Policy {
	return model.Policy{
		ID:      uuid.New().String(),
		Type:    model.PolicyTypeRateLimit,
		Enabled: true,
		Config:  model.PolicyConfig{MaxPerHour: maxPerHour},
	}
}

// PolicyContextFixture returns a benign context that passes the default
// policies.
func PolicyContextFixture(opts ...func(*model.PolicyContext)) model.PolicyContext {
	to := AddressFixture()
	pctx := model.PolicyContext{
		SignerAddress:        AddressFixture(),
		ToAddress:            &to,
		ValueWei:             big.NewInt(1),
		ChainID:              big.NewInt(11155111),
		DailySpendWei:        new(big.Int),
		MonthlySpendWei:      new(big.Int),
		RequestCountLastHour: 0,
		HourUTC:              12,
		Timestamp:            time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&pctx)
	}
	return pctx
}
