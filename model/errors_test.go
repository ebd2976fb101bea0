package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorPredicates(t *testing.T) {
	notFound := NewNotFoundError("signer", "abc")
	invalid := NewInvalidStateError("already %s", "finalized")
	unauthorized := NewUnauthorizedError("owner mismatch")
	transient := NewTransientError(errors.New("rpc down"))
	security := NewSecurityError("expected %d shares, got %d", 3, 2)

	assert.True(t, IsNotFoundError(notFound))
	assert.True(t, IsInvalidStateError(invalid))
	assert.True(t, IsUnauthorizedError(unauthorized))
	assert.True(t, IsTransientError(transient))
	assert.True(t, IsSecurityError(security))

	// predicates are mutually exclusive
	assert.False(t, IsNotFoundError(invalid))
	assert.False(t, IsInvalidStateError(notFound))
	assert.False(t, IsSecurityError(transient))
	assert.False(t, IsTransientError(security))
	assert.False(t, IsNotFoundError(nil))
}

func TestErrorPredicates_SeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("finalize: %w", NewSecurityError("share count"))
	assert.True(t, IsSecurityError(wrapped))

	double := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", NewNotFoundError("signer", "x")))
	assert.True(t, IsNotFoundError(double))
}

func TestTransientError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	transient := NewTransientError(fmt.Errorf("could not reach vault: %w", cause))
	assert.True(t, errors.Is(transient, cause))
}

func TestPolicyViolationError(t *testing.T) {
	violations := []PolicyViolation{
		{PolicyID: "p1", Type: PolicyTypeSpendingLimit, Reason: "over limit"},
		{PolicyID: "p2", Type: PolicyTypeRateLimit, Reason: "too many requests"},
	}
	err := NewPolicyViolationError(violations)

	assert.True(t, IsPolicyViolationError(err))
	assert.Contains(t, err.Error(), "2 violations")

	recovered, ok := AsPolicyViolationError(fmt.Errorf("denied: %w", err))
	require.True(t, ok)
	assert.Equal(t, violations, recovered.Violations)

	_, ok = AsPolicyViolationError(errors.New("plain"))
	assert.False(t, ok)
}
