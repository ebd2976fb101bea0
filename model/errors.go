package model

import (
	"errors"
	"fmt"
)

// NotFoundError indicates that a referenced signer, policy, or session does
// not exist.
type NotFoundError struct {
	entity string
	id     string
}

func NewNotFoundError(entity string, id string) NotFoundError {
	return NotFoundError{entity: entity, id: id}
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.entity, e.id)
}

// IsNotFoundError returns whether err is or wraps a NotFoundError.
func IsNotFoundError(err error) bool {
	var errNotFound NotFoundError
	return errors.As(err, &errNotFound)
}

// InvalidStateError indicates that an operation is not permitted in the
// entity's current state, for example finalizing a DKG that has already
// completed, or presenting a session id bound to a different signer.
type InvalidStateError struct {
	reason string
}

func NewInvalidStateError(format string, args ...interface{}) InvalidStateError {
	return InvalidStateError{reason: fmt.Sprintf(format, args...)}
}

func (e InvalidStateError) Error() string {
	return e.reason
}

func IsInvalidStateError(err error) bool {
	var errInvalidState InvalidStateError
	return errors.As(err, &errInvalidState)
}

// UnauthorizedError indicates an ownership or identity mismatch.
type UnauthorizedError struct {
	reason string
}

func NewUnauthorizedError(format string, args ...interface{}) UnauthorizedError {
	return UnauthorizedError{reason: fmt.Sprintf(format, args...)}
}

func (e UnauthorizedError) Error() string {
	return e.reason
}

func IsUnauthorizedError(err error) bool {
	var errUnauthorized UnauthorizedError
	return errors.As(err, &errUnauthorized)
}

// PolicyViolationError is returned when the policy engine denies a signing
// request. It carries the structured violation list so that callers can
// render per-policy detail; it must never be collapsed into a generic error.
type PolicyViolationError struct {
	Violations []PolicyViolation
}

func NewPolicyViolationError(violations []PolicyViolation) PolicyViolationError {
	return PolicyViolationError{Violations: violations}
}

func (e PolicyViolationError) Error() string {
	return fmt.Sprintf("request denied by policy (%d violations)", len(e.Violations))
}

func IsPolicyViolationError(err error) bool {
	var errPolicy PolicyViolationError
	return errors.As(err, &errPolicy)
}

// AsPolicyViolationError returns the underlying PolicyViolationError, if any.
func AsPolicyViolationError(err error) (PolicyViolationError, bool) {
	var errPolicy PolicyViolationError
	ok := errors.As(err, &errPolicy)
	return errPolicy, ok
}

// TransientError indicates a failure of an external collaborator (share
// storage, chain RPC) that does not imply an inconsistent local state. It is
// logged and surfaced; retrying is left to the caller.
type TransientError struct {
	err error
}

func NewTransientError(err error) TransientError {
	return TransientError{err: err}
}

func (e TransientError) Error() string {
	return fmt.Sprintf("transient failure: %v", e.err)
}

func (e TransientError) Unwrap() error {
	return e.err
}

func IsTransientError(err error) bool {
	var errTransient TransientError
	return errors.As(err, &errTransient)
}

// SecurityError indicates a condition that must abort the operation because
// continuing could compromise key material, for example a ceremony returning
// fewer shares than participants. It is never downgraded or ignored.
type SecurityError struct {
	reason string
}

func NewSecurityError(format string, args ...interface{}) SecurityError {
	return SecurityError{reason: fmt.Sprintf(format, args...)}
}

func (e SecurityError) Error() string {
	return fmt.Sprintf("security violation: %s", e.reason)
}

func IsSecurityError(err error) bool {
	var errSecurity SecurityError
	return errors.As(err, &errSecurity)
}
