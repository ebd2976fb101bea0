package unittest

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// Logger returns the logger used by tests. Swap in a console writer locally
// when debugging a test.
func Logger() zerolog.Logger {
	return zerolog.Nop()
}

// RequireCloseBefore fails the test unless the channel closes before the
// timeout.
func RequireCloseBefore(t *testing.T, done <-chan struct{}, timeout time.Duration, message string) {
	select {
	case <-done:
	case <-time.After(timeout):
		require.Fail(t, "timed out", message)
	}
}

// RequireReturnsBefore fails the test unless the function returns before the
// timeout.
func RequireReturnsBefore(t *testing.T, f func(), timeout time.Duration, message string) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		f()
	}()
	RequireCloseBefore(t, done, timeout, message)
}

// Eventually polls the condition until it holds or the timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, condition func() bool) {
	require.Eventually(t, condition, timeout, 5*time.Millisecond)
}
