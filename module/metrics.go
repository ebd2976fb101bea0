package module

import "time"

// DKGMetrics instruments the key-generation orchestrator.
type DKGMetrics interface {
	DKGStarted()
	DKGFinalized(duration time.Duration)
	DKGFailed()
	DKGSessionEvicted()
}

// PoolMetrics instruments the auxiliary-material pool.
type PoolMetrics interface {
	PoolSize(size uint)
	PoolEntryConsumed()
	PoolGenerationStarted()
	PoolGenerationFinished(success bool, duration time.Duration)
}

// SigningMetrics instruments the interactive signing manager.
type SigningMetrics interface {
	SignSessionStarted()
	SignSessionCompleted(duration time.Duration)
	SignSessionFailed()
	SignSessionEvicted()
	NonceReserved()
	NonceReleased()
}

// PolicyMetrics instruments the policy engine.
type PolicyMetrics interface {
	PolicyEvaluated(allowed bool, violations int, duration time.Duration)
}
