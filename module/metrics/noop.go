package metrics

import "time"

type NoopCollector struct{}

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) DKGStarted()                                                  {}
func (nc *NoopCollector) DKGFinalized(duration time.Duration)                          {}
func (nc *NoopCollector) DKGFailed()                                                   {}
func (nc *NoopCollector) DKGSessionEvicted()                                           {}
func (nc *NoopCollector) PoolSize(size uint)                                           {}
func (nc *NoopCollector) PoolEntryConsumed()                                           {}
func (nc *NoopCollector) PoolGenerationStarted()                                       {}
func (nc *NoopCollector) PoolGenerationFinished(success bool, duration time.Duration)  {}
func (nc *NoopCollector) SignSessionStarted()                                          {}
func (nc *NoopCollector) SignSessionCompleted(duration time.Duration)                  {}
func (nc *NoopCollector) SignSessionFailed()                                           {}
func (nc *NoopCollector) SignSessionEvicted()                                          {}
func (nc *NoopCollector) NonceReserved()                                               {}
func (nc *NoopCollector) NonceReleased()                                               {}
func (nc *NoopCollector) PolicyEvaluated(allowed bool, violations int, d time.Duration) {}
