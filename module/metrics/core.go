// Package metrics implements the collector interfaces declared in the
// module package, backed by Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespaceSigner = "signer"

const (
	subsystemDKG     = "dkg"
	subsystemPool    = "auxpool"
	subsystemSigning = "signing"
	subsystemPolicy  = "policy"
)

// CoreCollector implements all of the signing core's metrics interfaces and
// registers its vectors with the given registerer.
type CoreCollector struct {
	dkgStarted       prometheus.Counter
	dkgFinalized     prometheus.Counter
	dkgFailed        prometheus.Counter
	dkgEvicted       prometheus.Counter
	dkgDuration      prometheus.Histogram
	poolSize         prometheus.Gauge
	poolConsumed     prometheus.Counter
	poolGenStarted   prometheus.Counter
	poolGenFinished  *prometheus.CounterVec
	poolGenDuration  prometheus.Histogram
	sessionsStarted  prometheus.Counter
	sessionsDone     prometheus.Counter
	sessionsFailed   prometheus.Counter
	sessionsEvicted  prometheus.Counter
	sessionDuration  prometheus.Histogram
	noncesReserved   prometheus.Counter
	noncesReleased   prometheus.Counter
	policyEvaluated  *prometheus.CounterVec
	policyViolations prometheus.Counter
	policyDuration   prometheus.Histogram
}

func NewCoreCollector(registerer prometheus.Registerer) *CoreCollector {

	cc := &CoreCollector{
		dkgStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemDKG,
			Name:      "ceremonies_started_total",
			Help:      "number of DKG ceremonies initialized",
		}),
		dkgFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemDKG,
			Name:      "ceremonies_finalized_total",
			Help:      "number of DKG ceremonies finalized successfully",
		}),
		dkgFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemDKG,
			Name:      "ceremonies_failed_total",
			Help:      "number of DKG ceremonies that failed",
		}),
		dkgEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemDKG,
			Name:      "sessions_evicted_total",
			Help:      "number of pending DKG sessions evicted by the sweep",
		}),
		dkgDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemDKG,
			Name:      "finalize_duration_seconds",
			Help:      "duration of DKG finalize calls",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		poolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemPool,
			Name:      "entries",
			Help:      "number of pre-generated auxiliary-material entries in the pool",
		}),
		poolConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemPool,
			Name:      "entries_consumed_total",
			Help:      "number of pool entries consumed by ceremonies",
		}),
		poolGenStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemPool,
			Name:      "generations_started_total",
			Help:      "number of background generation tasks started",
		}),
		poolGenFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemPool,
			Name:      "generations_finished_total",
			Help:      "number of background generation tasks finished",
		}, []string{"result"}),
		poolGenDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemPool,
			Name:      "generation_duration_seconds",
			Help:      "duration of auxiliary-material generation",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemSigning,
			Name:      "sessions_started_total",
			Help:      "number of interactive signing sessions created",
		}),
		sessionsDone: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemSigning,
			Name:      "sessions_completed_total",
			Help:      "number of signing sessions that produced a signature",
		}),
		sessionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemSigning,
			Name:      "sessions_failed_total",
			Help:      "number of signing sessions that failed",
		}),
		sessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemSigning,
			Name:      "sessions_evicted_total",
			Help:      "number of signing sessions evicted by the sweep",
		}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemSigning,
			Name:      "session_duration_seconds",
			Help:      "duration from session creation to completed signature",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 15},
		}),
		noncesReserved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemSigning,
			Name:      "nonces_reserved_total",
			Help:      "number of nonce reservations",
		}),
		noncesReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemSigning,
			Name:      "nonces_released_total",
			Help:      "number of nonce reservations released",
		}),
		policyEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemPolicy,
			Name:      "evaluations_total",
			Help:      "number of policy evaluations",
		}, []string{"allowed"}),
		policyViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemPolicy,
			Name:      "violations_total",
			Help:      "total violations recorded across evaluations",
		}),
		policyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceSigner,
			Subsystem: subsystemPolicy,
			Name:      "evaluation_duration_seconds",
			Help:      "duration of policy evaluations",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1},
		}),
	}

	registerer.MustRegister(
		cc.dkgStarted, cc.dkgFinalized, cc.dkgFailed, cc.dkgEvicted, cc.dkgDuration,
		cc.poolSize, cc.poolConsumed, cc.poolGenStarted, cc.poolGenFinished, cc.poolGenDuration,
		cc.sessionsStarted, cc.sessionsDone, cc.sessionsFailed, cc.sessionsEvicted, cc.sessionDuration,
		cc.noncesReserved, cc.noncesReleased,
		cc.policyEvaluated, cc.policyViolations, cc.policyDuration,
	)

	return cc
}

func (cc *CoreCollector) DKGStarted() {
	cc.dkgStarted.Inc()
}

func (cc *CoreCollector) DKGFinalized(duration time.Duration) {
	cc.dkgFinalized.Inc()
	cc.dkgDuration.Observe(duration.Seconds())
}

func (cc *CoreCollector) DKGFailed() {
	cc.dkgFailed.Inc()
}

func (cc *CoreCollector) DKGSessionEvicted() {
	cc.dkgEvicted.Inc()
}

func (cc *CoreCollector) PoolSize(size uint) {
	cc.poolSize.Set(float64(size))
}

func (cc *CoreCollector) PoolEntryConsumed() {
	cc.poolConsumed.Inc()
}

func (cc *CoreCollector) PoolGenerationStarted() {
	cc.poolGenStarted.Inc()
}

func (cc *CoreCollector) PoolGenerationFinished(success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	cc.poolGenFinished.WithLabelValues(result).Inc()
	cc.poolGenDuration.Observe(duration.Seconds())
}

func (cc *CoreCollector) SignSessionStarted() {
	cc.sessionsStarted.Inc()
}

func (cc *CoreCollector) SignSessionCompleted(duration time.Duration) {
	cc.sessionsDone.Inc()
	cc.sessionDuration.Observe(duration.Seconds())
}

func (cc *CoreCollector) SignSessionFailed() {
	cc.sessionsFailed.Inc()
}

func (cc *CoreCollector) SignSessionEvicted() {
	cc.sessionsEvicted.Inc()
}

func (cc *CoreCollector) NonceReserved() {
	cc.noncesReserved.Inc()
}

func (cc *CoreCollector) NonceReleased() {
	cc.noncesReleased.Inc()
}

func (cc *CoreCollector) PolicyEvaluated(allowed bool, violations int, duration time.Duration) {
	label := "true"
	if !allowed {
		label = "false"
	}
	cc.policyEvaluated.WithLabelValues(label).Inc()
	cc.policyViolations.Add(float64(violations))
	cc.policyDuration.Observe(duration.Seconds())
}
