package prometheus

import (
	"strconv"
	"time"

	"ledger-core/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements MetricsCollector for Prometheus.
type PrometheusCollector struct {
	namespace string

	storeOps     *prometheus.CounterVec
	storeErrors  *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec

	circuitOpens *prometheus.CounterVec
	circuitState *prometheus.GaugeVec

	queueDepth    *prometheus.GaugeVec
	droppedWrites *prometheus.CounterVec
	asyncWrites   *prometheus.CounterVec

	chainGets    *prometheus.CounterVec
	chainLatency *prometheus.HistogramVec

	commits       *prometheus.CounterVec
	commitLatency *prometheus.HistogramVec
	pinAttempts   *prometheus.CounterVec
	lockouts      *prometheus.CounterVec
	registrations *prometheus.CounterVec
	logins        *prometheus.CounterVec
}

// NewPrometheusCollector creates a new Prometheus metrics collector.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	latencyBuckets := prometheus.ExponentialBuckets(0.0001, 2, 15) // 0.1ms to ~3s

	return &PrometheusCollector{
		namespace: namespace,
		storeOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Document store operations per layer, operation and result",
			},
			[]string{"layer", "operation", "result"},
		),
		storeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Document store errors per layer, operation and error type",
			},
			[]string{"layer", "operation", "error_type"},
		),
		storeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Document store operation latency",
				Buckets:   latencyBuckets,
			},
			[]string{"layer", "operation"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Total number of circuit breaker opens per layer",
			},
			[]string{"layer"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state per layer (0=closed, 1=open, 2=half-open)",
			},
			[]string{"layer"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "warmup_queue_depth",
				Help:      "Current warm-up writer queue depth per layer",
			},
			[]string{"layer"},
		),
		droppedWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "warmup_dropped_writes_total",
				Help:      "Total number of dropped warm-up writes per layer",
			},
			[]string{"layer"},
		),
		asyncWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "warmup_writes_total",
				Help:      "Total number of warm-up writes per layer",
			},
			[]string{"layer", "status"},
		),
		chainGets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chain_gets_total",
				Help:      "Chain-level reads by the tier that served them",
			},
			[]string{"layer_index"},
		),
		chainLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "chain_get_duration_seconds",
				Help:      "Chain get operation total latency",
				Buckets:   latencyBuckets,
			},
			[]string{"hit"},
		),
		commits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commits_total",
				Help:      "Transaction commit attempts by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		commitLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "commit_duration_seconds",
				Help:      "Time from PIN confirmation to commit outcome",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		pinAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pin_attempts_total",
				Help:      "PIN verification attempts by purpose and outcome",
			},
			[]string{"purpose", "outcome"},
		),
		lockouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pin_lockouts_total",
				Help:      "Transitions into PIN lockout",
			},
			[]string{"purpose"},
		),
		registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registrations_total",
				Help:      "Account registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logins_total",
				Help:      "Password login attempts by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Register registers all metrics with the given Prometheus registerer.
func (pc *PrometheusCollector) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pc.storeOps,
		pc.storeErrors,
		pc.storeLatency,
		pc.circuitOpens,
		pc.circuitState,
		pc.queueDepth,
		pc.droppedWrites,
		pc.asyncWrites,
		pc.chainGets,
		pc.chainLatency,
		pc.commits,
		pc.commitLatency,
		pc.pinAttempts,
		pc.lockouts,
		pc.registrations,
		pc.logins,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

func result(ok bool, good, bad string) string {
	if ok {
		return good
	}
	return bad
}

// RecordGet records a store get operation.
func (pc *PrometheusCollector) RecordGet(layer string, hit bool, duration time.Duration) {
	pc.storeOps.WithLabelValues(layer, "get", result(hit, "hit", "miss")).Inc()
	pc.storeLatency.WithLabelValues(layer, "get").Observe(duration.Seconds())
}

// RecordSet records a store set operation.
func (pc *PrometheusCollector) RecordSet(layer string, success bool, duration time.Duration) {
	pc.storeOps.WithLabelValues(layer, "set", result(success, "ok", "error")).Inc()
	pc.storeLatency.WithLabelValues(layer, "set").Observe(duration.Seconds())
}

// RecordDelete records a store delete operation.
func (pc *PrometheusCollector) RecordDelete(layer string, success bool, duration time.Duration) {
	pc.storeOps.WithLabelValues(layer, "delete", result(success, "ok", "error")).Inc()
	pc.storeLatency.WithLabelValues(layer, "delete").Observe(duration.Seconds())
}

// RecordStoreError records a classified store error.
func (pc *PrometheusCollector) RecordStoreError(layer, operation, errorType string) {
	pc.storeErrors.WithLabelValues(layer, operation, errorType).Inc()
}

// RecordCircuitState records the current circuit breaker state.
func (pc *PrometheusCollector) RecordCircuitState(layer string, state metrics.CircuitState) {
	pc.circuitState.WithLabelValues(layer).Set(float64(state))
	if state == metrics.CircuitOpen {
		pc.circuitOpens.WithLabelValues(layer).Inc()
	}
}

// RecordQueueDepth records the current warm-up queue depth.
func (pc *PrometheusCollector) RecordQueueDepth(layer string, depth int) {
	pc.queueDepth.WithLabelValues(layer).Set(float64(depth))
}

// RecordWriteDropped records a dropped warm-up write.
func (pc *PrometheusCollector) RecordWriteDropped(layer string) {
	pc.droppedWrites.WithLabelValues(layer).Inc()
}

// RecordAsyncWrite records a warm-up write.
func (pc *PrometheusCollector) RecordAsyncWrite(layer string, success bool, duration time.Duration) {
	pc.asyncWrites.WithLabelValues(layer, result(success, "success", "error")).Inc()
}

// RecordChainGet records a chain-level get operation.
func (pc *PrometheusCollector) RecordChainGet(hit bool, layerIndex int, totalDuration time.Duration) {
	if hit {
		pc.chainGets.WithLabelValues(strconv.Itoa(layerIndex)).Inc()
	} else {
		pc.chainGets.WithLabelValues("miss").Inc()
	}
	pc.chainLatency.WithLabelValues(strconv.FormatBool(hit)).Observe(totalDuration.Seconds())
}

// RecordCommit records a commit outcome.
func (pc *PrometheusCollector) RecordCommit(kind string, outcome string, duration time.Duration) {
	pc.commits.WithLabelValues(kind, outcome).Inc()
	pc.commitLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordPinAttempt records a PIN verification attempt.
func (pc *PrometheusCollector) RecordPinAttempt(purpose string, outcome string) {
	pc.pinAttempts.WithLabelValues(purpose, outcome).Inc()
}

// RecordLockout records a lockout.
func (pc *PrometheusCollector) RecordLockout(purpose string) {
	pc.lockouts.WithLabelValues(purpose).Inc()
}

// RecordRegistration records a registration attempt.
func (pc *PrometheusCollector) RecordRegistration(outcome string) {
	pc.registrations.WithLabelValues(outcome).Inc()
}

// RecordLogin records a login attempt.
func (pc *PrometheusCollector) RecordLogin(outcome string) {
	pc.logins.WithLabelValues(outcome).Inc()
}
