package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "trackgate"

// Registry is the registry served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	verdictCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authorizer",
			Name:      "verdicts_total",
			Help:      "Count of authorization verdicts by outcome and reason.",
		},
		[]string{"allow", "reason"},
	)
	cacheLookupCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authorizer",
			Name:      "cache_lookups_total",
			Help:      "Count of verdict cache lookups by result (hit or miss).",
		},
		[]string{"result"},
	)
	secretFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "authorizer",
			Name:      "secret_fetch_duration_seconds",
			Help:      "Latency of secret store fetches.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"outcome"},
	)
	poolSizeGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "capacity",
			Name:      "pool_desired_size",
			Help:      "Desired worker count per backend pool.",
		},
		[]string{"pool"},
	)
	scaleDecisionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capacity",
			Name:      "decisions_total",
			Help:      "Count of scale decisions per pool and action.",
		},
		[]string{"pool", "action"},
	)
	sampleRejectedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capacity",
			Name:      "samples_rejected_total",
			Help:      "Count of missing or malformed utilization samples per pool.",
		},
		[]string{"pool", "kind"},
	)
	escalationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capacity",
			Name:      "escalations_total",
			Help:      "Count of sustained sample loss escalations per pool.",
		},
		[]string{"pool"},
	)
)

var registerMetrics sync.Once

// Register all metrics.
func Register() {
	registerMetrics.Do(func() {
		Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			verdictCounter,
			cacheLookupCounter,
			secretFetchDuration,
			poolSizeGauge,
			scaleDecisionCounter,
			sampleRejectedCounter,
			escalationCounter,
		)
	})
}

func RecordVerdict(allow bool, reason string) {
	if allow {
		verdictCounter.WithLabelValues("true", "").Inc()
		return
	}
	verdictCounter.WithLabelValues("false", reason).Inc()
}

func RecordCacheLookup(hit bool) {
	if hit {
		cacheLookupCounter.WithLabelValues("hit").Inc()
		return
	}
	cacheLookupCounter.WithLabelValues("miss").Inc()
}

func RecordSecretFetch(seconds float64, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	secretFetchDuration.WithLabelValues(outcome).Observe(seconds)
}

func RecordPoolSize(pool string, size int) {
	poolSizeGauge.WithLabelValues(pool).Set(float64(size))
}

func RecordScaleDecision(pool, action string) {
	scaleDecisionCounter.WithLabelValues(pool, action).Inc()
}

func RecordSampleRejected(pool, kind string) {
	sampleRejectedCounter.WithLabelValues(pool, kind).Inc()
}

func RecordEscalation(pool string) {
	escalationCounter.WithLabelValues(pool).Inc()
}
