package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics exposes Prometheus collectors for the confidential aggregation flow.
type Metrics struct {
	submissions       *prometheus.CounterVec
	finalizations     *prometheus.CounterVec
	decryptLatency    prometheus.Histogram
	pendingDecrypts   prometheus.Gauge
	dispatchDelivered *prometheus.CounterVec
}

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewMetrics registers the collectors on reg. Use a fresh registry per test.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cipherpoll",
			Subsystem: "aggregation",
			Name:      "submissions_total",
			Help:      "Encrypted submissions by outcome.",
		}, []string{"outcome"}),
		finalizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cipherpoll",
			Subsystem: "aggregation",
			Name:      "finalizations_total",
			Help:      "Topics finalized, by reveal path.",
		}, []string{"path"}),
		decryptLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cipherpoll",
			Subsystem: "aggregation",
			Name:      "decrypt_latency_seconds",
			Help:      "Time between a decryption request and its callback.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		pendingDecrypts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cipherpoll",
			Subsystem: "encryption",
			Name:      "pending_decryptions",
			Help:      "Decryption requests queued on the coprocessor.",
		}),
		dispatchDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cipherpoll",
			Subsystem: "dispatcher",
			Name:      "deliveries_total",
			Help:      "Outbox events delivered to sinks.",
		}, []string{"sink", "status"}),
	}
	if reg != nil {
		reg.MustRegister(m.submissions, m.finalizations, m.decryptLatency, m.pendingDecrypts, m.dispatchDelivered)
	}
	return m
}

// NopMetrics returns unregistered collectors, handy in tests.
func NopMetrics() *Metrics {
	return NewMetrics(nil)
}

func (m *Metrics) SubmissionAccepted() {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues("accepted").Inc()
}

func (m *Metrics) SubmissionRejected(reason string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(reason).Inc()
}

func (m *Metrics) Finalized(path string) {
	if m == nil {
		return
	}
	m.finalizations.WithLabelValues(path).Inc()
}

func (m *Metrics) ObserveDecryptLatency(seconds float64) {
	if m == nil {
		return
	}
	m.decryptLatency.Observe(seconds)
}

func (m *Metrics) SetPendingDecryptions(n int) {
	if m == nil {
		return
	}
	m.pendingDecrypts.Set(float64(n))
}

func (m *Metrics) Delivered(sink, status string) {
	if m == nil {
		return
	}
	m.dispatchDelivered.WithLabelValues(sink, status).Inc()
}

// SubmissionCount is exported for tests and health reporting.
func (m *Metrics) SubmissionCount(outcome string) prometheus.Counter {
	return m.submissions.WithLabelValues(outcome)
}
