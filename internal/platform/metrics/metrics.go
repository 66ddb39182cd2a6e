package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. Components take
// a *Metrics and tolerate nil so tests can skip registration.
type Metrics struct {
	PolicyDecisions    *prometheus.CounterVec
	PolicyEvalDuration prometheus.Histogram
	PolicyCacheHits    *prometheus.CounterVec
	AuditEntries       *prometheus.CounterVec
	CustodyAppends     *prometheus.CounterVec
	OutboxPublished    prometheus.Counter
	OutboxErrors       prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		PolicyDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_policy_decisions_total",
			Help: "Access policy decisions by resource type and outcome",
		}, []string{"resource_type", "outcome"}),
		PolicyEvalDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodia_policy_evaluation_seconds",
			Help:    "Latency of access policy evaluations",
			Buckets: prometheus.DefBuckets,
		}),
		PolicyCacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_policy_cache_total",
			Help: "Policy decision cache lookups by result",
		}, []string{"result"}),
		AuditEntries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_audit_entries_total",
			Help: "Audit entries recorded by action",
		}, []string{"action"}),
		CustodyAppends: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_custody_appends_total",
			Help: "Chain-of-custody entries appended by action",
		}, []string{"action"}),
		OutboxPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_audit_outbox_published_total",
			Help: "Audit outbox rows published to the export topic",
		}),
		OutboxErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_audit_outbox_errors_total",
			Help: "Audit outbox publish failures",
		}),
	}
}

// RecordPolicyDecision counts one evaluation and observes its latency.
func (m *Metrics) RecordPolicyDecision(resourceType, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.PolicyDecisions.WithLabelValues(resourceType, outcome).Inc()
	m.PolicyEvalDuration.Observe(seconds)
}

// RecordPolicyCache counts a cache hit or miss.
func (m *Metrics) RecordPolicyCache(result string) {
	if m == nil {
		return
	}
	m.PolicyCacheHits.WithLabelValues(result).Inc()
}

// RecordAuditEntry counts one recorded audit entry.
func (m *Metrics) RecordAuditEntry(action string) {
	if m == nil {
		return
	}
	m.AuditEntries.WithLabelValues(action).Inc()
}

// RecordCustodyAppend counts one appended custody entry.
func (m *Metrics) RecordCustodyAppend(action string) {
	if m == nil {
		return
	}
	m.CustodyAppends.WithLabelValues(action).Inc()
}
