// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Audit entry sources.
const (
	SourceHook        = "hook"
	SourceApplication = "application"
)

// Recorder failure stages.
const (
	StageValidate  = "validate"
	StageSerialize = "serialize"
	StageBegin     = "begin"
	StageInsert    = "insert"
	StageCommit    = "commit"
	StagePanic     = "panic"
)

// Metrics groups the collectors used across the service.
// All methods are safe on a nil receiver so callers and tests can omit metrics.
type Metrics struct {
	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec
	AuditEntriesTotal          *prometheus.CounterVec
	AuditRecordFailuresTotal   *prometheus.CounterVec
	CascadeAlertsTotal         *prometheus.CounterVec
	PreventedDeletesTotal      *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "medialert",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "medialert",
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuditEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "medialert",
				Name:      "audit_entries_total",
				Help:      "Audit entries written, by source and affected entity.",
			},
			[]string{"source", "entity"},
		),
		AuditRecordFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "medialert",
				Name:      "audit_record_failures_total",
				Help:      "Application-level audit writes that failed and were dropped.",
			},
			[]string{"stage"},
		),
		CascadeAlertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "medialert",
				Name:      "cascade_alerts_deactivated_total",
				Help:      "Alerts moved to inactive by a cascading deactivation rule.",
			},
			[]string{"rule"},
		),
		PreventedDeletesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "medialert",
				Name:      "prevented_deletes_total",
				Help:      "Physical deletes converted into audited no-ops.",
			},
			[]string{"entity"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
		m.AuditEntriesTotal,
		m.AuditRecordFailuresTotal,
		m.CascadeAlertsTotal,
		m.PreventedDeletesTotal,
	)
	return m
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDurationSeconds.WithLabelValues(method, route).Observe(seconds)
}

// AuditEntryWritten counts one committed audit entry.
func (m *Metrics) AuditEntryWritten(source, entity string) {
	if m == nil {
		return
	}
	if entity == "" {
		entity = "none"
	}
	m.AuditEntriesTotal.WithLabelValues(source, entity).Inc()
}

// AuditRecordFailed counts one dropped application-level audit entry.
func (m *Metrics) AuditRecordFailed(stage string) {
	if m == nil {
		return
	}
	m.AuditRecordFailuresTotal.WithLabelValues(stage).Inc()
}

// CascadeApplied counts alerts flipped by a cascade rule.
func (m *Metrics) CascadeApplied(rule string, alerts int) {
	if m == nil || alerts <= 0 {
		return
	}
	m.CascadeAlertsTotal.WithLabelValues(rule).Add(float64(alerts))
}

// DeletePrevented counts one guarded delete.
func (m *Metrics) DeletePrevented(entity string) {
	if m == nil {
		return
	}
	m.PreventedDeletesTotal.WithLabelValues(entity).Inc()
}
