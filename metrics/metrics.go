// Package metrics exposes pipeline counters for Prometheus scraping.
//
// All collectors live on a private registry. Methods are safe to call on a
// nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/finding"
)

const namespace = "taskforge"

// Metrics holds the pipeline collectors.
type Metrics struct {
	registry *prometheus.Registry

	tasksTotal           *prometheus.CounterVec
	executionsPlanned    *prometheus.CounterVec
	executionsFinished   *prometheus.CounterVec
	executionDuration    *prometheus.HistogramVec
	findingsTotal        *prometheus.CounterVec
	vulnerabilitiesTotal *prometheus.CounterVec
	enrichmentsTotal     *prometheus.CounterVec
	notificationsTotal   *prometheus.CounterVec
	activeWorkers        *prometheus.GaugeVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Tasks submitted, by tool and planning outcome",
		}, []string{"tool", "outcome"}),
		executionsPlanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_planned_total",
			Help:      "Executions created by the planner",
		}, []string{"tool"}),
		executionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_finished_total",
			Help:      "Executions that reached a final status",
		}, []string{"tool", "status"}),
		executionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Tool run time",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"tool"}),
		findingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Findings parsed from tool output",
		}, []string{"kind"}),
		vulnerabilitiesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vulnerabilities_total",
			Help:      "Vulnerabilities stored after enrichment, by severity",
		}, []string{"severity"}),
		enrichmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_total",
			Help:      "Vulnerability enrichment attempts, by outcome",
		}, []string{"outcome"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries, by outcome",
		}, []string{"outcome"}),
		activeWorkers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Running queue consumers in this process",
		}, []string{"pool"}),
	}

	m.registry.MustRegister(
		m.tasksTotal,
		m.executionsPlanned,
		m.executionsFinished,
		m.executionDuration,
		m.findingsTotal,
		m.vulnerabilitiesTotal,
		m.enrichmentsTotal,
		m.notificationsTotal,
		m.activeWorkers,
	)
	for _, sev := range finding.AllSeverities() {
		m.vulnerabilitiesTotal.WithLabelValues(sev.String())
	}
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// TaskPlanned records a submitted task and the executions planned for it.
func (m *Metrics) TaskPlanned(tool string, executions int, err error) {
	if m == nil {
		return
	}
	outcome := "planned"
	switch {
	case err != nil && executions == 0:
		outcome = "failed"
	case err != nil:
		outcome = "partial"
	case executions == 0:
		outcome = "empty"
	}
	m.tasksTotal.WithLabelValues(tool, outcome).Inc()
	m.executionsPlanned.WithLabelValues(tool).Add(float64(executions))
}

// ExecutionFinished records a final execution status and its run time.
func (m *Metrics) ExecutionFinished(tool, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.executionsFinished.WithLabelValues(tool, status).Inc()
	if d > 0 {
		m.executionDuration.WithLabelValues(tool).Observe(d.Seconds())
	}
}

// FindingsParsed counts findings by kind.
func (m *Metrics) FindingsParsed(findings []entity.Entity) {
	if m == nil {
		return
	}
	for _, f := range findings {
		m.findingsTotal.WithLabelValues(string(f.Kind())).Inc()
	}
}

// VulnerabilitiesStored counts the vulnerabilities among findings by their
// final severity.
func (m *Metrics) VulnerabilitiesStored(findings []entity.Entity) {
	if m == nil {
		return
	}
	for _, f := range findings {
		if v, ok := f.(*entity.Vulnerability); ok && v.Severity.IsValid() {
			m.vulnerabilitiesTotal.WithLabelValues(v.Severity.String()).Inc()
		}
	}
}

// Enriched records the outcome counts of an enrichment pass.
func (m *Metrics) Enriched(enriched, degraded, skipped int) {
	if m == nil {
		return
	}
	m.enrichmentsTotal.WithLabelValues("enriched").Add(float64(enriched))
	m.enrichmentsTotal.WithLabelValues("degraded").Add(float64(degraded))
	m.enrichmentsTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// Notified records the outcome counts of a notification pass.
func (m *Metrics) Notified(sent, failed, skipped int) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues("sent").Add(float64(sent))
	m.notificationsTotal.WithLabelValues("failed").Add(float64(failed))
	m.notificationsTotal.WithLabelValues("skipped").Add(float64(skipped))
}

// WorkerStarted and WorkerStopped track running consumers per pool.
func (m *Metrics) WorkerStarted(pool string) {
	if m == nil {
		return
	}
	m.activeWorkers.WithLabelValues(pool).Inc()
}

func (m *Metrics) WorkerStopped(pool string) {
	if m == nil {
		return
	}
	m.activeWorkers.WithLabelValues(pool).Dec()
}
