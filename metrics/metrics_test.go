package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/finding"
)

func TestMetrics_TaskPlanned(t *testing.T) {
	m := New()
	m.TaskPlanned("nmap", 3, nil)
	m.TaskPlanned("nmap", 0, nil)
	m.TaskPlanned("nmap", 1, errors.New("branch failed"))
	m.TaskPlanned("gobuster", 0, errors.New("bad intensity"))

	assert.Equal(t, 4.0, testutil.ToFloat64(m.executionsPlanned.WithLabelValues("nmap")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("nmap", "planned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("nmap", "empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("nmap", "partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tasksTotal.WithLabelValues("gobuster", "failed")))
}

func TestMetrics_ExecutionAndFindings(t *testing.T) {
	m := New()
	m.ExecutionFinished("nmap", "completed", 90*time.Second)
	m.ExecutionFinished("nmap", "skipped", 0)
	m.FindingsParsed([]entity.Entity{&entity.Host{}, &entity.Host{}, &entity.Vulnerability{}})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.executionsFinished.WithLabelValues("nmap", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.executionsFinished.WithLabelValues("nmap", "skipped")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.executionDuration))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.findingsTotal.WithLabelValues("host")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.findingsTotal.WithLabelValues("vulnerability")))
}

func TestMetrics_VulnerabilitiesBySeverity(t *testing.T) {
	m := New()
	assert.Equal(t, 5, testutil.CollectAndCount(m.vulnerabilitiesTotal))

	m.VulnerabilitiesStored([]entity.Entity{
		&entity.Vulnerability{Severity: finding.SeverityCritical},
		&entity.Vulnerability{Severity: finding.SeverityCritical},
		&entity.Vulnerability{Severity: finding.SeverityLow},
		&entity.Vulnerability{},
		&entity.Host{},
	})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.vulnerabilitiesTotal.WithLabelValues("critical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.vulnerabilitiesTotal.WithLabelValues("low")))
	assert.Zero(t, testutil.ToFloat64(m.vulnerabilitiesTotal.WithLabelValues("info")))
	assert.Equal(t, 5, testutil.CollectAndCount(m.vulnerabilitiesTotal))
}

func TestMetrics_PipelineOutcomes(t *testing.T) {
	m := New()
	m.Enriched(2, 1, 0)
	m.Notified(3, 1, 2)
	m.WorkerStarted("executions")
	m.WorkerStarted("executions")
	m.WorkerStopped("executions")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.enrichmentsTotal.WithLabelValues("enriched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.enrichmentsTotal.WithLabelValues("degraded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeWorkers.WithLabelValues("executions")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TaskPlanned("nmap", 1, nil)
		m.ExecutionFinished("nmap", "completed", time.Second)
		m.FindingsParsed([]entity.Entity{&entity.Host{}})
		m.VulnerabilitiesStored([]entity.Entity{&entity.Vulnerability{}})
		m.Enriched(1, 0, 0)
		m.Notified(1, 0, 0)
		m.WorkerStarted("findings")
		m.WorkerStopped("findings")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ExecutionFinished("nmap", "completed", time.Second)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `taskforge_executions_finished_total{status="completed",tool="nmap"} 1`)
}
