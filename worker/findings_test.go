package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/taskforge/enrich"
	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/finding"
	"github.com/zero-day-ai/taskforge/notify"
	"github.com/zero-day-ai/taskforge/nvd"
	"github.com/zero-day-ai/taskforge/queue"
	"github.com/zero-day-ai/taskforge/store"
	"github.com/zero-day-ai/taskforge/toolerr"
)

// staticSource answers every lookup with a fixed score.
type staticSource struct {
	calls int
	err   error
}

func (s *staticSource) Lookup(_ context.Context, cve string) (*nvd.Record, error) {
	s.calls++
	if s.err != nil {
		return nvd.Degraded(cve), s.err
	}
	return &nvd.Record{
		CVE:         cve,
		Description: "Remote code execution in Log4j",
		CWE:         "CWE-502",
		Reference:   nvd.Reference(cve),
		Severity:    finding.SeverityCritical,
		Score:       10,
	}, nil
}

func findingsMessage(executionID string, findings ...entity.Entity) *queue.FindingsMessage {
	return &queue.FindingsMessage{
		ExecutionID: executionID,
		Tool:        "nuclei",
		Findings:    entity.List(findings),
		CompletedAt: fixedNow.UnixMilli(),
	}
}

func seedUsers(st *store.Memory) {
	st.PutUser(notify.User{ID: "u-exec", Email: "exec@example.com", Scope: notify.ScopeOwnExecutions, EmailNotification: true})
	st.PutUser(notify.User{ID: "u-all", Email: "all@example.com", Scope: notify.ScopeAllExecutions, EmailNotification: true})
	st.AddMember("proj", "u-exec")
	st.AddMember("proj", "u-all")
}

func newFindingsPool(t *testing.T, st FindingsStore, e Enricher, n Notifier) *FindingsPool {
	t.Helper()
	q := queue.NewMemoryClient()
	t.Cleanup(func() { _ = q.Close() })
	return NewFindingsPool(q, st, e, n, testOptions())
}

func TestFindingsPool_EnrichSaveNotify(t *testing.T) {
	st := store.NewMemory()
	seedUsers(st)
	_, e := seed(t, st)

	src := &staticSource{}
	n := &recordingNotifier{report: notify.Report{Sent: 2}}
	p := newFindingsPool(t, st, enrich.New(src, newTestLogger()), n)

	vuln := &entity.Vulnerability{ID: "v1", Name: "Log4Shell", CVE: "cve-2021-44228", Severity: finding.SeverityLow}
	host := &entity.Host{ID: "h1", Address: "10.0.0.1"}
	require.NoError(t, p.Process(context.Background(), findingsMessage(e.ID, vuln, host)))

	assert.Equal(t, 1, src.calls)

	saved, err := st.Findings(context.Background(), e.ID)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	got := saved[0].(*entity.Vulnerability)
	assert.Equal(t, "CVE-2021-44228", got.CVE)
	assert.Equal(t, finding.SeverityCritical, got.Severity)
	assert.Equal(t, "CWE-502", got.CWE)
	assert.Equal(t, "https://nvd.nist.gov/vuln/detail/CVE-2021-44228", got.Reference)

	events := n.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "u-exec", events[0].Executor.ID)
	assert.Equal(t, e.ID, events[0].Execution.ID)
	assert.Equal(t, "proj", events[0].Task.ProjectID)
	require.Len(t, events[0].Findings, 2)
	assert.Equal(t, finding.SeverityCritical, events[0].Findings[0].(*entity.Vulnerability).Severity)
	require.Len(t, n.members, 1)
	assert.Len(t, n.members[0], 2)
}

func TestFindingsPool_ReEnrichmentOverwrites(t *testing.T) {
	st := store.NewMemory()
	_, e := seed(t, st)
	p := newFindingsPool(t, st, enrich.New(&staticSource{}, newTestLogger()), nil)

	stale := &entity.Vulnerability{ID: "v1", Name: "Log4Shell", CVE: "CVE-2021-44228", Description: "old", Severity: finding.SeverityInfo}
	require.NoError(t, st.SaveFindings(context.Background(), e.ID, []entity.Entity{stale}))

	again := &entity.Vulnerability{ID: "v1", Name: "Log4Shell", CVE: "CVE-2021-44228", Description: "old", Severity: finding.SeverityInfo}
	require.NoError(t, p.Process(context.Background(), findingsMessage(e.ID, again)))

	saved, err := st.Findings(context.Background(), e.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	v := saved[0].(*entity.Vulnerability)
	assert.Equal(t, "Remote code execution in Log4j", v.Description)
	assert.Equal(t, finding.SeverityCritical, v.Severity)
}

func TestFindingsPool_DegradedLookupStillSaved(t *testing.T) {
	st := store.NewMemory()
	_, e := seed(t, st)
	src := &staticSource{err: toolerr.New("nvd", "lookup", toolerr.ErrCodeEnrichment, "status 404")}
	p := newFindingsPool(t, st, enrich.New(src, newTestLogger()), nil)

	vuln := &entity.Vulnerability{ID: "v1", CVE: "CVE-2099-0001", Description: "tool text", Severity: finding.SeverityHigh}
	require.NoError(t, p.Process(context.Background(), findingsMessage(e.ID, vuln)))

	saved, err := st.Findings(context.Background(), e.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	v := saved[0].(*entity.Vulnerability)
	assert.Equal(t, finding.SeverityMedium, v.Severity)
	assert.Empty(t, v.Description)
	assert.Equal(t, nvd.Reference("CVE-2099-0001"), v.Reference)
}

func TestFindingsPool_NotificationFailureIsNotReturned(t *testing.T) {
	st := store.NewMemory()
	seedUsers(st)
	_, e := seed(t, st)
	n := &recordingNotifier{
		report: notify.Report{Sent: 1, Failed: 1},
		err:    errors.New("smtp: 550 mailbox unavailable"),
	}
	p := newFindingsPool(t, st, nil, n)

	require.NoError(t, p.Process(context.Background(), findingsMessage(e.ID, &entity.Host{ID: "h1"})))
	assert.Len(t, n.Events(), 1)
}

func TestFindingsPool_UnknownExecutorStillNotifiesMembers(t *testing.T) {
	st := store.NewMemory()
	st.PutUser(notify.User{ID: "u-all", Email: "all@example.com", Scope: notify.ScopeAllExecutions, EmailNotification: true})
	st.AddMember("proj", "u-all")
	_, e := seed(t, st)
	n := &recordingNotifier{}
	p := newFindingsPool(t, st, nil, n)

	require.NoError(t, p.Process(context.Background(), findingsMessage(e.ID)))

	events := n.Events()
	require.Len(t, events, 1)
	assert.Empty(t, events[0].Executor.ID)
	assert.Len(t, n.members[0], 1)
}

func TestFindingsPool_CancelledEnrichmentSavesNothing(t *testing.T) {
	st := store.NewMemory()
	_, e := seed(t, st)
	n := &recordingNotifier{}
	p := newFindingsPool(t, st, enrich.New(&staticSource{}, newTestLogger()), n)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Process(ctx, findingsMessage(e.ID, &entity.Vulnerability{ID: "v1", CVE: "CVE-2021-44228"}))
	assert.ErrorIs(t, err, context.Canceled)

	saved, err := st.Findings(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Empty(t, saved)
	assert.Empty(t, n.Events())
}

func TestFindingsPool_InvalidMessage(t *testing.T) {
	p := newFindingsPool(t, store.NewMemory(), nil, nil)
	err := p.Process(context.Background(), &queue.FindingsMessage{ExecutionID: "x"})
	assert.True(t, toolerr.HasCode(err, toolerr.ErrCodeInvalidInput))
}
