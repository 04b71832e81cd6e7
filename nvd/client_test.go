package nvd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zero-day-ai/taskforge/finding"
	"github.com/zero-day-ai/taskforge/toolerr"
)

const log4shell = `{
  "resultsPerPage": 1,
  "vulnerabilities": [{
    "cve": {
      "id": "CVE-2021-44228",
      "descriptions": [
        {"lang": "es", "value": "Apache Log4j2 ..."},
        {"lang": "en", "value": "Apache Log4j2 JNDI features do not protect against attacker controlled LDAP."}
      ],
      "metrics": {
        "cvssMetricV31": [
          {"source": "other@example.com", "type": "Secondary", "cvssData": {"baseScore": 5.0}},
          {"source": "nvd@nist.gov", "type": "Primary", "cvssData": {"baseScore": 10.0}}
        ],
        "cvssMetricV2": [
          {"source": "nvd@nist.gov", "type": "Primary", "cvssData": {"baseScore": 9.3}}
        ]
      },
      "weaknesses": [
        {"type": "Secondary", "description": [{"lang": "en", "value": "CWE-20"}]},
        {"type": "Primary", "description": [
          {"lang": "en", "value": "NVD-CWE-Other"},
          {"lang": "en", "value": "CWE-502"}
        ]}
      ]
    }
  }]
}`

// sleepRecorder replaces real sleeping in tests.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return ctx.Err()
}

// countingLimiter counts Wait calls and never blocks.
type countingLimiter struct {
	calls atomic.Int32
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.calls.Add(1)
	return ctx.Err()
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) (*Client, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	opts = append([]Option{WithBaseURL(baseURL), WithLimiter(&countingLimiter{})}, opts...)
	c := NewClient(opts...)
	c.sleep = rec.sleep
	return c, rec
}

func TestLookup_ParsesRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "CVE-2021-44228", r.URL.Query().Get("cveId"))
		fmt.Fprint(w, log4shell)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	rec, err := c.Lookup(context.Background(), "CVE-2021-44228")
	require.NoError(t, err)

	assert.Equal(t, "Apache Log4j2 JNDI features do not protect against attacker controlled LDAP.", rec.Description)
	assert.Equal(t, "CWE-502", rec.CWE)
	assert.Equal(t, finding.SeverityCritical, rec.Severity)
	assert.Equal(t, 10.0, rec.Score)
	assert.Equal(t, "https://nvd.nist.gov/vuln/detail/CVE-2021-44228", rec.Reference)
}

func TestLookup_RetriesRateLimitedResponses(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, log4shell)
	}))
	defer srv.Close()

	limiter := &countingLimiter{}
	c, sleeps := newTestClient(t, srv.URL, WithLimiter(limiter))
	rec, err := c.Lookup(context.Background(), "CVE-2021-44228")
	require.NoError(t, err)

	assert.Equal(t, finding.SeverityCritical, rec.Severity)
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, int32(4), limiter.calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeps.waits)
}

func TestLookup_HonoursLargerRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			fmt.Fprint(w, log4shell)
		}
	}))
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL)
	_, err := c.Lookup(context.Background(), "CVE-2021-44228")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{30 * time.Second, 2 * time.Second}, sleeps.waits)
}

func TestLookup_NonRetryableStatusDegrades(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, sleeps := newTestClient(t, srv.URL)
	rec, err := c.Lookup(context.Background(), "CVE-0000-0000")
	require.Error(t, err)
	assert.True(t, toolerr.HasCode(err, toolerr.ErrCodeEnrichment))
	assert.Equal(t, Degraded("CVE-0000-0000"), rec)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, sleeps.waits)
}

func TestLookup_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	policy := DefaultRetryPolicy()
	policy.MaxAttempts = 3
	c, sleeps := newTestClient(t, srv.URL, WithRetryPolicy(policy))
	rec, err := c.Lookup(context.Background(), "CVE-2021-44228")

	assert.True(t, toolerr.HasCode(err, toolerr.ErrCodeEnrichment))
	assert.Equal(t, finding.SeverityMedium, rec.Severity)
	assert.Empty(t, rec.Description)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, sleeps.waits, 2)
}

func TestLookup_ConnectionErrorsGetOneExtraAttempt(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	limiter := &countingLimiter{}
	policy := DefaultRetryPolicy()
	policy.MaxAttempts = 2
	c, sleeps := newTestClient(t, base, WithRetryPolicy(policy), WithLimiter(limiter))
	rec, err := c.Lookup(context.Background(), "CVE-2021-44228")

	assert.True(t, toolerr.HasCode(err, toolerr.ErrCodeNetworkError))
	assert.Equal(t, Degraded("CVE-2021-44228"), rec)
	assert.Equal(t, int32(3), limiter.calls.Load())
	assert.Equal(t, []time.Duration{time.Second}, sleeps.waits)
}

func TestLookup_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"resultsPerPage":0,"vulnerabilities":[]}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	rec, err := c.Lookup(context.Background(), "CVE-1999-9999")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, finding.DefaultSeverity, rec.Severity)
}

func TestLookup_RequiresCVE(t *testing.T) {
	c, _ := newTestClient(t, "http://127.0.0.1:0")
	_, err := c.Lookup(context.Background(), "")
	assert.True(t, toolerr.HasCode(err, toolerr.ErrCodeInvalidInput))
}

func TestLookup_RecordsSpan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, log4shell)
	}))
	defer srv.Close()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	c, _ := newTestClient(t, srv.URL, WithTracer(tp.Tracer("test")))

	_, err := c.Lookup(context.Background(), "CVE-2021-44228")
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "nvd.lookup", spans[0].Name())
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "CVE-2021-44228", attrs["cve"])
	assert.Equal(t, "1", attrs["attempts"])
	assert.Equal(t, "critical", attrs["severity"])
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, time.Second, p.backoff(1))
	assert.Equal(t, 2*time.Second, p.backoff(2))
	assert.Equal(t, 64*time.Second, p.backoff(7))
	assert.Equal(t, 120*time.Second, p.backoff(8))
	assert.Equal(t, 120*time.Second, p.backoff(20))
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewClient()
	c.now = func() time.Time { return now }

	assert.Equal(t, 7*time.Second, c.retryAfter("7"))
	assert.Equal(t, 90*time.Second, c.retryAfter(now.Add(90*time.Second).Format(http.TimeFormat)))
	assert.Zero(t, c.retryAfter(now.Add(-time.Minute).Format(http.TimeFormat)))
	assert.Zero(t, c.retryAfter("soon"))
	assert.Zero(t, c.retryAfter(""))
}
