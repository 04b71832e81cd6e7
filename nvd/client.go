package nvd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/zero-day-ai/taskforge/parser"
	"github.com/zero-day-ai/taskforge/toolerr"
)

const (
	// DefaultBaseURL is the NVD CVE API 2.0 endpoint.
	DefaultBaseURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"

	// DefaultRate is the public API budget in requests per second.
	DefaultRate = 10

	// StatusNetworkConnectTimeout is the non-standard status some proxies
	// return when the upstream connection times out.
	StatusNetworkConnectTimeout = 599

	maxBodySize = 8 << 20
)

// Limiter throttles outgoing requests. *rate.Limiter and
// *queue.RedisLimiter satisfy it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// RetryPolicy controls how failed lookups are retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of requests, the first included
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential wait. A larger Retry-After still wins.
	MaxBackoff time.Duration

	// RetryableStatusCodes are the responses that trigger a retry
	RetryableStatusCodes map[int]bool
}

// DefaultRetryPolicy allows ten attempts with backoff doubling from one
// second up to two minutes.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    10,
		InitialBackoff: time.Second,
		MaxBackoff:     120 * time.Second,
		RetryableStatusCodes: map[int]bool{
			http.StatusForbidden:           true,
			http.StatusTooManyRequests:     true,
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
			http.StatusGatewayTimeout:      true,
			StatusNetworkConnectTimeout:    true,
		},
	}
}

// backoff returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return min(d, p.MaxBackoff)
}

// Client queries the NVD CVE API.
type Client struct {
	baseURL string
	http    *http.Client
	limiter Limiter
	policy  RetryPolicy
	logger  *slog.Logger
	tracer  trace.Tracer
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLimiter sets the shared request throttle.
func WithLimiter(l Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTracer sets the tracer used for lookup spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// NewClient creates a client with the default endpoint, retry policy and
// an in-process limiter at DefaultRate.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(DefaultRate), 1),
		policy:  DefaultRetryPolicy(),
		logger:  slog.Default(),
		tracer:  otel.Tracer("github.com/zero-day-ai/taskforge/nvd"),
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// attemptResult is the outcome of a single request.
type attemptResult struct {
	status     int
	body       []byte
	retryAfter time.Duration
	err        error
}

// Lookup fetches a CVE. It always returns a record: when the lookup fails
// the record is Degraded and the error says why.
func (c *Client) Lookup(ctx context.Context, cve string) (*Record, error) {
	ctx, span := c.tracer.Start(ctx, "nvd.lookup", trace.WithAttributes(attribute.String("cve", cve)))
	defer span.End()

	rec, attempts, err := c.lookup(ctx, cve)
	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.WarnContext(ctx, "CVE lookup failed", "cve", cve, "attempts", attempts, "error", err)
		return rec, err
	}
	span.SetAttributes(attribute.String("severity", string(rec.Severity)))
	return rec, nil
}

func (c *Client) lookup(ctx context.Context, cve string) (*Record, int, error) {
	if cve == "" {
		return Degraded(cve), 0, toolerr.New("nvd", "enrich", toolerr.ErrCodeInvalidInput, "CVE is required")
	}

	var (
		res      attemptResult
		attempts int
	)
	for attempts < c.policy.MaxAttempts {
		attempts++
		res = c.attempt(ctx, cve)
		if res.err == nil && res.status == http.StatusOK {
			rec, err := c.parse(cve, res.body)
			return rec, attempts, err
		}
		if ctx.Err() != nil {
			return Degraded(cve), attempts, toolerr.New("nvd", "enrich", toolerr.ErrCodeEnrichment,
				"lookup cancelled").WithCause(ctx.Err())
		}
		if res.err == nil && !c.policy.RetryableStatusCodes[res.status] {
			return Degraded(cve), attempts, statusError(res.status)
		}
		if attempts == c.policy.MaxAttempts {
			break
		}

		wait := c.policy.backoff(attempts)
		if res.retryAfter > wait {
			wait = res.retryAfter
		}
		c.logger.DebugContext(ctx, "retrying CVE lookup",
			"cve", cve, "attempt", attempts, "status", res.status, "wait", wait, "error", res.err)
		if err := c.sleep(ctx, wait); err != nil {
			return Degraded(cve), attempts, toolerr.New("nvd", "enrich", toolerr.ErrCodeEnrichment,
				"lookup cancelled").WithCause(err)
		}
	}

	// Connection errors get one more try without backoff once retries
	// are exhausted.
	if res.err != nil {
		attempts++
		res = c.attempt(ctx, cve)
		if res.err == nil && res.status == http.StatusOK {
			rec, err := c.parse(cve, res.body)
			return rec, attempts, err
		}
	}

	if res.err != nil {
		return Degraded(cve), attempts, toolerr.New("nvd", "enrich", toolerr.ErrCodeNetworkError,
			"CVE source unreachable").WithCause(res.err)
	}
	return Degraded(cve), attempts, statusError(res.status)
}

func statusError(status int) error {
	return toolerr.New("nvd", "enrich", toolerr.ErrCodeEnrichment,
		fmt.Sprintf("CVE source returned HTTP %d", status)).
		WithDetails(map[string]any{"status": status})
}

// attempt performs one throttled request.
func (c *Client) attempt(ctx context.Context, cve string) attemptResult {
	if err := c.limiter.Wait(ctx); err != nil {
		return attemptResult{err: fmt.Errorf("rate limiter: %w", err)}
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return attemptResult{err: fmt.Errorf("invalid base URL: %w", err)}
	}
	q := u.Query()
	q.Set("cveId", cve)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return attemptResult{err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return attemptResult{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return attemptResult{status: resp.StatusCode, err: err}
	}
	return attemptResult{
		status:     resp.StatusCode,
		body:       body,
		retryAfter: c.retryAfter(resp.Header.Get("Retry-After")),
	}
}

// retryAfter parses a Retry-After header in seconds or HTTP-date form.
func (c *Client) retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if date, err := http.ParseTime(v); err == nil {
		if d := date.Sub(c.now()); d > 0 {
			return d
		}
	}
	return 0
}

// ErrNotFound is the cause when the API knows no such CVE.
var ErrNotFound = errors.New("CVE not found")

func (c *Client) parse(cve string, body []byte) (*Record, error) {
	resp, err := parser.ParseJSON[apiResponse](body)
	if err != nil {
		return Degraded(cve), toolerr.New("nvd", "enrich", toolerr.ErrCodeParseError, err.Error()).WithCause(err)
	}
	if len(resp.Vulnerabilities) == 0 {
		return Degraded(cve), toolerr.New("nvd", "enrich", toolerr.ErrCodeEnrichment, ErrNotFound.Error()).
			WithCause(ErrNotFound)
	}
	return resp.Vulnerabilities[0].CVE.record(cve), nil
}
