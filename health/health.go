package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/zero-day-ai/taskforge/exec"
	"github.com/zero-day-ai/taskforge/queue"
)

// Health states.
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

// Status is the outcome of a check.
type Status struct {
	State   string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func (s Status) IsHealthy() bool   { return s.State == StateHealthy }
func (s Status) IsDegraded() bool  { return s.State == StateDegraded }
func (s Status) IsUnhealthy() bool { return s.State == StateUnhealthy }

func Healthy(message string) Status {
	return Status{State: StateHealthy, Message: message}
}

func Degraded(message string, details map[string]any) Status {
	return Status{State: StateDegraded, Message: message, Details: details}
}

func Unhealthy(message string, details map[string]any) Status {
	return Status{State: StateUnhealthy, Message: message, Details: details}
}

// Soften downgrades an unhealthy status to degraded, for dependencies the
// process can run without.
func Soften(s Status) Status {
	if s.IsUnhealthy() {
		s.State = StateDegraded
	}
	return s
}

// Binaries verifies every command is in PATH. Missing commands degrade
// rather than fail: their executions are skipped.
func Binaries(commands ...string) Status {
	var missing []string
	for _, c := range commands {
		if c == "" || slices.Contains(missing, c) {
			continue
		}
		if !exec.BinaryExists(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return Degraded(fmt.Sprintf("%d tool binary(ies) not found in PATH", len(missing)),
			map[string]any{"missing": missing})
	}
	return Healthy(fmt.Sprintf("%d tool binary(ies) found", len(commands)))
}

// Queue verifies the queue backend answers for pool.
func Queue(ctx context.Context, q queue.Client, pool string) Status {
	n, err := q.WorkerCount(ctx, pool)
	if err != nil {
		return Unhealthy("queue is unreachable", map[string]any{"pool": pool, "error": err.Error()})
	}
	return Status{
		State:   StateHealthy,
		Message: "queue is reachable",
		Details: map[string]any{"pool": pool, "workers": n},
	}
}

// Pinger is implemented by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping verifies a database connection.
func Ping(ctx context.Context, p Pinger) Status {
	if err := p.Ping(ctx); err != nil {
		return Unhealthy("database ping failed", map[string]any{"error": err.Error()})
	}
	return Healthy("database is reachable")
}

// Network verifies TCP connectivity to host:port. A nil ctx uses a five
// second timeout.
func Network(ctx context.Context, host string, port int) Status {
	if host == "" {
		return Unhealthy("host cannot be empty", nil)
	}
	if port <= 0 || port > 65535 {
		return Unhealthy(fmt.Sprintf("invalid port number: %d", port), map[string]any{"port": port})
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return Unhealthy(fmt.Sprintf("failed to connect to %s", address),
			map[string]any{"host": host, "port": port, "error": err.Error()})
	}
	_ = conn.Close()
	return Healthy(fmt.Sprintf("connected to %s", address))
}

// Directory verifies path exists and is a directory.
func Directory(path string) Status {
	if path == "" {
		return Unhealthy("path cannot be empty", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Unhealthy(fmt.Sprintf("directory '%s' does not exist", path), map[string]any{"path": path})
		}
		return Unhealthy(fmt.Sprintf("failed to stat '%s'", path), map[string]any{"path": path, "error": err.Error()})
	}
	if !info.IsDir() {
		return Unhealthy(fmt.Sprintf("'%s' is not a directory", path), map[string]any{"path": path})
	}
	return Healthy(fmt.Sprintf("directory '%s' exists", path))
}

// Result is a named check outcome.
type Result struct {
	Name   string
	Status Status
}

// Named pairs a status with the name Combine reports it under.
func Named(name string, s Status) Result {
	return Result{Name: name, Status: s}
}

// Combine aggregates results. The worst state wins; every result is listed
// under details.checks.
func Combine(results ...Result) Status {
	if len(results) == 0 {
		return Healthy("no checks provided")
	}

	checks := make(map[string]Status, len(results))
	var unhealthy, degraded []string
	for _, r := range results {
		checks[r.Name] = r.Status
		switch r.Status.State {
		case StateUnhealthy:
			unhealthy = append(unhealthy, r.Name)
		case StateDegraded:
			degraded = append(degraded, r.Name)
		}
	}
	details := map[string]any{"checks": checks}

	switch {
	case len(unhealthy) > 0:
		details["failed"] = unhealthy
		return Unhealthy(fmt.Sprintf("%d check(s) failed", len(unhealthy)), details)
	case len(degraded) > 0:
		details["degraded"] = degraded
		return Degraded(fmt.Sprintf("%d check(s) degraded", len(degraded)), details)
	}
	return Status{
		State:   StateHealthy,
		Message: fmt.Sprintf("all %d check(s) passed", len(results)),
		Details: details,
	}
}

// Handler serves check as JSON. Unhealthy answers 503, anything else 200.
func Handler(check func(ctx context.Context) Status) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if s.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(s)
	})
}
