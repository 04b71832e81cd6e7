// Package queue provides the durable work queues that connect the planner to
// the execution workers and the execution workers to the findings workers.
//
// # Core Components
//
// Client: byte-level queue operations plus worker bookkeeping:
//   - Push/Pop for FIFO work queues (Pop waits up to a timeout)
//   - Heartbeat for per-worker liveness keys with a TTL
//   - worker counters per pool
//
// Three implementations are provided: RedisClient (LPUSH/BRPOP), NATSClient
// (a JetStream work-queue stream with pull consumers) and MemoryClient for
// tests and single-process runs.
//
// ExecutionMessage and FindingsMessage are the JSON payloads carried on
// ExecutionsQueue and FindingsQueue. PushJSON and PopJSON encode them.
//
// RedisLimiter is a fixed-window rate limiter shared by every process that
// talks to the same Redis, used to keep CVE lookups under the provider's
// request ceiling.
//
// # Redis Key Schema
//
//   - <queue> - list of pending messages (LPUSH/BRPOP)
//   - taskforge:<pool>:worker:<id>:health - heartbeat with a 30s TTL
//   - taskforge:<pool>:workers - active worker counter
//   - taskforge:ratelimit:<name> - limiter window counter
//
// # Usage
//
//	client, err := queue.NewRedisClient(queue.RedisOptions{URL: "redis://localhost:6379"})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	err = queue.PushJSON(ctx, client, queue.ExecutionsQueue, msg)
//	next, err := queue.PopJSON[queue.ExecutionMessage](ctx, client, queue.ExecutionsQueue, 5*time.Second)
package queue
