// Package health reports whether a taskforge process can do its work.
//
// Each check returns a Status. Combine folds named results into one status:
//
//   - Unhealthy: a dependency the process cannot run without is down
//   - Degraded: work proceeds with reduced results, for example executions of
//     a tool whose binary is missing end skipped
//   - Healthy: every check passed
//
// Handler serves a check function over HTTP for liveness probes:
//
//	mux.Handle("/healthz", health.Handler(func(ctx context.Context) health.Status {
//	    return health.Combine(
//	        health.Named("queue", health.Queue(ctx, q, worker.PoolExecutions)),
//	        health.Named("tools", health.Binaries(commands...)),
//	    )
//	}))
package health
