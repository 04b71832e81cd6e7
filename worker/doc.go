// Package worker runs the two queue consumer pools of the pipeline.
//
// ExecutionPool pops ExecutionMessages, claims the persisted execution,
// runs the tool through an Invoker and records the outcome. Completed
// executions have their findings persisted and forwarded as a
// FindingsMessage.
//
// FindingsPool pops FindingsMessages, enriches vulnerability findings,
// stores the enriched findings and notifies the executor and project
// members.
//
// Both pools are built explicitly with their queue handle and
// collaborators:
//
//	pool := worker.NewExecutionPool(q, st, registry, invoker, worker.Options{
//	    Concurrency: 4,
//	    Logger:      logger,
//	})
//	if err := pool.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Run blocks until ctx is cancelled or the queue is closed. Items already
// being processed get ShutdownTimeout to finish before their context is
// cancelled too.
//
// Each pool registers itself in the queue's worker count and refreshes a
// heartbeat key every HeartbeatInterval, so other processes can see which
// pools are alive.
package worker
