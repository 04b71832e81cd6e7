// Package taskforge turns security assessment tasks into tool executions
// and feeds them to the asynchronous execution pipeline.
//
// A Task asks for one registered tool to run against one target at an
// intensity, optionally with wordlists. The Engine resolves the task into
// concrete executions:
//
//  1. The candidate pool is loaded from the store: the task's wordlists,
//     the target, its ports and endpoints, its parameters and the findings
//     of earlier executions against it.
//  2. The planner matches candidates to the tool's inputs and decides how
//     many executions are needed (one per wordlist, one per port for
//     for_each_target_port tools) and renders each argument string.
//  3. The task and its executions are stored atomically, and one
//     ExecutionMessage per execution is pushed onto the executions queue.
//
// Workers (package worker) consume the queue, run the tools and pass
// findings on to enrichment and notification.
//
// # Usage
//
//	registry := tool.NewRegistry()
//	if err := registry.LoadFile("tools.yaml"); err != nil {
//		log.Fatal(err)
//	}
//
//	engine, err := taskforge.New(registry, st, q, taskforge.WithLogger(logger))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	task := execution.NewTask(projectID, targetID, "nmap", tool.IntensityNormal, userID)
//	plan, err := engine.Submit(ctx, task)
//
// A task whose required inputs match nothing produces no executions and no
// error. When only some executions fail to render, Submit stores and
// enqueues the others and returns the rendering errors in Plan.Err.
//
// # Cancellation
//
// Engine.Cancel stops an execution that no worker has claimed yet. Once an
// execution is running it cannot be cancelled.
package taskforge
