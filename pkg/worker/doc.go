// Package worker implements the job worker runtime: per-task-type scheduling
// loops that activate jobs from an engine adapter, execute them through a
// decorator/handler pipeline, and report outcomes back with bounded retries.
//
// A WorkerPool runs one independent JobWorker loop per registered task type.
// Each loop polls the adapter for up to MaxJobsToActivate jobs, dispatches
// every activated job to its own goroutine, and sleeps briefly between polls.
// Recoverable activation failures (backpressure, unreachable gateway) are
// retried with exponential backoff; fatal ones terminate only the affected
// loop and are surfaced through the pool's WorkerObserver.
//
// Per job, execution runs the before-decorators, the handler, and the
// after-decorators in registration order. Exactly one terminal outcome
// (complete, fail, or a business error) is chosen for every job: a handler
// error is mapped to an outcome by the task's ExceptionHandler, and a
// misconfigured handler that maps nothing still produces a generic failure
// report so no job is ever dropped silently.
package worker
