// Package tarefo is a client library for workflow orchestration engines.
// Application code uses it to start, query, cancel and message workflow
// instances on an engine, and worker processes use it to register job
// handlers that poll, execute and report units of work ("jobs") emitted by
// that engine.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. EngineAdapter
//  2. Client
//  3. WorkerPool
//  4. JobHandler
//  5. LocalEngine
//
// # EngineAdapter
//
// EngineAdapter is the RPC boundary to the engine: activate jobs, report
// outcomes, and run the one-shot workflow operations. The transport and the
// wire protocol live entirely behind this interface, so the library works
// against any engine for which an adapter exists. Two in-process adapters
// ship with the library — in-memory and SQLite-backed — primarily for tests,
// examples and small single-process deployments.
//
// Every adapter failure is either recoverable (engine backpressure, a
// momentarily unreachable gateway) or fatal (malformed request, internal
// engine error). Workers retry recoverable failures with exponential backoff
// and never surface them to handler code; fatal failures terminate only the
// affected worker loop.
//
// # Client
//
// Client wraps the adapter's one-shot operations: deploy process
// definitions, start instances (optionally waiting for their result), cancel
// instances, publish messages. Failures carry typed errors so callers can
// distinguish not-found, invalid-input and infrastructure conditions.
//
// # WorkerPool
//
// A WorkerPool runs one independent scheduling loop per registered task
// type. Each loop keeps up to the task's batch size of jobs in flight,
// dispatches every activated job to its own goroutine, and reports exactly
// one outcome per job: complete with variables, fail with a retry budget, or
// a business error the workflow can catch. Handler errors are mapped to
// outcomes by a per-task ExceptionHandler, and before/after decorators wrap
// handler execution for cross-cutting concerns.
//
// Shutdown is graceful: polling stops immediately, in-flight jobs get a
// bounded drain window, and anything left is abandoned to the engine's lock
// timeout, which re-offers those jobs to other workers.
//
// # JobHandler
//
// A JobHandler is the business logic for one task type:
//
//	func(ctx context.Context, job *tarefo.Job) (tarefo.Variables, error)
//
// Returning variables completes the job with them; returning an error routes
// through the exception handler. Handlers should be idempotent: after a
// crash or an abandoned report, the engine will offer the same job again.
//
// # LocalEngine
//
// LocalEngine bundles the in-process adapter, a Client and a WorkerPool into
// a single-process runtime. It is the fastest way to run and debug workflows
// during development, and it is what the library's own examples and tests
// use.
//
// For examples, see the /examples directory.
package tarefo
