// Package api defines the core types of the tarefo client library: the Job
// data model with its once-only outcome, the EngineAdapter boundary to a
// workflow orchestration engine, the error taxonomy used to classify adapter
// failures, and the WorkerObserver callbacks used for logging and metrics.
//
// Most applications import the root tarefo package, which re-exports
// everything here; this package exists so internal packages and custom
// adapters can depend on the types without pulling in the worker runtime.
//
// # Jobs and outcomes
//
// A Job is one unit of work activated from the engine. Exactly one terminal
// outcome must be chosen for every job before it is reported:
//
//	job.Complete(vars)            // merge vars into the instance and continue
//	job.Fail(msg, retries)        // retry (retries > 0) or raise an incident
//	job.ThrowError(code, msg)     // business error, caught by the workflow
//
// The setters enforce the once-only rule and return ErrOutcomeAlreadySet on a
// second call.
//
// # Error classification
//
// Adapter operations fail either recoverably (ErrBackpressure,
// ErrGatewayUnavailable, RecoverableError) or fatally (everything else).
// Worker loops retry recoverable failures with backoff and terminate on fatal
// ones; use IsRecoverable and IsFatal for the same classification in custom
// code.
package api
