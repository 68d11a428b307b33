package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mvieira/tarefo/pkg/api"
)

// genericFailureMessage is reported when an exception handler is
// misconfigured and sets no outcome. The job must never be dropped silently.
const genericFailureMessage = "job handler failed and the exception handler set no outcome"

// execute runs the decorator chain and handler for exactly one job and
// guarantees that exactly one outcome is set and reported (or abandoned after
// exhausted report retries).
func (w *JobWorker) execute(ctx context.Context, job *api.Job) {
	start := time.Now()

	var execErr error
	for _, before := range w.config.Before {
		if err := w.runDecorator(ctx, before, job); err != nil {
			// A failing before-decorator skips the handler and takes
			// the same path as a handler error.
			execErr = err
			break
		}
	}

	if execErr == nil {
		variables, err := w.invokeHandler(ctx, job)
		switch {
		case err != nil:
			execErr = err
		case !job.HasOutcome():
			_ = job.Complete(variables)
		}
	}

	if execErr != nil {
		w.config.ExceptionHandler(ctx, execErr, job)
		if !job.HasOutcome() {
			w.logger.Error("exception handler set no outcome",
				slog.String("task_type", job.Type),
				slog.Int64("job_key", job.Key),
				slog.Any("error", execErr),
			)
			_ = job.Fail(genericFailureMessage, defaultFailureRetries(job))
		}
	}

	for _, after := range w.config.After {
		if err := w.runDecorator(ctx, after, job); err != nil {
			// After-decorator errors never override the outcome.
			w.logger.Warn("after decorator failed",
				slog.String("task_type", job.Type),
				slog.Int64("job_key", job.Key),
				slog.Any("error", err),
			)
		}
	}

	w.report(ctx, job, time.Since(start))
}

// invokeHandler calls the user handler, converting a panic into an error so
// a misbehaving handler can never take down the worker process.
func (w *JobWorker) invokeHandler(ctx context.Context, job *api.Job) (variables api.Variables, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker: handler panic: %v", r)
		}
	}()
	return w.handler(ctx, job)
}

// runDecorator calls a decorator with the same panic containment as
// invokeHandler.
func (w *JobWorker) runDecorator(ctx context.Context, d TaskDecorator, job *api.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker: decorator panic: %v", r)
		}
	}()
	return d(ctx, job)
}

// report delivers the job's outcome to the engine, retrying recoverable
// failures per the report backoff policy. After exhaustion the job is
// abandoned: the engine's lock timeout will re-offer it to another worker.
func (w *JobWorker) report(ctx context.Context, job *api.Job, took time.Duration) {
	outcome, ok := job.Outcome()
	if !ok {
		// execute guarantees an outcome; this is a safety net for the
		// never-drop invariant.
		_ = job.Fail(genericFailureMessage, defaultFailureRetries(job))
		outcome, _ = job.Outcome()
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if w.reportBackoff.Exhausted(attempt) {
				break
			}
			if !sleepCtx(ctx, w.reportBackoff.Delay(attempt-1)) {
				lastErr = ctx.Err()
				break
			}
		}

		lastErr = w.sendOutcome(ctx, job.Key, outcome)
		if lastErr == nil {
			job.MarkReported()
			w.observer.OnJobReported(ctx, job, outcome, took)
			return
		}
		if api.IsFatal(lastErr) && !isContextErr(lastErr) {
			break
		}
		if isContextErr(lastErr) && ctx.Err() != nil {
			break
		}
	}

	w.logger.Warn("abandoning job after failed outcome report",
		slog.String("task_type", job.Type),
		slog.Int64("job_key", job.Key),
		slog.String("outcome", string(outcome.Kind)),
		slog.Any("error", lastErr),
	)
	w.observer.OnJobAbandoned(ctx, job, lastErr)
}

func (w *JobWorker) sendOutcome(ctx context.Context, jobKey int64, outcome api.Outcome) error {
	switch outcome.Kind {
	case api.OutcomeComplete:
		return w.adapter.CompleteJob(ctx, jobKey, outcome.Variables)
	case api.OutcomeFail:
		return w.adapter.FailJob(ctx, jobKey, outcome.Retries, outcome.Message)
	case api.OutcomeError:
		return w.adapter.ThrowError(ctx, jobKey, outcome.ErrorCode, outcome.Message)
	default:
		return fmt.Errorf("worker: unknown outcome kind %q", outcome.Kind)
	}
}
