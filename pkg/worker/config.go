package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mvieira/tarefo/pkg/api"
)

// Defaults applied by TaskConfig.withDefaults for zero-valued fields.
const (
	// DefaultTimeout is the activation lock duration.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxJobsToActivate is the per-poll batch size, which also acts
	// as the worker's backpressure window.
	DefaultMaxJobsToActivate = 32
)

// JobHandler is the user-supplied function that performs the work for one
// job. On success it returns the variables to merge into the workflow's data
// context (the job is completed with them); on failure it returns an error,
// which is routed through the task's ExceptionHandler.
//
// A handler may also set the job's outcome itself (for example ThrowError for
// a business error) and return nil; in that case its outcome stands.
type JobHandler func(ctx context.Context, job *api.Job) (api.Variables, error)

// ExceptionHandler maps an error raised by a handler (or a before-decorator)
// to a terminal job outcome. It must call exactly one of the job's outcome
// setters; if it sets none, the worker reports the job as failed with a
// generic message so the job is never silently dropped.
type ExceptionHandler func(ctx context.Context, err error, job *api.Job)

// TaskDecorator is middleware invoked before or after handler execution.
// Before-decorators may read and mutate job state but must not set a terminal
// outcome; an error from a before-decorator skips the handler and takes the
// failure path. Errors from after-decorators are logged and ignored.
type TaskDecorator func(ctx context.Context, job *api.Job) error

// TaskConfig bundles the per-task-type configuration of a job worker.
// It is validated when the task is registered and immutable afterwards.
type TaskConfig struct {
	// Type is the task type this worker subscribes to. Required.
	Type string

	// ExceptionHandler maps handler errors to outcomes.
	// Nil means DefaultExceptionHandler.
	ExceptionHandler ExceptionHandler

	// Timeout is the activation lock duration. Zero means DefaultTimeout.
	Timeout time.Duration

	// MaxJobsToActivate is the per-poll batch size and the ceiling on
	// concurrently executing jobs for this task type.
	// Zero means DefaultMaxJobsToActivate.
	MaxJobsToActivate int

	// VariablesToFetch limits which variables are fetched per job.
	// Nil means all.
	VariablesToFetch []string

	// Before decorators run in registration order before the handler.
	Before []TaskDecorator

	// After decorators run in registration order after the handler,
	// on both the success and the failure path.
	After []TaskDecorator
}

// withDefaults returns a copy of c with zero-valued fields filled in.
func (c TaskConfig) withDefaults() TaskConfig {
	if c.ExceptionHandler == nil {
		c.ExceptionHandler = DefaultExceptionHandler
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxJobsToActivate == 0 {
		c.MaxJobsToActivate = DefaultMaxJobsToActivate
	}
	return c
}

// Validate checks the config after defaulting.
func (c TaskConfig) Validate() error {
	if c.Type == "" {
		return errors.New("worker: task type must not be empty")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("worker: task %q has negative timeout %v", c.Type, c.Timeout)
	}
	if c.MaxJobsToActivate < 0 {
		return fmt.Errorf("worker: task %q has negative max jobs to activate %d", c.Type, c.MaxJobsToActivate)
	}
	return nil
}

// DefaultExceptionHandler logs the error and marks the job as failed with one
// retry consumed. It is used whenever TaskConfig.ExceptionHandler is nil.
func DefaultExceptionHandler(ctx context.Context, err error, job *api.Job) {
	slog.Default().WarnContext(ctx, "job handler failed",
		slog.String("task_type", job.Type),
		slog.Int64("job_key", job.Key),
		slog.Any("error", err),
	)
	_ = job.Fail(fmt.Sprintf("Failed job. Error: %v", err), defaultFailureRetries(job))
}

// defaultFailureRetries is the retry count reported when failing a job on
// behalf of the user: one attempt consumed, floored at zero.
func defaultFailureRetries(job *api.Job) int32 {
	if job.Retries <= 0 {
		return 0
	}
	return job.Retries - 1
}
