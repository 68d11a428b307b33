package tarefo

import (
	"time"

	"github.com/mvieira/tarefo/pkg/worker"
)

// TaskBuilder provides a fluent API for building the per-task-type
// configuration registered on a worker pool:
//
//	cfg := tarefo.NewTask("payments").
//	    WithTimeout(30 * time.Second).
//	    WithMaxJobsToActivate(8).
//	    WithVariablesToFetch("orderId", "amount").
//	    Before(authDecorator).
//	    After(auditDecorator).
//	    Config()
//
//	if err := pool.RegisterTask(cfg, handlePayment); err != nil {
//	    log.Fatal(err)
//	}
type TaskBuilder struct {
	cfg worker.TaskConfig
}

// NewTask creates a builder for the given task type.
// Unset options fall back to the worker package defaults (10s timeout,
// batch size 32, all variables, DefaultExceptionHandler).
func NewTask(taskType string) *TaskBuilder {
	if taskType == "" {
		panic("tarefo: task type must not be empty")
	}
	return &TaskBuilder{
		cfg: worker.TaskConfig{Type: taskType},
	}
}

// Type returns the task type being configured.
func (b *TaskBuilder) Type() string {
	return b.cfg.Type
}

// WithTimeout sets the activation lock duration.
func (b *TaskBuilder) WithTimeout(d time.Duration) *TaskBuilder {
	b.cfg.Timeout = d
	return b
}

// WithMaxJobsToActivate sets the per-poll batch size, which is also the
// ceiling on concurrently executing jobs for this task type.
func (b *TaskBuilder) WithMaxJobsToActivate(n int) *TaskBuilder {
	b.cfg.MaxJobsToActivate = n
	return b
}

// WithVariablesToFetch limits which variables are fetched on each job.
// Without it, all variables are fetched.
func (b *TaskBuilder) WithVariablesToFetch(names ...string) *TaskBuilder {
	b.cfg.VariablesToFetch = names
	return b
}

// WithExceptionHandler replaces the default exception handler. The handler
// must set exactly one outcome on the job it is given.
func (b *TaskBuilder) WithExceptionHandler(h ExceptionHandler) *TaskBuilder {
	b.cfg.ExceptionHandler = h
	return b
}

// Before appends decorators that run before the handler, in the order given.
func (b *TaskBuilder) Before(decorators ...TaskDecorator) *TaskBuilder {
	b.cfg.Before = append(b.cfg.Before, decorators...)
	return b
}

// After appends decorators that run after the handler, in the order given,
// on both the success and the failure path.
func (b *TaskBuilder) After(decorators ...TaskDecorator) *TaskBuilder {
	b.cfg.After = append(b.cfg.After, decorators...)
	return b
}

// Config returns the built TaskConfig to be passed to
// WorkerPool.RegisterTask.
func (b *TaskBuilder) Config() worker.TaskConfig {
	return b.cfg
}
