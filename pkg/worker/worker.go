package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mvieira/tarefo/pkg/api"
)

// JobWorker owns one TaskConfig + JobHandler pair and runs the
// poll -> dispatch -> execute -> report loop for it. Workers are constructed
// by WorkerPool.RegisterTask and share nothing with each other but the
// adapter, so a stuck handler for one task type never stalls polling for the
// others.
type JobWorker struct {
	adapter api.EngineAdapter
	config  TaskConfig
	handler JobHandler

	workerID string
	observer api.WorkerObserver
	logger   *slog.Logger

	pollInterval      time.Duration
	activationBackoff api.BackoffPolicy
	reportBackoff     api.BackoffPolicy

	// inFlight counts dispatched executions that have not finished their
	// reporting stage. It never exceeds config.MaxJobsToActivate.
	inFlight   atomic.Int64
	executions sync.WaitGroup
}

// Config returns the worker's task configuration.
func (w *JobWorker) Config() TaskConfig {
	return w.config
}

// InFlight returns the number of jobs currently dispatched and not yet done.
func (w *JobWorker) InFlight() int {
	return int(w.inFlight.Load())
}

// run is the scheduling loop. It polls until pollCtx is cancelled (clean
// exit, returns nil) or a fatal activation error occurs (returns the error).
// Dispatched executions run on execCtx so that a pool shutdown can stop
// polling while letting in-flight jobs drain.
func (w *JobWorker) run(pollCtx, execCtx context.Context) error {
	failures := 0

	for {
		if pollCtx.Err() != nil {
			return nil
		}

		// The backpressure window: never request more than the room left
		// under MaxJobsToActivate.
		slots := w.config.MaxJobsToActivate - int(w.inFlight.Load())
		if slots <= 0 {
			if !sleepCtx(pollCtx, w.pollInterval) {
				return nil
			}
			continue
		}

		stream, err := w.adapter.ActivateJobs(pollCtx, api.ActivationRequest{
			TaskType:       w.config.Type,
			Timeout:        w.config.Timeout,
			MaxJobs:        slots,
			WorkerID:       w.workerID,
			FetchVariables: w.config.VariablesToFetch,
		})
		if err != nil {
			if pollCtx.Err() != nil {
				return nil
			}
			if api.IsFatal(err) {
				return err
			}
			failures++
			if w.activationBackoff.Exhausted(failures) {
				return fmt.Errorf("worker: activation retries exhausted after %d attempts: %w", failures, err)
			}
			delay := w.activationBackoff.Delay(failures - 1)
			w.observer.OnActivationError(pollCtx, w.config.Type, err, delay)
			if !sleepCtx(pollCtx, delay) {
				return nil
			}
			continue
		}
		failures = 0

		// Drain the stream, dispatching each job as it arrives. Slow
		// handlers never block the drain: execution happens on separate
		// goroutines.
		for {
			job, err := stream.Next(pollCtx)
			if err != nil {
				if pollCtx.Err() != nil {
					return nil
				}
				if api.IsFatal(err) {
					return err
				}
				w.observer.OnActivationError(pollCtx, w.config.Type, err, 0)
				break
			}
			if job == nil {
				break
			}
			w.dispatch(execCtx, job)
		}

		if !sleepCtx(pollCtx, w.pollInterval) {
			return nil
		}
	}
}

// dispatch starts the execution pipeline for one job.
func (w *JobWorker) dispatch(ctx context.Context, job *api.Job) {
	w.inFlight.Add(1)
	w.observer.OnJobActivated(ctx, job)

	w.executions.Add(1)
	go func() {
		defer w.executions.Done()
		defer w.inFlight.Add(-1)
		w.execute(ctx, job)
	}()
}

// drained returns a channel that is closed once every in-flight execution of
// this worker has finished.
func (w *JobWorker) drained() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		w.executions.Wait()
		close(done)
	}()
	return done
}

// sleepCtx sleeps for d unless ctx is cancelled first. It returns false when
// the sleep was interrupted by cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// isContextErr reports whether err is a plain context cancellation.
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
