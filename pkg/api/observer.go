package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// WorkerObserver receives callbacks from job workers for logging and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay job execution.
type WorkerObserver interface {
	// OnJobActivated is called when a job has been activated and is about
	// to be dispatched for execution.
	OnJobActivated(ctx context.Context, job *Job)

	// OnJobReported is called after a job's outcome has been successfully
	// delivered to the engine.
	OnJobReported(ctx context.Context, job *Job, outcome Outcome, duration time.Duration)

	// OnJobAbandoned is called when reporting a job's outcome was given up
	// on. The engine's lock timeout will eventually re-offer the job.
	OnJobAbandoned(ctx context.Context, job *Job, err error)

	// OnActivationError is called when an activation poll fails with a
	// recoverable condition. delay is the backoff before the next attempt.
	OnActivationError(ctx context.Context, taskType string, err error, delay time.Duration)

	// OnWorkerStopped is called once when a worker's loop exits.
	// err is nil for a clean shutdown and non-nil when a fatal error
	// terminated the loop.
	OnWorkerStopped(ctx context.Context, taskType string, err error)
}

// NoopWorkerObserver is a WorkerObserver that does nothing.
// It is used as the default when no observer is configured.
type NoopWorkerObserver struct{}

func (NoopWorkerObserver) OnJobActivated(ctx context.Context, job *Job) {}
func (NoopWorkerObserver) OnJobReported(ctx context.Context, job *Job, outcome Outcome, d time.Duration) {
}
func (NoopWorkerObserver) OnJobAbandoned(ctx context.Context, job *Job, err error) {}
func (NoopWorkerObserver) OnActivationError(ctx context.Context, taskType string, err error, delay time.Duration) {
}
func (NoopWorkerObserver) OnWorkerStopped(ctx context.Context, taskType string, err error) {}

// CompositeWorkerObserver fans out events to multiple observers.
type CompositeWorkerObserver struct {
	observers []WorkerObserver
}

// NewCompositeWorkerObserver creates a WorkerObserver that forwards events to
// each non-nil observer in obs.
func NewCompositeWorkerObserver(obs ...WorkerObserver) WorkerObserver {
	filtered := make([]WorkerObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopWorkerObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeWorkerObserver{observers: filtered}
}

func (c *CompositeWorkerObserver) OnJobActivated(ctx context.Context, job *Job) {
	for _, o := range c.observers {
		o.OnJobActivated(ctx, job)
	}
}

func (c *CompositeWorkerObserver) OnJobReported(ctx context.Context, job *Job, outcome Outcome, d time.Duration) {
	for _, o := range c.observers {
		o.OnJobReported(ctx, job, outcome, d)
	}
}

func (c *CompositeWorkerObserver) OnJobAbandoned(ctx context.Context, job *Job, err error) {
	for _, o := range c.observers {
		o.OnJobAbandoned(ctx, job, err)
	}
}

func (c *CompositeWorkerObserver) OnActivationError(ctx context.Context, taskType string, err error, delay time.Duration) {
	for _, o := range c.observers {
		o.OnActivationError(ctx, taskType, err, delay)
	}
}

func (c *CompositeWorkerObserver) OnWorkerStopped(ctx context.Context, taskType string, err error) {
	for _, o := range c.observers {
		o.OnWorkerStopped(ctx, taskType, err)
	}
}

// LoggingWorkerObserver writes structured logs using log/slog.
type LoggingWorkerObserver struct {
	Logger *slog.Logger
}

// NewLoggingWorkerObserver creates a WorkerObserver that logs job lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingWorkerObserver(logger *slog.Logger) WorkerObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingWorkerObserver{Logger: logger}
}

func (o *LoggingWorkerObserver) OnJobActivated(ctx context.Context, job *Job) {
	o.Logger.DebugContext(ctx, "job_activated",
		slog.String("task_type", job.Type),
		slog.Int64("job_key", job.Key),
		slog.Int64("instance_key", job.ProcessInstanceKey),
	)
}

func (o *LoggingWorkerObserver) OnJobReported(ctx context.Context, job *Job, outcome Outcome, d time.Duration) {
	level := slog.LevelInfo
	if outcome.Kind != OutcomeComplete {
		level = slog.LevelWarn
	}
	o.Logger.Log(ctx, level, "job_reported",
		slog.String("task_type", job.Type),
		slog.Int64("job_key", job.Key),
		slog.String("outcome", string(outcome.Kind)),
		slog.Duration("duration", d),
	)
}

func (o *LoggingWorkerObserver) OnJobAbandoned(ctx context.Context, job *Job, err error) {
	o.Logger.WarnContext(ctx, "job_abandoned",
		slog.String("task_type", job.Type),
		slog.Int64("job_key", job.Key),
		slog.Any("error", err),
	)
}

func (o *LoggingWorkerObserver) OnActivationError(ctx context.Context, taskType string, err error, delay time.Duration) {
	o.Logger.WarnContext(ctx, "activation_retry",
		slog.String("task_type", taskType),
		slog.Duration("backoff", delay),
		slog.Any("error", err),
	)
}

func (o *LoggingWorkerObserver) OnWorkerStopped(ctx context.Context, taskType string, err error) {
	if err == nil {
		o.Logger.InfoContext(ctx, "worker_stopped",
			slog.String("task_type", taskType),
		)
		return
	}
	o.Logger.ErrorContext(ctx, "worker_failed",
		slog.String("task_type", taskType),
		slog.Any("error", err),
	)
}

// BasicWorkerMetrics collects simple counters and aggregate job durations.
// It implements WorkerObserver, and can be combined with
// LoggingWorkerObserver via NewCompositeWorkerObserver.
type BasicWorkerMetrics struct {
	NoopWorkerObserver

	jobsActivated    atomic.Int64
	jobsCompleted    atomic.Int64
	jobsFailed       atomic.Int64
	jobsErrored      atomic.Int64
	jobsAbandoned    atomic.Int64
	activationErrors atomic.Int64
	workersFailed    atomic.Int64
	totalJobDuration atomic.Int64 // nanoseconds
}

// BasicWorkerMetricsSnapshot is an immutable snapshot of BasicWorkerMetrics.
type BasicWorkerMetricsSnapshot struct {
	JobsActivated    int64
	JobsCompleted    int64
	JobsFailed       int64
	JobsErrored      int64
	JobsAbandoned    int64
	InFlightJobs     int64
	ActivationErrors int64
	WorkersFailed    int64
	AvgJobDuration   time.Duration
}

func (m *BasicWorkerMetrics) OnJobActivated(ctx context.Context, job *Job) {
	m.jobsActivated.Add(1)
}

func (m *BasicWorkerMetrics) OnJobReported(ctx context.Context, job *Job, outcome Outcome, d time.Duration) {
	switch outcome.Kind {
	case OutcomeComplete:
		m.jobsCompleted.Add(1)
	case OutcomeFail:
		m.jobsFailed.Add(1)
	case OutcomeError:
		m.jobsErrored.Add(1)
	}
	m.totalJobDuration.Add(d.Nanoseconds())
}

func (m *BasicWorkerMetrics) OnJobAbandoned(ctx context.Context, job *Job, err error) {
	m.jobsAbandoned.Add(1)
}

func (m *BasicWorkerMetrics) OnActivationError(ctx context.Context, taskType string, err error, delay time.Duration) {
	m.activationErrors.Add(1)
}

func (m *BasicWorkerMetrics) OnWorkerStopped(ctx context.Context, taskType string, err error) {
	if err != nil {
		m.workersFailed.Add(1)
	}
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicWorkerMetrics) Snapshot() BasicWorkerMetricsSnapshot {
	activated := m.jobsActivated.Load()
	completed := m.jobsCompleted.Load()
	failed := m.jobsFailed.Load()
	errored := m.jobsErrored.Load()
	abandoned := m.jobsAbandoned.Load()
	totalNs := m.totalJobDuration.Load()

	reported := completed + failed + errored
	var avg time.Duration
	if reported > 0 {
		avg = time.Duration(totalNs / reported)
	}

	return BasicWorkerMetricsSnapshot{
		JobsActivated:    activated,
		JobsCompleted:    completed,
		JobsFailed:       failed,
		JobsErrored:      errored,
		JobsAbandoned:    abandoned,
		InFlightJobs:     activated - reported - abandoned,
		ActivationErrors: m.activationErrors.Load(),
		WorkersFailed:    m.workersFailed.Load(),
		AvgJobDuration:   avg,
	}
}
