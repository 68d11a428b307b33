package api

import (
	"context"
	"time"
)

// ActivationRequest describes one poll against the engine's job activation
// endpoint.
type ActivationRequest struct {
	// TaskType selects which jobs to activate.
	TaskType string

	// Timeout is the lock duration granted per activated job. While the
	// lock is held the engine will not offer the job to other workers.
	Timeout time.Duration

	// MaxJobs is the maximum number of jobs to activate in this poll.
	MaxJobs int

	// WorkerID identifies the polling worker to the engine.
	WorkerID string

	// FetchVariables limits which variables are returned on each job.
	// Nil means all variables.
	FetchVariables []string
}

// JobStream is a finite, non-restartable producer of activated jobs.
//
// Next blocks until the next job is available, the stream is exhausted, or
// ctx is cancelled. An exhausted stream returns (nil, nil). Consumers are
// expected to dispatch each job as it arrives rather than buffer the whole
// batch.
type JobStream interface {
	Next(ctx context.Context) (*Job, error)
}

// sliceStream serves a fixed batch of jobs.
type sliceStream struct {
	jobs []*Job
}

// NewJobStream wraps an already-materialized batch of jobs in a JobStream.
// Adapters whose transport returns whole batches use this to satisfy the
// streaming contract; it is also convenient in tests.
func NewJobStream(jobs []*Job) JobStream {
	return &sliceStream{jobs: jobs}
}

func (s *sliceStream) Next(ctx context.Context) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.jobs) == 0 {
		return nil, nil
	}
	j := s.jobs[0]
	s.jobs = s.jobs[1:]
	return j, nil
}

// TaskDefinition is one service task inside a process definition.
type TaskDefinition struct {
	// ElementID is the unique id of the task element inside the process.
	ElementID string

	// Type is the task type workers subscribe to.
	Type string

	// Headers are static custom headers attached to every job this task
	// emits.
	Headers map[string]string

	// Retries is the initial retry budget for jobs of this task.
	// Zero or negative means the engine default (3).
	Retries int32
}

// ProcessDefinition describes a deployable process as an ordered sequence of
// service tasks. The definition format of a real engine is richer; this is
// the minimal shape the in-process engine executes.
type ProcessDefinition struct {
	// ID is the process id instances are created by.
	ID string

	// Tasks run in order; an instance completes when its last task does.
	Tasks []TaskDefinition
}

// Message is a named message published towards the engine.
type Message struct {
	Name           string
	CorrelationKey string

	// TimeToLive bounds how long the message stays buffered waiting for a
	// subscriber. Zero means the engine default.
	TimeToLive time.Duration

	// MessageID, if non-empty, deduplicates: publishing a second message
	// with the same id while the first is alive fails with
	// ErrMessageAlreadyExists.
	MessageID string

	Variables Variables
}

// LatestVersion selects the most recently deployed version of a process.
const LatestVersion int32 = -1

// EngineAdapter is the RPC boundary to a workflow orchestration engine.
//
// All operations may fail with a recoverable condition (ErrBackpressure,
// ErrGatewayUnavailable, or a RecoverableError) or a fatal one (everything
// else). Callers classify with IsRecoverable / IsFatal.
type EngineAdapter interface {
	// ActivateJobs asks the engine for up to req.MaxJobs jobs of
	// req.TaskType, locked for req.Timeout. A successful call may yield an
	// empty stream; that simply means nothing is currently available.
	ActivateJobs(ctx context.Context, req ActivationRequest) (JobStream, error)

	// CompleteJob reports a job as completed, merging variables into the
	// owning instance's data context.
	CompleteJob(ctx context.Context, jobKey int64, variables Variables) error

	// FailJob reports a job as failed with the given remaining retries.
	// With retries > 0 the engine re-offers the job; with 0 it raises an
	// incident.
	FailJob(ctx context.Context, jobKey int64, retries int32, errorMessage string) error

	// ThrowError reports a business error for a job, identified by code.
	ThrowError(ctx context.Context, jobKey int64, errorCode, errorMessage string) error

	// CreateInstance starts an instance of the process with the given id
	// and version (LatestVersion for the newest deployed one) and returns
	// the engine-assigned instance key.
	CreateInstance(ctx context.Context, processID string, version int32, variables Variables) (int64, error)

	// CreateInstanceWithResult starts an instance and blocks until it
	// completes, returning its final variables. If fetchVariables is
	// non-nil only those names are returned. A zero timeout uses the
	// engine default.
	CreateInstanceWithResult(ctx context.Context, processID string, version int32, variables Variables, timeout time.Duration, fetchVariables []string) (Variables, error)

	// CancelInstance cancels a running instance and discards its pending
	// jobs.
	CancelInstance(ctx context.Context, instanceKey int64) error

	// DeployProcess deploys one or more process definitions, each becoming
	// the latest version of its id.
	DeployProcess(ctx context.Context, definitions ...ProcessDefinition) error

	// PublishMessage publishes a message towards the engine.
	PublishMessage(ctx context.Context, msg Message) error
}
