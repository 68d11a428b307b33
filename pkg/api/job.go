package api

import (
	"sync"
	"time"
)

// Variables is the JSON-compatible data context attached to jobs, instances
// and messages. Values should be plain Go values (strings, numbers, bools,
// nested maps and slices).
type Variables map[string]any

// Clone returns a shallow copy of the variables map.
// A nil map clones to nil.
func (v Variables) Clone() Variables {
	if v == nil {
		return nil
	}
	out := make(Variables, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Merge returns a new Variables containing the entries of v overlaid with
// the entries of other. Neither input is modified.
func (v Variables) Merge(other Variables) Variables {
	if len(other) == 0 {
		return v.Clone()
	}
	out := make(Variables, len(v)+len(other))
	for k, val := range v {
		out[k] = val
	}
	for k, val := range other {
		out[k] = val
	}
	return out
}

// OutcomeKind identifies the terminal result chosen for a job.
type OutcomeKind string

const (
	OutcomeComplete OutcomeKind = "COMPLETE"
	OutcomeFail     OutcomeKind = "FAIL"
	OutcomeError    OutcomeKind = "ERROR"
)

// Outcome is the terminal result of one job execution.
// Which fields are meaningful depends on Kind:
//
//   - OutcomeComplete: Variables
//   - OutcomeFail:     Message, Retries
//   - OutcomeError:    ErrorCode, Message
type Outcome struct {
	Kind      OutcomeKind
	Variables Variables
	Message   string
	Retries   int32
	ErrorCode string
}

// Job is one unit of work activated from the engine for a specific task
// type. The identifying fields are set by the adapter at activation time and
// must not be modified afterwards; only CustomHeaders and Variables may be
// touched by decorators, and the outcome may be set exactly once through
// Complete, Fail or ThrowError.
type Job struct {
	// Key is the unique job identifier assigned by the engine.
	Key int64

	// Type is the task type this job was activated for.
	Type string

	// ProcessInstanceKey identifies the workflow instance the job belongs to.
	ProcessInstanceKey int64

	// ElementID is the id of the workflow element that emitted the job.
	ElementID string

	// CustomHeaders carries static headers from the workflow definition.
	CustomHeaders map[string]string

	// Variables is the data context fetched at activation time.
	Variables Variables

	// Retries is the number of retries remaining for this job.
	Retries int32

	// Deadline is when the activation lock expires and the engine may
	// re-offer the job to another worker.
	Deadline time.Time

	mu       sync.Mutex
	outcome  *Outcome
	reported bool
}

// Complete marks the job as successfully completed with the given variables
// to merge into the workflow's data context.
//
// It returns ErrOutcomeAlreadySet if an outcome was already chosen.
func (j *Job) Complete(variables Variables) error {
	return j.setOutcome(Outcome{
		Kind:      OutcomeComplete,
		Variables: variables,
	})
}

// Fail marks the job as failed with the given message and remaining retry
// count. A positive retries value lets the engine re-offer the job; zero
// raises an incident on the engine side.
//
// It returns ErrOutcomeAlreadySet if an outcome was already chosen.
func (j *Job) Fail(message string, retries int32) error {
	if retries < 0 {
		retries = 0
	}
	return j.setOutcome(Outcome{
		Kind:    OutcomeFail,
		Message: message,
		Retries: retries,
	})
}

// ThrowError marks the job with a business error that the workflow may catch
// by error code. Unlike Fail, the job is not retried.
//
// It returns ErrOutcomeAlreadySet if an outcome was already chosen.
func (j *Job) ThrowError(errorCode, message string) error {
	return j.setOutcome(Outcome{
		Kind:      OutcomeError,
		ErrorCode: errorCode,
		Message:   message,
	})
}

func (j *Job) setOutcome(o Outcome) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.outcome != nil || j.reported {
		return ErrOutcomeAlreadySet
	}
	j.outcome = &o
	return nil
}

// Outcome returns the outcome chosen for this job, if any.
func (j *Job) Outcome() (Outcome, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.outcome == nil {
		return Outcome{}, false
	}
	return *j.outcome, true
}

// HasOutcome reports whether an outcome has been set.
func (j *Job) HasOutcome() bool {
	_, ok := j.Outcome()
	return ok
}

// MarkReported records that the outcome has been delivered to the engine.
// Reporting is terminal: after this, no outcome can be set or changed.
// It is called by the worker's reporting stage; handlers and decorators
// should never call it.
func (j *Job) MarkReported() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.reported = true
}

// Reported reports whether the outcome has been delivered to the engine.
func (j *Job) Reported() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.reported
}
