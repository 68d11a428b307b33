package engine

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/mvieira/tarefo/internal/jobqueue"
	"github.com/mvieira/tarefo/pkg/api"
)

// Status is the lifecycle state of a process instance.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCanceled  Status = "CANCELED"
)

// Defaults used when callers pass zero values.
const (
	defaultRetries       = 3
	defaultResultTimeout = 30 * time.Second
	defaultMessageTTL    = 60 * time.Second
)

// instance is the engine's record of one running process.
type instance struct {
	key       int64
	processID string
	version   int32
	def       api.ProcessDefinition

	// taskIndex is the index of the currently active task.
	taskIndex int
	variables api.Variables
	status    Status
	failure   string

	// done is closed when the instance reaches a terminal status.
	done chan struct{}
}

// Engine is an in-process implementation of api.EngineAdapter. It executes
// process definitions as ordered task sequences over a jobqueue.Queue and is
// the reference adapter for tests and local development; the wire protocol of
// a real remote engine lives behind someone else's adapter.
//
// Process definitions and instance state are kept in memory; with a SQLite
// queue the pending jobs themselves survive a restart.
type Engine struct {
	queue jobqueue.Queue

	mu        sync.Mutex
	processes map[string][]api.ProcessDefinition // index = version-1
	instances map[int64]*instance
	messages  map[string]time.Time // message id -> expiry
	nextKey   int64
}

// New creates an Engine on top of the given job queue.
func New(queue jobqueue.Queue) *Engine {
	return &Engine{
		queue:     queue,
		processes: make(map[string][]api.ProcessDefinition),
		instances: make(map[int64]*instance),
		messages:  make(map[string]time.Time),
	}
}

// NewInMemory creates an Engine backed entirely by memory.
func NewInMemory() *Engine {
	return New(jobqueue.NewMemoryQueue())
}

// NewSQLite creates an Engine whose job queue is persisted in the given
// SQLite database.
func NewSQLite(db *sql.DB) (*Engine, error) {
	q, err := jobqueue.NewSQLiteQueue(db)
	if err != nil {
		return nil, err
	}
	return New(q), nil
}

// Ensure Engine implements the adapter contract.
var _ api.EngineAdapter = (*Engine)(nil)

func (e *Engine) newKey() int64 {
	e.nextKey++
	return e.nextKey
}

// DeployProcess validates and stores each definition as the latest version
// of its process id.
func (e *Engine) DeployProcess(ctx context.Context, definitions ...api.ProcessDefinition) error {
	if len(definitions) == 0 {
		return fmt.Errorf("%w: no process definitions", api.ErrInvalidInput)
	}
	for i := range definitions {
		if err := validateDefinition(&definitions[i]); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, def := range definitions {
		e.processes[def.ID] = append(e.processes[def.ID], def)
	}
	return nil
}

func validateDefinition(def *api.ProcessDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("%w: process id must not be empty", api.ErrInvalidInput)
	}
	if len(def.Tasks) == 0 {
		return fmt.Errorf("%w: process %q has no tasks", api.ErrInvalidInput, def.ID)
	}
	seen := make(map[string]struct{}, len(def.Tasks))
	for i := range def.Tasks {
		task := &def.Tasks[i]
		if task.Type == "" {
			return fmt.Errorf("%w: process %q task %d has empty type", api.ErrInvalidInput, def.ID, i)
		}
		if task.ElementID == "" {
			task.ElementID = fmt.Sprintf("%s-task-%d", def.ID, i)
		}
		if _, dup := seen[task.ElementID]; dup {
			return fmt.Errorf("%w: process %q has duplicate element id %q", api.ErrInvalidInput, def.ID, task.ElementID)
		}
		seen[task.ElementID] = struct{}{}
		if task.Retries <= 0 {
			task.Retries = defaultRetries
		}
	}
	return nil
}

// CreateInstance starts an instance of the requested process version and
// emits a job for its first task.
func (e *Engine) CreateInstance(ctx context.Context, processID string, version int32, variables api.Variables) (int64, error) {
	inst, err := e.createInstance(ctx, processID, version, variables)
	if err != nil {
		return 0, err
	}
	return inst.key, nil
}

func (e *Engine) createInstance(ctx context.Context, processID string, version int32, variables api.Variables) (*instance, error) {
	if processID == "" {
		return nil, fmt.Errorf("%w: process id must not be empty", api.ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	versions := e.processes[processID]
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %q", api.ErrProcessNotFound, processID)
	}
	var def api.ProcessDefinition
	switch {
	case version == api.LatestVersion:
		def = versions[len(versions)-1]
		version = int32(len(versions))
	case version >= 1 && int(version) <= len(versions):
		def = versions[version-1]
	default:
		return nil, fmt.Errorf("%w: %q version %d", api.ErrProcessNotFound, processID, version)
	}

	inst := &instance{
		key:       e.newKey(),
		processID: processID,
		version:   version,
		def:       def,
		variables: variables.Clone(),
		status:    StatusActive,
		done:      make(chan struct{}),
	}
	e.instances[inst.key] = inst

	if err := e.emitJob(ctx, inst); err != nil {
		delete(e.instances, inst.key)
		return nil, err
	}
	return inst, nil
}

// emitJob pushes a job for the instance's current task. Callers hold e.mu.
func (e *Engine) emitJob(ctx context.Context, inst *instance) error {
	task := inst.def.Tasks[inst.taskIndex]
	return e.queue.Push(ctx, jobqueue.Record{
		Key:         e.newKey(),
		Type:        task.Type,
		InstanceKey: inst.key,
		ElementID:   task.ElementID,
		Headers:     maps.Clone(task.Headers),
		Variables:   inst.variables.Clone(),
		Retries:     task.Retries,
	})
}

// ActivateJobs claims up to req.MaxJobs pending jobs of req.TaskType. Jobs
// whose earlier activation lock has expired are offered again.
func (e *Engine) ActivateJobs(ctx context.Context, req api.ActivationRequest) (api.JobStream, error) {
	if req.TaskType == "" {
		return nil, fmt.Errorf("%w: task type must not be empty", api.ErrInvalidInput)
	}
	if req.MaxJobs <= 0 {
		return nil, fmt.Errorf("%w: max jobs must be positive, got %d", api.ErrInvalidInput, req.MaxJobs)
	}
	if req.Timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive, got %v", api.ErrInvalidInput, req.Timeout)
	}

	records, err := e.queue.Activate(ctx, req.TaskType, req.MaxJobs, req.Timeout, req.WorkerID)
	if err != nil {
		return nil, err
	}

	jobs := make([]*api.Job, 0, len(records))
	for _, rec := range records {
		jobs = append(jobs, &api.Job{
			Key:                rec.Key,
			Type:               rec.Type,
			ProcessInstanceKey: rec.InstanceKey,
			ElementID:          rec.ElementID,
			CustomHeaders:      maps.Clone(rec.Headers),
			Variables:          filterVariables(rec.Variables, req.FetchVariables),
			Retries:            rec.Retries,
			Deadline:           rec.LockUntil,
		})
	}
	return api.NewJobStream(jobs), nil
}

func filterVariables(vars api.Variables, names []string) api.Variables {
	if names == nil {
		return vars.Clone()
	}
	out := make(api.Variables, len(names))
	for _, name := range names {
		if v, ok := vars[name]; ok {
			out[name] = v
		}
	}
	return out
}

// CompleteJob merges variables into the owning instance and advances it to
// the next task, completing the instance after the last one.
func (e *Engine) CompleteJob(ctx context.Context, jobKey int64, variables api.Variables) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, found, err := e.queue.Remove(ctx, jobKey)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: key %d", api.ErrJobNotFound, jobKey)
	}

	inst, ok := e.instances[rec.InstanceKey]
	if !ok || inst.status != StatusActive {
		// The instance went away (cancelled) between activation and
		// report; the outcome is simply dropped.
		return nil
	}

	inst.variables = inst.variables.Merge(variables)
	inst.taskIndex++
	if inst.taskIndex >= len(inst.def.Tasks) {
		inst.status = StatusCompleted
		close(inst.done)
		return nil
	}
	return e.emitJob(ctx, inst)
}

// FailJob re-offers the job when retries remain, and otherwise fails the
// owning instance (the in-process analog of raising an incident).
func (e *Engine) FailJob(ctx context.Context, jobKey int64, retries int32, errorMessage string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if retries > 0 {
		found, err := e.queue.Release(ctx, jobKey, retries)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: key %d", api.ErrJobNotFound, jobKey)
		}
		return nil
	}

	rec, found, err := e.queue.Remove(ctx, jobKey)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: key %d", api.ErrJobNotFound, jobKey)
	}
	e.failInstance(rec.InstanceKey, errorMessage)
	return nil
}

// ThrowError reports a business error for the job. The minimal engine has no
// error-catch elements, so the owning instance fails with the error code.
func (e *Engine) ThrowError(ctx context.Context, jobKey int64, errorCode, errorMessage string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, found, err := e.queue.Remove(ctx, jobKey)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: key %d", api.ErrJobNotFound, jobKey)
	}
	e.failInstance(rec.InstanceKey, fmt.Sprintf("%s: %s", errorCode, errorMessage))
	return nil
}

// failInstance marks an instance failed. Callers hold e.mu.
func (e *Engine) failInstance(instanceKey int64, failure string) {
	inst, ok := e.instances[instanceKey]
	if !ok || inst.status != StatusActive {
		return
	}
	inst.status = StatusFailed
	inst.failure = failure
	close(inst.done)
}

// CancelInstance cancels a running instance and discards its pending jobs.
func (e *Engine) CancelInstance(ctx context.Context, instanceKey int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, ok := e.instances[instanceKey]
	if !ok || inst.status != StatusActive {
		return fmt.Errorf("%w: key %d", api.ErrInstanceNotFound, instanceKey)
	}

	if err := e.queue.RemoveByInstance(ctx, instanceKey); err != nil {
		return err
	}
	inst.status = StatusCanceled
	close(inst.done)
	return nil
}

// CreateInstanceWithResult starts an instance and blocks until it reaches a
// terminal status, returning its final variables.
func (e *Engine) CreateInstanceWithResult(ctx context.Context, processID string, version int32, variables api.Variables, timeout time.Duration, fetchVariables []string) (api.Variables, error) {
	inst, err := e.createInstance(ctx, processID, version, variables)
	if err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = defaultResultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("engine: timed out after %v waiting for instance %d", timeout, inst.key)
	case <-inst.done:
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch inst.status {
	case StatusCompleted:
		return filterVariables(inst.variables, fetchVariables), nil
	case StatusCanceled:
		return nil, fmt.Errorf("engine: instance %d was cancelled", inst.key)
	default:
		return nil, fmt.Errorf("engine: instance %d failed: %s", inst.key, inst.failure)
	}
}

// PublishMessage buffers a message, deduplicating on MessageID while a
// previous message with the same id is still alive. The minimal engine has
// no message-catch elements, so buffered messages expire unconsumed.
func (e *Engine) PublishMessage(ctx context.Context, msg api.Message) error {
	if msg.Name == "" {
		return fmt.Errorf("%w: message name must not be empty", api.ErrInvalidInput)
	}

	ttl := msg.TimeToLive
	if ttl <= 0 {
		ttl = defaultMessageTTL
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	for id, expiry := range e.messages {
		if expiry.Before(now) {
			delete(e.messages, id)
		}
	}

	if msg.MessageID != "" {
		if _, alive := e.messages[msg.MessageID]; alive {
			return fmt.Errorf("%w: %q", api.ErrMessageAlreadyExists, msg.MessageID)
		}
		e.messages[msg.MessageID] = now.Add(ttl)
	}
	return nil
}

// InstanceState is a read-only snapshot of one instance.
type InstanceState struct {
	Key       int64
	ProcessID string
	Version   int32
	Status    Status
	Variables api.Variables
	Failure   string
}

// Instance returns a snapshot of the instance with the given key.
func (e *Engine) Instance(key int64) (InstanceState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, ok := e.instances[key]
	if !ok {
		return InstanceState{}, fmt.Errorf("%w: key %d", api.ErrInstanceNotFound, key)
	}
	return InstanceState{
		Key:       inst.key,
		ProcessID: inst.processID,
		Version:   inst.version,
		Status:    inst.status,
		Variables: inst.variables.Clone(),
		Failure:   inst.failure,
	}, nil
}

// PendingJobs returns the number of jobs currently stored in the queue.
func (e *Engine) PendingJobs(ctx context.Context) (int, error) {
	return e.queue.Len(ctx)
}
