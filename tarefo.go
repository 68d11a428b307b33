package tarefo

import (
	"database/sql"

	"github.com/mvieira/tarefo/internal/engine"
	"github.com/mvieira/tarefo/pkg/api"
	"github.com/mvieira/tarefo/pkg/worker"
)

// Re-export key types so users don't need to dig into pkg/api and pkg/worker.

type (
	Variables         = api.Variables
	Job               = api.Job
	Outcome           = api.Outcome
	OutcomeKind       = api.OutcomeKind
	EngineAdapter     = api.EngineAdapter
	ActivationRequest = api.ActivationRequest
	JobStream         = api.JobStream
	ProcessDefinition = api.ProcessDefinition
	TaskDefinition    = api.TaskDefinition
	Message           = api.Message
	BackoffPolicy     = api.BackoffPolicy
	RecoverableError  = api.RecoverableError

	WorkerObserver             = api.WorkerObserver
	NoopWorkerObserver         = api.NoopWorkerObserver
	LoggingWorkerObserver      = api.LoggingWorkerObserver
	CompositeWorkerObserver    = api.CompositeWorkerObserver
	BasicWorkerMetrics         = api.BasicWorkerMetrics
	BasicWorkerMetricsSnapshot = api.BasicWorkerMetricsSnapshot

	TaskConfig       = worker.TaskConfig
	JobHandler       = worker.JobHandler
	ExceptionHandler = worker.ExceptionHandler
	TaskDecorator    = worker.TaskDecorator
	WorkerPool       = worker.WorkerPool
	PoolConfig       = worker.PoolConfig
	PoolState        = worker.State
)

// Re-export outcome kinds for convenience.

const (
	OutcomeComplete = api.OutcomeComplete
	OutcomeFail     = api.OutcomeFail
	OutcomeError    = api.OutcomeError
)

// Re-export pool lifecycle states.

const (
	PoolCreated  = worker.StateCreated
	PoolRunning  = worker.StateRunning
	PoolStopping = worker.StateStopping
	PoolStopped  = worker.StateStopped
)

// LatestVersion selects the most recently deployed version of a process.
const LatestVersion = api.LatestVersion

// Re-export the error taxonomy; see pkg/api for classification semantics.

var (
	ErrOutcomeAlreadySet    = api.ErrOutcomeAlreadySet
	ErrBackpressure         = api.ErrBackpressure
	ErrGatewayUnavailable   = api.ErrGatewayUnavailable
	ErrEngineInternal       = api.ErrEngineInternal
	ErrProcessNotFound      = api.ErrProcessNotFound
	ErrInstanceNotFound     = api.ErrInstanceNotFound
	ErrJobNotFound          = api.ErrJobNotFound
	ErrInvalidInput         = api.ErrInvalidInput
	ErrMessageAlreadyExists = api.ErrMessageAlreadyExists
)

// Re-export common helpers.

var (
	IsRecoverable              = api.IsRecoverable
	IsFatal                    = api.IsFatal
	NewRecoverableError        = api.NewRecoverableError
	NewJobStream               = api.NewJobStream
	NewLoggingWorkerObserver   = api.NewLoggingWorkerObserver
	NewCompositeWorkerObserver = api.NewCompositeWorkerObserver
	DefaultExceptionHandler    = worker.DefaultExceptionHandler
)

// Engine adapter constructors
// These wrap the internal/engine package so external callers never need to
// import internal packages. The in-process engine is intended for tests,
// examples and small single-process deployments; production systems plug in
// an adapter for their remote engine's gateway.

// NewInMemoryEngine returns an EngineAdapter backed entirely by memory.
func NewInMemoryEngine() EngineAdapter {
	return engine.NewInMemory()
}

// NewSQLiteEngine returns an EngineAdapter whose pending jobs are persisted
// in the given SQLite database. Process definitions and instance state are
// kept in memory.
func NewSQLiteEngine(db *sql.DB) (EngineAdapter, error) {
	return engine.NewSQLite(db)
}

// NewPool creates a worker pool on the given adapter with default
// configuration.
func NewPool(adapter EngineAdapter) *WorkerPool {
	return worker.NewPool(adapter)
}

// NewPoolWithConfig creates a worker pool using the given configuration.
func NewPoolWithConfig(adapter EngineAdapter, cfg PoolConfig) *WorkerPool {
	return worker.NewPoolWithConfig(adapter, cfg)
}
