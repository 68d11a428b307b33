package tarefo

import (
	"context"
	"database/sql"

	"github.com/mvieira/tarefo/pkg/worker"
)

// LocalEngine bundles the in-process engine adapter, a Client, and a worker
// pool into a simple single-process runtime for development, examples and
// tests.
//
// Typical usage:
//
//	local := tarefo.NewLocalEngine()
//
//	_ = local.Client.DeployProcess(ctx, tarefo.ProcessDefinition{
//	    ID:    "order",
//	    Tasks: []tarefo.TaskDefinition{{Type: "reserve"}, {Type: "charge"}},
//	})
//	_ = local.RegisterTask(tarefo.NewTask("reserve").Config(), reserveHandler)
//	_ = local.RegisterTask(tarefo.NewTask("charge").Config(), chargeHandler)
//
//	_ = local.Start(ctx)
//	defer local.Stop()
//
//	result, err := local.Client.RunProcessWithResult(ctx, "order", tarefo.LatestVersion, vars, 0, nil)
type LocalEngine struct {
	// Adapter is the in-process engine adapter.
	Adapter EngineAdapter

	// Client performs one-shot workflow operations against Adapter.
	Client *Client

	// Pool runs the registered job workers against Adapter.
	Pool *WorkerPool
}

// NewLocalEngine constructs a LocalEngine backed entirely by memory, with a
// default-configured worker pool.
func NewLocalEngine() *LocalEngine {
	return NewLocalEngineWithConfig(PoolConfig{})
}

// NewLocalEngineWithConfig is NewLocalEngine with an explicit pool
// configuration.
func NewLocalEngineWithConfig(cfg PoolConfig) *LocalEngine {
	adapter := NewInMemoryEngine()
	return &LocalEngine{
		Adapter: adapter,
		Client:  NewClient(adapter),
		Pool:    worker.NewPoolWithConfig(adapter, cfg),
	}
}

// NewSQLiteLocalEngine constructs a LocalEngine whose pending jobs are
// persisted in the given SQLite database, so queued work survives a restart.
//
//	db, _ := sql.Open("sqlite", "file:tarefo.db?_journal=WAL")
//	local, err := tarefo.NewSQLiteLocalEngine(db, tarefo.PoolConfig{})
func NewSQLiteLocalEngine(db *sql.DB, cfg PoolConfig) (*LocalEngine, error) {
	adapter, err := NewSQLiteEngine(db)
	if err != nil {
		return nil, err
	}
	return &LocalEngine{
		Adapter: adapter,
		Client:  NewClient(adapter),
		Pool:    worker.NewPoolWithConfig(adapter, cfg),
	}, nil
}

// RegisterTask registers a task on the underlying pool.
// It must be called before Start.
func (l *LocalEngine) RegisterTask(cfg TaskConfig, handler JobHandler) error {
	return l.Pool.RegisterTask(cfg, handler)
}

// Start starts the worker pool. Cancelling ctx has the same effect as
// calling Stop.
func (l *LocalEngine) Start(ctx context.Context) error {
	return l.Pool.Start(ctx)
}

// Stop gracefully drains and stops the worker pool. It is idempotent.
func (l *LocalEngine) Stop() {
	l.Pool.Stop()
}
