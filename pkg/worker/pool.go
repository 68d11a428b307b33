package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mvieira/tarefo/pkg/api"
)

// State is the lifecycle state of a WorkerPool.
type State string

const (
	StateCreated  State = "CREATED"
	StateRunning  State = "RUNNING"
	StateStopping State = "STOPPING"
	StateStopped  State = "STOPPED"
)

// Pool-level defaults.
const (
	// DefaultPollInterval is the idle sleep between activation polls.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultShutdownTimeout bounds the graceful drain during Stop.
	DefaultShutdownTimeout = 30 * time.Second
)

// DefaultActivationBackoff retries recoverable activation failures for as
// long as they stay recoverable, with capped exponential delays.
var DefaultActivationBackoff = api.BackoffPolicy{
	Initial:    50 * time.Millisecond,
	Multiplier: 2.0,
	Max:        5 * time.Second,
}

// DefaultReportBackoff gives an outcome report three attempts before the job
// is abandoned to the engine's lock timeout.
var DefaultReportBackoff = api.BackoffPolicy{
	MaxAttempts: 3,
	Initial:     50 * time.Millisecond,
	Multiplier:  2.0,
	Max:         time.Second,
}

// PoolConfig describes how to construct a WorkerPool.
// Zero values fall back to the package defaults above.
type PoolConfig struct {
	// WorkerID identifies this process to the engine.
	// Empty means a generated "tarefo-<uuid>" identity.
	WorkerID string

	// PollInterval is the idle sleep between activation polls.
	PollInterval time.Duration

	// ActivationBackoff is applied to recoverable activation failures.
	ActivationBackoff api.BackoffPolicy

	// ReportBackoff is applied to recoverable outcome-report failures.
	ReportBackoff api.BackoffPolicy

	// ShutdownTimeout bounds the graceful drain during Stop; executions
	// still running afterwards are abandoned.
	ShutdownTimeout time.Duration

	// Observer receives worker lifecycle callbacks. Nil means none.
	Observer api.WorkerObserver

	// Logger is used for worker-loop logging. Nil means slog.Default().
	Logger *slog.Logger
}

// WorkerPool owns a set of JobWorkers, runs one scheduling loop per
// registered task type, and coordinates shutdown.
//
// Lifecycle: Created -> Running -> Stopping -> Stopped. Tasks are registered
// while Created; Start moves to Running; Stop drains and moves to Stopped.
// A fatal error in one worker terminates only that worker's loop; the pool
// and its other workers keep running.
type WorkerPool struct {
	adapter api.EngineAdapter
	cfg     PoolConfig

	mu         sync.Mutex
	state      State
	workers    map[string]*JobWorker
	cancelPoll context.CancelFunc
	cancelExec context.CancelFunc
	execCtx    context.Context

	loops   sync.WaitGroup
	stopped chan struct{}
}

// NewPool creates a WorkerPool with default configuration.
func NewPool(adapter api.EngineAdapter) *WorkerPool {
	return NewPoolWithConfig(adapter, PoolConfig{})
}

// NewPoolWithConfig creates a WorkerPool using the given configuration.
func NewPoolWithConfig(adapter api.EngineAdapter, cfg PoolConfig) *WorkerPool {
	if cfg.WorkerID == "" {
		cfg.WorkerID = "tarefo-" + uuid.NewString()
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ActivationBackoff == (api.BackoffPolicy{}) {
		cfg.ActivationBackoff = DefaultActivationBackoff
	}
	if cfg.ReportBackoff == (api.BackoffPolicy{}) {
		cfg.ReportBackoff = DefaultReportBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Observer == nil {
		cfg.Observer = api.NoopWorkerObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &WorkerPool{
		adapter: adapter,
		cfg:     cfg,
		state:   StateCreated,
		workers: make(map[string]*JobWorker),
		stopped: make(chan struct{}),
	}
}

// RegisterTask registers a (TaskConfig, JobHandler) pair. It must be called
// before Start; the config is defaulted and validated here and immutable
// afterwards.
func (p *WorkerPool) RegisterTask(cfg TaskConfig, handler JobHandler) error {
	if handler == nil {
		return fmt.Errorf("worker: task %q has nil handler", cfg.Type)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateCreated {
		return fmt.Errorf("worker: cannot register task %q: pool is %s", cfg.Type, p.state)
	}
	if _, exists := p.workers[cfg.Type]; exists {
		return fmt.Errorf("worker: task type %q already registered", cfg.Type)
	}

	p.workers[cfg.Type] = &JobWorker{
		adapter:           p.adapter,
		config:            cfg,
		handler:           handler,
		workerID:          p.cfg.WorkerID,
		observer:          p.cfg.Observer,
		logger:            p.cfg.Logger,
		pollInterval:      p.cfg.PollInterval,
		activationBackoff: p.cfg.ActivationBackoff,
		reportBackoff:     p.cfg.ReportBackoff,
	}
	return nil
}

// Worker returns the JobWorker registered for the given task type, if any.
func (p *WorkerPool) Worker(taskType string) (*JobWorker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.workers[taskType]
	return w, ok
}

// State returns the pool's current lifecycle state.
func (p *WorkerPool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// Start moves the pool to Running and spawns one independent scheduling loop
// per registered task type. Cancelling ctx has the same effect as calling
// Stop.
//
// Starting an empty or already-started pool is an error.
func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()

	if p.state != StateCreated {
		p.mu.Unlock()
		return fmt.Errorf("worker: pool is %s, cannot start", p.state)
	}
	if len(p.workers) == 0 {
		p.mu.Unlock()
		return errors.New("worker: no tasks registered")
	}

	pollCtx, cancelPoll := context.WithCancel(ctx)
	// Executions survive poll cancellation so Stop can drain them; the
	// exec context is only cancelled once the drain timeout elapses.
	execCtx, cancelExec := context.WithCancel(context.WithoutCancel(ctx))
	p.cancelPoll = cancelPoll
	p.cancelExec = cancelExec
	p.execCtx = execCtx
	p.state = StateRunning

	for _, w := range p.workers {
		w := w
		p.loops.Add(1)
		go func() {
			defer p.loops.Done()
			err := w.run(pollCtx, execCtx)
			if err != nil {
				p.cfg.Logger.Error("worker loop terminated",
					slog.String("task_type", w.config.Type),
					slog.Any("error", err),
				)
			}
			p.cfg.Observer.OnWorkerStopped(execCtx, w.config.Type, err)
		}()
	}
	p.mu.Unlock()

	// Mirror ctx cancellation into a full Stop so a process-level
	// interrupt drains the pool.
	go func() {
		select {
		case <-ctx.Done():
			p.Stop()
		case <-p.stopped:
		}
	}()

	return nil
}

// Stop gracefully shuts the pool down: polling stops immediately, in-flight
// executions get up to ShutdownTimeout to drain, and whatever is still
// running afterwards is abandoned. Stop is idempotent; concurrent calls wait
// for the first one to finish.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	switch p.state {
	case StateStopped:
		p.mu.Unlock()
		return
	case StateStopping:
		p.mu.Unlock()
		<-p.stopped
		return
	case StateCreated:
		p.state = StateStopped
		close(p.stopped)
		p.mu.Unlock()
		return
	}
	p.state = StateStopping
	cancelPoll := p.cancelPoll
	cancelExec := p.cancelExec
	workers := make([]*JobWorker, 0, len(p.workers))
	for _, w := range p.workers {
		workers = append(workers, w)
	}
	p.mu.Unlock()

	cancelPoll()
	p.loops.Wait()

	drained := make(chan struct{})
	go func() {
		for _, w := range workers {
			<-w.drained()
		}
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(p.cfg.ShutdownTimeout):
		p.cfg.Logger.Warn("shutdown timeout elapsed, abandoning in-flight executions",
			slog.Duration("timeout", p.cfg.ShutdownTimeout),
		)
	}
	cancelExec()

	p.mu.Lock()
	p.state = StateStopped
	close(p.stopped)
	p.mu.Unlock()
}
