package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mvieira/tarefo/pkg/api"
)

func noopHandler(ctx context.Context, job *api.Job) (api.Variables, error) {
	return nil, nil
}

func TestPool_RegisterTaskValidation(t *testing.T) {
	tests := map[string]struct {
		cfg     TaskConfig
		handler JobHandler
	}{
		"nil handler":      {cfg: TaskConfig{Type: "pay"}, handler: nil},
		"empty task type":  {cfg: TaskConfig{}, handler: noopHandler},
		"negative timeout": {cfg: TaskConfig{Type: "pay", Timeout: -time.Second}, handler: noopHandler},
		"negative batch":   {cfg: TaskConfig{Type: "pay", MaxJobsToActivate: -1}, handler: noopHandler},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			pool := newTestPool(newFakeAdapter(), nil)
			require.Error(t, pool.RegisterTask(tc.cfg, tc.handler))
		})
	}
}

func TestPool_RegisterTaskRejectsDuplicateType(t *testing.T) {
	pool := newTestPool(newFakeAdapter(), nil)
	require.NoError(t, pool.RegisterTask(TaskConfig{Type: "pay"}, noopHandler))
	require.Error(t, pool.RegisterTask(TaskConfig{Type: "pay"}, noopHandler))
}

func TestPool_RegisterTaskAfterStartFails(t *testing.T) {
	pool := newTestPool(newFakeAdapter(), nil)
	require.NoError(t, pool.RegisterTask(TaskConfig{Type: "pay"}, noopHandler))
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	require.Error(t, pool.RegisterTask(TaskConfig{Type: "ship"}, noopHandler))
}

func TestPool_StartWithoutTasksFails(t *testing.T) {
	pool := newTestPool(newFakeAdapter(), nil)
	require.Error(t, pool.Start(context.Background()))
}

func TestPool_StartTwiceFails(t *testing.T) {
	pool := newTestPool(newFakeAdapter(), nil)
	require.NoError(t, pool.RegisterTask(TaskConfig{Type: "pay"}, noopHandler))
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	require.Error(t, pool.Start(context.Background()))
}

func TestPool_StateTransitions(t *testing.T) {
	pool := newTestPool(newFakeAdapter(), nil)
	require.Equal(t, StateCreated, pool.State())

	require.NoError(t, pool.RegisterTask(TaskConfig{Type: "pay"}, noopHandler))
	require.NoError(t, pool.Start(context.Background()))
	require.Equal(t, StateRunning, pool.State())

	pool.Stop()
	require.Equal(t, StateStopped, pool.State())
}

func TestPool_StopIsIdempotent(t *testing.T) {
	pool := newTestPool(newFakeAdapter(), nil)
	require.NoError(t, pool.RegisterTask(TaskConfig{Type: "pay"}, noopHandler))
	require.NoError(t, pool.Start(context.Background()))

	pool.Stop()
	pool.Stop()
	require.Equal(t, StateStopped, pool.State())
}

func TestPool_StopBeforeStart(t *testing.T) {
	pool := newTestPool(newFakeAdapter(), nil)
	pool.Stop()
	require.Equal(t, StateStopped, pool.State())
}

func TestPool_ConcurrentStopIsSafe(t *testing.T) {
	pool := newTestPool(newFakeAdapter(), nil)
	require.NoError(t, pool.RegisterTask(TaskConfig{Type: "pay"}, noopHandler))
	require.NoError(t, pool.Start(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Stop()
		}()
	}
	wg.Wait()
	require.Equal(t, StateStopped, pool.State())
}

func TestPool_GracefulStopDrainsInFlightJobs(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.queueActivation("pay", activation{jobs: []*api.Job{testJob(1, "pay")}})

	started := make(chan struct{})
	pool := newTestPool(adapter, nil)
	require.NoError(t, pool.RegisterTask(TaskConfig{Type: "pay"}, func(ctx context.Context, job *api.Job) (api.Variables, error) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		return api.Variables{"done": true}, nil
	}))

	require.NoError(t, pool.Start(context.Background()))
	<-started
	pool.Stop()

	_, completed, _, _ := adapter.snapshot()
	require.Len(t, completed, 1, "Stop must wait for in-flight jobs to finish and report")
	require.Equal(t, api.Variables{"done": true}, completed[0].variables)
}

func TestPool_ContextCancellationStopsPool(t *testing.T) {
	pool := newTestPool(newFakeAdapter(), nil)
	require.NoError(t, pool.RegisterTask(TaskConfig{Type: "pay"}, noopHandler))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Start(ctx))
	cancel()

	require.Eventually(t, func() bool {
		return pool.State() == StateStopped
	}, time.Second, time.Millisecond)
}

func TestPool_InFlightJobSurvivesContextCancellation(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.queueActivation("pay", activation{jobs: []*api.Job{testJob(2, "pay")}})

	started := make(chan struct{})
	pool := newTestPool(adapter, nil)
	require.NoError(t, pool.RegisterTask(TaskConfig{Type: "pay"}, func(ctx context.Context, job *api.Job) (api.Variables, error) {
		close(started)
		time.Sleep(30 * time.Millisecond)
		return nil, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Start(ctx))
	<-started
	cancel()

	require.Eventually(t, func() bool {
		return pool.State() == StateStopped
	}, time.Second, time.Millisecond)

	_, completed, _, _ := adapter.snapshot()
	require.Len(t, completed, 1, "cancelling the start context must not cut off in-flight reporting")
}

func TestPool_WorkerLookup(t *testing.T) {
	pool := newTestPool(newFakeAdapter(), nil)
	require.NoError(t, pool.RegisterTask(TaskConfig{Type: "pay", Timeout: time.Minute}, noopHandler))

	w, ok := pool.Worker("pay")
	require.True(t, ok)
	require.Equal(t, time.Minute, w.Config().Timeout)

	_, ok = pool.Worker("ship")
	require.False(t, ok)
}

func TestPool_DefaultWorkerIDIsGenerated(t *testing.T) {
	pool := NewPool(newFakeAdapter())
	require.NotEmpty(t, pool.cfg.WorkerID)
	require.Contains(t, pool.cfg.WorkerID, "tarefo-")
}
