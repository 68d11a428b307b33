package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mvieira/tarefo/pkg/api"
)

// steps collects pipeline stage markers across goroutines.
type steps struct {
	mu    sync.Mutex
	order []string
}

func (s *steps) add(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, name)
}

func (s *steps) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

func decoratorStep(s *steps, name string) TaskDecorator {
	return func(ctx context.Context, job *api.Job) error {
		s.add(name)
		return nil
	}
}

func runOneJob(t *testing.T, adapter *fakeAdapter, cfg TaskConfig, handler JobHandler) {
	t.Helper()

	pool := newTestPool(adapter, nil)
	require.NoError(t, pool.RegisterTask(cfg, handler))
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	require.Eventually(t, func() bool {
		_, completed, failed, thrown := adapter.snapshot()
		return len(completed)+len(failed)+len(thrown) == 1
	}, time.Second, time.Millisecond)
}

func TestPipeline_DecoratorsRunInOrder(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.queueActivation("pay", activation{jobs: []*api.Job{testJob(1, "pay")}})

	s := &steps{}
	cfg := TaskConfig{
		Type:   "pay",
		Before: []TaskDecorator{decoratorStep(s, "b1"), decoratorStep(s, "b2")},
		After:  []TaskDecorator{decoratorStep(s, "a1"), decoratorStep(s, "a2")},
	}
	runOneJob(t, adapter, cfg, func(ctx context.Context, job *api.Job) (api.Variables, error) {
		s.add("handler")
		return nil, nil
	})

	require.Equal(t, []string{"b1", "b2", "handler", "a1", "a2"}, s.list())
}

func TestPipeline_BeforeDecoratorErrorSkipsHandler(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.queueActivation("pay", activation{jobs: []*api.Job{testJob(2, "pay")}})

	s := &steps{}
	cfg := TaskConfig{
		Type: "pay",
		Before: []TaskDecorator{
			decoratorStep(s, "b1"),
			func(ctx context.Context, job *api.Job) error {
				s.add("b2")
				return errors.New("auth check failed")
			},
			decoratorStep(s, "b3"),
		},
		After: []TaskDecorator{decoratorStep(s, "a1")},
	}
	runOneJob(t, adapter, cfg, func(ctx context.Context, job *api.Job) (api.Variables, error) {
		s.add("handler")
		return nil, nil
	})

	require.Equal(t, []string{"b1", "b2", "a1"}, s.list(), "handler and later before-decorators must be skipped, after-decorators still run")

	_, completed, failed, _ := adapter.snapshot()
	require.Empty(t, completed)
	require.Len(t, failed, 1)
}

func TestPipeline_HandlerErrorUsesDefaultExceptionHandler(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.queueActivation("pay", activation{jobs: []*api.Job{testJob(3, "pay")}})

	runOneJob(t, adapter, TaskConfig{Type: "pay"}, func(ctx context.Context, job *api.Job) (api.Variables, error) {
		return nil, errors.New("card declined")
	})

	_, completed, failed, _ := adapter.snapshot()
	require.Empty(t, completed)
	require.Len(t, failed, 1)
	require.Contains(t, failed[0].message, "Failed job. Error: card declined")
	require.Equal(t, int32(2), failed[0].retries, "retries decrement by one on failure")
}

func TestPipeline_CustomExceptionHandlerMapsToBusinessError(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.queueActivation("pay", activation{jobs: []*api.Job{testJob(4, "pay")}})

	cfg := TaskConfig{
		Type: "pay",
		ExceptionHandler: func(ctx context.Context, err error, job *api.Job) {
			_ = job.ThrowError("INSUFFICIENT_FUNDS", err.Error())
		},
	}
	runOneJob(t, adapter, cfg, func(ctx context.Context, job *api.Job) (api.Variables, error) {
		return nil, errors.New("balance too low")
	})

	_, _, failed, thrown := adapter.snapshot()
	require.Empty(t, failed)
	require.Len(t, thrown, 1)
	require.Equal(t, "INSUFFICIENT_FUNDS", thrown[0].errorCode)
	require.Equal(t, "balance too low", thrown[0].message)
}

func TestPipeline_NoopExceptionHandlerStillFailsJob(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.queueActivation("pay", activation{jobs: []*api.Job{testJob(5, "pay")}})

	cfg := TaskConfig{
		Type:             "pay",
		ExceptionHandler: func(ctx context.Context, err error, job *api.Job) {},
	}
	runOneJob(t, adapter, cfg, func(ctx context.Context, job *api.Job) (api.Variables, error) {
		return nil, errors.New("boom")
	})

	_, _, failed, _ := adapter.snapshot()
	require.Len(t, failed, 1, "a job must never be left without an outcome")
	require.Equal(t, genericFailureMessage, failed[0].message)
}

func TestPipeline_HandlerPanicBecomesFailure(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.queueActivation("pay", activation{jobs: []*api.Job{testJob(6, "pay")}})

	runOneJob(t, adapter, TaskConfig{Type: "pay"}, func(ctx context.Context, job *api.Job) (api.Variables, error) {
		panic("nil map write")
	})

	_, completed, failed, _ := adapter.snapshot()
	require.Empty(t, completed)
	require.Len(t, failed, 1)
	require.True(t, strings.Contains(failed[0].message, "nil map write"))
}

func TestPipeline_HandlerOutcomeTakesPrecedenceOverReturn(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.queueActivation("pay", activation{jobs: []*api.Job{testJob(7, "pay")}})

	runOneJob(t, adapter, TaskConfig{Type: "pay"}, func(ctx context.Context, job *api.Job) (api.Variables, error) {
		_ = job.Fail("needs manual review", 0)
		return api.Variables{"ignored": true}, nil
	})

	_, completed, failed, _ := adapter.snapshot()
	require.Empty(t, completed, "an explicit outcome must not be overridden by the returned variables")
	require.Len(t, failed, 1)
	require.Equal(t, "needs manual review", failed[0].message)
	require.Equal(t, int32(0), failed[0].retries)
}

func TestPipeline_AfterDecoratorErrorDoesNotChangeOutcome(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.queueActivation("pay", activation{jobs: []*api.Job{testJob(8, "pay")}})

	cfg := TaskConfig{
		Type: "pay",
		After: []TaskDecorator{
			func(ctx context.Context, job *api.Job) error { return errors.New("metrics sink down") },
		},
	}
	runOneJob(t, adapter, cfg, func(ctx context.Context, job *api.Job) (api.Variables, error) {
		return api.Variables{"ok": true}, nil
	})

	_, completed, failed, _ := adapter.snapshot()
	require.Len(t, completed, 1)
	require.Empty(t, failed)
}
