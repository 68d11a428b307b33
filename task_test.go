package tarefo

import (
	"context"
	"testing"
	"time"
)

func TestNewTaskDefaults(t *testing.T) {
	cfg := NewTask("payments").Config()

	if cfg.Type != "payments" {
		t.Fatalf("Type = %q, want %q", cfg.Type, "payments")
	}
	if cfg.Timeout != 0 {
		t.Fatalf("Timeout = %v, want zero (defaulted at registration)", cfg.Timeout)
	}
	if cfg.MaxJobsToActivate != 0 {
		t.Fatalf("MaxJobsToActivate = %d, want zero (defaulted at registration)", cfg.MaxJobsToActivate)
	}
	if cfg.VariablesToFetch != nil {
		t.Fatalf("VariablesToFetch = %v, want nil", cfg.VariablesToFetch)
	}
}

func TestNewTaskPanicsOnEmptyType(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for empty task type")
		}
	}()
	NewTask("")
}

func TestTaskBuilderOptions(t *testing.T) {
	decorator := func(ctx context.Context, job *Job) error { return nil }
	handler := func(ctx context.Context, err error, job *Job) {}

	b := NewTask("payments").
		WithTimeout(30 * time.Second).
		WithMaxJobsToActivate(8).
		WithVariablesToFetch("orderId", "amount").
		WithExceptionHandler(handler).
		Before(decorator, decorator).
		After(decorator)

	if b.Type() != "payments" {
		t.Fatalf("Type() = %q, want %q", b.Type(), "payments")
	}

	cfg := b.Config()
	if cfg.Timeout != 30*time.Second {
		t.Fatalf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.MaxJobsToActivate != 8 {
		t.Fatalf("MaxJobsToActivate = %d, want 8", cfg.MaxJobsToActivate)
	}
	if len(cfg.VariablesToFetch) != 2 {
		t.Fatalf("VariablesToFetch = %v, want two names", cfg.VariablesToFetch)
	}
	if cfg.ExceptionHandler == nil {
		t.Fatal("ExceptionHandler not set")
	}
	if len(cfg.Before) != 2 || len(cfg.After) != 1 {
		t.Fatalf("decorators = %d before / %d after, want 2 / 1", len(cfg.Before), len(cfg.After))
	}
}

func TestTaskBuilderAppendsDecorators(t *testing.T) {
	decorator := func(ctx context.Context, job *Job) error { return nil }

	cfg := NewTask("payments").
		Before(decorator).
		Before(decorator).
		Config()

	if len(cfg.Before) != 2 {
		t.Fatalf("Before = %d decorators, want 2 (calls append, not replace)", len(cfg.Before))
	}
}
