package tarefo

import (
	"testing"
	"time"
)

func TestBackoffExponential(t *testing.T) {
	p := Backoff(5).WithExponentialBackoff(100*time.Millisecond, 2.0, time.Second).Policy()

	if p.MaxAttempts != 5 {
		t.Fatalf("MaxAttempts = %d, want 5", p.MaxAttempts)
	}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second, // capped
		time.Second,
	}
	for retry, wantDelay := range want {
		if got := p.Delay(retry); got != wantDelay {
			t.Fatalf("Delay(%d) = %v, want %v", retry, got, wantDelay)
		}
	}
}

func TestBackoffExponentialDefaultsMultiplier(t *testing.T) {
	p := Backoff(3).WithExponentialBackoff(50*time.Millisecond, 0, 0).Policy()
	if p.Multiplier != 2.0 {
		t.Fatalf("Multiplier = %v, want default 2.0", p.Multiplier)
	}
}

func TestBackoffConstant(t *testing.T) {
	p := Backoff(3).WithConstantBackoff(250 * time.Millisecond).Policy()

	for retry := 0; retry < 4; retry++ {
		if got := p.Delay(retry); got != 250*time.Millisecond {
			t.Fatalf("Delay(%d) = %v, want 250ms", retry, got)
		}
	}
}

func TestBackoffImmediate(t *testing.T) {
	p := Backoff(3).Immediate().Policy()

	if got := p.Delay(0); got != 0 {
		t.Fatalf("Delay(0) = %v, want 0", got)
	}
	if !p.Exhausted(3) {
		t.Fatal("Exhausted(3) = false, want true with MaxAttempts 3")
	}
}

func TestBackoffUnbounded(t *testing.T) {
	p := Backoff(0).WithConstantBackoff(time.Millisecond).Policy()
	if p.Exhausted(1_000_000) {
		t.Fatal("MaxAttempts 0 must never exhaust")
	}
}

func TestBackoffNegativeMaxAttempts(t *testing.T) {
	p := Backoff(-1).Policy()
	if p.MaxAttempts != 0 {
		t.Fatalf("MaxAttempts = %d, want 0 (clamped)", p.MaxAttempts)
	}
}
