package tarefo

import (
	"time"

	"github.com/mvieira/tarefo/pkg/api"
)

// BackoffBuilder provides a fluent way to construct BackoffPolicy values for
// PoolConfig.ActivationBackoff and PoolConfig.ReportBackoff.
type BackoffBuilder struct {
	policy api.BackoffPolicy
}

// Backoff creates a BackoffBuilder with the given maxAttempts.
//
// maxAttempts <= 0 means "retry for as long as the failure stays
// recoverable", which is the right choice for the activation path.
func Backoff(maxAttempts int) BackoffBuilder {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return BackoffBuilder{
		policy: api.BackoffPolicy{
			MaxAttempts: maxAttempts,
		},
	}
}

// WithExponentialBackoff configures exponential backoff:
//
//   - initial is the delay before the first retry.
//   - multiplier > 1 grows the delay each attempt (default 2.0 if <= 0).
//   - max caps the delay; if <= 0, there is no cap.
//
// Example:
//
//	Backoff(0).WithExponentialBackoff(100*time.Millisecond, 2.0, 5*time.Second)
func (b BackoffBuilder) WithExponentialBackoff(initial time.Duration, multiplier float64, max time.Duration) BackoffBuilder {
	p := b.policy
	p.Initial = initial
	p.Max = max
	if multiplier <= 0 {
		multiplier = 2.0
	}
	p.Multiplier = multiplier
	return BackoffBuilder{policy: p}
}

// WithConstantBackoff configures a constant delay between retries.
//
// This is equivalent to an exponential backoff with multiplier 1.0 and
// no cap.
func (b BackoffBuilder) WithConstantBackoff(delay time.Duration) BackoffBuilder {
	p := b.policy
	p.Initial = delay
	p.Max = 0
	p.Multiplier = 1.0
	return BackoffBuilder{policy: p}
}

// Immediate disables any sleep between retries.
// Retries still respect MaxAttempts.
func (b BackoffBuilder) Immediate() BackoffBuilder {
	p := b.policy
	p.Initial = 0
	p.Max = 0
	p.Multiplier = 0
	return BackoffBuilder{policy: p}
}

// Policy returns the underlying BackoffPolicy.
func (b BackoffBuilder) Policy() api.BackoffPolicy {
	return b.policy
}
