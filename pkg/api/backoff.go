package api

import "time"

// BackoffPolicy controls how an operation is retried after a recoverable
// failure.
//
// MaxAttempts includes the first attempt:
//
//	MaxAttempts = 1 => no retries (just the initial call)
//	MaxAttempts = 3 => initial call + up to 2 retries
//
// MaxAttempts <= 0 means "retry for as long as the failure stays
// recoverable"; the activation path of a worker uses this by default so a
// long engine outage never kills the loop.
type BackoffPolicy struct {
	MaxAttempts int

	// Initial is the delay before the first retry.
	Initial time.Duration

	// Multiplier grows the delay after each retry. Values <= 1 yield a
	// constant delay.
	Multiplier float64

	// Max caps the delay; <= 0 means no cap.
	Max time.Duration
}

// Delay returns the sleep before retry number retry (0-based: retry 0 is the
// delay between the first failure and the second attempt). The schedule is
// Initial * Multiplier^retry, capped at Max.
func (p BackoffPolicy) Delay(retry int) time.Duration {
	if p.Initial <= 0 {
		return 0
	}
	d := p.Initial
	if p.Multiplier > 1 {
		for i := 0; i < retry; i++ {
			d = time.Duration(float64(d) * p.Multiplier)
			if p.Max > 0 && d >= p.Max {
				return p.Max
			}
		}
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

// Exhausted reports whether the given number of attempts has used up the
// policy's budget. Unbounded policies (MaxAttempts <= 0) are never exhausted.
func (p BackoffPolicy) Exhausted(attempts int) bool {
	return p.MaxAttempts > 0 && attempts >= p.MaxAttempts
}
