package api

import "errors"

var (
	// ErrOutcomeAlreadySet is returned by a Job's outcome setters when an
	// outcome has already been chosen or the job was already reported.
	ErrOutcomeAlreadySet = errors.New("job outcome already set")

	// ErrBackpressure indicates the engine is currently rejecting requests
	// due to load. Callers should slow down and retry.
	ErrBackpressure = errors.New("engine backpressure")

	// ErrGatewayUnavailable indicates the gateway could not be reached.
	// The condition is usually transient.
	ErrGatewayUnavailable = errors.New("gateway unavailable")

	// ErrEngineInternal indicates a non-retryable internal engine error.
	ErrEngineInternal = errors.New("engine internal error")

	// ErrProcessNotFound is returned when no deployed process matches the
	// requested id (and version).
	ErrProcessNotFound = errors.New("process not found")

	// ErrInstanceNotFound is returned when a workflow instance is not found.
	ErrInstanceNotFound = errors.New("process instance not found")

	// ErrJobNotFound is returned when reporting an outcome for a job the
	// engine no longer knows about (for example after its lock expired and
	// the job completed elsewhere).
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidInput is returned for malformed requests: empty ids,
	// non-positive timeouts and similar caller mistakes.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMessageAlreadyExists is returned when publishing a message whose
	// message id is still active.
	ErrMessageAlreadyExists = errors.New("message id still active")
)

// RecoverableError wraps a transient failure so IsRecoverable recognizes it.
// Adapters use it to mark conditions (connection resets, timeouts) that a
// worker should retry with backoff rather than treat as fatal.
type RecoverableError struct {
	Err error
}

func (e *RecoverableError) Error() string {
	return "recoverable: " + e.Err.Error()
}

func (e *RecoverableError) Unwrap() error {
	return e.Err
}

// NewRecoverableError wraps err as recoverable. A nil err returns nil.
func NewRecoverableError(err error) error {
	if err == nil {
		return nil
	}
	return &RecoverableError{Err: err}
}

// IsRecoverable reports whether err is a transient condition worth retrying:
// engine backpressure, an unreachable gateway, or anything wrapped in
// RecoverableError.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBackpressure) || errors.Is(err, ErrGatewayUnavailable) {
		return true
	}
	var r *RecoverableError
	return errors.As(err, &r)
}

// IsFatal reports whether err is a non-nil, non-recoverable failure.
// Fatal activation errors terminate the affected worker loop.
func IsFatal(err error) bool {
	return err != nil && !IsRecoverable(err)
}
