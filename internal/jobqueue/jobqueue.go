package jobqueue

import (
	"context"
	"time"

	"github.com/mvieira/tarefo/pkg/api"
)

// Record is one pending or activated job as stored by a Queue.
type Record struct {
	Key         int64
	Type        string
	InstanceKey int64
	ElementID   string
	Headers     map[string]string
	Variables   api.Variables
	Retries     int32
	CreatedAt   time.Time

	// LockedBy and LockUntil track the current activation lock. A record
	// is eligible for activation when LockUntil is in the past.
	LockedBy  string
	LockUntil time.Time
}

// Queue stores jobs awaiting activation and tracks activation locks.
// Implementations must be safe for concurrent use.
type Queue interface {
	// Push adds a job record to the queue.
	Push(ctx context.Context, rec Record) error

	// Activate claims up to max eligible records of the given task type,
	// locking each for lockFor on behalf of workerID. Records whose
	// previous lock has expired are eligible again, which is how abandoned
	// jobs get re-offered. It returns the claimed records oldest-first;
	// an empty result is not an error.
	Activate(ctx context.Context, taskType string, max int, lockFor time.Duration, workerID string) ([]Record, error)

	// Remove deletes a record, regardless of lock state.
	// found is false if no record with the key exists.
	Remove(ctx context.Context, key int64) (rec Record, found bool, err error)

	// Release clears a record's lock and sets its remaining retries,
	// making it immediately eligible for activation again.
	Release(ctx context.Context, key int64, retries int32) (found bool, err error)

	// RemoveByInstance deletes all records belonging to an instance.
	// Used when an instance is cancelled.
	RemoveByInstance(ctx context.Context, instanceKey int64) error

	// Len returns the number of stored records, locked or not.
	Len(ctx context.Context) (int, error)
}
