package jobqueue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryQueue is a goroutine-safe Queue backed by a map. It is the default
// backend of the in-process engine and is intended for tests and local
// development; nothing survives a process restart.
type MemoryQueue struct {
	mu      sync.Mutex
	records map[int64]Record
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		records: make(map[int64]Record),
	}
}

// Ensure MemoryQueue implements Queue.
var _ Queue = (*MemoryQueue)(nil)

func (q *MemoryQueue) Push(ctx context.Context, rec Record) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	q.records[rec.Key] = rec
	return nil
}

func (q *MemoryQueue) Activate(ctx context.Context, taskType string, max int, lockFor time.Duration, workerID string) ([]Record, error) {
	if max <= 0 {
		return nil, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()

	var eligible []Record
	for _, rec := range q.records {
		if rec.Type != taskType {
			continue
		}
		if rec.LockUntil.After(now) {
			continue
		}
		eligible = append(eligible, rec)
	}
	// Oldest first; the key order matches creation order.
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].Key < eligible[j].Key })

	if len(eligible) > max {
		eligible = eligible[:max]
	}
	for i, rec := range eligible {
		rec.LockedBy = workerID
		rec.LockUntil = now.Add(lockFor)
		q.records[rec.Key] = rec
		eligible[i] = rec
	}
	return eligible, nil
}

func (q *MemoryQueue) Remove(ctx context.Context, key int64) (Record, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.records[key]
	if !ok {
		return Record{}, false, nil
	}
	delete(q.records, key)
	return rec, true, nil
}

func (q *MemoryQueue) Release(ctx context.Context, key int64, retries int32) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.records[key]
	if !ok {
		return false, nil
	}
	rec.LockedBy = ""
	rec.LockUntil = time.Time{}
	rec.Retries = retries
	q.records[key] = rec
	return true, nil
}

func (q *MemoryQueue) RemoveByInstance(ctx context.Context, instanceKey int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for key, rec := range q.records {
		if rec.InstanceKey == instanceKey {
			delete(q.records, key)
		}
	}
	return nil
}

func (q *MemoryQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.records), nil
}
