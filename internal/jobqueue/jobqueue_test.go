package jobqueue

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mvieira/tarefo/pkg/api"
)

// queueFactories builds every Queue implementation so the whole suite runs
// against each backend.
var queueFactories = map[string]func(t *testing.T) Queue{
	"memory": func(t *testing.T) Queue {
		return NewMemoryQueue()
	},
	"sqlite": func(t *testing.T) Queue {
		db, err := sql.Open("sqlite", ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		q, err := NewSQLiteQueue(db)
		require.NoError(t, err)
		return q
	},
}

func forEachQueue(t *testing.T, fn func(t *testing.T, q Queue)) {
	for name, factory := range queueFactories {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func record(key int64, taskType string) Record {
	return Record{
		Key:         key,
		Type:        taskType,
		InstanceKey: 100,
		ElementID:   taskType + "-1",
		Headers:     map[string]string{"method": "card"},
		Variables:   api.Variables{"amount": 42},
		Retries:     3,
		CreatedAt:   time.Now(),
	}
}

func TestQueue_ActivateOldestFirst(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue) {
		ctx := context.Background()
		for _, key := range []int64{3, 1, 2} {
			require.NoError(t, q.Push(ctx, record(key, "pay")))
		}

		recs, err := q.Activate(ctx, "pay", 2, time.Minute, "w1")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		require.Equal(t, int64(1), recs[0].Key)
		require.Equal(t, int64(2), recs[1].Key)
	})
}

func TestQueue_ActivateFiltersByType(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue) {
		ctx := context.Background()
		require.NoError(t, q.Push(ctx, record(1, "pay")))
		require.NoError(t, q.Push(ctx, record(2, "ship")))

		recs, err := q.Activate(ctx, "ship", 10, time.Minute, "w1")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		require.Equal(t, int64(2), recs[0].Key)
	})
}

func TestQueue_ActivatePreservesPayload(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue) {
		ctx := context.Background()
		require.NoError(t, q.Push(ctx, record(1, "pay")))

		recs, err := q.Activate(ctx, "pay", 1, time.Minute, "w1")
		require.NoError(t, err)
		require.Len(t, recs, 1)

		got := recs[0]
		require.Equal(t, int64(100), got.InstanceKey)
		require.Equal(t, "pay-1", got.ElementID)
		require.Equal(t, map[string]string{"method": "card"}, got.Headers)
		require.Equal(t, api.Variables{"amount": 42}, got.Variables)
		require.Equal(t, int32(3), got.Retries)
		require.Equal(t, "w1", got.LockedBy)
		require.WithinDuration(t, time.Now().Add(time.Minute), got.LockUntil, 5*time.Second)
	})
}

func TestQueue_LockedRecordsAreNotReoffered(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue) {
		ctx := context.Background()
		require.NoError(t, q.Push(ctx, record(1, "pay")))

		first, err := q.Activate(ctx, "pay", 10, time.Minute, "w1")
		require.NoError(t, err)
		require.Len(t, first, 1)

		second, err := q.Activate(ctx, "pay", 10, time.Minute, "w2")
		require.NoError(t, err)
		require.Empty(t, second)
	})
}

func TestQueue_ExpiredLocksAreReoffered(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue) {
		ctx := context.Background()
		require.NoError(t, q.Push(ctx, record(1, "pay")))

		_, err := q.Activate(ctx, "pay", 10, 10*time.Millisecond, "w1")
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			recs, err := q.Activate(ctx, "pay", 10, time.Minute, "w2")
			require.NoError(t, err)
			return len(recs) == 1
		}, time.Second, 5*time.Millisecond)
	})
}

func TestQueue_Remove(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue) {
		ctx := context.Background()
		require.NoError(t, q.Push(ctx, record(1, "pay")))

		rec, found, err := q.Remove(ctx, 1)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, int64(1), rec.Key)
		require.Equal(t, api.Variables{"amount": 42}, rec.Variables)

		_, found, err = q.Remove(ctx, 1)
		require.NoError(t, err)
		require.False(t, found)

		n, err := q.Len(ctx)
		require.NoError(t, err)
		require.Zero(t, n)
	})
}

func TestQueue_ReleaseMakesRecordEligibleAgain(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue) {
		ctx := context.Background()
		require.NoError(t, q.Push(ctx, record(1, "pay")))

		_, err := q.Activate(ctx, "pay", 10, time.Hour, "w1")
		require.NoError(t, err)

		found, err := q.Release(ctx, 1, 2)
		require.NoError(t, err)
		require.True(t, found)

		recs, err := q.Activate(ctx, "pay", 10, time.Minute, "w2")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		require.Equal(t, int32(2), recs[0].Retries)
	})
}

func TestQueue_ReleaseUnknownKey(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue) {
		found, err := q.Release(context.Background(), 42, 1)
		require.NoError(t, err)
		require.False(t, found)
	})
}

func TestQueue_RemoveByInstance(t *testing.T) {
	forEachQueue(t, func(t *testing.T, q Queue) {
		ctx := context.Background()
		require.NoError(t, q.Push(ctx, record(1, "pay")))
		require.NoError(t, q.Push(ctx, record(2, "ship")))
		other := record(3, "pay")
		other.InstanceKey = 200
		require.NoError(t, q.Push(ctx, other))

		require.NoError(t, q.RemoveByInstance(ctx, 100))

		n, err := q.Len(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		recs, err := q.Activate(ctx, "pay", 10, time.Minute, "w1")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		require.Equal(t, int64(3), recs[0].Key)
	})
}
