package jobqueue

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"time"

	"github.com/mvieira/tarefo/pkg/api"
)

func init() {
	gob.Register(api.Variables{})
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// SQLiteQueue is a persistent Queue backed by SQLite. Activation claims run
// inside a transaction so concurrent workers never lock the same record.
type SQLiteQueue struct {
	db *sql.DB
}

// NewSQLiteQueue initializes the jobs table in the given DB and returns a
// new queue.
func NewSQLiteQueue(db *sql.DB) (*SQLiteQueue, error) {
	q := &SQLiteQueue{db: db}
	if err := q.initSchema(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *SQLiteQueue) initSchema() error {
	_, err := q.db.Exec(`
		CREATE TABLE IF NOT EXISTS jobs (
			key INTEGER PRIMARY KEY,
			type TEXT NOT NULL,
			instance_key INTEGER NOT NULL,
			element_id TEXT NOT NULL,
			headers BLOB,
			variables BLOB,
			retries INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			locked_by TEXT NOT NULL DEFAULT '',
			lock_until INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_type_lock ON jobs(type, lock_until);
	`)
	return err
}

// Ensure SQLiteQueue implements Queue.
var _ Queue = (*SQLiteQueue)(nil)

func (q *SQLiteQueue) Push(ctx context.Context, rec Record) error {
	headers, err := encodeBlob(rec.Headers)
	if err != nil {
		return err
	}
	variables, err := encodeBlob(rec.Variables)
	if err != nil {
		return err
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO jobs (key, type, instance_key, element_id, headers, variables, retries, created_at, locked_by, lock_until)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, '', 0)`,
		rec.Key,
		rec.Type,
		rec.InstanceKey,
		rec.ElementID,
		headers,
		variables,
		rec.Retries,
		createdAt.UnixNano(),
	)
	return err
}

func (q *SQLiteQueue) Activate(ctx context.Context, taskType string, max int, lockFor time.Duration, workerID string) ([]Record, error) {
	if max <= 0 {
		return nil, nil
	}

	now := time.Now()

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT key, type, instance_key, element_id, headers, variables, retries, created_at, locked_by, lock_until
		FROM jobs
		WHERE type = ? AND lock_until <= ?
		ORDER BY key
		LIMIT ?`, taskType, now.UnixNano(), max)
	if err != nil {
		return nil, err
	}

	var claimed []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		claimed = append(claimed, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	lockUntil := now.Add(lockFor)
	for i := range claimed {
		if _, err := tx.ExecContext(ctx, `
			UPDATE jobs SET locked_by = ?, lock_until = ? WHERE key = ?`,
			workerID, lockUntil.UnixNano(), claimed[i].Key,
		); err != nil {
			return nil, err
		}
		claimed[i].LockedBy = workerID
		claimed[i].LockUntil = lockUntil
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return claimed, nil
}

func (q *SQLiteQueue) Remove(ctx context.Context, key int64) (Record, bool, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT key, type, instance_key, element_id, headers, variables, retries, created_at, locked_by, lock_until
		FROM jobs WHERE key = ?`, key)
	rec, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE key = ?`, key); err != nil {
		return Record{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (q *SQLiteQueue) Release(ctx context.Context, key int64, retries int32) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE jobs SET locked_by = '', lock_until = 0, retries = ? WHERE key = ?`,
		retries, key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (q *SQLiteQueue) RemoveByInstance(ctx context.Context, instanceKey int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM jobs WHERE instance_key = ?`, instanceKey)
	return err
}

func (q *SQLiteQueue) Len(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&n)
	return n, err
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec         Record
		headers     []byte
		variables   []byte
		createdAt   int64
		lockUntilNs int64
	)
	if err := row.Scan(
		&rec.Key,
		&rec.Type,
		&rec.InstanceKey,
		&rec.ElementID,
		&headers,
		&variables,
		&rec.Retries,
		&createdAt,
		&rec.LockedBy,
		&lockUntilNs,
	); err != nil {
		return Record{}, err
	}

	if err := decodeBlob(headers, &rec.Headers); err != nil {
		return Record{}, err
	}
	if err := decodeBlob(variables, &rec.Variables); err != nil {
		return Record{}, err
	}
	rec.CreatedAt = time.Unix(0, createdAt)
	if lockUntilNs > 0 {
		rec.LockUntil = time.Unix(0, lockUntilNs)
	}
	return rec, nil
}

// encodeBlob serializes a value using encoding/gob. Nested variable values
// must be gob-encodable; plain JSON-compatible values are.
func encodeBlob(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeBlob deserializes gob-encoded data into out. Empty data leaves out
// untouched.
func decodeBlob(data []byte, out any) error {
	if len(data) == 0 {
		return nil
	}
	return gob.NewDecoder(bytes.NewReader(data)).Decode(out)
}
