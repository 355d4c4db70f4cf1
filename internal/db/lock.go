package db

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdvisoryLocker provides cooperative mutual exclusion keyed by name.
//
// TryLock never waits: if another holder owns the key it returns
// acquired=false. When acquired is true the caller must invoke release exactly
// once; calling it again is a no-op.
type AdvisoryLocker interface {
	TryLock(ctx context.Context, key string) (release func(), acquired bool, err error)
}

// PostgresLock implements AdvisoryLocker with session-level PostgreSQL advisory
// locks. A pooled connection is held for as long as the lock is, because the
// lock belongs to the session that took it.
type PostgresLock struct {
	pool *pgxpool.Pool
}

// NewPostgresLock creates a new PostgresLock
func NewPostgresLock(client *PostgresClient) *PostgresLock {
	return &PostgresLock{pool: client.Pool()}
}

// TryLock calls pg_try_advisory_lock with the hashed key
func (l *PostgresLock) TryLock(ctx context.Context, key string) (func(), bool, error) {
	lockID := LockID(key)

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire connection for lock: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, lockID).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("pg_try_advisory_lock(%d): %w", lockID, err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() { endSession(pooledSession{conn: conn}, lockID) })
	}
	return release, true, nil
}

// lockSession is the connection that owns a session-level advisory lock
type lockSession interface {
	unlock(ctx context.Context, lockID int64) error
	close(ctx context.Context) error
	release()
}

type pooledSession struct {
	conn *pgxpool.Conn
}

func (s pooledSession) unlock(ctx context.Context, lockID int64) error {
	_, err := s.conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, lockID)
	return err
}

func (s pooledSession) close(ctx context.Context) error {
	return s.conn.Conn().Close(ctx)
}

func (s pooledSession) release() {
	s.conn.Release()
}

// endSession unlocks and hands the connection back. A session whose unlock
// failed may still own the lock, so it is closed and the pool discards it
// instead of reusing it.
func endSession(s lockSession, lockID int64) {
	// The unlock must not be skipped because the caller's context ended.
	ctx := context.Background()
	if err := s.unlock(ctx, lockID); err != nil {
		_ = s.close(ctx)
	}
	s.release()
}

// MemoryLock implements AdvisoryLocker within a single process
type MemoryLock struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewMemoryLock creates a new MemoryLock
func NewMemoryLock() *MemoryLock {
	return &MemoryLock{held: make(map[string]bool)}
}

// TryLock marks key as held unless it already is
func (l *MemoryLock) TryLock(ctx context.Context, key string) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("acquire memory lock: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, false, nil
	}
	l.held[key] = true

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}
	return release, true, nil
}

// HeldLock stands in for a lock the caller already holds. TryLock succeeds for
// that key without taking anything and reports every other key as taken.
type HeldLock struct {
	key string
}

// NewHeldLock creates a HeldLock for key
func NewHeldLock(key string) *HeldLock {
	return &HeldLock{key: key}
}

// TryLock reports whether key is the held key; release is a no-op
func (l *HeldLock) TryLock(ctx context.Context, key string) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("acquire held lock: %w", err)
	}
	if key != l.key {
		return nil, false, nil
	}
	return func() {}, true, nil
}

// LockID hashes a lock key to the int64 space of pg advisory locks (FNV-1a)
func LockID(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF) //nolint:gosec // truncation is intended
}
