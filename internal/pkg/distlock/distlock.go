package distlock

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTimeout is returned by AcquireWait when the lock stays held by another
// owner for the whole wait window.
var ErrTimeout = errors.New("distlock: timed out waiting for lock")

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Factory builds a fresh lock instance for every critical section.
type Factory func() DistLock

// NewFactory picks the best available backend for key.
// Redis is preferred for cross-host locking, then PostgreSQL advisory locks.
// With neither available the lock only covers the current process.
func NewFactory(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) Factory {
	switch {
	case redisClient != nil:
		return func() DistLock { return NewRedisLock(redisClient, key, ttl) }
	case db != nil:
		return func() DistLock { return NewPGAdvisoryLock(db, key) }
	default:
		return func() DistLock { return NewMemoryLock(key) }
	}
}

// AcquireWait polls lock until it is acquired, ctx ends or wait elapses.
func AcquireWait(ctx context.Context, lock DistLock, wait, poll time.Duration) error {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	deadline := time.Now().Add(wait)
	for {
		ok, err := lock.Acquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrTimeout
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// =============================================================================
// PostgreSQL Advisory Lock (fallback when Redis is unavailable)
// =============================================================================
// pg_try_advisory_lock is session-scoped, so the lock pins one pooled
// connection from Acquire until Release. A dropped connection releases it.

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	db     *sql.DB
	conn   *sql.Conn
	lockID int64
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	return &PGAdvisoryLock{
		db:     db,
		lockID: LockID(key),
	}
}

// LockID hashes key into the int64 space used by advisory locks.
func LockID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

// Acquire tries to acquire the advisory lock. Returns true if successful.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	if l.conn == nil {
		conn, err := l.db.Conn(ctx)
		if err != nil {
			return false, err
		}
		l.conn = conn
	}

	var acquired bool
	if err := l.conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		l.closeConn()
		return false, err
	}
	if !acquired {
		l.closeConn()
	}
	return acquired, nil
}

// Release releases the advisory lock and returns the connection to the pool.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer l.closeConn()
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}

func (l *PGAdvisoryLock) closeConn() {
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
}

// =============================================================================
// Process-local lock
// =============================================================================

var memoryMu sync.Mutex

var memoryHeld = map[string]*MemoryLock{}

// MemoryLock holds key within the current process only.
type MemoryLock struct {
	key string
}

// NewMemoryLock creates a process-local lock for key.
func NewMemoryLock(key string) *MemoryLock {
	return &MemoryLock{key: key}
}

// Acquire marks key as held if nobody else holds it.
func (l *MemoryLock) Acquire(ctx context.Context) (bool, error) {
	memoryMu.Lock()
	defer memoryMu.Unlock()
	if owner, ok := memoryHeld[l.key]; ok {
		return owner == l, nil
	}
	memoryHeld[l.key] = l
	return true, nil
}

// Release frees key if this instance holds it.
func (l *MemoryLock) Release(ctx context.Context) error {
	memoryMu.Lock()
	defer memoryMu.Unlock()
	if memoryHeld[l.key] == l {
		delete(memoryHeld, l.key)
	}
	return nil
}
