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

// ErrTimeout is returned by Wait when the lock could not be taken before the
// context ended.
var ErrTimeout = errors.New("distlock: timed out waiting for lock")

// ErrLost is returned by Extend when the lock expired or changed hands.
var ErrLost = errors.New("distlock: lock no longer held")

// Extender is implemented by locks whose ownership lapses after a TTL.
type Extender interface {
	Extend(ctx context.Context, ttl time.Duration) error
}

// DistLock is the interface for distributed locking.
// A lock instance represents one holder; concurrent holders need separate
// instances built from the same key.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// NewLock creates a distributed lock using the best available backend.
// Redis is preferred, then PostgreSQL advisory locks, then a process-local
// lock when neither is configured.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	if db != nil {
		return NewPGAdvisoryLock(db, key)
	}
	return NewLocalLock(key)
}

// Wait polls Acquire every interval until the lock is held or ctx ends.
func Wait(ctx context.Context, l DistLock, interval time.Duration) error {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		ok, err := l.Acquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ErrTimeout
		case <-ticker.C:
		}
	}
}

// =============================================================================
// PostgreSQL Advisory Lock
// =============================================================================
// pg_try_advisory_lock is session-scoped, so the lock pins one pooled
// connection between Acquire and Release. A dropped connection releases it.

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	return &PGAdvisoryLock{
		db:     db,
		lockID: LockID(key),
	}
}

// LockID hashes key into the advisory lock id space.
func LockID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

// Acquire tries to acquire the advisory lock without blocking.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	if l.conn != nil {
		return true, nil
	}
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release releases the advisory lock and returns the connection to the pool.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	conn := l.conn
	l.conn = nil
	_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	if cerr := conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// =============================================================================
// Process-local lock
// =============================================================================

var (
	localMu   sync.Mutex
	localHeld = map[string]struct{}{}
)

// LocalLock serializes holders of the same key inside one process.
type LocalLock struct {
	key  string
	held bool
}

// NewLocalLock creates a process-local lock for key.
func NewLocalLock(key string) *LocalLock {
	return &LocalLock{key: key}
}

// Acquire takes the key if no other holder has it.
func (l *LocalLock) Acquire(_ context.Context) (bool, error) {
	localMu.Lock()
	defer localMu.Unlock()
	if l.held {
		return true, nil
	}
	if _, busy := localHeld[l.key]; busy {
		return false, nil
	}
	localHeld[l.key] = struct{}{}
	l.held = true
	return true, nil
}

// Release frees the key if this instance holds it.
func (l *LocalLock) Release(_ context.Context) error {
	localMu.Lock()
	defer localMu.Unlock()
	if l.held {
		delete(localHeld, l.key)
		l.held = false
	}
	return nil
}
