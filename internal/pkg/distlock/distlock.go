package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailmerge/internal/pkg/logger"
)

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Renewer is implemented by locks that expire unless refreshed.
type Renewer interface {
	// Renew pushes the expiry out by TTL. It returns false when the lock is
	// no longer held.
	Renew(ctx context.Context) (bool, error)
	TTL() time.Duration
}

// KeepAlive renews lock every third of its TTL until the returned stop
// function is called. Locks without an expiry are left alone. Call stop
// before Release.
func KeepAlive(ctx context.Context, lock DistLock) (stop func()) {
	r, ok := lock.(Renewer)
	if !ok || r.TTL() <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.TTL() / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				held, err := r.Renew(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					logger.Warn("lock renewal failed", "error", err)
					continue
				}
				if !held {
					logger.Warn("lock lost before release")
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// NewLock creates a lock using the best available backend.
// If redisClient is non-nil, uses Redis (preferred for cross-host locking).
// Otherwise falls back to PostgreSQL advisory locks, and to an in-process
// lock when there is no database either.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	if db != nil {
		return NewPGAdvisoryLock(db, key)
	}
	return NewLocalLock(key)
}

// =============================================================================
// PostgreSQL Advisory Lock
// =============================================================================
// Uses pg_try_advisory_lock / pg_advisory_unlock which are session-scoped,
// so the lock pins one pooled connection from Acquire until Release.
// The lock is automatically released if the DB connection drops.

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to acquire the advisory lock. Returns true if successful.
// Uses pg_try_advisory_lock which returns immediately (non-blocking).
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
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
	defer conn.Close()
	_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}

// =============================================================================
// In-process lock
// =============================================================================

var localHeld = struct {
	sync.Mutex
	keys map[string]bool
}{keys: make(map[string]bool)}

// LocalLock guards a key within this process only. It is used when the
// service runs on file storage with no shared Redis or Postgres.
type LocalLock struct {
	key   string
	owned bool
}

// NewLocalLock creates an in-process lock for key.
func NewLocalLock(key string) *LocalLock {
	return &LocalLock{key: key}
}

func (l *LocalLock) Acquire(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	localHeld.Lock()
	defer localHeld.Unlock()
	if localHeld.keys[l.key] {
		return false, nil
	}
	localHeld.keys[l.key] = true
	l.owned = true
	return true, nil
}

func (l *LocalLock) Release(ctx context.Context) error {
	if !l.owned {
		return nil
	}
	localHeld.Lock()
	defer localHeld.Unlock()
	delete(localHeld.keys, l.key)
	l.owned = false
	return nil
}
