package consolidate

import (
	"context"
	"sync"
	"time"

	"github.com/OFFIS-RIT/graphrag/pkg/leaselock"
)

// Locker serializes read-merge-write cycles on one node or edge id. The
// returned function releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type keyedMutex struct {
	mu   sync.Mutex
	refs int
}

// LocalLocker is an in-process keyed mutex. It only protects consolidations
// running in the same process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedMutex
}

// NewLocalLocker returns an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyedMutex)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	km, ok := l.locks[key]
	if !ok {
		km = &keyedMutex{}
		l.locks[key] = km
	}
	km.refs++
	l.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		km.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-ctx.Done():
		// the goroutine still takes the mutex; hand it back once it does
		go func() {
			<-acquired
			l.release(key, km)
		}()
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, km) })
	}, nil
}

func (l *LocalLocker) release(key string, km *keyedMutex) {
	km.mu.Unlock()

	l.mu.Lock()
	km.refs--
	if km.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// LeaseLocker locks identities across processes with Postgres lease locks.
type LeaseLocker struct {
	client *leaselock.Client
	opts   leaselock.Options
}

// NewLeaseLocker waits for busy leases; ttl bounds how long a crashed holder
// blocks others.
func NewLeaseLocker(client *leaselock.Client, ttl time.Duration) *LeaseLocker {
	return &LeaseLocker{
		client: client,
		opts: leaselock.Options{
			TTL:          ttl,
			Wait:         true,
			WaitInterval: 100 * time.Millisecond,
			WaitJitter:   50 * time.Millisecond,
			TokenPrefix:  "consolidate-",
		},
	}
}

func (l *LeaseLocker) Lock(ctx context.Context, key string) (func(), error) {
	lease, err := l.client.Acquire(ctx, "graph:"+key, l.opts)
	if err != nil {
		return nil, err
	}
	return func() {
		_ = lease.Release(context.Background())
	}, nil
}
