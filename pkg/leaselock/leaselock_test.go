package leaselock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	key string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.key
	return nil
}

type fakeDB struct {
	mu    sync.Mutex
	locks map[string]string
}

func newFakeDB() *fakeDB {
	return &fakeDB{locks: make(map[string]string)}
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sql == releaseSQL {
		key, token := args[0].(string), args[1].(string)
		if f.locks[key] == token {
			delete(f.locks, key)
		}
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token := args[0].(string), args[1].(string)
	switch sql {
	case tryAcquireSQL:
		if holder, ok := f.locks[key]; ok && holder != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		f.locks[key] = token
		return fakeRow{key: key}
	case renewSQL:
		if f.locks[key] != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{key: key}
	}
	return fakeRow{err: errors.New("unexpected query")}
}

func TestAcquireRelease(t *testing.T) {
	db := newFakeDB()
	c := New(db)
	ctx := context.Background()
	opts := Options{TTL: time.Hour, TokenPrefix: "test-"}

	lease, err := c.Acquire(ctx, "ent-1", opts)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if _, err := c.Acquire(ctx, "ent-1", opts); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Acquire() error = %v, want ErrBusy", err)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if lease.Context.Err() == nil {
		t.Fatalf("lease context should be cancelled after release")
	}

	again, err := c.Acquire(ctx, "ent-1", opts)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	_ = again.Release(ctx)
}

func TestAcquireWaits(t *testing.T) {
	db := newFakeDB()
	c := New(db)
	ctx := context.Background()

	first, err := c.Acquire(ctx, "k", Options{TTL: time.Hour})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = first.Release(context.Background())
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	second, err := c.Acquire(waitCtx, "k", Options{TTL: time.Hour, Wait: true, WaitInterval: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("waiting Acquire() error = %v", err)
	}
	_ = second.Release(ctx)
}

func TestWithLeaseEmptyKey(t *testing.T) {
	c := New(newFakeDB())
	err := c.WithLease(context.Background(), "", Options{}, func(ctx context.Context) error {
		t.Fatalf("fn must not run without a lease")
		return nil
	})
	if err == nil {
		t.Fatalf("expected error for empty key")
	}
}
