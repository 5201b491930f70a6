package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T, opts ...Option) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedisStore(rdb, opts...), mr
}

func TestRedisCreateAndFind(t *testing.T) {
	store, _ := newRedisStoreTest(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "staff-1", "value-a")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == "" || rec.Revoked || rec.Owner != "staff-1" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := store.FindByValue(ctx, "value-a")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != rec.ID || got.Value != "value-a" || got.Owner != "staff-1" || got.Revoked {
		t.Fatalf("unexpected stored record: %+v", got)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("created_at mismatch: %v vs %v", got.CreatedAt, rec.CreatedAt)
	}

	if _, err := store.FindByValue(ctx, "value-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisCreateDuplicate(t *testing.T) {
	store, _ := newRedisStoreTest(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "staff-1", "dup"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Create(ctx, "staff-2", "dup"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestRedisRevokeAllForOwner(t *testing.T) {
	store, _ := newRedisStoreTest(t)
	ctx := context.Background()

	n, err := store.RevokeAllForOwner(ctx, "nobody")
	if err != nil || n != 0 {
		t.Fatalf("expected no-op revoke for empty owner, got n=%d err=%v", n, err)
	}

	for _, v := range []string{"a", "b", "c"} {
		if _, err := store.Create(ctx, "staff-1", v); err != nil {
			t.Fatalf("create %s: %v", v, err)
		}
	}
	if _, err := store.Create(ctx, "staff-2", "other"); err != nil {
		t.Fatalf("create other: %v", err)
	}

	n, err = store.RevokeAllForOwner(ctx, "staff-1")
	if err != nil || n != 3 {
		t.Fatalf("expected 3 revoked, got n=%d err=%v", n, err)
	}
	n, err = store.RevokeAllForOwner(ctx, "staff-1")
	if err != nil || n != 0 {
		t.Fatalf("expected idempotent revoke, got n=%d err=%v", n, err)
	}

	for _, v := range []string{"a", "b", "c"} {
		rec, err := store.FindByValue(ctx, v)
		if err != nil {
			t.Fatalf("find %s: %v", v, err)
		}
		if !rec.Revoked {
			t.Fatalf("record %s should be revoked", v)
		}
	}
	other, err := store.FindByValue(ctx, "other")
	if err != nil || other.Revoked {
		t.Fatalf("other owner must be untouched: %+v %v", other, err)
	}
}

func TestRedisListForOwnerOrdered(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	store, _ := newRedisStoreTest(t, WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	}))
	ctx := context.Background()

	want := []string{"first", "second", "third"}
	for _, v := range want {
		if _, err := store.Create(ctx, "staff-1", v); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	recs, err := store.ListForOwner(ctx, "staff-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(recs))
	}
	for i, rec := range recs {
		if rec.Value != want[i] {
			t.Fatalf("record %d: got %q want %q", i, rec.Value, want[i])
		}
	}

	empty, err := store.ListForOwner(ctx, "nobody")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list, got %v %v", empty, err)
	}
}

func TestRedisRotate(t *testing.T) {
	store, _ := newRedisStoreTest(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "staff-1", "r1"); err != nil {
		t.Fatalf("create r1: %v", err)
	}
	if _, err := store.Create(ctx, "staff-1", "sibling"); err != nil {
		t.Fatalf("create sibling: %v", err)
	}

	next, err := store.Rotate(ctx, "staff-1", "r1", "r2")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if next.Value != "r2" || next.Revoked {
		t.Fatalf("unexpected next record: %+v", next)
	}

	for _, v := range []string{"r1", "sibling"} {
		rec, err := store.FindByValue(ctx, v)
		if err != nil || !rec.Revoked {
			t.Fatalf("%s must be revoked: %+v %v", v, rec, err)
		}
	}
	live, err := store.FindByValue(ctx, "r2")
	if err != nil || live.Revoked {
		t.Fatalf("r2 must be live: %+v %v", live, err)
	}

	if _, err := store.Rotate(ctx, "staff-1", "r1", "r3"); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked on reuse, got %v", err)
	}
	if _, err := store.FindByValue(ctx, "r3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("failed rotate must not insert, got %v", err)
	}
}

func TestRedisRotateRejections(t *testing.T) {
	store, _ := newRedisStoreTest(t)
	ctx := context.Background()

	if _, err := store.Rotate(ctx, "staff-1", "ghost", "n1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := store.Create(ctx, "staff-1", "mine"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Rotate(ctx, "staff-2", "mine", "n2"); !errors.Is(err, ErrOwnerMismatch) {
		t.Fatalf("expected ErrOwnerMismatch, got %v", err)
	}
	rec, err := store.FindByValue(ctx, "mine")
	if err != nil || rec.Revoked {
		t.Fatalf("owner mismatch must not revoke: %+v %v", rec, err)
	}

	if _, err := store.Create(ctx, "staff-1", "taken"); err != nil {
		t.Fatalf("create taken: %v", err)
	}
	if _, err := store.Rotate(ctx, "staff-1", "mine", "taken"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	rec, err = store.FindByValue(ctx, "mine")
	if err != nil || rec.Revoked {
		t.Fatalf("duplicate next must not revoke: %+v %v", rec, err)
	}
}

func TestRedisRotateConcurrentSingleWinner(t *testing.T) {
	store, _ := newRedisStoreTest(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "staff-1", "shared"); err != nil {
		t.Fatalf("create: %v", err)
	}

	const workers = 16
	var (
		wg       sync.WaitGroup
		success  atomic.Int64
		rejected atomic.Int64
		start    = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := store.Rotate(ctx, "staff-1", "shared", "next-"+string(rune('a'+i)))
			switch {
			case err == nil:
				success.Add(1)
			case errors.Is(err, ErrRevoked):
				rejected.Add(1)
			default:
				t.Errorf("unexpected rotate error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if success.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", success.Load())
	}
	if rejected.Load() != workers-1 {
		t.Fatalf("expected %d rejections, got %d", workers-1, rejected.Load())
	}
}

func TestRedisStorageErrors(t *testing.T) {
	store, mr := newRedisStoreTest(t, WithOpTimeout(200*time.Millisecond))
	ctx := context.Background()
	mr.Close()

	if _, err := store.Create(ctx, "staff-1", "v"); !errors.Is(err, ErrStorage) {
		t.Fatalf("create: expected ErrStorage, got %v", err)
	}
	if _, err := store.FindByValue(ctx, "v"); !errors.Is(err, ErrStorage) {
		t.Fatalf("find: expected ErrStorage, got %v", err)
	}
	if _, err := store.RevokeAllForOwner(ctx, "staff-1"); !errors.Is(err, ErrStorage) {
		t.Fatalf("revoke: expected ErrStorage, got %v", err)
	}
	if _, err := store.Rotate(ctx, "staff-1", "v", "w"); !errors.Is(err, ErrStorage) {
		t.Fatalf("rotate: expected ErrStorage, got %v", err)
	}
	if err := store.Ping(ctx); !errors.Is(err, ErrStorage) {
		t.Fatalf("ping: expected ErrStorage, got %v", err)
	}
}

func TestRedisKeysDoNotExpire(t *testing.T) {
	store, mr := newRedisStoreTest(t, WithPrefix("kp"))
	ctx := context.Background()

	if _, err := store.Create(ctx, "staff-1", "persist"); err != nil {
		t.Fatalf("create: %v", err)
	}
	key := "kp:t:" + Digest("persist")
	if !mr.Exists(key) {
		t.Fatalf("expected record key %s", key)
	}
	if ttl := mr.TTL(key); ttl != 0 {
		t.Fatalf("record key must not expire, ttl=%v", ttl)
	}
	if !mr.Exists("kp:o:staff-1") {
		t.Fatal("expected owner index key")
	}
}
