package ratelimit

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	sqlite "github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-widget-leads/internal/domain"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newLimiterDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("rl_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.RateLimitBucket{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// assertFixedWindow checks the 5-per-window contract with a controllable clock.
func assertFixedWindow(t *testing.T, l Limiter, advance func(time.Duration)) {
	t.Helper()
	ctx := context.Background()
	const key, limit, window = "msg:session-1", 5, time.Minute

	for i := 1; i <= limit; i++ {
		ok, err := l.Allow(ctx, key, limit, window)
		if err != nil || !ok {
			t.Fatalf("call %d: ok=%v err=%v; want allowed", i, ok, err)
		}
	}
	ok, err := l.Allow(ctx, key, limit, window)
	if err != nil || ok {
		t.Fatalf("call 6: ok=%v err=%v; want denied", ok, err)
	}

	// Other keys are independent.
	if ok, _ := l.Allow(ctx, "msg:session-2", limit, window); !ok {
		t.Fatalf("independent key should be allowed")
	}

	advance(window + time.Millisecond)
	ok, err = l.Allow(ctx, key, limit, window)
	if err != nil || !ok {
		t.Fatalf("after window: ok=%v err=%v; want allowed", ok, err)
	}
	// The new window started with that call: four more fit.
	for i := 0; i < limit-1; i++ {
		if ok, _ := l.Allow(ctx, key, limit, window); !ok {
			t.Fatalf("new window call %d denied", i+2)
		}
	}
	if ok, _ := l.Allow(ctx, key, limit, window); ok {
		t.Fatalf("new window should be exhausted after %d calls", limit)
	}
}

func TestMemory_FixedWindow(t *testing.T) {
	clk := newFakeClock()
	assertFixedWindow(t, NewMemory(clk.Now), clk.Advance)
}

func TestMemory_EvictsExpiredBuckets(t *testing.T) {
	clk := newFakeClock()
	m := NewMemory(clk.Now)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, _ = m.Allow(ctx, fmt.Sprintf("k%d", i), 1, time.Second)
	}
	clk.Advance(2 * time.Second)
	m.cleanupN = 4999
	_, _ = m.Allow(ctx, "fresh", 1, time.Second)
	if n := m.Len(); n != 1 {
		t.Fatalf("expected expired buckets evicted, have %d", n)
	}
}

// assertResetBoundary checks that a call exactly at the reset time still
// belongs to the old window and the first call after it opens a new one.
func assertResetBoundary(t *testing.T, l Limiter, advance func(time.Duration)) {
	t.Helper()
	ctx := context.Background()
	const key, limit, window = "key:198.51.100.4", 2, time.Minute

	for i := 0; i < limit; i++ {
		if ok, err := l.Allow(ctx, key, limit, window); err != nil || !ok {
			t.Fatalf("call %d: ok=%v err=%v", i+1, ok, err)
		}
	}
	advance(window)
	if ok, err := l.Allow(ctx, key, limit, window); err != nil || ok {
		t.Fatalf("at reset time: ok=%v err=%v; want denied (old window)", ok, err)
	}
	advance(time.Millisecond)
	if ok, err := l.Allow(ctx, key, limit, window); err != nil || !ok {
		t.Fatalf("after reset time: ok=%v err=%v; want allowed", ok, err)
	}
}

func TestMemory_ResetBoundary(t *testing.T) {
	clk := newFakeClock()
	assertResetBoundary(t, NewMemory(clk.Now), clk.Advance)
}

func TestSQL_ResetBoundary(t *testing.T) {
	clk := newFakeClock()
	assertResetBoundary(t, NewSQL(newLimiterDB(t), clk.Now), clk.Advance)
}

func TestRedis_ResetBoundary(t *testing.T) {
	mr := miniredis.RunT(t)
	l := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = l.Close() })
	assertResetBoundary(t, l, mr.FastForward)
}

func TestSQL_FixedWindow(t *testing.T) {
	clk := newFakeClock()
	assertFixedWindow(t, NewSQL(newLimiterDB(t), clk.Now), clk.Advance)
}

func TestSQL_ConcurrentCallersNeverOvershoot(t *testing.T) {
	db := newLimiterDB(t)
	l := NewSQL(db, nil)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Allow(context.Background(), "ip:203.0.113.7", 5, time.Minute)
			if err != nil {
				t.Errorf("Allow: %v", err)
				return
			}
			if ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := allowed.Load(); got != 5 {
		t.Fatalf("allowed = %d; want exactly 5", got)
	}

	var b domain.RateLimitBucket
	if err := db.First(&b, "key = ?", "ip:203.0.113.7").Error; err != nil {
		t.Fatalf("read bucket: %v", err)
	}
	if b.Hits != 5 {
		t.Fatalf("hits = %d; want 5", b.Hits)
	}
}

func TestSQL_Purge(t *testing.T) {
	clk := newFakeClock()
	l := NewSQL(newLimiterDB(t), clk.Now)
	ctx := context.Background()
	_, _ = l.Allow(ctx, "a", 5, time.Second)
	_, _ = l.Allow(ctx, "b", 5, time.Hour)
	clk.Advance(2 * time.Second)
	n, err := l.Purge(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Purge: n=%d err=%v; want 1", n, err)
	}
}

func TestRedis_FixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := NewRedisFromClient(client)
	t.Cleanup(func() { _ = l.Close() })

	if err := l.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	assertFixedWindow(t, l, mr.FastForward)

	if ttl := mr.TTL("rl:msg:session-1"); ttl <= 0 || ttl > time.Minute+time.Millisecond {
		t.Fatalf("expected key TTL within window, got %v", ttl)
	}
}

func TestNewRedis_BadURL(t *testing.T) {
	if _, err := NewRedis("://bad"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRedis_ErrorWhenServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	l, err := NewRedis("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := l.Allow(ctx, "k", 1, time.Second); err == nil {
		t.Fatalf("expected error when redis is unavailable")
	}
}
