package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/core"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestLRUCache_Eviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be cached")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b was least recently used and should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}

	c.Set("a", 10)
	if v, _ := c.Get("a"); v != 10 {
		t.Errorf("overwrite: Get(a) = %d", v)
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("a should be deleted")
	}
}

func TestLRUCache_Expiration(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Second)
	c.now = clock.now

	c.Set("a", "x")
	c.Set("b", "y")
	clock.t = clock.t.Add(500 * time.Millisecond)
	c.Set("c", "z")

	clock.t = clock.t.Add(700 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if removed := c.CleanExpired(); removed != 1 {
		t.Errorf("CleanExpired() = %d, want 1", removed)
	}
	if v, ok := c.Get("c"); !ok || v != "z" {
		t.Errorf("Get(c) = %q, %v", v, ok)
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Stats() = %d hits, %d misses", hits, misses)
	}
}

func TestLRUCache_ZeroTTLNeverExpires(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := NewLRUCache[int](1, 0)
	c.now = clock.now
	c.Set("a", 1)
	clock.t = clock.t.Add(24 * time.Hour)
	if _, ok := c.Get("a"); !ok {
		t.Error("zero ttl entries should not expire")
	}
}

func TestSummaries(t *testing.T) {
	ctx := context.Background()
	s := NewSummaries(8, time.Minute)

	loads := 0
	load := func(_ context.Context, accountID string) (core.CategorySummary, error) {
		loads++
		return core.CategorySummary{AccountID: accountID, Net: decimal.NewFromInt(int64(loads))}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := s.CategorySummary(ctx, "acc-1", load)
		if err != nil {
			t.Fatalf("CategorySummary() error = %v", err)
		}
		if !got.Net.Equal(decimal.NewFromInt(1)) {
			t.Errorf("expected cached summary, got net %s", got.Net)
		}
	}
	if loads != 1 {
		t.Errorf("load called %d times, want 1", loads)
	}

	goalLoads := 0
	goalLoad := func(_ context.Context, accountID string) (core.GoalSummary, error) {
		goalLoads++
		return core.GoalSummary{AccountID: accountID}, nil
	}
	if _, err := s.GoalSummary(ctx, "acc-1", goalLoad); err != nil {
		t.Fatal(err)
	}
	if s.Size() != 2 {
		t.Errorf("Size() = %d, want 2", s.Size())
	}

	s.Invalidate("acc-1")
	if s.Size() != 0 {
		t.Errorf("Invalidate should drop both summaries, size %d", s.Size())
	}
	got, _ := s.CategorySummary(ctx, "acc-1", load)
	if loads != 2 || !got.Net.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected reload after invalidate, loads=%d net=%s", loads, got.Net)
	}
}

func TestSummaries_LoadErrorIsNotCached(t *testing.T) {
	s := NewSummaries(8, time.Minute)
	boom := errors.New("db down")
	calls := 0
	load := func(context.Context, string) (core.GoalSummary, error) {
		calls++
		return core.GoalSummary{}, boom
	}
	for i := 0; i < 2; i++ {
		if _, err := s.GoalSummary(context.Background(), "acc", load); !errors.Is(err, boom) {
			t.Fatalf("expected load error, got %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("failed loads should not be cached, calls=%d", calls)
	}
}

func TestSummaries_InvalidateDuringLoad(t *testing.T) {
	ctx := context.Background()
	s := NewSummaries(8, time.Minute)

	loads := 0
	load := func(_ context.Context, accountID string) (core.CategorySummary, error) {
		loads++
		if loads == 1 {
			// A write lands while the first read is still computing.
			s.Invalidate(accountID)
		}
		return core.CategorySummary{AccountID: accountID, Net: decimal.NewFromInt(int64(loads))}, nil
	}

	got, err := s.CategorySummary(ctx, "acc-1", load)
	if err != nil {
		t.Fatalf("CategorySummary() error = %v", err)
	}
	if !got.Net.Equal(decimal.NewFromInt(1)) {
		t.Errorf("first read net = %s, want 1", got.Net)
	}
	if s.Size() != 0 {
		t.Errorf("stale load was cached, size %d", s.Size())
	}

	got, _ = s.CategorySummary(ctx, "acc-1", load)
	if loads != 2 || !got.Net.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected fresh load, loads=%d net=%s", loads, got.Net)
	}
	got, _ = s.CategorySummary(ctx, "acc-1", load)
	if loads != 2 || !got.Net.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected cached second load, loads=%d net=%s", loads, got.Net)
	}
}

func TestManager_Sweep(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	c := NewLRUCache[int](4, time.Second)
	c.now = clock.now
	c.Set("a", 1)
	c.Set("b", 2)

	m := NewManager()
	m.Register(c)
	clock.t = clock.t.Add(2 * time.Second)
	if removed := m.Sweep(); removed != 2 {
		t.Errorf("Sweep() = %d, want 2", removed)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
