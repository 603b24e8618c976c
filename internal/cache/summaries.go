package cache

import (
	"context"
	"sync"
	"time"

	"saldo/internal/core"
	"saldo/internal/log"
)

// Summaries caches per-account read models. Any mutation touching an account
// must call Invalidate before the next read can be trusted.
type Summaries struct {
	categories *LRUCache[core.CategorySummary]
	goals      *LRUCache[core.GoalSummary]
	logger     *log.Logger

	mu  sync.Mutex
	gen map[string]uint64 // bumped by Invalidate
}

func NewSummaries(maxSize int, ttl time.Duration) *Summaries {
	return &Summaries{
		categories: NewLRUCache[core.CategorySummary](maxSize, ttl),
		goals:      NewLRUCache[core.GoalSummary](maxSize, ttl),
		logger:     log.Default(log.ComponentCache),
		gen:        make(map[string]uint64),
	}
}

// CategorySummary returns the cached summary for accountID or calls load and caches the result.
func (s *Summaries) CategorySummary(ctx context.Context, accountID string, load func(context.Context, string) (core.CategorySummary, error)) (core.CategorySummary, error) {
	return readThrough(ctx, s, s.categories, "category summary", accountID, load)
}

// GoalSummary returns the cached summary for accountID or calls load and caches the result.
func (s *Summaries) GoalSummary(ctx context.Context, accountID string, load func(context.Context, string) (core.GoalSummary, error)) (core.GoalSummary, error) {
	return readThrough(ctx, s, s.goals, "goal summary", accountID, load)
}

// readThrough only stores a loaded value if no Invalidate ran for the
// account while it was loading.
func readThrough[T any](ctx context.Context, s *Summaries, c *LRUCache[T], what, accountID string, load func(context.Context, string) (T, error)) (T, error) {
	if v, ok := c.Get(accountID); ok {
		s.logger.DebugContext(ctx, "Cache hit", "entry", what, log.FieldAccountID, accountID)
		return v, nil
	}
	gen := s.generation(accountID)
	v, err := load(ctx, accountID)
	if err != nil {
		var zero T
		return zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen[accountID] != gen {
		s.logger.DebugContext(ctx, "Discarding stale load", "entry", what, log.FieldAccountID, accountID)
		return v, nil
	}
	c.Set(accountID, v)
	return v, nil
}

func (s *Summaries) generation(accountID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen[accountID]
}

// Invalidate drops every cached summary of accountID.
func (s *Summaries) Invalidate(accountID string) {
	if accountID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen[accountID]++
	s.categories.Delete(accountID)
	s.goals.Delete(accountID)
}

func (s *Summaries) CleanExpired() int {
	return s.categories.CleanExpired() + s.goals.CleanExpired()
}

func (s *Summaries) Size() int {
	return s.categories.Size() + s.goals.Size()
}
