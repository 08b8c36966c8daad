package insights

import (
	"context"
	"strconv"
	"time"

	"budgetboard/internal/cache"
)

// Source is the set of insight reads the dashboard depends on.
type Source interface {
	Recommendations(ctx context.Context, token string) (Recommendations, error)
	Anomalies(ctx context.Context, token string, threshold float64) (Anomalies, error)
	Predictions(ctx context.Context, token string, monthsAhead int) (Predictions, error)
	Analysis(ctx context.Context, token string) (Analysis, error)
	Categorize(ctx context.Context, token, description string) (Categorization, error)
}

// Ensure interface conformance
var (
	_ Source = (*Client)(nil)
	_ Source = (*Cached)(nil)
)

// Cached keeps successful GET payloads per token for a short TTL.
// Categorize is never cached and errors are never stored.
type Cached struct {
	next  Source
	items *cache.LRUCache[any]
}

// NewCached wraps next with a TTL cache holding up to maxEntries payloads.
func NewCached(next Source, ttl time.Duration, maxEntries int) *Cached {
	return &Cached{next: next, items: cache.NewLRUCache[any](maxEntries, ttl)}
}

// Cache exposes the backing cache for registration with a cache.Manager.
func (c *Cached) Cache() cache.Cleaner { return c.items }

// Invalidate drops every payload cached for token.
func (c *Cached) Invalidate(token string) int {
	return c.items.DeletePrefix(cache.Key(token, ""))
}

func (c *Cached) Recommendations(ctx context.Context, token string) (Recommendations, error) {
	return cached(c, cache.Key(token, string(KindRecommendations)), func() (Recommendations, error) {
		return c.next.Recommendations(ctx, token)
	})
}

func (c *Cached) Anomalies(ctx context.Context, token string, threshold float64) (Anomalies, error) {
	key := cache.Key(token, string(KindAnomalies), strconv.FormatFloat(threshold, 'f', -1, 64))
	return cached(c, key, func() (Anomalies, error) {
		return c.next.Anomalies(ctx, token, threshold)
	})
}

func (c *Cached) Predictions(ctx context.Context, token string, monthsAhead int) (Predictions, error) {
	key := cache.Key(token, string(KindPredictions), strconv.Itoa(monthsAhead))
	return cached(c, key, func() (Predictions, error) {
		return c.next.Predictions(ctx, token, monthsAhead)
	})
}

func (c *Cached) Analysis(ctx context.Context, token string) (Analysis, error) {
	return cached(c, cache.Key(token, string(KindAnalysis)), func() (Analysis, error) {
		return c.next.Analysis(ctx, token)
	})
}

func (c *Cached) Categorize(ctx context.Context, token, description string) (Categorization, error) {
	return c.next.Categorize(ctx, token, description)
}

func cached[T any](c *Cached, key string, fetch func() (T, error)) (T, error) {
	if v, ok := c.items.Get(key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}
	v, err := fetch()
	if err != nil {
		return v, err
	}
	c.items.Set(key, v)
	return v, nil
}
