package cache

import (
	"context"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

// guardedStore short-circuits calls to a failing Redis so that searches
// stop paying the connection timeout on every request. Misses are not
// failures.
type guardedStore struct {
	store   Store
	breaker *resilience.CircuitBreaker
}

// WithBreaker wraps store in a circuit breaker.
func WithBreaker(store Store, cfg resilience.CircuitBreakerConfig) Store {
	cfg.IsFailure = func(err error) bool { return !pkgredis.IsNilError(err) }
	return &guardedStore{store: store, breaker: resilience.NewCircuitBreaker("redis-cache", cfg)}
}

func (g *guardedStore) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := g.breaker.Execute(func() error {
		var err error
		v, err = g.store.Get(ctx, key)
		return err
	})
	return v, err
}

func (g *guardedStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return g.breaker.Execute(func() error {
		return g.store.Set(ctx, key, value, ttl)
	})
}

// FlushByPattern bypasses the breaker: invalidation after an index swap
// must be attempted even while lookups are short-circuited.
func (g *guardedStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	return g.store.FlushByPattern(ctx, pattern)
}
