package rates

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"saldo/internal/cache"
	"saldo/internal/core"
)

const blueKey = "blue"

const (
	// DefaultFailureTTL is how long a failed upstream fetch is remembered.
	DefaultFailureTTL = 30 * time.Second
	// DefaultFetchTimeout bounds one upstream fetch, retries included.
	DefaultFetchTimeout = 20 * time.Second
)

// CachedProvider keeps the last good quote for a TTL and collapses
// concurrent misses into a single upstream request. Failures are remembered
// for a short while so callers fall back immediately while upstream is down.
type CachedProvider struct {
	next         Provider
	cache        *cache.LRUCache[core.Rate]
	group        singleflight.Group
	failureTTL   time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	mu          sync.Mutex
	failedUntil time.Time
	lastErr     error
}

func NewCachedProvider(next Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		next:         next,
		cache:        cache.NewLRUCache[core.Rate](4, ttl),
		failureTTL:   DefaultFailureTTL,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
	}
}

// WithFailureTTL overrides how long a failed fetch short-circuits callers.
// Zero disables negative caching.
func (p *CachedProvider) WithFailureTTL(d time.Duration) *CachedProvider {
	p.failureTTL = d
	return p
}

// WithFetchTimeout overrides the deadline of a shared upstream fetch.
func (p *CachedProvider) WithFetchTimeout(d time.Duration) *CachedProvider {
	if d > 0 {
		p.fetchTimeout = d
	}
	return p
}

// Cache exposes the underlying cache so it can be swept and reported on.
func (p *CachedProvider) Cache() *cache.LRUCache[core.Rate] {
	return p.cache
}

// BlueRate returns the cached quote or fetches a fresh one. The fetch runs
// detached from ctx so one caller going away does not fail the others
// waiting on it; ctx only bounds how long this caller waits.
func (p *CachedProvider) BlueRate(ctx context.Context) (core.Rate, error) {
	if r, ok := p.cache.Get(blueKey); ok {
		return r, nil
	}
	if err := p.recentFailure(); err != nil {
		return core.Rate{}, err
	}

	ch := p.group.DoChan(blueKey, func() (any, error) {
		if r, ok := p.cache.Get(blueKey); ok {
			return r, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.fetchTimeout)
		defer cancel()

		r, err := p.next.BlueRate(fetchCtx)
		if err != nil {
			p.recordFailure(err)
			return core.Rate{}, err
		}
		p.cache.Set(blueKey, r)
		return r, nil
	})

	select {
	case <-ctx.Done():
		return core.Rate{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return core.Rate{}, res.Err
		}
		return res.Val.(core.Rate), nil
	}
}

func (p *CachedProvider) recentFailure() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastErr != nil && p.now().Before(p.failedUntil) {
		return p.lastErr
	}
	return nil
}

func (p *CachedProvider) recordFailure(err error) {
	if p.failureTTL <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
	p.failedUntil = p.now().Add(p.failureTTL)
}
