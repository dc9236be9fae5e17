package billing

import (
	"sync"
	"time"
)

// priceCacheTTL matches spec §5's "Stripe price cache (10 min TTL)".
const priceCacheTTL = 10 * time.Minute

type priceCacheEntry struct {
	price  StripePrice
	expiry time.Time
}

// StripePrice is the subset of a Stripe Price object this coordinator
// needs to build a checkout session.
type StripePrice struct {
	ID         string
	UnitAmount int64
	Currency   string
}

type inflightCall struct {
	done  chan struct{}
	price StripePrice
	err   error
}

// PriceCache is an in-memory TTL cache of Stripe prices keyed by price id,
// with per-key inflight deduplication so concurrent checkout requests for
// the same price share one outbound Stripe API call. Grounded on the
// teacher's TenantAuthCache (internal/auth/tenant_headers.go): a
// mutex-protected map plus a background cleanup goroutine, rather than an
// external cache (spec §5 requires these caches live "in process memory").
type PriceCache struct {
	mu       sync.Mutex
	entries  map[string]priceCacheEntry
	inflight map[string]*inflightCall
	fetch    func(priceID string) (StripePrice, error)
}

func NewPriceCache(fetch func(priceID string) (StripePrice, error)) *PriceCache {
	c := &PriceCache{
		entries:  make(map[string]priceCacheEntry),
		inflight: make(map[string]*inflightCall),
		fetch:    fetch,
	}
	go c.cleanupExpired()
	return c
}

// Get returns the cached price, fetching it (deduplicated across
// concurrent callers) on a miss or expiry.
func (c *PriceCache) Get(priceID string) (StripePrice, error) {
	c.mu.Lock()
	if entry, ok := c.entries[priceID]; ok && time.Now().Before(entry.expiry) {
		c.mu.Unlock()
		return entry.price, nil
	}
	if call, ok := c.inflight[priceID]; ok {
		c.mu.Unlock()
		<-call.done
		return call.price, call.err
	}

	call := &inflightCall{done: make(chan struct{})}
	c.inflight[priceID] = call
	c.mu.Unlock()

	call.price, call.err = c.fetch(priceID)

	c.mu.Lock()
	delete(c.inflight, priceID)
	if call.err == nil {
		c.entries[priceID] = priceCacheEntry{price: call.price, expiry: time.Now().Add(priceCacheTTL)}
	}
	c.mu.Unlock()

	close(call.done)
	return call.price, call.err
}

func (c *PriceCache) cleanupExpired() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		now := time.Now()
		for key, entry := range c.entries {
			if now.After(entry.expiry) {
				delete(c.entries, key)
			}
		}
		c.mu.Unlock()
	}
}
