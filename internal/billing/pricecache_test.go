package billing

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestPriceCacheDedupsConcurrentFetches(t *testing.T) {
	var calls int64
	cache := NewPriceCache(func(priceID string) (StripePrice, error) {
		atomic.AddInt64(&calls, 1)
		return StripePrice{ID: priceID, UnitAmount: 1000, Currency: "usd"}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Get("price_123"); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("fetch called %d times, want 1", got)
	}
}

func TestPriceCacheReturnsCachedValue(t *testing.T) {
	var calls int64
	cache := NewPriceCache(func(priceID string) (StripePrice, error) {
		atomic.AddInt64(&calls, 1)
		return StripePrice{ID: priceID, UnitAmount: 2000, Currency: "usd"}, nil
	})

	first, err := cache.Get("price_abc")
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	second, err := cache.Get("price_abc")
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if first != second {
		t.Fatalf("cached values differ: %+v vs %+v", first, second)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("fetch called %d times, want 1", got)
	}
}

func TestPriceCachePropagatesFetchError(t *testing.T) {
	wantErr := errors.New("boom")
	cache := NewPriceCache(func(priceID string) (StripePrice, error) {
		return StripePrice{}, wantErr
	})
	if _, err := cache.Get("price_err"); err != wantErr {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
}
