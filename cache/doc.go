// Package cache provides a bounded key/value store with a per-entry
// time-to-live.
//
// Expirable is safe for concurrent use. Entries are evicted least recently
// used first once MaxCapacity is reached, and an entry older than TTL is
// never returned by Get even if it has not been physically removed yet.
//
//	prices := cache.New[string, float64](1024, 5*time.Minute)
//	prices.Insert("BTC", 64000)
//	if v, ok := prices.Get("BTC"); ok {
//	    ...
//	}
package cache
