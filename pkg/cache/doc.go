// Package cache stores Metrics API responses in Redis.
//
// Entries are keyed by API origin, endpoint, merchant location and query
// parameters, and live until the Expires time the API returned (or DefaultTTL
// when it sent none). Entries that carry an ETag or Last-Modified value can be revalidated
// with a conditional request; a 304 reply extends the entry instead of
// re-downloading the body.
//
// # Usage
//
//	manager, err := cache.NewManager(redisClient, cache.DefaultNamespace)
//	if err != nil {
//		return err
//	}
//
//	key := cache.CacheKey{
//		Origin:     "api.example.com/v1",
//		Endpoint:   "/merchants/{location_id}/metrics",
//		LocationID: "100001",
//		QueryParams: url.Values{"consent_provided": []string{"true"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then cache.ResponseToEntry + manager.Set
//	}
//
// # Metrics
//
//   - metrics_api_cache_hits_total
//   - metrics_api_cache_misses_total
//   - metrics_api_cache_stored_bytes
//   - metrics_api_304_responses_total
//   - metrics_api_conditional_requests_total
//   - metrics_api_cache_errors_total{operation}
package cache
