package cache

import (
	"net/url"
	"sort"
	"strings"
)

// DefaultNamespace prefixes every key written by the manager.
const DefaultNamespace = "credit-analytics"

// CacheKey identifies a cached response.
type CacheKey struct {
	// Origin is the API base URL's host and path. Keys from different APIs
	// sharing one Redis never collide.
	Origin string

	// Endpoint is the route template, e.g. "/merchants/{location_id}/metrics".
	Endpoint string

	// LocationID is the merchant location the response belongs to.
	LocationID string

	// QueryParams are folded into the key in sorted order.
	QueryParams url.Values
}

// String renders a deterministic key.
//
//	api.example.com/v1/merchants/{location_id}/metrics:location=100001:consent_provided=true
func (k CacheKey) String() string {
	var b strings.Builder
	if origin := strings.Trim(k.Origin, "/"); origin != "" {
		b.WriteString(origin)
		b.WriteByte('/')
	}
	b.WriteString(strings.Trim(k.Endpoint, "/"))

	if k.LocationID != "" {
		b.WriteString(":location=")
		b.WriteString(k.LocationID)
	}

	names := make([]string, 0, len(k.QueryParams))
	for name := range k.QueryParams {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		values := append([]string(nil), k.QueryParams[name]...)
		sort.Strings(values)
		b.WriteByte(':')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strings.Join(values, ","))
	}

	return b.String()
}
