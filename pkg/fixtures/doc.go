// Package fixtures is the ground truth of the conformance run: a catalog of
// merchant locations with canned Metrics API responses, and a registry of
// named scenarios bound to a client.
//
// Success scenarios become Fixtures, zero-argument lookups expected to return
// a valid result. Failure scenarios become Triggers, lookups expected to fail
// with one registered analytics.ErrorKind. Neither holds mutable state, so
// invoking them repeatedly yields the same outcome as long as the API does.
//
// The catalog also drives the sandbox API: Catalog.Resolve is the single rule
// deciding what the API answers for a request, and LoadCatalog rejects
// catalogs whose scenario expectations disagree with it.
package fixtures
