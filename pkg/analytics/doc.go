// Package analytics defines the merchant credit analytics data model returned
// by the Metrics API: the request parameters, the metrics result object, and
// the closed set of domain failure kinds the API reports.
//
// The payload schema here is the module's own model of a metrics result. The
// provider's generated types are treated as an external contract; only the
// fields the conformance harness needs to validate are modelled.
package analytics
