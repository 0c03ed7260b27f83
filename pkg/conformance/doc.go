// Package conformance runs every scenario of a fixtures.Registry against the
// Metrics API and reports a pass or fail per scenario.
//
// Success scenarios must return a structurally valid result for the requested
// location with every expected trait. Failure scenarios must fail with exactly
// their registered analytics.ErrorKind. Errors that carry no kind, such as
// transport faults or exhausted retries, are setup errors and are reported
// apart from assertion failures.
//
// Runs are sequential. By default the first non-passing scenario ends the run
// and the rest are reported as skipped.
package conformance
