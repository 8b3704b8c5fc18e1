// Package resilience provides the failure handling primitives guarding calls
// to external services: a per-service circuit breaker with an explicitly
// constructed registry, categorized service errors, typed fetch results
// (success, failure or stale fallback) and bounded retry with exponential
// backoff for recoverable error categories.
//
// The registry is injected rather than process-global so tests can create
// isolated instances. The breaker and registry are the only process-wide
// shared state in the system and serialize all mutation internally.
package resilience
