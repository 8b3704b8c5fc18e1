// Package pool manages a bounded set of reusable connections to the
// external tool-invocation service (an MCP server) and is the only path by
// which agents reach external tools.
//
// Every call acquires a pooled connection (waiting up to a configurable
// timeout before failing with ErrPoolExhausted), is guarded by the named
// service's circuit breaker, retried with bounded backoff for recoverable
// failure categories, and converted into a resilience.FetchResult at the
// pool boundary. Errors never escape the pool as raw Go errors; a failed
// call degrades to cached stale data when the failure category permits it
// and a cached value exists.
//
// The pool is the one component of the system that enables concurrency:
// independent tool calls interleave across pool connections, so the free
// list and all counters are safe under concurrent access.
package pool
