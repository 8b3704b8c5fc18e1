// Package session provides storage for build session state, letting callers
// retrieve a finished build's phase history, warnings and event log after
// the fact. The in-memory implementation is the default; its Store interface
// leaves room for durable backends.
package session
