// Package logging provides a minimal logging interface and adapters for teamsmith.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the orchestrator, agents and connection pool use for observability. This
// package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - BuildLogger with build-session context helpers
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	orc := orchestrator.New(agents, func(o *orchestrator.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
