// Package core contains the shared types of the teamsmith build pipeline:
// the Phase enumeration, the team artifact types (TeamDesign, PokemonSet,
// MatchupAnalysis, WeaknessReport), the per-session TokenUsage counters,
// the SessionState aggregate owned by the orchestrator, and the Event
// emitter used to stream build progress to subscribers.
//
// Types in this package carry no behavior beyond validation, defensive
// copying and thread-safety where the concurrency model requires it.
// SessionState is deliberately unsynchronized: it is owned by exactly one
// orchestrator goroutine for the lifetime of a build.
package core
