// Package orchestrator sequences the build roles through the phase state
// machine that turns a build request into a team artifact.
//
// A build walks Architecture, Calculation and Critique in order. When the
// critic's findings reach the configured severity threshold the pipeline
// routes through Refinement and re-enters Critique, bounded by a maximum
// number of refinement cycles. Token and cost budgets are checked before
// every agent invocation; an exceeded budget or an unrecoverable agent
// failure terminates the run with the best partial result, warnings and a
// structured error list instead of surfacing a bare failure. Only a build
// that produced nothing at all returns an error.
package orchestrator
