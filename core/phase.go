package core

// Phase enumerates the stages of the build pipeline. Exactly one phase is
// active at a time. Transitions are strictly forward except the explicit
// Critique -> Refinement retry path, which the orchestrator bounds by a
// configured maximum number of refinement cycles.
type Phase int

const (
	// PhaseArchitecture drafts the initial team design.
	PhaseArchitecture Phase = iota
	// PhaseCalculation runs damage and speed calculations for the design.
	PhaseCalculation
	// PhaseCritique evaluates the design and produces a weakness report.
	PhaseCritique
	// PhaseRefinement reworks the design to address critic findings.
	PhaseRefinement
	// PhaseDone terminates the pipeline.
	PhaseDone
)

// String returns the lowercase phase name used in events and logs.
func (p Phase) String() string {
	switch p {
	case PhaseArchitecture:
		return "architecture"
	case PhaseCalculation:
		return "calculation"
	case PhaseCritique:
		return "critique"
	case PhaseRefinement:
		return "refinement"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Next returns the forward successor of the phase. Critique advances to Done
// on acceptance; the rejection path to Refinement is an orchestrator decision,
// not part of the forward chain. Refinement re-enters Critique so a refined
// design is always re-evaluated.
func (p Phase) Next() Phase {
	switch p {
	case PhaseArchitecture:
		return PhaseCalculation
	case PhaseCalculation:
		return PhaseCritique
	case PhaseCritique:
		return PhaseDone
	case PhaseRefinement:
		return PhaseCritique
	default:
		return PhaseDone
	}
}

// MarshalText implements encoding.TextMarshaler so phases serialize by name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }
