package core

import (
	"fmt"
	"strings"
)

// MaxTeamSize is the maximum number of Pokemon in a team.
const MaxTeamSize = 6

// MaxMoves is the maximum number of moves per Pokemon set.
const MaxMoves = 4

// PokemonSet describes one team slot: species plus its competitive
// configuration. Species is required; everything else is optional.
type PokemonSet struct {
	Species  string         `json:"species"`
	Item     string         `json:"item,omitempty"`
	Ability  string         `json:"ability,omitempty"`
	TeraType string         `json:"tera_type,omitempty"`
	Moves    []string       `json:"moves,omitempty"`
	Nature   string         `json:"nature,omitempty"`
	EVs      map[string]int `json:"evs,omitempty"`
	IVs      map[string]int `json:"ivs,omitempty"`
}

// Validate checks the set invariants: species present, at most MaxMoves
// moves and no duplicate moves (case-insensitive).
func (s PokemonSet) Validate() error {
	if strings.TrimSpace(s.Species) == "" {
		return fmt.Errorf("pokemon set: species is required")
	}
	if len(s.Moves) > MaxMoves {
		return fmt.Errorf("pokemon set %s: %d moves exceeds maximum of %d", s.Species, len(s.Moves), MaxMoves)
	}
	seen := make(map[string]bool, len(s.Moves))
	for _, m := range s.Moves {
		key := strings.ToLower(strings.TrimSpace(m))
		if seen[key] {
			return fmt.Errorf("pokemon set %s: duplicate move %q", s.Species, m)
		}
		seen[key] = true
	}
	return nil
}

// TeamDesign is the primary build artifact: an ordered sequence of up to
// MaxTeamSize Pokemon sets plus a game-plan descriptor and competitive mode
// tag. Produced by the architect, consumed and refined by later phases.
type TeamDesign struct {
	Pokemon  []PokemonSet `json:"pokemon"`
	GamePlan string       `json:"game_plan,omitempty"`
	Mode     string       `json:"mode,omitempty"`
}

// Validate checks team-level invariants and every contained set.
func (d TeamDesign) Validate() error {
	if len(d.Pokemon) > MaxTeamSize {
		return fmt.Errorf("team design: %d pokemon exceeds maximum of %d", len(d.Pokemon), MaxTeamSize)
	}
	for i, set := range d.Pokemon {
		if err := set.Validate(); err != nil {
			return fmt.Errorf("team design slot %d: %w", i, err)
		}
	}
	return nil
}

// IsEmpty reports whether the design carries no Pokemon at all.
func (d TeamDesign) IsEmpty() bool { return len(d.Pokemon) == 0 }

// Species returns the ordered species identifiers of the team.
func (d TeamDesign) Species() []string {
	out := make([]string, 0, len(d.Pokemon))
	for _, p := range d.Pokemon {
		out = append(out, p.Species)
	}
	return out
}

// MatchupSummary aggregates the calculation results for one team member.
type MatchupSummary struct {
	Species  string   `json:"species"`
	Summary  string   `json:"summary,omitempty"`
	KeyCalcs []string `json:"key_calcs,omitempty"`
}

// MatchupAnalysis maps species to per-Pokemon calculation summaries plus
// team-level coverage and concern lists. Produced by the calculator phase.
type MatchupAnalysis struct {
	Summaries map[string]MatchupSummary `json:"summaries,omitempty"`
	Coverage  []string                  `json:"coverage,omitempty"`
	Concerns  []string                  `json:"concerns,omitempty"`
	EVNotes   map[string]string         `json:"ev_notes,omitempty"`
}

// IsEmpty reports whether the analysis carries no content.
func (a MatchupAnalysis) IsEmpty() bool {
	return len(a.Summaries) == 0 && len(a.Coverage) == 0 && len(a.Concerns) == 0 && len(a.EVNotes) == 0
}

// Severity grades a weakness from informational to design-breaking.
type Severity int

// The zero value is deliberately no severity so option structs can tell an
// unset threshold apart from SeverityLow.
const (
	// SeverityLow marks a minor, acceptable weakness.
	SeverityLow Severity = iota + 1
	// SeverityMedium marks a weakness worth noting in the game plan.
	SeverityMedium
	// SeverityHigh marks a weakness that should trigger refinement.
	SeverityHigh
	// SeverityCritical marks a design-breaking weakness.
	SeverityCritical
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseSeverity converts a severity name to its enum value. Unknown names
// map to SeverityLow so malformed critic output degrades rather than fails.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium", "moderate":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	*s = ParseSeverity(string(b))
	return nil
}

// Weakness is a single critic finding: a type or threat plus severity.
type Weakness struct {
	Target   string   `json:"target"`
	Severity Severity `json:"severity"`
	Note     string   `json:"note,omitempty"`
}

// WeaknessReport aggregates critic findings across the team.
type WeaknessReport struct {
	Weaknesses []Weakness `json:"weaknesses,omitempty"`
	Verdict    string     `json:"verdict,omitempty"`
}

// MaxSeverity returns the highest severity in the report, or SeverityLow
// for an empty report.
func (r WeaknessReport) MaxSeverity() Severity {
	max := SeverityLow
	for _, w := range r.Weaknesses {
		if w.Severity > max {
			max = w.Severity
		}
	}
	return max
}

// Rejects reports whether any finding reaches the given threshold, which is
// the critic's signal to route the pipeline back to refinement.
func (r WeaknessReport) Rejects(threshold Severity) bool {
	for _, w := range r.Weaknesses {
		if w.Severity >= threshold {
			return true
		}
	}
	return false
}

// Warning marks a degraded output with a machine-readable reason code so
// callers can distinguish complete results from degraded ones
// programmatically. Details carries optional structured context such as the
// service errors that caused the degradation.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Details []any  `json:"details,omitempty"`
}

// Warning reason codes.
const (
	WarnBudgetExceeded   = "budget_exceeded"
	WarnRetriesExhausted = "retries_exhausted"
	WarnStaleData        = "stale_data"
	WarnTruncated        = "truncated"
	WarnParseFailure     = "parse_failure"
	WarnPhaseFailed      = "phase_failed"
	WarnCancelled        = "cancelled"
)

// BuildError is a structured, non-fatal error record attached to a degraded
// build result. The pipeline never surfaces raw failures to the caller.
type BuildError struct {
	Phase   Phase  `json:"phase"`
	Agent   string `json:"agent,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e BuildError) Error() string {
	return fmt.Sprintf("build error [%s] in phase %s: %s", e.Code, e.Phase, e.Message)
}
