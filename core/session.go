package core

import "time"

// PhaseRecord logs one completed phase execution.
type PhaseRecord struct {
	Phase   Phase     `json:"phase"`
	Agent   string    `json:"agent,omitempty"`
	Started time.Time `json:"started"`
	Ended   time.Time `json:"ended"`
	Error   string    `json:"error,omitempty"`
}

// SessionState is the mutable aggregate owned exclusively by the
// orchestrator for the lifetime of one build request. It is mutated only by
// agent outputs merged back by the orchestrator and is never accessed
// concurrently, so it carries no locking. Usage is the exception: the
// counter is shared by reference with agents and synchronizes internally.
type SessionState struct {
	ID          string          `json:"id"`
	Phase       Phase           `json:"phase"`
	Team        TeamDesign      `json:"team"`
	Matchups    MatchupAnalysis `json:"matchups"`
	Weaknesses  WeaknessReport  `json:"weaknesses"`
	Usage       *TokenUsage     `json:"-"`
	Completed   []PhaseRecord   `json:"completed,omitempty"`
	Events      []Event         `json:"events,omitempty"`
	Warnings    []Warning       `json:"_warnings,omitempty"`
	Errors      []BuildError    `json:"errors,omitempty"`
	Refinements int             `json:"refinements"`
	Created     time.Time       `json:"created"`
}

// NewSessionState creates a fresh session positioned at the architecture
// phase. A nil usage counter is replaced with a default one.
func NewSessionState(id string, usage *TokenUsage) *SessionState {
	if id == "" {
		id = NewID()
	}
	if usage == nil {
		usage = NewTokenUsage()
	}
	return &SessionState{
		ID:      id,
		Phase:   PhaseArchitecture,
		Usage:   usage,
		Created: time.Now().UTC(),
	}
}

// RecordPhase appends a completed phase record.
func (s *SessionState) RecordPhase(phase Phase, agent string, started time.Time, err error) {
	rec := PhaseRecord{Phase: phase, Agent: agent, Started: started, Ended: time.Now().UTC()}
	if err != nil {
		rec.Error = err.Error()
	}
	s.Completed = append(s.Completed, rec)
}

// RecordEvent appends an event to the session's ordered history.
func (s *SessionState) RecordEvent(ev Event) { s.Events = append(s.Events, ev) }

// AddWarning attaches a degraded-result marker.
func (s *SessionState) AddWarning(code, message string, details ...any) {
	s.Warnings = append(s.Warnings, Warning{Code: code, Message: message, Details: details})
}

// AddError attaches a structured non-fatal error.
func (s *SessionState) AddError(phase Phase, agent, code, message string) {
	s.Errors = append(s.Errors, BuildError{Phase: phase, Agent: agent, Code: code, Message: message})
}

// Degraded reports whether the session accumulated any warnings or errors.
func (s *SessionState) Degraded() bool { return len(s.Warnings) > 0 || len(s.Errors) > 0 }

// Clone returns a deep copy safe for retention after the build completes.
// The Usage pointer is shared; its counters are final once the build ends.
func (s *SessionState) Clone() *SessionState {
	clone := *s
	clone.Team.Pokemon = append([]PokemonSet(nil), s.Team.Pokemon...)
	clone.Completed = append([]PhaseRecord(nil), s.Completed...)
	clone.Events = append([]Event(nil), s.Events...)
	clone.Warnings = append([]Warning(nil), s.Warnings...)
	clone.Errors = append([]BuildError(nil), s.Errors...)
	if s.Matchups.Summaries != nil {
		clone.Matchups.Summaries = make(map[string]MatchupSummary, len(s.Matchups.Summaries))
		for k, v := range s.Matchups.Summaries {
			clone.Matchups.Summaries[k] = v
		}
	}
	clone.Matchups.Coverage = append([]string(nil), s.Matchups.Coverage...)
	clone.Matchups.Concerns = append([]string(nil), s.Matchups.Concerns...)
	if s.Matchups.EVNotes != nil {
		clone.Matchups.EVNotes = make(map[string]string, len(s.Matchups.EVNotes))
		for k, v := range s.Matchups.EVNotes {
			clone.Matchups.EVNotes[k] = v
		}
	}
	clone.Weaknesses.Weaknesses = append([]Weakness(nil), s.Weaknesses.Weaknesses...)
	return &clone
}
