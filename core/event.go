package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies build pipeline progress notifications. The set is
// closed; consumers may switch exhaustively.
type EventType string

const (
	// EventPhaseStart signals a phase beginning execution.
	EventPhaseStart EventType = "phase.start"
	// EventPhaseEnd signals a phase finishing (successfully or not).
	EventPhaseEnd EventType = "phase.end"
	// EventToolCall signals an agent invoking an external tool.
	EventToolCall EventType = "tool.call"
	// EventToolResult signals the outcome of a tool invocation.
	EventToolResult EventType = "tool.result"
	// EventAgentError signals a recoverable agent-level error.
	EventAgentError EventType = "agent.error"
	// EventBudgetWarning signals the token/cost budget being approached or hit.
	EventBudgetWarning EventType = "budget.warning"
	// EventComplete signals pipeline termination.
	EventComplete EventType = "complete"
)

// Event is an immutable progress record. Events are append-only and strictly
// time-ordered within a session. Payload values should be treated as
// read-only after emission.
type Event struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Type      EventType      `json:"type"`
	Phase     Phase          `json:"phase"`
	Agent     string         `json:"agent,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewID generates a new unique identifier for events and sessions.
func NewID() string { return uuid.NewString() }

// NewEvent creates a bare event for a session. Prefer the typed constructors
// for common categories.
func NewEvent(sessionID string, typ EventType, phase Phase) Event {
	return Event{
		ID:        NewID(),
		SessionID: sessionID,
		Type:      typ,
		Phase:     phase,
		Timestamp: time.Now().UTC(),
	}
}

// NewPhaseStartEvent marks a phase beginning under the named agent.
func NewPhaseStartEvent(sessionID string, phase Phase, agent string) Event {
	e := NewEvent(sessionID, EventPhaseStart, phase)
	e.Agent = agent
	return e
}

// NewPhaseEndEvent marks a phase ending. A non-nil err is recorded in the
// payload without failing the event.
func NewPhaseEndEvent(sessionID string, phase Phase, agent string, err error) Event {
	e := NewEvent(sessionID, EventPhaseEnd, phase)
	e.Agent = agent
	if err != nil {
		e.Payload = map[string]any{"error": err.Error()}
	}
	return e
}

// NewToolCallEvent records an agent requesting a named tool on a service.
func NewToolCallEvent(sessionID string, phase Phase, agent, service, tool string) Event {
	e := NewEvent(sessionID, EventToolCall, phase)
	e.Agent = agent
	e.Payload = map[string]any{"service": service, "tool": tool}
	return e
}

// NewToolResultEvent records the outcome of a tool invocation.
func NewToolResultEvent(sessionID string, phase Phase, agent, service, tool string, ok bool, detail string) Event {
	e := NewEvent(sessionID, EventToolResult, phase)
	e.Agent = agent
	e.Payload = map[string]any{"service": service, "tool": tool, "ok": ok}
	if detail != "" {
		e.Payload["detail"] = detail
	}
	return e
}

// NewAgentErrorEvent records a recoverable agent-level error.
func NewAgentErrorEvent(sessionID string, phase Phase, agent string, err error) Event {
	e := NewEvent(sessionID, EventAgentError, phase)
	e.Agent = agent
	if err != nil {
		e.Payload = map[string]any{"error": err.Error()}
	}
	return e
}

// NewBudgetWarningEvent records the global budget being exceeded.
func NewBudgetWarningEvent(sessionID string, phase Phase, usage UsageSnapshot) Event {
	e := NewEvent(sessionID, EventBudgetWarning, phase)
	e.Payload = map[string]any{
		"total_tokens":   usage.TotalTokens,
		"estimated_cost": usage.EstimatedCost,
	}
	return e
}

// NewCompleteEvent marks pipeline termination. Degraded indicates the result
// carries warnings or structured errors.
func NewCompleteEvent(sessionID string, degraded bool) Event {
	e := NewEvent(sessionID, EventComplete, PhaseDone)
	e.Payload = map[string]any{"degraded": degraded}
	return e
}
