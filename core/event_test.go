package core

import (
	"errors"
	"testing"
)

func TestEventConstructors(t *testing.T) {
	e := NewEvent("sess-1", EventPhaseStart, PhaseArchitecture)
	if e.ID == "" || e.SessionID != "sess-1" || e.Type != EventPhaseStart || e.Timestamp.IsZero() {
		t.Fatalf("NewEvent did not initialize fields correctly: %+v", e)
	}

	start := NewPhaseStartEvent("sess-1", PhaseCalculation, "calculator")
	if start.Agent != "calculator" || start.Phase != PhaseCalculation {
		t.Fatalf("phase start malformed: %+v", start)
	}

	end := NewPhaseEndEvent("sess-1", PhaseCritique, "critic", errors.New("boom"))
	if end.Payload["error"] != "boom" {
		t.Fatalf("phase end should carry error payload: %+v", end)
	}

	call := NewToolCallEvent("sess-1", PhaseCalculation, "calculator", "pokeapi", "calculate_damage")
	if call.Payload["service"] != "pokeapi" || call.Payload["tool"] != "calculate_damage" {
		t.Fatalf("tool call payload malformed: %+v", call)
	}

	res := NewToolResultEvent("sess-1", PhaseCalculation, "calculator", "pokeapi", "calculate_damage", false, "timeout")
	if res.Payload["ok"] != false || res.Payload["detail"] != "timeout" {
		t.Fatalf("tool result payload malformed: %+v", res)
	}

	done := NewCompleteEvent("sess-1", true)
	if done.Phase != PhaseDone || done.Payload["degraded"] != true {
		t.Fatalf("complete event malformed: %+v", done)
	}
}

func TestSessionStateRecording(t *testing.T) {
	s := NewSessionState("", nil)
	if s.ID == "" || s.Phase != PhaseArchitecture || s.Usage == nil {
		t.Fatalf("session not initialized: %+v", s)
	}

	s.AddWarning(WarnTruncated, "architect hit tool ceiling")
	s.AddError(PhaseCalculation, "calculator", "circuit_open", "pokeapi unavailable")
	if !s.Degraded() {
		t.Fatal("session with warnings and errors must report degraded")
	}

	s.RecordEvent(NewCompleteEvent(s.ID, true))
	if len(s.Events) != 1 {
		t.Fatalf("expected one recorded event, got %d", len(s.Events))
	}

	clone := s.Clone()
	clone.AddWarning("extra", "")
	if len(s.Warnings) != 1 {
		t.Fatal("clone mutation leaked into original warnings")
	}
}
