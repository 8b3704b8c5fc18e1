package agent

import (
	"testing"

	"github.com/hupe1980/teamsmith/core"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{
			name: "bare object",
			text: `{"a": 1}`,
			want: `{"a": 1}`,
			ok:   true,
		},
		{
			name: "object surrounded by prose",
			text: "Here is the team:\n{\"a\": 1}\nLet me know!",
			want: `{"a": 1}`,
			ok:   true,
		},
		{
			name: "fenced code block",
			text: "```json\n{\"a\": {\"b\": 2}}\n```",
			want: `{"a": {"b": 2}}`,
			ok:   true,
		},
		{
			name: "no object",
			text: "I could not produce a team.",
			ok:   false,
		},
		{
			name: "unbalanced braces",
			text: `{"a": 1`,
			ok:   false,
		},
		{
			name: "empty",
			text: "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.text)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractTeamDesign(t *testing.T) {
	text := "Here is my design:\n" +
		`{"pokemon": [{"species": "Kingambit", "item": "Leftovers", "moves": ["Kowtow Cleave"]}], "game_plan": "sweep late"}`

	design, ok := ExtractTeamDesign(text)
	if !ok {
		t.Fatal("expected a design")
	}
	if len(design.Pokemon) != 1 || design.Pokemon[0].Species != "Kingambit" {
		t.Errorf("unexpected design: %+v", design)
	}
	if design.GamePlan != "sweep late" {
		t.Errorf("game plan = %q", design.GamePlan)
	}
}

func TestExtractTeamDesignRejectsUnrelatedObject(t *testing.T) {
	if _, ok := ExtractTeamDesign(`{"verdict": "accept"}`); ok {
		t.Error("object without pokemon array should not decode as a design")
	}
	if _, ok := ExtractTeamDesign(`{"pokemon": []}`); ok {
		t.Error("empty team should not count as a design")
	}
}

func TestExtractMatchupAnalysis(t *testing.T) {
	text := `{"summaries": {"Kingambit": {"species": "Kingambit", "summary": "wins vs stall"}}, "concerns": ["weak to fighting"]}`

	analysis, ok := ExtractMatchupAnalysis(text)
	if !ok {
		t.Fatal("expected an analysis")
	}
	if len(analysis.Concerns) != 1 {
		t.Errorf("concerns = %v", analysis.Concerns)
	}
	if _, exists := analysis.Summaries["Kingambit"]; !exists {
		t.Error("missing summary entry")
	}

	if _, ok := ExtractMatchupAnalysis(`{"pokemon": []}`); ok {
		t.Error("object without analysis fields should not decode")
	}
}

func TestExtractWeaknessReport(t *testing.T) {
	text := "Verdict below.\n" +
		`{"weaknesses": [{"target": "Great Tusk", "severity": "critical", "note": "outspeeds entire team"}], "verdict": "reject"}`

	report, ok := ExtractWeaknessReport(text)
	if !ok {
		t.Fatal("expected a report")
	}
	if report.Verdict != "reject" {
		t.Errorf("verdict = %q", report.Verdict)
	}
	if report.MaxSeverity() != core.SeverityCritical {
		t.Errorf("max severity = %v", report.MaxSeverity())
	}

	// Unknown severity names degrade to low instead of failing the decode.
	report, ok = ExtractWeaknessReport(`{"weaknesses": [{"target": "x", "severity": "whatever"}], "verdict": "accept"}`)
	if !ok {
		t.Fatal("expected a report")
	}
	if report.MaxSeverity() != core.SeverityLow {
		t.Errorf("max severity = %v", report.MaxSeverity())
	}

	if _, ok := ExtractWeaknessReport(`{"coverage": []}`); ok {
		t.Error("object without verdict or weaknesses should not decode")
	}
}
