package agent

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/teamsmith/core"
)

// ExtractJSON locates the first valid JSON object embedded in free-form
// model output. Markdown code fences around the object are tolerated.
//
// Returns the raw object text and true, or "" and false when no valid
// object is present.
func ExtractJSON(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	// Prefer the longest valid candidate so nested objects inside the
	// payload don't win over the payload itself.
	for end := len(text); end > start; end-- {
		if text[end-1] != '}' {
			continue
		}

		candidate := text[start:end]
		if gjson.Valid(candidate) {
			return candidate, true
		}
	}

	return "", false
}

// ExtractTeamDesign decodes a TeamDesign from model output. The object must
// carry a "pokemon" array; anything else is treated as absent.
func ExtractTeamDesign(text string) (core.TeamDesign, bool) {
	raw, ok := ExtractJSON(text)
	if !ok || !gjson.Get(raw, "pokemon").IsArray() {
		return core.TeamDesign{}, false
	}

	var design core.TeamDesign
	if err := json.Unmarshal([]byte(raw), &design); err != nil {
		return core.TeamDesign{}, false
	}

	return design, !design.IsEmpty()
}

// ExtractMatchupAnalysis decodes a MatchupAnalysis from model output. At
// least one of the analysis fields must be present.
func ExtractMatchupAnalysis(text string) (core.MatchupAnalysis, bool) {
	raw, ok := ExtractJSON(text)
	if !ok {
		return core.MatchupAnalysis{}, false
	}

	if !gjson.Get(raw, "summaries").Exists() &&
		!gjson.Get(raw, "coverage").Exists() &&
		!gjson.Get(raw, "concerns").Exists() &&
		!gjson.Get(raw, "ev_notes").Exists() {
		return core.MatchupAnalysis{}, false
	}

	var analysis core.MatchupAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return core.MatchupAnalysis{}, false
	}

	return analysis, !analysis.IsEmpty()
}

// ExtractWeaknessReport decodes a WeaknessReport from model output. The
// object must carry a "verdict" or a "weaknesses" array.
func ExtractWeaknessReport(text string) (core.WeaknessReport, bool) {
	raw, ok := ExtractJSON(text)
	if !ok {
		return core.WeaknessReport{}, false
	}

	if !gjson.Get(raw, "verdict").Exists() && !gjson.Get(raw, "weaknesses").Exists() {
		return core.WeaknessReport{}, false
	}

	var report core.WeaknessReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return core.WeaknessReport{}, false
	}

	return report, true
}
