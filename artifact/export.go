package artifact

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/teamsmith/core"
)

// Artifact IDs used by the façade when persisting build outputs.
const (
	IDTeamJSON  = "team.json"
	IDTeamPaste = "team.txt"
)

// ExportPaste renders a team design in the text format used by team pastes:
// one block per set with item, ability, tera type, nature, EV spread and
// moves.
func ExportPaste(design core.TeamDesign) string {
	var b strings.Builder

	for i, set := range design.Pokemon {
		if i > 0 {
			b.WriteString("\n")
		}
		writeSet(&b, set)
	}

	return b.String()
}

func writeSet(b *strings.Builder, set core.PokemonSet) {
	b.WriteString(set.Species)
	if set.Item != "" {
		b.WriteString(" @ ")
		b.WriteString(set.Item)
	}
	b.WriteString("\n")

	if set.Ability != "" {
		fmt.Fprintf(b, "Ability: %s\n", set.Ability)
	}
	if set.TeraType != "" {
		fmt.Fprintf(b, "Tera Type: %s\n", set.TeraType)
	}
	if spread := formatSpread(set.EVs); spread != "" {
		fmt.Fprintf(b, "EVs: %s\n", spread)
	}
	if set.Nature != "" {
		fmt.Fprintf(b, "%s Nature\n", set.Nature)
	}
	if spread := formatSpread(set.IVs); spread != "" {
		fmt.Fprintf(b, "IVs: %s\n", spread)
	}

	for _, move := range set.Moves {
		fmt.Fprintf(b, "- %s\n", move)
	}
}

// statOrder is the conventional stat ordering in exported spreads.
var statOrder = []string{"hp", "atk", "def", "spa", "spd", "spe"}

var statLabels = map[string]string{
	"hp":  "HP",
	"atk": "Atk",
	"def": "Def",
	"spa": "SpA",
	"spd": "SpD",
	"spe": "Spe",
}

func formatSpread(stats map[string]int) string {
	if len(stats) == 0 {
		return ""
	}

	parts := make([]string, 0, len(stats))
	seen := make(map[string]bool, len(stats))

	for _, stat := range statOrder {
		if v, ok := stats[stat]; ok {
			parts = append(parts, fmt.Sprintf("%d %s", v, statLabels[stat]))
			seen[stat] = true
		}
	}

	// Unknown stat keys go last, alphabetically, rather than being dropped.
	rest := make([]string, 0)
	for stat := range stats {
		if !seen[stat] {
			rest = append(rest, stat)
		}
	}
	sort.Strings(rest)
	for _, stat := range rest {
		parts = append(parts, fmt.Sprintf("%d %s", stats[stat], stat))
	}

	return strings.Join(parts, " / ")
}
