package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/teamsmith/core"
)

func TestExportPaste(t *testing.T) {
	design := core.TeamDesign{
		Pokemon: []core.PokemonSet{
			{
				Species:  "Kingambit",
				Item:     "Black Glasses",
				Ability:  "Supreme Overlord",
				TeraType: "Dark",
				Nature:   "Adamant",
				EVs:      map[string]int{"hp": 252, "atk": 252, "spd": 4},
				Moves:    []string{"Kowtow Cleave", "Sucker Punch"},
			},
			{
				Species: "Great Tusk",
				Moves:   []string{"Headlong Rush"},
			},
		},
	}

	want := `Kingambit @ Black Glasses
Ability: Supreme Overlord
Tera Type: Dark
EVs: 252 HP / 252 Atk / 4 SpD
Adamant Nature
- Kowtow Cleave
- Sucker Punch

Great Tusk
- Headlong Rush
`

	assert.Equal(t, want, ExportPaste(design))
}

func TestExportPasteEmptyTeam(t *testing.T) {
	assert.Equal(t, "", ExportPaste(core.TeamDesign{}))
}

func TestFormatSpreadUnknownStat(t *testing.T) {
	got := formatSpread(map[string]int{"spe": 252, "weight": 1})
	assert.Equal(t, "252 Spe / 1 weight", got)
}
