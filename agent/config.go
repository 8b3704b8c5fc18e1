package agent

// DefaultMaxToolCalls bounds how many tool invocations a single engine run
// may perform before the loop is cut short.
const DefaultMaxToolCalls = 8

// Config describes one build role: its name, system prompt, the service it
// talks to, the tools it is permitted to call and its call ceiling.
//
// Configs are plain values; copy and mutate freely before constructing an
// Engine.
type Config struct {
	Name         string
	SystemPrompt string
	Service      string
	Tools        []string
	MaxToolCalls int
}

// Allowed reports whether the named tool is on this role's allow-list.
func (c Config) Allowed(tool string) bool {
	for _, t := range c.Tools {
		if t == tool {
			return true
		}
	}
	return false
}

// ArchitectConfig returns the default configuration for the architect role,
// which drafts the initial team design from usage statistics.
func ArchitectConfig() Config {
	return Config{
		Name:    "architect",
		Service: "smogon",
		SystemPrompt: "You are a competitive Pokemon team architect. Design a full team " +
			"of up to six Pokemon with items, abilities, moves and a game plan. " +
			"Respond with a single JSON object containing \"pokemon\" and \"game_plan\".",
		Tools:        []string{"get_top_pokemon"},
		MaxToolCalls: DefaultMaxToolCalls,
	}
}

// CalculatorConfig returns the default configuration for the calculator
// role, which runs damage and speed analysis against common threats.
func CalculatorConfig() Config {
	return Config{
		Name:    "calculator",
		Service: "damage-calc",
		SystemPrompt: "You are a damage calculation analyst for competitive Pokemon. " +
			"Analyze the given team against common threats using the available tools. " +
			"Respond with a single JSON object containing \"summaries\", \"coverage\", " +
			"\"concerns\" and \"ev_notes\".",
		Tools:        []string{"calculate_damage", "analyze_matchup", "get_speed_benchmarks"},
		MaxToolCalls: DefaultMaxToolCalls,
	}
}

// CriticConfig returns the default configuration for the critic role, which
// reviews a design plus its matchup analysis and renders a verdict.
func CriticConfig() Config {
	return Config{
		Name:    "critic",
		Service: "damage-calc",
		SystemPrompt: "You are a competitive Pokemon team critic. Given a team design and " +
			"its matchup analysis, identify weaknesses and rate each one low, medium, " +
			"high or critical. Respond with a single JSON object containing " +
			"\"weaknesses\" and \"verdict\" (\"accept\" or \"reject\").",
		Tools:        []string{"analyze_matchup", "get_speed_benchmarks"},
		MaxToolCalls: DefaultMaxToolCalls,
	}
}

// RefinerConfig returns the default configuration for the refiner role,
// which revises a rejected design to address the critic's findings.
func RefinerConfig() Config {
	return Config{
		Name:    "refiner",
		Service: "smogon",
		SystemPrompt: "You are a competitive Pokemon team refiner. Revise the given team " +
			"to address the listed weaknesses while preserving its core strategy. " +
			"Respond with a single JSON object containing \"pokemon\" and \"game_plan\".",
		Tools:        []string{"get_top_pokemon", "calculate_damage", "analyze_matchup", "get_speed_benchmarks"},
		MaxToolCalls: DefaultMaxToolCalls,
	}
}
