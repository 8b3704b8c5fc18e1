package core

import "sync"

// UsageSnapshot is a point-in-time copy of the token counters.
type UsageSnapshot struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	EstimatedCost    float64 `json:"estimated_cost"`
}

// UsageOptions configures a TokenUsage counter.
type UsageOptions struct {
	// PromptRate is the estimated cost per 1000 prompt tokens.
	PromptRate float64
	// CompletionRate is the estimated cost per 1000 completion tokens.
	CompletionRate float64
}

// TokenUsage tracks cumulative token consumption and estimated cost for one
// build session. Counters are monotonically increasing and shared by
// reference across all agents in the session, so updates are serialized with
// a mutex. Budget checks between phases read via Snapshot.
type TokenUsage struct {
	mu               sync.Mutex
	promptTokens     int
	completionTokens int
	promptRate       float64
	completionRate   float64
}

// NewTokenUsage creates a usage counter. Default rates approximate current
// provider pricing and only yield an estimate.
func NewTokenUsage(optFns ...func(o *UsageOptions)) *TokenUsage {
	opts := UsageOptions{
		PromptRate:     0.003,
		CompletionRate: 0.015,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &TokenUsage{promptRate: opts.PromptRate, completionRate: opts.CompletionRate}
}

// Add records usage reported by a single provider call. Negative deltas are
// ignored to preserve monotonicity.
func (u *TokenUsage) Add(promptTokens, completionTokens int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if promptTokens > 0 {
		u.promptTokens += promptTokens
	}
	if completionTokens > 0 {
		u.completionTokens += completionTokens
	}
}

// Snapshot returns a consistent copy of the counters.
func (u *TokenUsage) Snapshot() UsageSnapshot {
	u.mu.Lock()
	defer u.mu.Unlock()
	return UsageSnapshot{
		PromptTokens:     u.promptTokens,
		CompletionTokens: u.completionTokens,
		TotalTokens:      u.promptTokens + u.completionTokens,
		EstimatedCost:    float64(u.promptTokens)/1000*u.promptRate + float64(u.completionTokens)/1000*u.completionRate,
	}
}
