package model

import (
	"context"
	"fmt"
	"sync"
)

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider
// branching.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string of arguments
}

// ToolDefinition declaratively exposes a callable tool to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset
// expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Message is one transcript entry. Role is "user", "assistant" or "tool".
// Assistant messages may carry tool call requests; tool messages answer a
// specific call identified by ToolCallID.
type Message struct {
	Role       string     `json:"role"`
	Text       string     `json:"text,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// Request captures the normalized model input produced by an agent loop:
// system prompt, transcript and the allowed tool schema.
type Request struct {
	System   string           `json:"system"`
	Messages []Message        `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
}

// Usage captures token statistics for a single response. Providers must
// populate it on every response; the agent loop adds it to the session
// counters immediately, not at loop end.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Response is a terminal answer or a set of tool call requests, never both
// empty. FinishReason follows provider conventions ("stop", "tool_calls",
// "length", ...).
type Response struct {
	Text         string     `json:"text,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason"`
	Usage        Usage      `json:"usage"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface agents use to drive generation. Generate
// blocks for the duration of one provider round trip and must respect
// context cancellation.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight scripted Model useful for tests and examples.
// Responses are returned in the order they were enqueued; requests are
// recorded for assertions. Safe for concurrent use.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses []Response
	errs      []error
	requests  []Request
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info: Info{Name: name, Provider: "mock", SupportsTools: true},
	}
}

// Enqueue appends a scripted response. A zero Usage is replaced with a
// small default so budget accounting still moves.
func (m *MockModel) Enqueue(resp Response) *MockModel {
	if resp.Usage == (Usage{}) {
		resp.Usage = Usage{PromptTokens: 10, CompletionTokens: 5}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	m.errs = append(m.errs, nil)
	return m
}

// EnqueueText is shorthand for a terminal text answer.
func (m *MockModel) EnqueueText(text string) *MockModel {
	return m.Enqueue(Response{Text: text, FinishReason: "stop"})
}

// EnqueueToolCalls is shorthand for a response requesting tool invocations.
func (m *MockModel) EnqueueToolCalls(calls ...ToolCall) *MockModel {
	return m.Enqueue(Response{ToolCalls: calls, FinishReason: "tool_calls"})
}

// EnqueueError makes the next Generate call fail.
func (m *MockModel) EnqueueError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, Response{})
	m.errs = append(m.errs, err)
	return m
}

// Generate implements Model by replaying the scripted queue.
func (m *MockModel) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if len(m.responses) == 0 {
		return nil, fmt.Errorf("mock model: no scripted response for request %d", len(m.requests))
	}
	resp := m.responses[0]
	err := m.errs[0]
	m.responses = m.responses[1:]
	m.errs = m.errs[1:]
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Requests returns a copy of all requests seen so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
