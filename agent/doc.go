// Package agent implements the bounded tool-calling loop that each build
// role runs against a language model.
//
// An Engine owns a single conversation: it sends the role's system prompt
// and task to the model, executes the tool calls the model requests through
// a ToolCaller (subject to the role's allow-list and call ceiling), feeds
// the results back, and returns the model's final text. Per-role Config
// values (architect, calculator, critic, refiner) pin down prompt, tool
// allow-list and ceiling; the orchestrator composes engines into phases.
//
// Token usage from every model response is added to the shared counter
// before the response is inspected, so budget accounting stays accurate
// even when a turn later fails.
package agent
