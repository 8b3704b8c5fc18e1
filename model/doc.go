// Package model defines the provider-agnostic abstractions for the language
// model calls driving teamsmith's agents.
//
// Core goals:
//   - Keep request/response shapes minimal and transport independent
//   - Normalize tool / function call representation (ToolDefinition, ToolCall)
//   - Guarantee usage metadata on every response so budget accounting is
//     accurate between agent invocations
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so higher layers (agents, orchestrator) remain decoupled from
// vendor SDKs.
package model
