package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/teamsmith/core"
	"github.com/hupe1980/teamsmith/logging"
	"github.com/hupe1980/teamsmith/model"
	"github.com/hupe1980/teamsmith/resilience"
)

// ToolCaller executes a single downstream tool invocation. *pool.Pool
// satisfies this interface; tests substitute fakes.
type ToolCaller interface {
	CallTool(ctx context.Context, service, tool string, args map[string]any) resilience.FetchResult
}

// Result is the outcome of one engine run.
type Result struct {
	// Text is the model's final free-text answer (usually containing JSON).
	Text string
	// ToolCalls counts the tool invocations actually executed. The call
	// ceiling additionally counts rejected requests, so ToolCalls can be
	// lower than the ceiling on a truncated run.
	ToolCalls int
	// Truncated is set when the call ceiling cut the loop short; Text then
	// holds the last model output, which may be incomplete.
	Truncated bool
	// Stale is set when at least one tool result was served from cache
	// after a live fetch failed; StaleErrors carries the failures that
	// caused each fallback.
	Stale       bool
	StaleErrors []*resilience.ServiceError
}

// EventSink receives progress events from a running engine. *core.Emitter
// satisfies it; the orchestrator wraps it to also record events on the
// session state.
type EventSink interface {
	Emit(ev core.Event)
}

// modelCallLogger and toolCallLogger are the domain logging helpers of
// *logging.BuildLogger. The engine prefers them over plain level logging
// when the configured logger provides them.
type modelCallLogger interface {
	LogModelCall(model string, tokens int, dur time.Duration, success bool, err error)
}

type toolCallLogger interface {
	LogToolCall(service, tool string, dur time.Duration, success bool, err error)
}

// EngineOptions configures an Engine instance.
type EngineOptions struct {
	Logger    logging.Logger
	Emitter   EventSink
	SessionID string
	Phase     core.Phase
}

// Engine runs one role's conversation with the model, executing requested
// tool calls through the shared ToolCaller until the model produces a final
// answer or the call ceiling is reached.
type Engine struct {
	cfg     Config
	llm     model.Model
	tools   ToolCaller
	usage   *core.TokenUsage
	logger  logging.Logger
	emitter EventSink
	session string
	phase   core.Phase
}

// NewEngine creates an engine for the given role configuration.
//
// The usage counter is shared across engines so the orchestrator can track
// spend for the whole build; it must not be nil.
func NewEngine(cfg Config, llm model.Model, tools ToolCaller, usage *core.TokenUsage, optFns ...func(o *EngineOptions)) *Engine {
	opts := EngineOptions{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if cfg.MaxToolCalls <= 0 {
		cfg.MaxToolCalls = DefaultMaxToolCalls
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Engine{
		cfg:     cfg,
		llm:     llm,
		tools:   tools,
		usage:   usage,
		logger:  opts.Logger,
		emitter: opts.Emitter,
		session: opts.SessionID,
		phase:   opts.Phase,
	}
}

// Name returns the role name of this engine.
func (e *Engine) Name() string { return e.cfg.Name }

// Run executes the conversation loop for a single task.
//
// The model is called with the role's system prompt, the task and the given
// tool definitions. Requested tool calls are executed in order; their
// results are appended to the transcript and the model is called again,
// until it answers without tool calls or the ceiling is hit. Every request
// counts against the ceiling, rejected ones included, so the loop stays
// bounded even when the model keeps asking for tools it cannot use. Usage
// is added to the shared counter immediately after every model response.
func (e *Engine) Run(ctx context.Context, task string, tools []model.ToolDefinition) (Result, error) {
	messages := []model.Message{{Role: "user", Text: task}}

	var res Result

	requested := 0

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		start := time.Now()

		resp, err := e.llm.Generate(ctx, model.Request{
			System:   e.cfg.SystemPrompt,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			e.logModelCall(time.Since(start), nil, err)
			e.emit(core.NewAgentErrorEvent(e.session, e.phase, e.cfg.Name, err))

			return res, fmt.Errorf("agent %s: model call: %w", e.cfg.Name, err)
		}

		e.usage.Add(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

		e.logModelCall(time.Since(start), resp, nil)

		if len(resp.ToolCalls) == 0 {
			res.Text = resp.Text

			return res, nil
		}

		messages = append(messages, model.Message{
			Role:      "assistant",
			Text:      resp.Text,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			if requested >= e.cfg.MaxToolCalls {
				e.logger.Warn("tool call ceiling reached",
					"agent", e.cfg.Name,
					"ceiling", e.cfg.MaxToolCalls,
				)

				res.Text = resp.Text
				res.Truncated = true

				return res, nil
			}

			requested++

			messages = append(messages, e.execute(ctx, tc, &res))
		}
	}
}

// logModelCall records one model round trip, preferring the domain helper
// when the logger provides it. resp is nil on failure.
func (e *Engine) logModelCall(dur time.Duration, resp *model.Response, err error) {
	if ml, ok := e.logger.(modelCallLogger); ok {
		tokens := 0
		if resp != nil {
			tokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens
		}

		ml.LogModelCall(e.llm.Info().Name, tokens, dur, err == nil, err)

		return
	}

	if err != nil {
		e.logger.Error("model call failed",
			"agent", e.cfg.Name,
			"duration", dur,
			"error", err,
		)

		return
	}

	e.logger.Debug("model call completed",
		"agent", e.cfg.Name,
		"duration", dur,
		"tool_calls", len(resp.ToolCalls),
		"finish_reason", resp.FinishReason,
	)
}

// execute runs one tool call and returns the tool-role message carrying its
// result. Disallowed tools and failed fetches produce error text for the
// model to recover from rather than aborting the run.
func (e *Engine) execute(ctx context.Context, tc model.ToolCall, res *Result) model.Message {
	msg := model.Message{
		Role:       "tool",
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
	}

	if !e.cfg.Allowed(tc.Name) {
		e.logger.Warn("tool not permitted",
			"agent", e.cfg.Name,
			"tool", tc.Name,
		)

		msg.Text = fmt.Sprintf("error: tool %q is not available to this agent", tc.Name)

		return msg
	}

	args := make(map[string]any)
	if tc.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
			msg.Text = fmt.Sprintf("error: invalid tool arguments: %v", err)

			return msg
		}
	}

	res.ToolCalls++

	e.emit(core.NewToolCallEvent(e.session, e.phase, e.cfg.Name, e.cfg.Service, tc.Name))

	start := time.Now()
	fetch := e.tools.CallTool(ctx, e.cfg.Service, tc.Name, args)

	e.logToolCall(tc.Name, time.Since(start), fetch)

	switch {
	case fetch.Status == resilience.FetchFailure:
		e.emit(core.NewToolResultEvent(e.session, e.phase, e.cfg.Name, e.cfg.Service, tc.Name, false, fetch.Err.Error()))

		msg.Text = fmt.Sprintf("error: %s", fetch.Err.Error())
	case fetch.IsStale():
		res.Stale = true
		res.StaleErrors = append(res.StaleErrors, fetch.Err)

		e.emit(core.NewToolResultEvent(e.session, e.phase, e.cfg.Name, e.cfg.Service, tc.Name, true, "stale"))

		msg.Text = string(fetch.Data)
	default:
		e.emit(core.NewToolResultEvent(e.session, e.phase, e.cfg.Name, e.cfg.Service, tc.Name, true, ""))

		msg.Text = string(fetch.Data)
	}

	return msg
}

// logToolCall records one tool invocation, preferring the domain helper
// when the logger provides it.
func (e *Engine) logToolCall(tool string, dur time.Duration, fetch resilience.FetchResult) {
	if tl, ok := e.logger.(toolCallLogger); ok {
		var err error
		if fetch.Err != nil {
			err = fetch.Err
		}

		tl.LogToolCall(e.cfg.Service, tool, dur, fetch.Status != resilience.FetchFailure, err)

		return
	}

	switch {
	case fetch.Status == resilience.FetchFailure:
		e.logger.Warn("tool call failed",
			"agent", e.cfg.Name,
			"service", e.cfg.Service,
			"tool", tool,
			"duration", dur,
			"error", fetch.Err,
		)
	case fetch.IsStale():
		e.logger.Warn("tool call served stale data",
			"agent", e.cfg.Name,
			"service", e.cfg.Service,
			"tool", tool,
			"error", fetch.Err,
		)
	default:
		e.logger.Debug("tool call succeeded",
			"agent", e.cfg.Name,
			"service", e.cfg.Service,
			"tool", tool,
			"duration", dur,
		)
	}
}

func (e *Engine) emit(ev core.Event) {
	if e.emitter != nil {
		e.emitter.Emit(ev)
	}
}
