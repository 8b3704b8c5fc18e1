package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/teamsmith/agent"
	"github.com/hupe1980/teamsmith/core"
	"github.com/hupe1980/teamsmith/logging"
	"github.com/hupe1980/teamsmith/model"
	"github.com/hupe1980/teamsmith/pool"
	"github.com/hupe1980/teamsmith/session"
)

// ToolSource provides tool execution and discovery for the build roles.
// *pool.Pool satisfies this interface.
type ToolSource interface {
	agent.ToolCaller
	ListTools(ctx context.Context, service string) ([]pool.ToolInfo, error)
}

// Options configures an Orchestrator instance.
type Options struct {
	// MaxRefinements bounds how many times a rejected design may be revised
	// before the pipeline terminates with the best design so far. Negative
	// values disable refinement.
	MaxRefinements int

	// SeverityThreshold is the minimum finding severity that routes the
	// pipeline back to refinement.
	SeverityThreshold core.Severity

	// BudgetTokens terminates the pipeline early once total token usage
	// reaches this value. Zero means unlimited.
	BudgetTokens int

	// BudgetCost terminates the pipeline early once the estimated cost
	// reaches this value in USD. Zero means unlimited.
	BudgetCost float64

	// Logger receives pipeline diagnostics. Defaults to a no-op logger.
	Logger logging.Logger

	// Emitter broadcasts progress events to subscribers. Optional; events
	// are always recorded on the session state regardless.
	Emitter *core.Emitter

	// Store persists the final session state when set.
	Store session.Store

	// Role configurations. Defaults come from the agent package.
	Architect  agent.Config
	Calculator agent.Config
	Critic     agent.Config
	Refiner    agent.Config
}

// Request describes one team build.
type Request struct {
	// SessionID identifies the build; a fresh ID is generated when empty.
	SessionID string
	// Format names the competitive ruleset, for example "gen9ou".
	Format string
	// Constraints are free-form requirements the design must honor, such as
	// "include Kingambit" or "no choice items".
	Constraints []string
}

// BuildResult is the artifact handed back to the caller. Degraded results
// carry warnings and structured errors alongside the best partial output.
type BuildResult struct {
	SessionID  string               `json:"session_id"`
	Team       core.TeamDesign      `json:"team"`
	Matchups   core.MatchupAnalysis `json:"matchups"`
	Weaknesses core.WeaknessReport  `json:"weaknesses"`
	Usage      core.UsageSnapshot   `json:"usage"`
	Events     []core.Event         `json:"events,omitempty"`
	Warnings   []core.Warning       `json:"_warnings,omitempty"`
	Errors     []core.BuildError    `json:"errors,omitempty"`
	Degraded   bool                 `json:"degraded"`
}

// Orchestrator drives the phase state machine for team builds. It is safe
// for concurrent use; every build owns its own session state.
type Orchestrator struct {
	llm   model.Model
	tools ToolSource
	opts  Options
}

// New creates an orchestrator with sensible defaults: two refinement
// cycles, a high severity threshold and no budget limits.
func New(llm model.Model, tools ToolSource, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		MaxRefinements:    2,
		SeverityThreshold: core.SeverityHigh,
		Logger:            logging.NoOpLogger{},
		Architect:         agent.ArchitectConfig(),
		Calculator:        agent.CalculatorConfig(),
		Critic:            agent.CriticConfig(),
		Refiner:           agent.RefinerConfig(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.MaxRefinements < 0 {
		opts.MaxRefinements = 0
	}

	return &Orchestrator{
		llm:   llm,
		tools: tools,
		opts:  opts,
	}
}

// BuildTeam executes the full pipeline for one request.
//
// The returned error is non-nil only when no phase produced any output;
// every other failure mode yields a degraded BuildResult whose Warnings and
// Errors explain what went wrong.
func (o *Orchestrator) BuildTeam(ctx context.Context, req Request) (*BuildResult, error) {
	state := core.NewSessionState(req.SessionID, core.NewTokenUsage())

	r := &run{
		o:     o,
		req:   req,
		state: state,
		sink:  &sink{state: state, emitter: o.opts.Emitter},
		defs:  make(map[string][]model.ToolDefinition),
	}

	o.opts.Logger.Info("build started",
		"session", state.ID,
		"format", req.Format,
	)

	r.loop(ctx)

	r.sink.Emit(core.NewCompleteEvent(state.ID, state.Degraded()))

	if o.opts.Store != nil {
		if err := o.opts.Store.Save(state); err != nil {
			o.opts.Logger.Warn("failed to persist session", "session", state.ID, "error", err)
		}
	}

	if state.Team.IsEmpty() {
		o.opts.Logger.Error("build produced no design", "session", state.ID)

		return nil, fmt.Errorf("build %s produced no design: %w", state.ID, buildFailure(state))
	}

	o.opts.Logger.Info("build finished",
		"session", state.ID,
		"degraded", state.Degraded(),
		"refinements", state.Refinements,
		"total_tokens", state.Usage.Snapshot().TotalTokens,
	)

	return &BuildResult{
		SessionID:  state.ID,
		Team:       state.Team,
		Matchups:   state.Matchups,
		Weaknesses: state.Weaknesses,
		Usage:      state.Usage.Snapshot(),
		Events:     state.Events,
		Warnings:   state.Warnings,
		Errors:     state.Errors,
		Degraded:   state.Degraded(),
	}, nil
}

// buildFailure summarizes the recorded errors for the terminal failure case.
func buildFailure(state *core.SessionState) error {
	if len(state.Errors) > 0 {
		return state.Errors[len(state.Errors)-1]
	}
	return errors.New("no phase completed")
}

// sink records every event on the session state and forwards it to the
// optional emitter. The orchestrator goroutine is the only producer.
type sink struct {
	state   *core.SessionState
	emitter *core.Emitter
}

func (s *sink) Emit(ev core.Event) {
	s.state.RecordEvent(ev)
	if s.emitter != nil {
		s.emitter.Emit(ev)
	}
}

// run holds the per-build mutable pieces so Orchestrator itself stays
// stateless across concurrent builds.
type run struct {
	o     *Orchestrator
	req   Request
	state *core.SessionState
	sink  *sink
	defs  map[string][]model.ToolDefinition
}

// loop advances the phase state machine until the pipeline reaches Done or
// a terminating condition (budget, cancellation, unrecoverable failure).
func (r *run) loop(ctx context.Context) {
	for r.state.Phase != core.PhaseDone {
		if err := ctx.Err(); err != nil {
			r.state.AddWarning(core.WarnCancelled, err.Error())

			return
		}

		if reason, exceeded := r.budgetExceeded(); exceeded {
			r.state.AddWarning(core.WarnBudgetExceeded, reason)
			r.sink.Emit(core.NewBudgetWarningEvent(r.state.ID, r.state.Phase, r.state.Usage.Snapshot()))

			r.o.opts.Logger.Warn("budget exceeded, terminating early",
				"session", r.state.ID,
				"phase", r.state.Phase.String(),
				"reason", reason,
			)

			return
		}

		next, err := r.step(ctx)
		if err != nil {
			// step already recorded the structured error; cancellation is a
			// warning rather than a failure.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				r.state.AddWarning(core.WarnCancelled, err.Error())
			}

			return
		}

		r.state.Phase = next
	}
}

// step runs the agent bound to the current phase and returns the next phase.
func (r *run) step(ctx context.Context) (core.Phase, error) {
	switch r.state.Phase {
	case core.PhaseArchitecture:
		return r.architecture(ctx)
	case core.PhaseCalculation:
		return r.calculation(ctx)
	case core.PhaseCritique:
		return r.critique(ctx)
	case core.PhaseRefinement:
		return r.refinement(ctx)
	default:
		return core.PhaseDone, fmt.Errorf("unexpected phase %s", r.state.Phase)
	}
}

func (r *run) budgetExceeded() (string, bool) {
	snap := r.state.Usage.Snapshot()

	if r.o.opts.BudgetTokens > 0 && snap.TotalTokens >= r.o.opts.BudgetTokens {
		return fmt.Sprintf("token budget reached: %d of %d", snap.TotalTokens, r.o.opts.BudgetTokens), true
	}
	if r.o.opts.BudgetCost > 0 && snap.EstimatedCost >= r.o.opts.BudgetCost {
		return fmt.Sprintf("cost budget reached: %.4f of %.4f USD", snap.EstimatedCost, r.o.opts.BudgetCost), true
	}

	return "", false
}

// phaseLogger is the domain helper of *logging.BuildLogger; phase outcomes
// are routed through it when the configured logger provides it.
type phaseLogger interface {
	LogPhase(phase string, dur time.Duration, success bool, err error)
}

// invoke runs one engine for the current phase with full event bookkeeping.
func (r *run) invoke(ctx context.Context, cfg agent.Config, task string) (agent.Result, error) {
	phase := r.state.Phase
	started := time.Now()

	r.sink.Emit(core.NewPhaseStartEvent(r.state.ID, phase, cfg.Name))

	eng := agent.NewEngine(cfg, r.o.llm, r.o.tools, r.state.Usage, func(o *agent.EngineOptions) {
		o.Logger = r.o.opts.Logger
		o.Emitter = r.sink
		o.SessionID = r.state.ID
		o.Phase = phase
	})

	res, err := eng.Run(ctx, task, r.definitions(ctx, cfg.Service))

	r.sink.Emit(core.NewPhaseEndEvent(r.state.ID, phase, cfg.Name, err))
	r.state.RecordPhase(phase, cfg.Name, started, err)

	if pl, ok := r.o.opts.Logger.(phaseLogger); ok {
		pl.LogPhase(phase.String(), time.Since(started), err == nil, err)
	}

	if err != nil {
		r.state.AddError(phase, cfg.Name, core.WarnPhaseFailed, err.Error())

		return res, err
	}

	if res.Truncated {
		r.state.AddWarning(core.WarnTruncated,
			fmt.Sprintf("agent %s hit the tool call ceiling of %d", cfg.Name, cfg.MaxToolCalls))
	}
	if res.Stale {
		details := make([]any, 0, len(res.StaleErrors))
		for _, serr := range res.StaleErrors {
			details = append(details, serr)
		}
		r.state.AddWarning(core.WarnStaleData,
			fmt.Sprintf("agent %s worked with cached tool data", cfg.Name), details...)
	}

	return res, nil
}

// definitions fetches (and caches per build) the tool catalog for a service.
// Discovery failures degrade to a tool-less conversation.
func (r *run) definitions(ctx context.Context, service string) []model.ToolDefinition {
	if defs, ok := r.defs[service]; ok {
		return defs
	}

	infos, err := r.o.tools.ListTools(ctx, service)
	if err != nil {
		r.o.opts.Logger.Warn("tool discovery failed",
			"session", r.state.ID,
			"service", service,
			"error", err,
		)
		r.defs[service] = nil

		return nil
	}

	defs := make([]model.ToolDefinition, 0, len(infos))
	for _, info := range infos {
		defs = append(defs, model.ToolDefinition{
			Name:        info.Name,
			Description: info.Description,
			Parameters:  info.Schema,
		})
	}
	r.defs[service] = defs

	return defs
}

func (r *run) architecture(ctx context.Context) (core.Phase, error) {
	cfg := r.o.opts.Architect

	res, err := r.invoke(ctx, cfg, r.architectTask())
	if err != nil {
		return core.PhaseDone, err
	}

	design, ok := agent.ExtractTeamDesign(res.Text)
	if !ok {
		r.state.AddError(core.PhaseArchitecture, cfg.Name, core.WarnParseFailure, "architect produced no usable design")

		return core.PhaseDone, errors.New("architect produced no usable design")
	}
	if err := design.Validate(); err != nil {
		r.state.AddError(core.PhaseArchitecture, cfg.Name, core.WarnParseFailure, err.Error())

		return core.PhaseDone, fmt.Errorf("invalid design: %w", err)
	}

	r.state.Team = design

	return core.PhaseCalculation, nil
}

func (r *run) calculation(ctx context.Context) (core.Phase, error) {
	cfg := r.o.opts.Calculator

	res, err := r.invoke(ctx, cfg, r.calculatorTask())
	if err != nil {
		// The design still stands; let the critic judge it unanalyzed.
		return core.PhaseCritique, nil
	}

	analysis, ok := agent.ExtractMatchupAnalysis(res.Text)
	if !ok {
		r.state.AddWarning(core.WarnParseFailure, "calculator output was not a usable analysis")

		return core.PhaseCritique, nil
	}

	r.state.Matchups = analysis

	return core.PhaseCritique, nil
}

func (r *run) critique(ctx context.Context) (core.Phase, error) {
	cfg := r.o.opts.Critic

	res, err := r.invoke(ctx, cfg, r.criticTask())
	if err != nil {
		// An unevaluated design is better than no design; accept as-is.
		return core.PhaseDone, nil
	}

	report, ok := agent.ExtractWeaknessReport(res.Text)
	if !ok {
		r.state.AddWarning(core.WarnParseFailure, "critic output was not a usable report")

		return core.PhaseDone, nil
	}

	r.state.Weaknesses = report

	if !report.Rejects(r.o.opts.SeverityThreshold) {
		return core.PhaseDone, nil
	}

	if r.state.Refinements >= r.o.opts.MaxRefinements {
		r.state.AddWarning(core.WarnRetriesExhausted,
			fmt.Sprintf("design still rejected after %d refinement cycles", r.state.Refinements))

		r.o.opts.Logger.Warn("refinement budget exhausted",
			"session", r.state.ID,
			"refinements", r.state.Refinements,
		)

		return core.PhaseDone, nil
	}

	r.state.Refinements++

	return core.PhaseRefinement, nil
}

func (r *run) refinement(ctx context.Context) (core.Phase, error) {
	cfg := r.o.opts.Refiner

	res, err := r.invoke(ctx, cfg, r.refinerTask())
	if err != nil {
		// Keep the best design so far rather than looping on a dead agent.
		return core.PhaseDone, nil
	}

	design, ok := agent.ExtractTeamDesign(res.Text)
	if !ok || design.Validate() != nil {
		r.state.AddWarning(core.WarnParseFailure, "refiner produced no usable revision, keeping previous design")

		return core.PhaseDone, nil
	}

	r.state.Team = design

	return core.PhaseCritique, nil
}

func (r *run) architectTask() string {
	var b strings.Builder

	format := r.req.Format
	if format == "" {
		format = "gen9ou"
	}

	fmt.Fprintf(&b, "Design a team for the %s format.", format)

	if len(r.req.Constraints) > 0 {
		b.WriteString("\nConstraints:")
		for _, c := range r.req.Constraints {
			b.WriteString("\n- ")
			b.WriteString(c)
		}
	}

	return b.String()
}

func (r *run) calculatorTask() string {
	return "Analyze the following team design against common threats.\n\nTeam:\n" + mustJSON(r.state.Team)
}

func (r *run) criticTask() string {
	task := "Review the following team design and matchup analysis.\n\nTeam:\n" + mustJSON(r.state.Team)
	if !r.state.Matchups.IsEmpty() {
		task += "\n\nMatchup analysis:\n" + mustJSON(r.state.Matchups)
	} else {
		task += "\n\nNo matchup analysis is available; judge the design on its own."
	}

	return task
}

func (r *run) refinerTask() string {
	return "Revise the following team to address the listed weaknesses.\n\nTeam:\n" + mustJSON(r.state.Team) +
		"\n\nWeaknesses:\n" + mustJSON(r.state.Weaknesses)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}

	return string(b)
}
