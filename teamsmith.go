// Package teamsmith provides a high-level façade over the orchestrator,
// connection pool and event plumbing for building competitive Pokemon teams
// with cooperating LLM agents. Most applications interact with this package
// by:
//  1. Creating a TeamSmith via New() with a model and a tool service dialer
//  2. Subscribing to progress events (optional)
//  3. Calling BuildTeam and consuming the returned artifact
//
// The façade delegates phase sequencing to orchestrator.Orchestrator while
// keeping setup ergonomics concise. Defaults are safe for local development;
// production deployments typically supply a structured logger and tuned pool
// and budget settings.
package teamsmith

import (
	"context"
	"encoding/json"

	"github.com/hupe1980/teamsmith/artifact"
	"github.com/hupe1980/teamsmith/core"
	"github.com/hupe1980/teamsmith/logging"
	"github.com/hupe1980/teamsmith/model"
	"github.com/hupe1980/teamsmith/orchestrator"
	"github.com/hupe1980/teamsmith/pool"
	"github.com/hupe1980/teamsmith/resilience"
	"github.com/hupe1980/teamsmith/session"
)

// Options configures the TeamSmith instance.
type Options struct {
	// Orchestrator tuning (refinement bound, severity threshold, budgets).
	// Zero fields keep the orchestrator defaults; set MaxRefinements to a
	// negative value to disable refinement entirely.
	Orchestrator orchestrator.Options

	// Pool tuning (size, timeouts, retry, cache).
	Pool pool.Options

	// Registry holds the per-service circuit breakers. A fresh registry is
	// created when nil.
	Registry *resilience.Registry

	// SessionStore keeps finished build state. Defaults to in-memory.
	SessionStore session.Store

	// ArtifactStore keeps the exportable build outputs. Defaults to
	// in-memory.
	ArtifactStore artifact.Store

	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// TeamSmith is the high-level façade aggregating the orchestrator, the tool
// connection pool and the event emitter.
type TeamSmith struct {
	orch      *orchestrator.Orchestrator
	pool      *pool.Pool
	emitter   *core.Emitter
	sessions  session.Store
	artifacts artifact.Store
	logger    logging.Logger
}

// New creates a TeamSmith from a model and a dialer for the external tool
// service. Unset options fall back to in-memory and no-op defaults.
func New(llm model.Model, dial pool.Dialer, optFns ...func(o *Options)) (*TeamSmith, error) {
	opts := Options{
		SessionStore:  session.NewInMemoryStore(),
		ArtifactStore: artifact.NewInMemoryStore(),
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Registry == nil {
		opts.Registry = resilience.NewRegistry()
	}
	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}
	if opts.ArtifactStore == nil {
		opts.ArtifactStore = artifact.NewInMemoryStore()
	}

	emitter := core.NewEmitter()

	p, err := pool.New(dial, func(o *pool.Options) {
		*o = mergePoolOptions(*o, opts.Pool)
		o.Registry = opts.Registry
		o.Logger = opts.Logger
	})
	if err != nil {
		return nil, err
	}

	orchOpts := opts.Orchestrator

	orch := orchestrator.New(llm, p, func(o *orchestrator.Options) {
		if orchOpts.MaxRefinements != 0 {
			o.MaxRefinements = orchOpts.MaxRefinements
		}
		if orchOpts.SeverityThreshold > 0 {
			o.SeverityThreshold = orchOpts.SeverityThreshold
		}
		o.BudgetTokens = orchOpts.BudgetTokens
		o.BudgetCost = orchOpts.BudgetCost
		o.Logger = opts.Logger
		o.Emitter = emitter
		o.Store = opts.SessionStore
		if orchOpts.Architect.Name != "" {
			o.Architect = orchOpts.Architect
		}
		if orchOpts.Calculator.Name != "" {
			o.Calculator = orchOpts.Calculator
		}
		if orchOpts.Critic.Name != "" {
			o.Critic = orchOpts.Critic
		}
		if orchOpts.Refiner.Name != "" {
			o.Refiner = orchOpts.Refiner
		}
	})

	return &TeamSmith{
		orch:      orch,
		pool:      p,
		emitter:   emitter,
		sessions:  opts.SessionStore,
		artifacts: opts.ArtifactStore,
		logger:    opts.Logger,
	}, nil
}

// mergePoolOptions overlays non-zero user settings on the pool defaults.
func mergePoolOptions(defaults, user pool.Options) pool.Options {
	out := defaults
	if user.Size > 0 {
		out.Size = user.Size
	}
	if user.AcquireTimeout > 0 {
		out.AcquireTimeout = user.AcquireTimeout
	}
	if user.CallTimeout > 0 {
		out.CallTimeout = user.CallTimeout
	}
	if user.CacheSize > 0 {
		out.CacheSize = user.CacheSize
	}
	if user.Retry.MaxRetries > 0 || user.Retry.InitialBackoff > 0 {
		out.Retry = user.Retry
	}
	return out
}

// BuildTeam runs the full build pipeline for the given request and persists
// the exportable artifacts of a successful build.
func (t *TeamSmith) BuildTeam(ctx context.Context, req orchestrator.Request) (*orchestrator.BuildResult, error) {
	res, err := t.orch.BuildTeam(ctx, req)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(res); err == nil {
		if err := t.artifacts.Save(res.SessionID, artifact.IDTeamJSON, data); err != nil {
			t.logger.Warn("failed to save json artifact", "session", res.SessionID, "error", err)
		}
	}
	if err := t.artifacts.Save(res.SessionID, artifact.IDTeamPaste, []byte(artifact.ExportPaste(res.Team))); err != nil {
		t.logger.Warn("failed to save paste artifact", "session", res.SessionID, "error", err)
	}

	return res, nil
}

// Artifact returns a stored build artifact, such as artifact.IDTeamPaste.
func (t *TeamSmith) Artifact(sessionID, artifactID string) ([]byte, error) {
	return t.artifacts.Get(sessionID, artifactID)
}

// Subscribe returns a live event stream starting at the point of
// subscription. The caller should Unsubscribe when done.
func (t *TeamSmith) Subscribe() *core.Subscription {
	return t.emitter.Subscribe()
}

// Session returns the stored state of a finished build.
func (t *TeamSmith) Session(sessionID string) (*core.SessionState, error) {
	return t.sessions.Get(sessionID)
}

// Close releases the tool connections and closes the event stream.
func (t *TeamSmith) Close() error {
	err := t.pool.Close()
	t.emitter.Close()
	return err
}
