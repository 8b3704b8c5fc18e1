package commands

import (
	"encoding/json"
	"fmt"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/hupe1980/teamsmith"
	"github.com/hupe1980/teamsmith/core"
	"github.com/hupe1980/teamsmith/logging"
	"github.com/hupe1980/teamsmith/model"
	"github.com/hupe1980/teamsmith/model/anthropic"
	"github.com/hupe1980/teamsmith/model/openai"
	"github.com/hupe1980/teamsmith/orchestrator"
	"github.com/hupe1980/teamsmith/pool"
)

var (
	buildFormat      string
	buildConstraints []string
	buildSessionID   string
	buildQuiet       bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a team and print the artifact as JSON",
	Long: `Build runs the full agent pipeline (architecture, calculation, critique
and bounded refinement) against the configured model and tool service.
Progress events stream to stderr; the final artifact is written to stdout.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildFormat, "format", "f", "gen9ou", "competitive format to build for")
	buildCmd.Flags().StringArrayVar(&buildConstraints, "constraint", nil, "design constraint, repeatable")
	buildCmd.Flags().StringVar(&buildSessionID, "session", "", "session id (generated when empty)")
	buildCmd.Flags().BoolVarP(&buildQuiet, "quiet", "q", false, "suppress the progress event stream")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     parseLogLevel(level),
		Format:    cfg.Log.Format,
		Output:    os.Stderr,
		Component: "cli",
	})

	llm, err := newModel(cfg)
	if err != nil {
		return err
	}

	ts, err := teamsmith.New(llm, newDialer(cfg), func(o *teamsmith.Options) {
		o.Logger = logger
		o.Pool = pool.Options{
			Size:           cfg.Pool.Size,
			AcquireTimeout: cfg.Pool.AcquireTimeout,
			CallTimeout:    cfg.Pool.CallTimeout,
			CacheSize:      cfg.Pool.CacheSize,
		}
		o.Orchestrator = orchestrator.Options{
			MaxRefinements:    cfg.Build.MaxRefinements,
			SeverityThreshold: core.ParseSeverity(cfg.Build.SeverityThreshold),
			BudgetTokens:      cfg.Build.BudgetTokens,
			BudgetCost:        cfg.Build.BudgetCost,
		}
	})
	if err != nil {
		return err
	}
	defer ts.Close()

	done := make(chan struct{})
	if buildQuiet {
		close(done)
	} else {
		sub := ts.Subscribe()
		go func() {
			defer close(done)
			for ev := range sub.Events() {
				fmt.Fprintf(os.Stderr, "%s  %-15s %-13s %s\n",
					ev.Timestamp.Format("15:04:05.000"), ev.Type, ev.Phase, ev.Agent)
				if ev.Type == core.EventComplete {
					return
				}
			}
		}()
	}

	res, err := ts.BuildTeam(cmd.Context(), orchestrator.Request{
		SessionID:   buildSessionID,
		Format:      buildFormat,
		Constraints: buildConstraints,
	})
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	<-done

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, string(out))

	if res.Degraded {
		logger.Warn("build completed degraded",
			"session", res.SessionID,
			"warnings", len(res.Warnings),
			"errors", len(res.Errors),
		)
	}

	return nil
}

// newModel selects the provider backend per config.
func newModel(cfg Config) (model.Model, error) {
	switch cfg.Model.Provider {
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Model.Name)
			}
			o.APIKey = cfg.Model.APIKey
		}), nil
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model.Name != "" {
				o.Model = cfg.Model.Name
			}
			o.APIKey = cfg.Model.APIKey
			o.BaseURL = cfg.Model.BaseURL
		}), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Model.Provider)
	}
}

func newDialer(cfg Config) pool.Dialer {
	if cfg.ToolService.Transport == "http" {
		return pool.NewHTTPDialer(cfg.ToolService.URL)
	}
	return pool.NewStdioDialer(cfg.ToolService.Command, os.Environ(), cfg.ToolService.Args...)
}
