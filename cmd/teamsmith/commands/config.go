package commands

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/hupe1980/teamsmith/logging"
)

// Config is the YAML configuration for the CLI.
type Config struct {
	Model struct {
		// Provider selects the model backend: anthropic or openai.
		Provider string `yaml:"provider"`
		// Name is the provider-specific model identifier.
		Name string `yaml:"name"`
		// APIKey overrides the provider's environment variable lookup.
		APIKey string `yaml:"api_key"`
		// BaseURL points openai-compatible providers at another endpoint.
		BaseURL string `yaml:"base_url"`
	} `yaml:"model"`

	ToolService struct {
		// Transport is stdio or http.
		Transport string `yaml:"transport"`
		// Command and Args launch the stdio tool service subprocess.
		Command string   `yaml:"command"`
		Args    []string `yaml:"args"`
		// URL is the endpoint for the http transport.
		URL string `yaml:"url"`
	} `yaml:"tool_service"`

	Pool struct {
		Size           int           `yaml:"size"`
		AcquireTimeout time.Duration `yaml:"acquire_timeout"`
		CallTimeout    time.Duration `yaml:"call_timeout"`
		CacheSize      int           `yaml:"cache_size"`
	} `yaml:"pool"`

	Build struct {
		MaxRefinements    int     `yaml:"max_refinements"`
		SeverityThreshold string  `yaml:"severity_threshold"`
		BudgetTokens      int     `yaml:"budget_tokens"`
		BudgetCost        float64 `yaml:"budget_cost"`
	} `yaml:"build"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	var cfg Config
	cfg.Model.Provider = "anthropic"
	cfg.ToolService.Transport = "stdio"
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// LoadConfig reads and validates a YAML config file. An empty path yields
// the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return cfg, fmt.Errorf("failed to load config from %q: %w", path, err)
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return cfg, fmt.Errorf("failed to parse config from %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed for %q: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the fields the CLI cannot default sensibly.
func (c Config) Validate() error {
	switch c.Model.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unsupported model provider %q", c.Model.Provider)
	}

	switch c.ToolService.Transport {
	case "stdio":
		if c.ToolService.Command == "" {
			return fmt.Errorf("tool_service.command is required for the stdio transport")
		}
	case "http":
		if c.ToolService.URL == "" {
			return fmt.Errorf("tool_service.url is required for the http transport")
		}
	default:
		return fmt.Errorf("unsupported tool_service transport %q", c.ToolService.Transport)
	}

	return nil
}

// parseLogLevel maps a config string to a logging level, defaulting to info.
func parseLogLevel(s string) logging.LogLevel {
	switch s {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}
