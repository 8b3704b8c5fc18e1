package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
model:
  provider: openai
  name: gpt-4o
tool_service:
  transport: http
  url: http://localhost:8931/mcp
pool:
  size: 2
  call_timeout: 10s
build:
  max_refinements: 3
  severity_threshold: critical
  budget_tokens: 50000
log:
  level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model.Name)
	assert.Equal(t, "http://localhost:8931/mcp", cfg.ToolService.URL)
	assert.Equal(t, 2, cfg.Pool.Size)
	assert.Equal(t, 10*time.Second, cfg.Pool.CallTimeout)
	assert.Equal(t, 3, cfg.Build.MaxRefinements)
	assert.Equal(t, "critical", cfg.Build.SeverityThreshold)
	assert.Equal(t, 50000, cfg.Build.BudgetTokens)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, "stdio", cfg.ToolService.Transport)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "unknown provider",
			content: `
model:
  provider: bedrock
tool_service:
  transport: http
  url: http://localhost:1
`,
		},
		{
			name: "stdio without command",
			content: `
model:
  provider: anthropic
tool_service:
  transport: stdio
`,
		},
		{
			name: "http without url",
			content: `
model:
  provider: anthropic
tool_service:
  transport: http
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/does/not/exist.yaml")
	assert.Error(t, err)
}
