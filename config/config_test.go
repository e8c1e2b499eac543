package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	raw := []byte(`
agents:
  assistant:
    llm: main
llms:
  main:
    type: openai
    model: gpt-4o-mini
    api_key: test-key
`)

	cfg, err := Parse(raw)
	require.NoError(t, err)

	agent := cfg.Agents["assistant"]
	assert.Equal(t, "assistant", agent.Name)
	assert.Equal(t, 10, agent.MaxRecursionDepth)
	assert.Equal(t, 10, agent.MaxIterations)
	assert.Equal(t, 5, agent.ChatContextTurns)
	assert.Equal(t, 30, agent.CodingTimeoutSeconds)
	assert.Equal(t, 3, agent.PlanAttempts)

	llm := cfg.LLMs["main"]
	assert.Equal(t, "https://api.openai.com/v1", llm.Host)
	assert.Equal(t, 0.7, llm.Temperature)
	assert.Equal(t, 4096, llm.MaxTokens)

	assert.Equal(t, 4, cfg.Runtime.Workers)
	assert.Equal(t, "python3", cfg.Runtime.PythonBinary)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestParseRejectsUnknownLLMReference(t *testing.T) {
	t.Setenv(EnvMockLLM, "")

	raw := []byte(`
agents:
  assistant:
    llm: missing
`)

	_, err := Parse(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown LLM")
}

func TestMockLLMRelaxesReferenceCheck(t *testing.T) {
	t.Setenv(EnvMockLLM, "true")

	raw := []byte(`
agents:
  assistant:
    llm: missing
`)

	_, err := Parse(raw)
	assert.NoError(t, err)
}

func TestParseRejectsBadProvider(t *testing.T) {
	raw := []byte(`
llms:
  bad:
    type: telepathy
    model: m
`)
	_, err := Parse(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported llm type")
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("DANA_TEST_KEY", "sk-123")

	tests := []struct {
		input string
		want  string
	}{
		{"${DANA_TEST_KEY}", "sk-123"},
		{"$DANA_TEST_KEY", "sk-123"},
		{"${DANA_TEST_MISSING:-fallback}", "fallback"},
		{"${DANA_TEST_KEY:-fallback}", "sk-123"},
		{"no variables here", "no variables here"},
		{"prefix-${DANA_TEST_KEY}-suffix", "prefix-sk-123-suffix"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExpandEnvVars(tt.input), "input %q", tt.input)
	}
}

func TestEnvExpansionInConfig(t *testing.T) {
	t.Setenv("DANA_TEST_MODEL", "gpt-4o")

	raw := []byte(`
llms:
  main:
    type: openai
    model: ${DANA_TEST_MODEL}
    api_key: ${DANA_TEST_UNSET:-none}
`)

	cfg, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", cfg.LLMs["main"].Model)
	assert.Equal(t, "none", cfg.LLMs["main"].APIKey)
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv(EnvMockLLM, "true")

	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "mock", cfg.LLMs["default"].Type)
	assert.Contains(t, cfg.Agents, "assistant")
}
