package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// LOADING
// ============================================================================

// Load reads, expands, decodes, defaults, and validates a YAML config file.
func Load(path string) (*Config, error) {
	LoadDotEnv()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a YAML config document from raw bytes.
func Parse(data []byte) (*Config, error) {
	expanded := ExpandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Default returns a ready-to-use config with a single default agent. The
// agent uses the mock LLM when DANA_MOCK_LLM is set, otherwise an
// OpenAI-compatible provider configured from OPENAI_API_KEY.
func Default() *Config {
	cfg := &Config{
		Agents: map[string]AgentConfig{
			"assistant": {Name: "assistant", LLM: "default"},
		},
		LLMs: map[string]LLMProviderConfig{
			"default": defaultProvider(),
		},
	}
	cfg.SetDefaults()
	return cfg
}

func defaultProvider() LLMProviderConfig {
	if MockLLMEnabled() {
		return LLMProviderConfig{Type: "mock"}
	}
	return LLMProviderConfig{
		Type:   "openai",
		Model:  "gpt-4o-mini",
		APIKey: os.Getenv("OPENAI_API_KEY"),
	}
}
