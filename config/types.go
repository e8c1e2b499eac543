// Package config provides configuration types and loading for the Dana
// agent runtime. Every config type follows the SetDefaults/Validate
// convention; loading applies environment expansion before decoding.
package config

import (
	"fmt"
	"os"
	"strings"
)

// ============================================================================
// ENVIRONMENT VARIABLES
// ============================================================================

const (
	// EnvMockLLM switches resource initialization to a deterministic mock
	// LLM, for tests and offline runs.
	EnvMockLLM = "DANA_MOCK_LLM"
)

// MockLLMEnabled reports whether DANA_MOCK_LLM requests the mock LLM.
func MockLLMEnabled() bool {
	return strings.EqualFold(os.Getenv(EnvMockLLM), "true")
}

// ============================================================================
// TOP-LEVEL CONFIGURATION
// ============================================================================

// Config is the root configuration document.
type Config struct {
	Agents  map[string]AgentConfig       `yaml:"agents" json:"agents"`
	LLMs    map[string]LLMProviderConfig `yaml:"llms" json:"llms"`
	Runtime RuntimeConfig                `yaml:"runtime" json:"runtime"`
	Logger  LoggerConfig                 `yaml:"logger" json:"logger"`
	Server  ServerConfig                 `yaml:"server" json:"server"`
}

// SetDefaults applies defaults to the whole document.
func (c *Config) SetDefaults() {
	if c.Agents == nil {
		c.Agents = make(map[string]AgentConfig)
	}
	if c.LLMs == nil {
		c.LLMs = make(map[string]LLMProviderConfig)
	}
	for name, agent := range c.Agents {
		agent.SetDefaults()
		if agent.Name == "" {
			agent.Name = name
		}
		c.Agents[name] = agent
	}
	for name, llm := range c.LLMs {
		llm.SetDefaults()
		c.LLMs[name] = llm
	}
	c.Runtime.SetDefaults()
	c.Logger.SetDefaults()
	c.Server.SetDefaults()
}

// Validate checks the whole document.
func (c *Config) Validate() error {
	for name, agent := range c.Agents {
		if err := agent.Validate(); err != nil {
			return fmt.Errorf("agent '%s': %w", name, err)
		}
		if agent.LLM != "" {
			if _, ok := c.LLMs[agent.LLM]; !ok && !MockLLMEnabled() {
				return fmt.Errorf("agent '%s' references unknown LLM '%s'", name, agent.LLM)
			}
		}
	}
	for name, llm := range c.LLMs {
		if err := llm.Validate(); err != nil {
			return fmt.Errorf("llm '%s': %w", name, err)
		}
	}
	if err := c.Runtime.Validate(); err != nil {
		return fmt.Errorf("runtime: %w", err)
	}
	return c.Server.Validate()
}

// ============================================================================
// AGENT CONFIGURATION
// ============================================================================

// AgentConfig configures a single agent.
type AgentConfig struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`

	// LLM names the provider entry in Config.LLMs.
	LLM string `yaml:"llm" json:"llm"`

	// MaxRecursionDepth caps nested solve calls (default 10).
	MaxRecursionDepth int `yaml:"max_recursion_depth" json:"max_recursion_depth"`

	// MaxIterations bounds the iterative strategy (default 10).
	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`

	// ChatContextTurns is the number of memory turns included in chat
	// context (default 5).
	ChatContextTurns int `yaml:"chat_context_turns" json:"chat_context_turns"`

	// CodingTimeoutSeconds bounds sandboxed code execution (default 30).
	CodingTimeoutSeconds int `yaml:"coding_timeout_seconds" json:"coding_timeout_seconds"`

	// PlanAttempts is the planner retry budget for parse-class failures
	// (default 3).
	PlanAttempts int `yaml:"plan_attempts" json:"plan_attempts"`

	// Strict makes workflow execution surface per-state errors instead of
	// returning a structured error payload.
	Strict bool `yaml:"strict" json:"strict"`
}

// SetDefaults applies agent defaults.
func (a *AgentConfig) SetDefaults() {
	if a.MaxRecursionDepth == 0 {
		a.MaxRecursionDepth = 10
	}
	if a.MaxIterations == 0 {
		a.MaxIterations = 10
	}
	if a.ChatContextTurns == 0 {
		a.ChatContextTurns = 5
	}
	if a.CodingTimeoutSeconds == 0 {
		a.CodingTimeoutSeconds = 30
	}
	if a.PlanAttempts == 0 {
		a.PlanAttempts = 3
	}
}

// Validate checks agent settings.
func (a *AgentConfig) Validate() error {
	if a.MaxRecursionDepth < 1 {
		return fmt.Errorf("max_recursion_depth must be positive")
	}
	if a.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be positive")
	}
	if a.CodingTimeoutSeconds < 1 {
		return fmt.Errorf("coding_timeout_seconds must be positive")
	}
	return nil
}

// ============================================================================
// LLM PROVIDER CONFIGURATION
// ============================================================================

// LLMProviderConfig configures one LLM provider.
type LLMProviderConfig struct {
	Type        string  `yaml:"type" json:"type"` // openai | anthropic | ollama | mock
	Model       string  `yaml:"model" json:"model"`
	APIKey      string  `yaml:"api_key" json:"api_key"`
	Host        string  `yaml:"host" json:"host"`
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"max_tokens"`
	Timeout     int     `yaml:"timeout" json:"timeout"` // seconds
}

// SetDefaults applies provider defaults.
func (l *LLMProviderConfig) SetDefaults() {
	if l.Type == "" {
		l.Type = "openai"
	}
	if l.Temperature == 0 {
		l.Temperature = 0.7
	}
	if l.MaxTokens == 0 {
		l.MaxTokens = 4096
	}
	if l.Timeout == 0 {
		l.Timeout = 60
	}
	if l.Host == "" {
		switch l.Type {
		case "openai":
			l.Host = "https://api.openai.com/v1"
		case "anthropic":
			l.Host = "https://api.anthropic.com"
		case "ollama":
			l.Host = "http://localhost:11434"
		}
	}
}

// Validate checks provider settings.
func (l *LLMProviderConfig) Validate() error {
	switch l.Type {
	case "openai", "anthropic", "ollama", "mock":
	default:
		return fmt.Errorf("unsupported llm type: %s", l.Type)
	}
	if l.Type != "mock" && l.Model == "" {
		return fmt.Errorf("model is required")
	}
	if l.Temperature < 0 || l.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0,2]")
	}
	return nil
}

// ============================================================================
// RUNTIME CONFIGURATION
// ============================================================================

// RuntimeConfig configures runtime-wide behavior.
type RuntimeConfig struct {
	// Workers is the promise adapter worker pool size (default 4).
	Workers int `yaml:"workers" json:"workers"`

	// PythonBinary is the interpreter used by the coding resource
	// (default python3).
	PythonBinary string `yaml:"python_binary" json:"python_binary"`
}

// SetDefaults applies runtime defaults.
func (r *RuntimeConfig) SetDefaults() {
	if r.Workers == 0 {
		r.Workers = 4
	}
	if r.PythonBinary == "" {
		r.PythonBinary = "python3"
	}
}

// Validate checks runtime settings.
func (r *RuntimeConfig) Validate() error {
	if r.Workers < 1 {
		return fmt.Errorf("workers must be positive")
	}
	return nil
}

// ============================================================================
// LOGGER CONFIGURATION
// ============================================================================

// LoggerConfig configures process logging.
type LoggerConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Format string `yaml:"format" json:"format"` // simple | verbose
}

// SetDefaults applies logger defaults.
func (l *LoggerConfig) SetDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "simple"
	}
}

// ============================================================================
// SERVER CONFIGURATION
// ============================================================================

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// SetDefaults applies server defaults.
func (s *ServerConfig) SetDefaults() {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
}

// Validate checks server settings.
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be in [1,65535]")
	}
	return nil
}
