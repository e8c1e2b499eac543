package main

import (
	"context"
	"fmt"

	"github.com/danaruntime/dana/agent"
	"github.com/danaruntime/dana/config"
	"github.com/danaruntime/dana/llms"
	"github.com/danaruntime/dana/logger"
	"github.com/danaruntime/dana/metrics"
	"github.com/danaruntime/dana/resources"
)

// buildAgents constructs every configured agent over a shared peer
// registry and collectors, so a Delegate plan can reach any sibling.
// LLM providers are tracked in one shared llms.Registry.
func buildAgents(cfg *config.Config) (*agent.Registry, *metrics.Collectors, error) {
	peers := agent.NewAgentRegistry()
	collect := metrics.NewCollectors()
	providers := llms.NewRegistry()

	for name, agentCfg := range cfg.Agents {
		res, err := buildResources(cfg, name, agentCfg, providers)
		if err != nil {
			return nil, nil, fmt.Errorf("agent '%s': %w", name, err)
		}

		a, err := agent.New(name, &agentCfg, res,
			agent.WithPeers(peers),
			agent.WithCollectors(collect))
		if err != nil {
			return nil, nil, fmt.Errorf("agent '%s': %w", name, err)
		}
		if err := peers.RegisterAgent(a); err != nil {
			return nil, nil, err
		}
	}
	return peers, collect, nil
}

// buildResources wires one agent's resource set: its LLM provider, the
// sandboxed interpreter, and interactive input on stdin/stdout.
func buildResources(cfg *config.Config, agentName string, agentCfg config.AgentConfig, providers *llms.Registry) (*resources.Registry, error) {
	reg := resources.NewRegistry()

	llmName := agentCfg.LLM
	if llmName == "" {
		llmName = "default"
	}
	var llmCfg *config.LLMProviderConfig
	if provider, ok := cfg.LLMs[llmName]; ok {
		llmCfg = &provider
	} else if !config.MockLLMEnabled() {
		return nil, fmt.Errorf("unknown llm '%s'", llmName)
	}
	// Registry keys are per agent so one agent's Release cannot close a
	// sibling's provider.
	llm := resources.NewLLMResourceWithRegistry(agentName+"/"+llmName, llmCfg, providers)
	if err := reg.AddResource(llm); err != nil {
		return nil, err
	}

	// No interpreter on PATH just means Code plans are unavailable.
	coding := resources.NewCodingResource("coding", cfg.Runtime.PythonBinary, 0)
	if err := coding.Initialize(context.Background()); err != nil {
		logger.ForComponent("cli").Warn("coding resource unavailable",
			"binary", cfg.Runtime.PythonBinary, "error", err)
	} else if err := reg.AddResource(coding); err != nil {
		return nil, err
	}

	input := resources.NewInputResource("input")
	if err := input.Initialize(context.Background()); err != nil {
		return nil, err
	}
	if err := reg.AddResource(input); err != nil {
		return nil, err
	}
	return reg, nil
}
