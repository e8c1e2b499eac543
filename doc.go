// Package dana provides an agent runtime that solves natural-language
// problems by orchestrating LLM calls, sandboxed code execution, and
// finite-state workflows.
//
// A caller submits a problem string; the runtime plans (asks an LLM for a
// structured plan and parses it), executes (direct answer, code run,
// workflow FSM, delegation, escalation, or user input), and returns a
// validated result. Agents persist conversation history and metrics
// across calls, can nest recursively, and stream lifecycle events to
// subscribed observers.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/danaruntime/dana/cmd/dana@latest
//
// Solve a problem from the command line:
//
//	dana solve "What is 2+2?"
//
// # Using as Go Library
//
//	import (
//	    "github.com/danaruntime/dana/agent"
//	    "github.com/danaruntime/dana/config"
//	)
//
//	cfg := config.Default().Agents["assistant"]
//	a, _ := agent.New("assistant", &cfg, nil)
//	defer a.Release()
//	result, _ := a.Solve(ctx, "What is 2+2?")
//
// # Architecture
//
//	Agent.Solve → Strategy Selector → Planner (LLM) → Plan → Executor
//
// The executor dispatches on the plan kind: Direct, Code (sandbox),
// Workflow (FSM-driven, each state action re-enters Solve at depth+1),
// Delegate, Escalate, Input, or Manual.
//
// Workflows hold an ActionExecutor interface that the Agent implements,
// so workflow execution and agent solve can recurse without an import
// cycle. The recursion controller enforces the depth cap; the recursive
// strategy additionally detects identity loops.
package dana
