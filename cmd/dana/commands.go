package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/danaruntime/dana/config"
	"github.com/danaruntime/dana/server"
)

// ============================================================================
// SOLVE
// ============================================================================

// SolveCmd solves a single problem and prints the result.
type SolveCmd struct {
	Problem string `arg:"" help:"Problem statement to solve."`
	JSON    bool   `help:"Print the result as JSON."`
}

func (c *SolveCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	agents, _, err := buildAgents(cfg)
	if err != nil {
		return err
	}
	a, err := agents.GetAgent(cli.Agent)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	return a.WithLifecycle(ctx, func(ctx context.Context) error {
		result, err := a.Solve(ctx, c.Problem)
		if err != nil {
			return err
		}
		return printResult(result, c.JSON)
	})
}

// printResult renders strings verbatim and anything structured as JSON.
func printResult(result any, forceJSON bool) error {
	if s, ok := result.(string); ok && !forceJSON {
		fmt.Println(s)
		return nil
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// ============================================================================
// CHAT
// ============================================================================

// ChatCmd runs an interactive chat loop on stdin.
type ChatCmd struct{}

func (c *ChatCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	agents, _, err := buildAgents(cfg)
	if err != nil {
		return err
	}
	a, err := agents.GetAgent(cli.Agent)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	return a.WithLifecycle(ctx, func(ctx context.Context) error {
		fmt.Printf("Chatting with '%s'. Ctrl-D to exit.\n", a.Name())
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				fmt.Println()
				return scanner.Err()
			}
			message := strings.TrimSpace(scanner.Text())
			if message == "" {
				continue
			}
			reply, err := a.Chat(ctx, message)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				continue
			}
			fmt.Println(reply)
		}
	})
}

// ============================================================================
// SERVE
// ============================================================================

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Host string `help:"Listen host (overrides config)."`
	Port int    `help:"Listen port (overrides config)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	agents, collect, err := buildAgents(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	for _, name := range agents.Names() {
		a, err := agents.GetAgent(name)
		if err != nil {
			continue
		}
		if err := a.Acquire(ctx); err != nil {
			return fmt.Errorf("agent '%s': %w", name, err)
		}
		defer func() { _ = a.Release() }()
	}

	return server.New(cfg.Server, agents, collect).Run(ctx)
}

// ============================================================================
// VALIDATE
// ============================================================================

// ValidateCmd checks a configuration file and reports what it defines.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required for validate")
	}
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	fmt.Printf("%s is valid: %d agent(s), %d llm provider(s)\n",
		cli.Config, len(cfg.Agents), len(cfg.LLMs))
	return nil
}

// ============================================================================
// SCHEMA
// ============================================================================

// SchemaCmd writes the configuration JSON Schema to stdout.
type SchemaCmd struct {
	Compact bool `help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run(cli *CLI) error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&config.Config{})
	schema.ID = "https://danaruntime.dev/schemas/config.json"
	schema.Title = "Dana Configuration Schema"
	schema.Description = "Configuration schema for the Dana agent runtime"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(schema)
}
