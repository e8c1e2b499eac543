// Command dana runs the agent runtime: one-shot solves, interactive chat,
// or the HTTP server.
//
// Usage:
//
//	dana solve "What is 2+2?" --config dana.yaml
//	dana chat --agent assistant
//	dana serve --config dana.yaml
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/danaruntime/dana/config"
	"github.com/danaruntime/dana/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Solve    SolveCmd    `cmd:"" help:"Solve a problem and print the result."`
	Chat     ChatCmd     `cmd:"" help:"Chat interactively with an agent."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP server."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Generate the JSON Schema for config files."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	Agent     string `short:"a" help:"Agent name." default:"assistant"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." env:"LOG_LEVEL" default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)." env:"LOG_FILE"`
	LogFormat string `help:"Log format (simple, verbose)." env:"LOG_FORMAT" default:"simple"`
}

// loadConfig resolves the effective configuration: the file named by
// --config if given, otherwise built-in defaults.
func (cli *CLI) loadConfig() (*config.Config, error) {
	if cli.Config != "" {
		return config.Load(cli.Config)
	}
	config.LoadDotEnv()
	return config.Default(), nil
}

func (cli *CLI) initLogger() (func(), error) {
	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		return nil, err
	}

	var output io.Writer = os.Stderr
	cleanup := func() {}
	if cli.LogFile != "" {
		file, closeFn, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			return nil, err
		}
		output = file
		cleanup = closeFn
	}
	logger.Init(level, output, cli.LogFormat)
	return cleanup, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("dana version %s\n", version)
	return nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("dana"),
		kong.Description("Dana - recursive agent runtime"),
		kong.UsageOnError(),
	)

	cleanup, err := cli.initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(2)
	}
	defer cleanup()

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
