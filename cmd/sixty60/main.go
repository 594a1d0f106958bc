package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/sixty60/internal/app"
	"github.com/utafrali/sixty60/internal/cli"
	"github.com/utafrali/sixty60/internal/config"
	"github.com/utafrali/sixty60/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Cancel in-flight platform calls on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return cli.Execute(ctx, cli.NewRootCommand(newRuntime), os.Args[1:])
}

// newRuntime loads configuration and wires the application for one command.
func newRuntime(ctx context.Context) (*cli.Runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(app.ServiceName, cfg.LogLevel)

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initialize application: %w", err)
	}

	prompt := cli.NewTerminalPrompter(os.Stdin, os.Stderr)
	return cli.FromApp(application, log, prompt, cfg.CommandTimeout()), nil
}
