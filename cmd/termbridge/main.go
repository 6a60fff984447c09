package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/termbridge/internal/app"
	"github.com/GriffinCanCode/termbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/termbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/termbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termbridge/internal/lifecycle"
	"github.com/GriffinCanCode/termbridge/internal/surface/tty"
)

func main() {
	agent := flag.String("agent", "", "Agent executable (overrides BRIDGE_AGENT_PATH)")
	workspace := flag.String("workspace", "", "Development checkout holding build outputs")
	noSmoke := flag.Bool("no-smoke", false, "Skip the PTY smoke test")
	debug := flag.Bool("debug", false, "Debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	if *agent != "" {
		cfg.Agent.Path = *agent
	}
	if *workspace != "" {
		cfg.Agent.Workspace = *workspace
	}
	if *noSmoke {
		cfg.Smoke.Enabled = false
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}
	if args := flag.Args(); len(args) > 0 {
		cfg.Agent.Args = append(cfg.Agent.Args, args...)
	}

	res, err := run(cfg)
	if err != nil && res == nil {
		fatal(err)
	}
	lifecycle.Exit(*res)
}

// run owns every resource that must be released before the process mirrors
// the agent's exit. A nil result means the session never started.
func run(cfg *config.Config) (*lifecycle.Result, error) {
	logCfg := logging.FileConfig(cfg.Logging.Level)
	logCfg.Development = cfg.Logging.Development
	if cfg.Logging.Output != "" {
		logCfg.Output = cfg.Logging.Output
	}
	logger := logging.NewOrNop(logCfg)
	defer logger.Close()

	logger.Info("Starting termbridge", zap.Any("config", cfg.Redacted()))

	quitKey, err := tty.ParseQuitKey(cfg.Terminal.QuitKey)
	if err != nil {
		return nil, err
	}

	metrics := monitoring.NewMetrics()
	stack, err := app.New(context.Background(), cfg, logger.Logger, metrics)
	if err != nil {
		return nil, err
	}
	defer stack.Close()

	surf, err := tty.Open(os.Stdin, os.Stdout, quitKey, logger.Logger)
	if err != nil {
		return nil, err
	}
	defer surf.Close()

	ctrl := stack.Controller(stack.Bridge(), surf, stack.Geometry())
	stop := lifecycle.Forward(ctrl)
	defer stop()

	res, err := ctrl.Run(context.Background())
	if err != nil {
		logger.Error("Session failed", zap.Error(err))
	}
	logger.Info("Session ended",
		zap.String("cause", string(res.Cause)),
		zap.Int("exit_code", res.ExitCode()))
	return &res, err
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ERR: %v\n", err)
	os.Exit(2)
}
