package app

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/termbridge/internal/bridge"
	"github.com/GriffinCanCode/termbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/termbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termbridge/internal/journal"
	"github.com/GriffinCanCode/termbridge/internal/launcher"
	"github.com/GriffinCanCode/termbridge/internal/lifecycle"
	"github.com/GriffinCanCode/termbridge/internal/resolver"
	"github.com/GriffinCanCode/termbridge/internal/surface"
	"github.com/GriffinCanCode/termbridge/internal/terminal"
)

// Stack builds sessions from one configuration.
type Stack struct {
	cfg      *config.Config
	overlay  *config.Overlay
	quit     os.Signal
	resolver *resolver.Resolver
	journal  *journal.Store

	base    *zap.Logger
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// New validates cfg and opens the optional journal.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *monitoring.Metrics) (*Stack, error) {
	overlay, err := config.LoadOverlay(cfg.Agent.EnvFile)
	if err != nil {
		return nil, err
	}

	quit, err := lifecycle.ParseSignal(cfg.Agent.QuitSignal)
	if err != nil {
		return nil, fmt.Errorf("quit signal: %w", err)
	}

	s := &Stack{
		cfg:      cfg,
		overlay:  overlay,
		quit:     quit,
		resolver: resolver.New(resolverOptions(cfg), logger, metrics),
		base:     logger,
		logger:   logger.Named("app"),
		metrics:  metrics,
	}

	if cfg.Journal.Path != "" {
		store, err := journal.Open(ctx, cfg.Journal.Path, logger)
		if err != nil {
			return nil, err
		}
		s.journal = store
	}

	s.logger.Info("Session stack ready",
		zap.String("agent", cfg.Agent.Name),
		zap.Bool("smoke", cfg.Smoke.Enabled),
		zap.Bool("journal", s.journal != nil),
		zap.Strings("env_keys", s.environment().Keys()),
	)
	return s, nil
}

func resolverOptions(cfg *config.Config) resolver.Options {
	opts := resolver.Options{
		Override:    cfg.Agent.Path,
		Name:        cfg.Agent.Name,
		Workspace:   cfg.Agent.Workspace,
		DebugDir:    cfg.Agent.DebugDir,
		ReleaseDir:  cfg.Agent.ReleaseDir,
		PackagedDir: cfg.Agent.PackagedDir,
	}
	if cfg.Agent.BuildCommand != "" {
		opts.Build = &resolver.BuildStep{
			Command: cfg.Agent.BuildCommand,
			Dir:     cfg.Agent.Workspace,
			Timeout: cfg.Agent.BuildTimeout,
		}
	}
	return opts
}

// Geometry is the configured initial size.
func (s *Stack) Geometry() terminal.Geometry {
	return terminal.Geometry{Cols: s.cfg.Terminal.Cols, Rows: s.cfg.Terminal.Rows}.Clamp()
}

// Journal returns the session journal, nil when disabled.
func (s *Stack) Journal() *journal.Store {
	return s.journal
}

// Bridge returns a fresh, unallocated PTY bridge.
func (s *Stack) Bridge() bridge.Bridge {
	return bridge.NewPTY(
		terminal.NewAllocator(s.base, s.metrics),
		launcher.New(s.base, s.metrics),
		s.base,
	)
}

// Options returns controller options for a session starting at g.
func (s *Stack) Options(g terminal.Geometry) lifecycle.Options {
	env := s.environment()

	opts := lifecycle.Options{
		Geometry: g,
		Smoke: lifecycle.SmokeOptions{
			Enabled: s.cfg.Smoke.Enabled,
			Command: launcher.Command{
				Path: s.cfg.Smoke.Command,
				Args: s.cfg.Smoke.Args,
				Env:  env,
				Role: launcher.RoleSmoke,
			},
			Expect:  s.cfg.Smoke.Expect,
			Timeout: s.cfg.Smoke.Timeout,
		},
		Agent: launcher.Command{
			Args: s.agentArgs(),
			Env:  env,
			Role: launcher.RoleAgent,
		},
		Resolver:   s.resolver,
		Hint:       hint(s.cfg),
		QuitSignal: s.quit,
		KillGrace:  s.cfg.Agent.KillGrace,
	}
	if s.journal != nil {
		opts.Recorder = s.journal
	}
	return opts
}

// Controller returns a controller for one session.
func (s *Stack) Controller(b bridge.Bridge, surf surface.Surface, g terminal.Geometry) *lifecycle.Controller {
	return lifecycle.New(b, surf, s.Options(g), s.base, s.metrics)
}

// Close releases the journal.
func (s *Stack) Close() error {
	return s.journal.Close()
}

func (s *Stack) environment() launcher.Environment {
	return launcher.Environment{
		Defaults: map[string]string{
			"TERM": s.cfg.Agent.Term,
			"LANG": s.cfg.Agent.Lang,
		},
		Overlay:     s.overlay.Env,
		SecretKey:   s.cfg.Agent.SecretEnv,
		SecretValue: s.cfg.Agent.Secret,
	}
}

// agentArgs puts configured arguments before the overlay file's.
func (s *Stack) agentArgs() []string {
	args := make([]string, 0, len(s.cfg.Agent.Args)+len(s.overlay.Args))
	args = append(args, s.cfg.Agent.Args...)
	return append(args, s.overlay.Args...)
}

func hint(cfg *config.Config) string {
	if cfg.Agent.BuildCommand == "" {
		return fmt.Sprintf("set BRIDGE_AGENT_PATH or build %s in %s", cfg.Agent.Name, cfg.Agent.Workspace)
	}
	return "set BRIDGE_AGENT_PATH or check the build output in the log"
}
