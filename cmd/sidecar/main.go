package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/termbridge/internal/api/middleware"
	"github.com/GriffinCanCode/termbridge/internal/app"
	"github.com/GriffinCanCode/termbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/termbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/termbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termbridge/internal/lifecycle"
	"github.com/GriffinCanCode/termbridge/internal/server"
)

func main() {
	port := flag.String("port", "", "Server port (overrides PORT)")
	host := flag.String("host", "", "Bind address (overrides HOST)")
	dev := flag.Bool("dev", false, "Development mode (colored logs, debug level)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERR: %v\n", err)
		os.Exit(2)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Development = cfg.Logging.Development
	if cfg.Logging.Output != "" {
		logCfg.Output = cfg.Logging.Output
	}
	logger := logging.NewOrNop(logCfg)
	defer logger.Close()

	logger.Info("Starting termbridge sidecar", zap.Any("config", cfg.Redacted()))

	metrics := monitoring.NewMetrics()
	stack, err := app.New(context.Background(), cfg, logger.Logger, metrics)
	if err != nil {
		logger.Error("Failed to assemble session stack", zap.Error(err))
		fmt.Fprintf(os.Stderr, "ERR: %v\n", err)
		os.Exit(2)
	}
	defer stack.Close()

	opts := server.Options{
		Addr:            net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		ExitWithSession: cfg.Server.ExitWithSession,
		Development:     cfg.Logging.Development,
		CORS:            middleware.CORSFor(cfg.Server.AllowOrigins),
		Journal:         stack.Journal(),
	}
	if cfg.RateLimit.Enabled {
		opts.RateLimit = &middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}
	}
	srv := server.NewServer(stack, opts, logger.Logger, metrics)

	sigChan := make(chan os.Signal, 4)
	signal.Notify(sigChan, lifecycle.ForwardedSignals...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errChan := make(chan error, 1)
	go func() { errChan <- srv.Run(ctx) }()

	for {
		select {
		case sig := <-sigChan:
			if cfg.Server.ExitWithSession && srv.Signal(sig) {
				logger.Info("Forwarded signal to session", zap.Stringer("signal", sig))
				continue
			}
			logger.Info("Shutting down gracefully...", zap.Stringer("signal", sig))
			cancel()
			if err := <-errChan; err != nil {
				logger.Error("Error during shutdown", zap.Error(err))
			}
			return

		case res := <-srv.Done():
			cancel()
			if err := <-errChan; err != nil {
				logger.Error("Error during shutdown", zap.Error(err))
			}
			logger.Info("Session ended, exiting",
				zap.String("cause", string(res.Cause)),
				zap.Int("exit_code", res.ExitCode()))
			signal.Stop(sigChan)
			_ = stack.Close()
			logger.Close()
			lifecycle.Exit(res)

		case err := <-errChan:
			if err != nil {
				logger.Error("Server error", zap.Error(err))
				logger.Close()
				os.Exit(1)
			}
			return
		}
	}
}
