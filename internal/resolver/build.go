package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/termbridge/internal/infrastructure/monitoring"
)

// BuildStep rebuilds the development artifact before resolution.
type BuildStep struct {
	// Command is split on whitespace; no shell is involved.
	Command string
	Dir     string
	Timeout time.Duration
}

// Run executes the build. Output is kept for the log only.
func (b *BuildStep) Run(ctx context.Context, logger *zap.Logger, metrics *monitoring.Metrics) error {
	fields := strings.Fields(b.Command)
	if len(fields) == 0 {
		return errors.New("empty build command")
	}

	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Dir = b.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	logger.Info("building agent", zap.String("command", b.Command), zap.String("dir", b.Dir))
	timer := monitoring.NewTimer(metrics)
	err := cmd.Run()
	if err != nil {
		d := timer.StopBuild("failed")
		logger.Debug("build output", zap.ByteString("output", tail(out.Bytes(), 4096)), zap.Duration("took", d))
		return fmt.Errorf("build %q: %w", b.Command, err)
	}

	d := timer.StopBuild("ok")
	logger.Info("agent build finished", zap.Duration("took", d))
	return nil
}

func tail(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}
