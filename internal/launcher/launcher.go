// Package launcher spawns child processes attached to a PTY slave.
//
// The slave handle becomes the child's stdin, stdout and stderr, and the child
// starts a new session with the slave as its controlling terminal. Launch does
// not block: termination is observed through Child.Done and Child.Status.
package launcher

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/termbridge/internal/infrastructure/monitoring"
)

// Roles used for logging and metrics.
const (
	RoleSmoke = "smoke"
	RoleAgent = "agent"
)

// LaunchError reports a child that could not be started. The session the
// launch targeted is untouched and may be reused.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Command describes what to run.
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  Environment
	Role string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Path + " " + strings.Join(c.Args, " "))
}

// Launcher starts children.
type Launcher struct {
	ambient func() []string
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// New creates a Launcher that overlays the process environment.
func New(logger *zap.Logger, metrics *monitoring.Metrics) *Launcher {
	return &Launcher{
		ambient: os.Environ,
		logger:  logger.Named("launcher"),
		metrics: metrics,
	}
}

// Launch starts cmd with slave bound to all three standard streams.
func (l *Launcher) Launch(cmd Command, slave *os.File) (*Child, error) {
	if slave == nil {
		return nil, &LaunchError{Path: cmd.Path, Err: fmt.Errorf("no pty slave")}
	}

	path := cmd.Path
	if !strings.ContainsRune(path, filepath.Separator) && !strings.ContainsRune(path, '/') {
		resolved, err := exec.LookPath(path)
		if err != nil {
			return nil, &LaunchError{Path: cmd.Path, Err: err}
		}
		path = resolved
	}

	c := exec.Command(path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env.Build(l.ambient())
	c.Stdin = slave
	c.Stdout = slave
	c.Stderr = slave
	c.SysProcAttr = sysProcAttr()

	if err := c.Start(); err != nil {
		return nil, &LaunchError{Path: path, Err: err}
	}

	role := cmd.Role
	if role == "" {
		role = RoleAgent
	}
	child := &Child{
		Path:      path,
		Args:      append([]string(nil), cmd.Args...),
		PID:       c.Process.Pid,
		StartedAt: time.Now(),
		role:      role,
		cmd:       c,
		done:      make(chan struct{}),
		logger: l.logger.With(
			zap.String("role", role),
			zap.Int("pid", c.Process.Pid)),
		metrics: l.metrics,
	}

	child.logger.Info("child started",
		zap.String("path", path),
		zap.Strings("args", cmd.Args),
		zap.Strings("env_overlay", cmd.Env.Keys()))

	go child.wait()
	return child, nil
}
