package launcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/termbridge/internal/infrastructure/monitoring"
)

// Status is how a child terminated: an exit code or a signal, never both.
type Status struct {
	Code     int            `json:"code"`
	Signaled bool           `json:"signaled"`
	Signal   syscall.Signal `json:"signal,omitempty"`
}

// Success reports a zero exit code.
func (s Status) Success() bool {
	return !s.Signaled && s.Code == 0
}

func (s Status) String() string {
	if s.Signaled {
		return fmt.Sprintf("terminated by signal %d (%s)", int(s.Signal), s.Signal)
	}
	return fmt.Sprintf("exit status %d", s.Code)
}

// Child is a running (or finished) process.
type Child struct {
	Path      string
	Args      []string
	PID       int
	StartedAt time.Time

	role   string
	cmd    *exec.Cmd
	done   chan struct{}
	status Status

	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// Role returns the role the child was launched with.
func (c *Child) Role() string {
	return c.role
}

// Done is closed once the termination status is known.
func (c *Child) Done() <-chan struct{} {
	return c.done
}

// Status returns the termination status. It is only meaningful after Done.
func (c *Child) Status() (Status, bool) {
	select {
	case <-c.done:
		return c.status, true
	default:
		return Status{}, false
	}
}

// Wait blocks until the child exits or ctx ends.
func (c *Child) Wait(ctx context.Context) (Status, error) {
	select {
	case <-c.done:
		return c.status, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// Signal delivers sig to the child's process group.
func (c *Child) Signal(sig os.Signal) error {
	select {
	case <-c.done:
		return os.ErrProcessDone
	default:
	}
	return signalGroup(c.cmd.Process, sig)
}

// Kill forcibly terminates the child's process group.
func (c *Child) Kill() error {
	return c.Signal(os.Kill)
}

func (c *Child) wait() {
	err := c.cmd.Wait()
	c.status = statusOf(c.cmd.ProcessState, err)

	kind := "exited"
	if c.status.Signaled {
		kind = "signaled"
	}
	c.metrics.RecordChildExit(c.role, kind)
	c.logger.Info("child exited",
		zap.Stringer("status", c.status),
		zap.Duration("runtime", time.Since(c.StartedAt)))

	close(c.done)
}
