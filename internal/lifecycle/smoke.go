package lifecycle

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/termbridge/internal/bridge"
	"github.com/GriffinCanCode/termbridge/internal/launcher"
)

const captureLimit = 64 << 10

// capture collects smoke test output and signals once the expected text
// has been seen.
type capture struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	expect []byte
	found  chan struct{}
	once   sync.Once
}

func newCapture(expect string) *capture {
	return &capture{expect: []byte(expect), found: make(chan struct{})}
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if room := captureLimit - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
		} else {
			c.buf.Write(p)
		}
	}

	if c.buf.Len() > 0 && (len(c.expect) == 0 || bytes.Contains(c.buf.Bytes(), c.expect)) {
		c.once.Do(func() { close(c.found) })
	}
	return len(p), nil
}

func (c *capture) Found() <-chan struct{} {
	return c.found
}

func (c *capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.TrimSpace(c.buf.String())
}

// smoke runs the pre-flight command. It passes once the command has exited
// successfully and the expected output was seen, both within the timeout.
func (c *Controller) smoke(s *session, out *capture) (*request, error) {
	opts := c.opts.Smoke
	cmd := opts.Command
	cmd.Role = launcher.RoleSmoke

	proc, err := c.bridge.Launch(cmd)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	exited, found := proc.Done(), out.Found()
	var status launcher.Status
	for exited != nil || found != nil {
		select {
		case <-exited:
			exited = nil
			status, _ = proc.Status()
			if !status.Success() {
				return nil, &SmokeError{Reason: fmt.Sprintf("%s (%s)", cmd, status), Output: out.String()}
			}
		case <-found:
			found = nil
		case <-timer.C:
			c.abandon(proc)
			reason := fmt.Sprintf("%s did not finish within %s", cmd, opts.Timeout)
			if exited == nil {
				reason = fmt.Sprintf("%s: expected output %q not seen within %s", cmd, opts.Expect, opts.Timeout)
			}
			return nil, &SmokeError{Reason: reason, Output: out.String()}
		case ev, ok := <-s.events:
			if stop := c.handleEvent(s, ev, ok); stop != nil {
				c.abandon(proc)
				return stop, nil
			}
		case req := <-c.requests:
			c.abandon(proc)
			return &req, nil
		case <-s.ctxDone:
			c.abandon(proc)
			return &request{cause: CauseCancelled, reason: "context cancelled"}, nil
		}
	}

	c.logger.Info("smoke test passed", zap.String("command", cmd.String()))
	return nil, nil
}

// abandon kills a smoke child and waits briefly for it to go.
func (c *Controller) abandon(proc bridge.Process) {
	_ = proc.Kill()
	select {
	case <-proc.Done():
	case <-time.After(c.opts.DrainTimeout):
	}
}
