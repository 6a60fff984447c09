package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/termbridge/internal/bridge"
	"github.com/GriffinCanCode/termbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termbridge/internal/launcher"
	"github.com/GriffinCanCode/termbridge/internal/pump"
	"github.com/GriffinCanCode/termbridge/internal/resolver"
	"github.com/GriffinCanCode/termbridge/internal/shared/id"
	"github.com/GriffinCanCode/termbridge/internal/surface"
	"github.com/GriffinCanCode/termbridge/internal/terminal"
)

const (
	DefaultDrainTimeout = 500 * time.Millisecond
	DefaultSmokeTimeout = 2 * time.Second
)

// Resolver finds the agent executable.
type Resolver interface {
	Resolve(ctx context.Context) (resolver.Candidate, error)
}

// Recorder persists a session's progress. Failures are logged and ignored.
type Recorder interface {
	RecordTransition(sessionID id.SessionID, t Transition) error
	RecordResult(r Result) error
}

// SmokeOptions configures the pre-flight command.
type SmokeOptions struct {
	Enabled bool
	Command launcher.Command
	// Expect must appear in the output. Empty accepts any output.
	Expect  string
	Timeout time.Duration
}

// Options configures a Controller.
type Options struct {
	Geometry terminal.Geometry
	Smoke    SmokeOptions

	// Agent is launched once resolved; Resolver, when set, supplies its Path.
	Agent    launcher.Command
	Resolver Resolver
	// Hint follows a resolution or launch failure diagnostic.
	Hint string

	// QuitSignal is sent to the child on a user quit.
	QuitSignal os.Signal
	// KillGrace is how long a signaled child may take before SIGKILL. Zero
	// disables escalation.
	KillGrace    time.Duration
	DrainTimeout time.Duration

	Recorder Recorder
}

type request struct {
	cause  Cause
	sig    os.Signal
	reason string
}

// session is the per-run relay state.
type session struct {
	events  <-chan surface.Event
	ctxDone <-chan struct{}
	output  *pump.Output
	input   *pump.Input
	running bool
	pending [][]byte
}

// Controller runs one session. It is single use.
type Controller struct {
	id      id.SessionID
	opts    Options
	bridge  bridge.Bridge
	surface surface.Surface
	machine *Machine

	requests     chan request
	ran          atomic.Bool
	teardownOnce sync.Once

	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// New creates a controller in Idle.
func New(b bridge.Bridge, s surface.Surface, opts Options, logger *zap.Logger, metrics *monitoring.Metrics) *Controller {
	if opts.QuitSignal == nil {
		opts.QuitSignal = syscall.SIGTERM
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	if opts.Smoke.Timeout <= 0 {
		opts.Smoke.Timeout = DefaultSmokeTimeout
	}

	sid := id.NewSessionID()
	return &Controller{
		id:       sid,
		opts:     opts,
		bridge:   b,
		surface:  s,
		machine:  NewMachine(),
		requests: make(chan request, 16),
		logger:   logger.Named("lifecycle").With(zap.String("session_id", sid.String())),
		metrics:  metrics,
	}
}

// ID returns the session id.
func (c *Controller) ID() id.SessionID {
	return c.id
}

// State returns the current state.
func (c *Controller) State() State {
	return c.machine.State()
}

// History returns the transitions so far.
func (c *Controller) History() []Transition {
	return c.machine.History()
}

// Quit ends the session as an explicit user quit.
func (c *Controller) Quit(reason string) {
	c.request(request{cause: CauseUserQuit, sig: c.opts.QuitSignal, reason: reason})
}

// Signal forwards a host signal to the child and ends the session.
func (c *Controller) Signal(sig os.Signal) {
	c.request(request{cause: CauseSignal, sig: sig, reason: "host signal " + sig.String()})
}

func (c *Controller) request(r request) {
	select {
	case c.requests <- r:
	default:
		c.logger.Warn("stop request dropped", zap.String("cause", string(r.cause)))
	}
}

// Run drives the session to Closed. The returned error is the failure that
// prevented or ended the session; an unexpected agent exit is reported in
// Result.Err and as a line on the surface, never as an error.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	if !c.ran.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyRun
	}

	c.metrics.SessionStarted()
	res := c.run(ctx)
	res.SessionID = c.id
	res.Transitions = c.machine.History()
	c.metrics.SessionFinished(string(res.Cause))

	if rec := c.opts.Recorder; rec != nil {
		if err := rec.RecordResult(res); err != nil {
			c.logger.Warn("failed to record session result", zap.Error(err))
		}
	}

	c.logger.Info("session closed",
		zap.String("cause", string(res.Cause)),
		zap.Bool("exited", res.Exited),
		zap.Stringer("status", res.Status),
		zap.Error(res.Err))

	var unexpected *UnexpectedExit
	if res.Err != nil && !errors.As(res.Err, &unexpected) {
		return res, res.Err
	}
	return res, nil
}

func (c *Controller) run(ctx context.Context) Result {
	s := &session{events: c.surface.Events(), ctxDone: ctx.Done()}

	c.to(SmokeTesting, "supervisor start")
	ptyID, err := c.bridge.Allocate(c.opts.Geometry)
	if err != nil {
		c.report("pty allocation failed: %v", err)
		c.to(Closed, "pty allocation failed")
		return Result{Cause: CauseAllocation, Err: err}
	}
	c.logger.Debug("pty ready", zap.String("pty_id", ptyID.String()))

	var smoke *capture
	var sink io.Writer = c.surface
	if c.opts.Smoke.Enabled {
		smoke = newCapture(c.opts.Smoke.Expect)
		sink = smoke
	}
	s.output = pump.NewOutput(c.bridge, sink, c.bridge.Gate(), c.logger, c.metrics)
	s.input = pump.NewInput(c.bridge, c.logger, c.metrics)
	s.output.Start()

	readyReason := "smoke test disabled"
	if c.opts.Smoke.Enabled {
		stop, err := c.smoke(s, smoke)
		if err != nil {
			var launchErr *launcher.LaunchError
			var smokeErr *SmokeError
			switch {
			case errors.As(err, &launchErr):
				c.report("smoke test could not start: %v", err)
			case errors.As(err, &smokeErr):
				c.logger.Warn("smoke test failed", zap.String("output", smokeErr.Output))
				c.report("%v", err)
			default:
				c.report("%v", err)
			}
			c.teardown(s)
			c.to(Closed, err.Error())
			return Result{Cause: CauseSmoke, Err: err}
		}
		if stop != nil {
			return c.abort(s, *stop)
		}
		s.output.Switch(c.surface)
		readyReason = "smoke test passed"
	}

	c.to(Ready, readyReason)
	c.to(Launching, "launching agent")

	proc, stop, err := c.launch(ctx, s)
	if stop != nil {
		return c.abort(s, *stop)
	}
	if err != nil {
		cause := CauseLaunch
		var resErr *resolver.ResolutionError
		if errors.As(err, &resErr) {
			cause = CauseResolution
		}
		c.report("%v", err)
		if c.opts.Hint != "" {
			c.writeLine("hint: " + c.opts.Hint)
		}
		c.teardown(s)
		c.to(Closed, err.Error())
		return Result{Cause: cause, Err: err}
	}

	c.to(Running, "agent started")
	cause, status := c.supervise(s, proc)

	c.drain(s)
	if cause == CauseChildExit && !status.Success() {
		c.writeLine("agent " + status.String())
	}
	c.teardown(s)
	c.to(Closed, "session released")

	res := Result{Cause: cause, Exited: true, Status: status}
	if cause == CauseChildExit && !status.Success() {
		res.Err = &UnexpectedExit{Status: status}
	}
	return res
}

// launch resolves and starts the agent while still serving the surface.
func (c *Controller) launch(ctx context.Context, s *session) (bridge.Process, *request, error) {
	cmd := c.opts.Agent
	cmd.Role = launcher.RoleAgent

	if c.opts.Resolver != nil {
		rctx, cancel := context.WithCancel(ctx)
		defer cancel()

		type resolved struct {
			candidate resolver.Candidate
			err       error
		}
		ch := make(chan resolved, 1)
		go func() {
			candidate, err := c.opts.Resolver.Resolve(rctx)
			ch <- resolved{candidate, err}
		}()

	wait:
		for {
			select {
			case r := <-ch:
				if r.err != nil {
					return nil, nil, r.err
				}
				cmd.Path = r.candidate.Path
				c.logger.Info("agent resolved",
					zap.String("path", r.candidate.Path),
					zap.String("source", string(r.candidate.Source)))
				break wait
			case ev, ok := <-s.events:
				if stop := c.handleEvent(s, ev, ok); stop != nil {
					return nil, stop, nil
				}
			case req := <-c.requests:
				return nil, &req, nil
			case <-s.ctxDone:
				return nil, &request{cause: CauseCancelled, reason: "context cancelled"}, nil
			}
		}
	}

	proc, err := c.bridge.Launch(cmd)
	if err != nil {
		return nil, nil, err
	}
	return proc, nil, nil
}

// supervise serves the running agent until its termination is observed.
func (c *Controller) supervise(s *session, proc bridge.Process) (Cause, launcher.Status) {
	s.running = true
	for _, p := range s.pending {
		s.input.Send(p)
	}
	s.pending = nil

	cause := CauseChildExit
	stopping := false
	var killTimer *time.Timer
	var kill <-chan time.Time
	defer func() {
		if killTimer != nil {
			killTimer.Stop()
		}
	}()

	stop := func(req request) {
		if !stopping {
			stopping = true
			cause = req.cause
			c.to(Closing, req.reason)
			if c.opts.KillGrace > 0 {
				killTimer = time.NewTimer(c.opts.KillGrace)
				kill = killTimer.C
			}
		}
		sig := req.sig
		if sig == nil {
			sig = c.opts.QuitSignal
		}
		if err := proc.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
			c.logger.Warn("failed to signal agent", zap.Stringer("signal", sig), zap.Error(err))
		}
	}

	for {
		select {
		case <-proc.Done():
			status, _ := proc.Status()
			if !stopping {
				c.to(Closing, "agent "+status.String())
			}
			return cause, status
		case ev, ok := <-s.events:
			if req := c.handleEvent(s, ev, ok); req != nil {
				stop(*req)
			}
		case req := <-c.requests:
			stop(req)
		case <-s.ctxDone:
			s.ctxDone = nil
			stop(request{cause: CauseCancelled, reason: "context cancelled"})
		case <-kill:
			kill = nil
			c.logger.Warn("agent ignored termination, killing", zap.Duration("grace", c.opts.KillGrace))
			if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				c.logger.Warn("failed to kill agent", zap.Error(err))
			}
		}
	}
}

// handleEvent applies one surface event and returns a stop request when the
// event ends the session. Input arriving before the agent runs is queued.
func (c *Controller) handleEvent(s *session, ev surface.Event, ok bool) *request {
	if !ok {
		s.events = nil
		return &request{cause: CauseUserQuit, reason: "display surface closed"}
	}

	switch ev.Kind {
	case surface.KindInput:
		if s.running {
			s.input.Send(ev.Data)
		} else {
			s.pending = append(s.pending, ev.Data)
		}
	case surface.KindResize:
		g, err := c.bridge.Resize(ev.Cols, ev.Rows)
		if err != nil {
			c.logger.Warn("resize failed", zap.Int("cols", ev.Cols), zap.Int("rows", ev.Rows), zap.Error(err))
			break
		}
		c.logger.Debug("geometry synced", zap.Int("cols", g.Cols), zap.Int("rows", g.Rows))
	case surface.KindQuit:
		reason := ev.Reason
		if reason == "" {
			reason = "user quit"
		}
		return &request{cause: CauseUserQuit, sig: c.opts.QuitSignal, reason: reason}
	}
	return nil
}

// abort ends a session that never reached Running.
func (c *Controller) abort(s *session, req request) Result {
	c.teardown(s)
	c.to(Closed, req.reason)
	return Result{Cause: req.cause}
}

// drain releases the slave so buffered output reaches the surface before
// the master closes.
func (c *Controller) drain(s *session) {
	if err := c.bridge.ReleaseSlave(); err != nil {
		c.logger.Debug("release slave", zap.Error(err))
	}
	select {
	case <-s.output.Done():
	case <-time.After(c.opts.DrainTimeout):
		c.logger.Debug("output drain timed out", zap.Int64("bytes", s.output.Forwarded()))
	}
}

func (c *Controller) teardown(s *session) {
	c.teardownOnce.Do(func() {
		s.input.Close()
		if err := c.bridge.Close(); err != nil {
			c.logger.Warn("failed to release pty", zap.Error(err))
		}
		select {
		case <-s.output.Done():
		case <-time.After(c.opts.DrainTimeout):
			c.logger.Warn("output relay did not stop")
		}
	})
}

func (c *Controller) to(next State, reason string) {
	t, err := c.machine.To(next, reason)
	if err != nil {
		c.logger.Error("state transition rejected", zap.Error(err))
		return
	}

	c.metrics.RecordTransition(t.From.String(), t.To.String())
	c.logger.Info("state changed",
		zap.Stringer("from", t.From),
		zap.Stringer("to", t.To),
		zap.String("reason", reason))

	if rec := c.opts.Recorder; rec != nil {
		if err := rec.RecordTransition(c.id, t); err != nil {
			c.logger.Warn("failed to record transition", zap.Error(err))
		}
	}
}

// report writes a one-line diagnostic to the surface.
func (c *Controller) report(format string, args ...interface{}) {
	c.writeLine("ERR: " + fmt.Sprintf(format, args...))
}

func (c *Controller) writeLine(line string) {
	gate := c.bridge.Gate()
	gate.Lock()
	defer gate.Unlock()
	if _, err := io.WriteString(c.surface, line+"\r\n"); err != nil {
		c.logger.Debug("diagnostic not delivered", zap.Error(err))
	}
}
