package bridge

import (
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/termbridge/internal/launcher"
	"github.com/GriffinCanCode/termbridge/internal/shared/id"
	"github.com/GriffinCanCode/termbridge/internal/terminal"
)

// PTY binds the bridge to an OS pseudo-terminal.
type PTY struct {
	allocator *terminal.Allocator
	launcher  *launcher.Launcher

	mu      sync.Mutex
	session *terminal.Session
	closed  bool

	// gate stands in for the session gate before allocation.
	gate   sync.Mutex
	logger *zap.Logger
}

// NewPTY creates an unallocated bridge.
func NewPTY(allocator *terminal.Allocator, l *launcher.Launcher, logger *zap.Logger) *PTY {
	return &PTY{
		allocator: allocator,
		launcher:  l,
		logger:    logger.Named("bridge"),
	}
}

// Allocate opens the one session this bridge owns.
func (p *PTY) Allocate(size terminal.Geometry) (id.SessionID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != nil || p.closed {
		return "", ErrSessionActive
	}
	session, err := p.allocator.Allocate(size)
	if err != nil {
		return "", err
	}
	p.session = session
	return session.ID(), nil
}

func (p *PTY) current() (*terminal.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil || p.closed {
		return nil, ErrNoSession
	}
	return p.session, nil
}

// Resize applies a geometry to the live session.
func (p *PTY) Resize(cols, rows int) (terminal.Geometry, error) {
	s, err := p.current()
	if err != nil {
		return terminal.Geometry{}, err
	}
	g, _, err := s.Resize(cols, rows)
	return g, err
}

// Geometry returns the last applied geometry.
func (p *PTY) Geometry() terminal.Geometry {
	s, err := p.current()
	if err != nil {
		return terminal.Geometry{}
	}
	return s.Geometry()
}

// Launch starts cmd on the session slave.
func (p *PTY) Launch(cmd launcher.Command) (Process, error) {
	s, err := p.current()
	if err != nil {
		return nil, err
	}
	slave, err := s.Slave()
	if err != nil {
		return nil, &launcher.LaunchError{Path: cmd.Path, Err: err}
	}
	child, err := p.launcher.Launch(cmd, slave)
	if err != nil {
		return nil, err
	}
	return child, nil
}

// Read reads child output from the master. Once the bridge is closed the
// master reports os.ErrClosed.
func (p *PTY) Read(b []byte) (int, error) {
	s, err := p.handle()
	if err != nil {
		return 0, err
	}
	return s.Master().Read(b)
}

// Write writes user input to the master.
func (p *PTY) Write(b []byte) (int, error) {
	s, err := p.handle()
	if err != nil {
		return 0, err
	}
	return s.Master().Write(b)
}

// handle returns the session even after Close, so I/O sees the closed
// master rather than a missing session.
func (p *PTY) handle() (*terminal.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil, ErrNoSession
	}
	return p.session, nil
}

// Gate returns the session gate.
func (p *PTY) Gate() sync.Locker {
	s, err := p.current()
	if err != nil {
		return &p.gate
	}
	return s.Gate()
}

// ReleaseSlave hands the slave back so the master reaches end-of-stream.
func (p *PTY) ReleaseSlave() error {
	s, err := p.current()
	if err != nil {
		return nil
	}
	return s.ReleaseSlave()
}

// Close releases the session. Safe to call more than once.
func (p *PTY) Close() error {
	p.mu.Lock()
	s := p.session
	p.closed = true
	p.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Close()
}
