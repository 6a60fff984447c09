package terminal

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/termbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termbridge/internal/shared/id"
)

var (
	// ErrClosed is returned for operations on a released session.
	ErrClosed = errors.New("pty session closed")
	// ErrSlaveReleased is returned when a child is launched after the slave was handed back.
	ErrSlaveReleased = errors.New("pty slave already released")
)

// Session is one allocated master/slave pair.
type Session struct {
	id     id.SessionID
	master *os.File

	// gate orders geometry changes against output forwarding.
	gate sync.Mutex

	mu       sync.Mutex
	slave    *os.File
	geometry Geometry
	closed   bool

	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// ID returns the session identifier.
func (s *Session) ID() id.SessionID {
	return s.id
}

// Master returns the supervisor-facing handle.
func (s *Session) Master() *os.File {
	return s.master
}

// Slave returns the handle to bind to a child's standard streams.
func (s *Session) Slave() (*os.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.slave == nil {
		return nil, ErrSlaveReleased
	}
	return s.slave, nil
}

// Gate is held by Resize; the output relay takes it around each forward so a
// completed resize always precedes the next forwarded chunk.
func (s *Session) Gate() sync.Locker {
	return &s.gate
}

// Geometry returns the last applied geometry.
func (s *Session) Geometry() Geometry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.geometry
}

// QueryGeometry asks the OS for the current window size of the pair.
func (s *Session) QueryGeometry() (Geometry, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return Geometry{}, ErrClosed
	}

	g, err := getsize(s.master)
	if err != nil {
		return Geometry{}, fmt.Errorf("query pty size: %w", err)
	}
	return g, nil
}

// Resize applies a new geometry, clamped to the minimums. It reports whether
// the ioctl was issued; an unchanged geometry is a no-op.
func (s *Session) Resize(cols, rows int) (Geometry, bool, error) {
	want := Geometry{Cols: cols, Rows: rows}.Clamp()

	s.gate.Lock()
	defer s.gate.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.geometry, false, ErrClosed
	}
	if want == s.geometry {
		s.metrics.RecordResize("skipped")
		return want, false, nil
	}

	if err := setsize(s.master, want); err != nil {
		s.metrics.RecordResize("error")
		return s.geometry, false, fmt.Errorf("resize pty to %s: %w", want, err)
	}

	s.logger.Debug("pty resized",
		zap.String("from", s.geometry.String()),
		zap.String("to", want.String()))
	s.geometry = want
	s.metrics.RecordResize("applied")
	return want, true, nil
}

// ReleaseSlave closes the supervisor's copy of the slave handle. Once every
// child copy is gone too, reads on the master drain and then fail, which is
// how the output relay learns that nothing more will arrive.
func (s *Session) ReleaseSlave() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.slave == nil {
		return nil
	}
	err := s.slave.Close()
	s.slave = nil
	return err
}

// Close releases both handles. Safe to call more than once. A Read pending
// on the master returns once it is closed, even while a child still holds
// the slave.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	slave := s.slave
	s.slave = nil
	s.mu.Unlock()

	var errs []error
	if slave != nil {
		if err := slave.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close slave: %w", err))
		}
	}
	if err := s.master.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close master: %w", err))
	}

	s.logger.Debug("pty session released")
	return errors.Join(errs...)
}
