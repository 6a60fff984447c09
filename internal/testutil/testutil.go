// Package testutil provides test doubles for the bridge, child processes
// and the display surface.
package testutil

import (
	"bytes"
	"io"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/GriffinCanCode/termbridge/internal/bridge"
	"github.com/GriffinCanCode/termbridge/internal/launcher"
	"github.com/GriffinCanCode/termbridge/internal/shared/id"
	"github.com/GriffinCanCode/termbridge/internal/surface"
	"github.com/GriffinCanCode/termbridge/internal/terminal"
)

// MockBridge is a mock implementation of bridge.Bridge. Read and Write are
// backed by pipes so the output relay blocks like it would on a real master.
type MockBridge struct {
	mock.Mock

	gate sync.Mutex

	outR *io.PipeReader
	outW *io.PipeWriter
	once sync.Once

	inMu    sync.Mutex
	in      bytes.Buffer
	resizes []terminal.Geometry
}

// Allocate mocks the Allocate method.
func (m *MockBridge) Allocate(size terminal.Geometry) (id.SessionID, error) {
	args := m.Called(size)
	return args.Get(0).(id.SessionID), args.Error(1)
}

// Resize mocks the Resize method.
func (m *MockBridge) Resize(cols, rows int) (terminal.Geometry, error) {
	m.inMu.Lock()
	m.resizes = append(m.resizes, terminal.Geometry{Cols: cols, Rows: rows})
	m.inMu.Unlock()

	args := m.Called(cols, rows)
	if fn, ok := args.Get(0).(func(int, int) terminal.Geometry); ok {
		return fn(cols, rows), args.Error(1)
	}
	return args.Get(0).(terminal.Geometry), args.Error(1)
}

// Geometry mocks the Geometry method.
func (m *MockBridge) Geometry() terminal.Geometry {
	args := m.Called()
	return args.Get(0).(terminal.Geometry)
}

// Launch mocks the Launch method.
func (m *MockBridge) Launch(cmd launcher.Command) (bridge.Process, error) {
	args := m.Called(cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(bridge.Process), args.Error(1)
}

// ReleaseSlave mocks the ReleaseSlave method and ends the output stream.
func (m *MockBridge) ReleaseSlave() error {
	args := m.Called()
	m.hangup()
	return args.Error(0)
}

// AllocateOK expects one successful allocation.
func (m *MockBridge) AllocateOK() *mock.Call {
	return m.On("Allocate", mock.Anything).Return(id.SessionID("sess_mock"), nil).Once()
}

// Close mocks the Close method and ends the output stream.
func (m *MockBridge) Close() error {
	args := m.Called()
	m.hangup()
	return args.Error(0)
}

// Gate returns a private mutex.
func (m *MockBridge) Gate() sync.Locker {
	return &m.gate
}

// Read returns bytes passed to EmitOutput.
func (m *MockBridge) Read(p []byte) (int, error) {
	return m.outR.Read(p)
}

// Write records input.
func (m *MockBridge) Write(p []byte) (int, error) {
	m.inMu.Lock()
	defer m.inMu.Unlock()
	return m.in.Write(p)
}

// EmitOutput makes p readable from the master side.
func (m *MockBridge) EmitOutput(p []byte) error {
	_, err := m.outW.Write(p)
	return err
}

// Input returns everything written to the master.
func (m *MockBridge) Input() string {
	m.inMu.Lock()
	defer m.inMu.Unlock()
	return m.in.String()
}

// Resizes returns every requested geometry, unclamped.
func (m *MockBridge) Resizes() []terminal.Geometry {
	m.inMu.Lock()
	defer m.inMu.Unlock()
	return append([]terminal.Geometry(nil), m.resizes...)
}

func (m *MockBridge) hangup() {
	m.once.Do(func() { _ = m.outW.Close() })
}

// NewMockBridge creates a mock bridge with default behaviors: resize echoes
// the clamped request and releasing the slave succeeds. Allocate, Launch and
// Close are left to the test.
func NewMockBridge(t *testing.T) *MockBridge {
	t.Helper()
	m := new(MockBridge)
	m.outR, m.outW = io.Pipe()
	t.Cleanup(m.hangup)

	m.On("Resize", mock.Anything, mock.Anything).
		Return(func(cols, rows int) terminal.Geometry {
			return terminal.Geometry{Cols: cols, Rows: rows}.Clamp()
		}, nil).
		Maybe()

	m.On("Geometry").Return(terminal.Geometry{Cols: 80, Rows: 24}).Maybe()
	m.On("ReleaseSlave").Return(nil).Maybe()

	return m
}

// MockProcess is a controllable bridge.Process.
type MockProcess struct {
	mu      sync.Mutex
	done    chan struct{}
	status  launcher.Status
	exited  bool
	signals []os.Signal

	// OnSignal runs after a signal is recorded, outside the lock.
	OnSignal func(p *MockProcess, sig os.Signal)
}

// NewMockProcess creates a running process.
func NewMockProcess() *MockProcess {
	return &MockProcess{done: make(chan struct{})}
}

// ExitOnSignal returns a process that terminates by the first signal it gets.
func ExitOnSignal() *MockProcess {
	p := NewMockProcess()
	p.OnSignal = func(p *MockProcess, sig os.Signal) {
		if s, ok := sig.(syscall.Signal); ok {
			p.Exit(launcher.Status{Signaled: true, Signal: s})
		}
	}
	return p
}

// Exit records status and closes Done. Only the first call counts.
func (p *MockProcess) Exit(status launcher.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return
	}
	p.exited = true
	p.status = status
	close(p.done)
}

// Done implements bridge.Process.
func (p *MockProcess) Done() <-chan struct{} {
	return p.done
}

// Status implements bridge.Process.
func (p *MockProcess) Status() (launcher.Status, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, p.exited
}

// Signal implements bridge.Process.
func (p *MockProcess) Signal(sig os.Signal) error {
	p.mu.Lock()
	if p.exited {
		p.mu.Unlock()
		return os.ErrProcessDone
	}
	p.signals = append(p.signals, sig)
	hook := p.OnSignal
	p.mu.Unlock()

	if hook != nil {
		hook(p, sig)
	}
	return nil
}

// Kill implements bridge.Process.
func (p *MockProcess) Kill() error {
	return p.Signal(syscall.SIGKILL)
}

// Signals returns every signal delivered while running.
func (p *MockProcess) Signals() []os.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]os.Signal(nil), p.signals...)
}

// Surface is an in-memory display surface.
type Surface struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	events chan surface.Event
	once   sync.Once
}

// NewSurface creates a surface with a buffered event channel.
func NewSurface() *Surface {
	return &Surface{events: make(chan surface.Event, 64)}
}

// Write implements io.Writer.
func (s *Surface) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

// Events implements surface.Surface.
func (s *Surface) Events() <-chan surface.Event {
	return s.events
}

// Emit queues an event.
func (s *Surface) Emit(ev surface.Event) {
	s.events <- ev
}

// CloseEvents closes the event stream, as a disappearing surface would.
func (s *Surface) CloseEvents() {
	s.once.Do(func() { close(s.events) })
}

// Output returns everything rendered so far.
func (s *Surface) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// WaitForOutput polls until the rendered output contains want.
func (s *Surface) WaitForOutput(t *testing.T, want string, timeout time.Duration) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if bytes.Contains([]byte(s.Output()), []byte(want)) {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("output %q does not contain %q", s.Output(), want)
	return false
}
