// Package bridge defines the TerminalBridge: one abstraction over PTY
// allocation, geometry, child launch and master I/O, shared by the native
// host and the sidecar.
package bridge

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/GriffinCanCode/termbridge/internal/launcher"
	"github.com/GriffinCanCode/termbridge/internal/shared/id"
	"github.com/GriffinCanCode/termbridge/internal/terminal"
)

var (
	// ErrNoSession is returned before Allocate or after Close.
	ErrNoSession = errors.New("no pty session allocated")
	// ErrSessionActive is returned by Allocate while a session is open.
	ErrSessionActive = errors.New("pty session already allocated")
)

// Process is a launched child as seen by the lifecycle controller.
type Process interface {
	Done() <-chan struct{}
	Status() (launcher.Status, bool)
	Signal(sig os.Signal) error
	Kill() error
}

// Bridge is everything the lifecycle controller needs from a PTY binding.
// Read and Write act on the master side.
type Bridge interface {
	io.ReadWriter

	Allocate(size terminal.Geometry) (id.SessionID, error)
	Resize(cols, rows int) (terminal.Geometry, error)
	Geometry() terminal.Geometry
	Launch(cmd launcher.Command) (Process, error)

	// Gate is held around every forwarded output chunk and by Resize.
	Gate() sync.Locker

	// ReleaseSlave drops the supervisor's slave handle so output drains
	// to end-of-stream once the child is gone.
	ReleaseSlave() error
	Close() error
}
