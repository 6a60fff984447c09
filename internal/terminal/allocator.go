package terminal

import (
	"errors"
	"fmt"
	"os"

	"github.com/creack/pty"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/GriffinCanCode/termbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termbridge/internal/shared/id"
)

// AllocationError reports a failed OS step while creating a pair.
type AllocationError struct {
	Op  string // "open", "raw-mode" or "size"
	Err error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("pty allocation failed (%s): %v", e.Op, e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }

// Allocator creates Sessions.
type Allocator struct {
	// open returns a granted, unlocked master and its opened slave.
	open    func() (master, slave *os.File, err error)
	makeRaw func(fd int) error

	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewAllocator returns an allocator backed by the OS pty driver.
func NewAllocator(logger *zap.Logger, metrics *monitoring.Metrics) *Allocator {
	return &Allocator{
		open: pty.Open,
		makeRaw: func(fd int) error {
			_, err := term.MakeRaw(fd)
			return err
		},
		logger:  logger.Named("pty"),
		metrics: metrics,
	}
}

// Allocate opens a new pair, applies raw mode to the slave and sets the
// initial geometry. On failure nothing is leaked.
func (a *Allocator) Allocate(size Geometry) (*Session, error) {
	master, slave, err := a.open()
	if err != nil {
		return nil, &AllocationError{Op: "open", Err: err}
	}

	fail := func(op string, cause error) (*Session, error) {
		err := errors.Join(cause, slave.Close(), master.Close())
		return nil, &AllocationError{Op: op, Err: err}
	}

	if err := a.makeRaw(int(slave.Fd())); err != nil {
		return fail("raw-mode", err)
	}

	polled, err := pollable(master)
	if err != nil {
		return fail("open", err)
	}
	master = polled

	size = size.Clamp()
	if err := setsize(master, size); err != nil {
		return fail("size", err)
	}

	sid := id.NewSessionID()
	logger := a.logger.With(zap.String("session_id", sid.String()))
	logger.Info("pty allocated",
		zap.String("slave", slave.Name()),
		zap.String("geometry", size.String()))

	return &Session{
		id:       sid,
		master:   master,
		slave:    slave,
		geometry: size,
		logger:   logger,
		metrics:  a.metrics,
	}, nil
}
