// Package tty uses the host terminal as the display surface: stdin is put in
// raw mode and relayed as input, window changes become resize events and a
// configurable key quits.
package tty

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/GriffinCanCode/termbridge/internal/surface"
)

// ParseQuitKey turns "ctrl-]" style names into the byte the terminal sends.
// An empty string or "none" disables the quit key.
func ParseQuitKey(name string) (byte, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "none" {
		return 0, nil
	}

	key, ok := strings.CutPrefix(name, "ctrl-")
	if !ok {
		key, ok = strings.CutPrefix(name, "^")
	}
	if !ok || len(key) != 1 {
		return 0, fmt.Errorf("unsupported quit key %q", name)
	}

	c := key[0]
	switch {
	case c >= 'a' && c <= 'z':
		return c - 'a' + 1, nil
	case c >= '@' && c <= '_':
		return c & 0x1f, nil
	}
	return 0, fmt.Errorf("unsupported quit key %q", name)
}

// Surface is the host terminal.
type Surface struct {
	in      *os.File
	out     io.Writer
	quitKey byte

	events chan surface.Event
	stop   chan struct{}

	restore   func() error
	stopWinch func()
	size      func() (cols, rows int, err error)

	closeOnce sync.Once
	logger    *zap.Logger
}

// Open puts in into raw mode when it is a terminal and starts relaying it.
// The size of out (when it is a terminal) is emitted as the first event.
func Open(in, out *os.File, quitKey byte, logger *zap.Logger) (*Surface, error) {
	s := &Surface{
		in:        in,
		out:       out,
		quitKey:   quitKey,
		events:    make(chan surface.Event, 64),
		stop:      make(chan struct{}),
		restore:   func() error { return nil },
		stopWinch: func() {},
		size:      func() (int, int, error) { return term.GetSize(int(out.Fd())) },
		logger:    logger.Named("tty"),
	}

	if term.IsTerminal(int(in.Fd())) {
		state, err := term.MakeRaw(int(in.Fd()))
		if err != nil {
			return nil, fmt.Errorf("raw mode on host terminal: %w", err)
		}
		s.restore = func() error { return term.Restore(int(in.Fd()), state) }
	}

	if term.IsTerminal(int(out.Fd())) {
		s.emitSize()
		s.stopWinch = watchResize(s.emitSize)
	}

	go s.readLoop()
	return s, nil
}

// Write renders output on the host terminal.
func (s *Surface) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

// Events returns the event stream.
func (s *Surface) Events() <-chan surface.Event {
	return s.events
}

// Close restores the host terminal. Safe to call more than once.
func (s *Surface) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		s.stopWinch()
		err = s.restore()
	})
	return err
}

func (s *Surface) emitSize() {
	cols, rows, err := s.size()
	if err != nil {
		s.logger.Debug("host size unavailable", zap.Error(err))
		return
	}
	s.emit(surface.Resize(cols, rows))
}

func (s *Surface) emit(ev surface.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.stop:
		return false
	}
}

// readLoop ends when stdin ends; the blocked read itself cannot be
// cancelled, so after Close it lingers until the process exits.
func (s *Surface) readLoop() {
	defer close(s.events)

	buf := make([]byte, 4096)
	for {
		n, err := s.in.Read(buf)
		if n > 0 && !s.handle(append([]byte(nil), buf[:n]...)) {
			return
		}
		if err != nil {
			if err != io.EOF {
				s.logger.Debug("stdin closed", zap.Error(err))
			}
			s.emit(surface.Quit("stdin closed"))
			return
		}
	}
}

// handle forwards p, splitting it at the quit key. It reports whether the
// loop should continue.
func (s *Surface) handle(p []byte) bool {
	if s.quitKey != 0 {
		if i := bytes.IndexByte(p, s.quitKey); i >= 0 {
			if i > 0 {
				s.emit(surface.Input(p[:i]))
			}
			s.emit(surface.Quit("quit key"))
			return false
		}
	}
	return s.emit(surface.Input(p))
}
