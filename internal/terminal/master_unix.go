//go:build !windows

package terminal

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// pollable hands back master as a non-blocking file registered with the
// runtime poller, so closing it interrupts a pending Read. The original
// handle is closed. Fd must never be called on the result: it would switch
// the descriptor back to blocking mode.
func pollable(master *os.File) (*os.File, error) {
	fd, err := unix.FcntlInt(master.Fd(), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("dup master: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("set master non-blocking: %w", err)
	}
	name := master.Name()
	if err := master.Close(); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return os.NewFile(uintptr(fd), name), nil
}

func setsize(master *os.File, g Geometry) error {
	return control(master, func(fd int) error {
		return unix.IoctlSetWinsize(fd, unix.TIOCSWINSZ, &unix.Winsize{
			Col: uint16(g.Cols),
			Row: uint16(g.Rows),
		})
	})
}

func getsize(master *os.File) (Geometry, error) {
	var ws *unix.Winsize
	err := control(master, func(fd int) error {
		var err error
		ws, err = unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
		return err
	})
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{Cols: int(ws.Col), Rows: int(ws.Row)}, nil
}

// control runs fn on the raw descriptor without leaving the poller.
func control(f *os.File, fn func(fd int) error) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var opErr error
	if err := rc.Control(func(fd uintptr) { opErr = fn(int(fd)) }); err != nil {
		return err
	}
	return opErr
}
