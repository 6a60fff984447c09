//go:build !windows

package launcher

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// sysProcAttr makes the child a session leader whose controlling terminal is
// its stdin (the slave).
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0,
	}
}

func signalGroup(p *os.Process, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return p.Signal(sig)
	}
	// The child is a session leader, so its pid is also its process group id.
	err := unix.Kill(-p.Pid, s)
	if errors.Is(err, unix.ESRCH) {
		return p.Signal(sig)
	}
	return err
}

func statusOf(state *os.ProcessState, err error) Status {
	if state == nil {
		return Status{Code: -1}
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return Status{Signaled: true, Signal: ws.Signal()}
	}
	return Status{Code: state.ExitCode()}
}
