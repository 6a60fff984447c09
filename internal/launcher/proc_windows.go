//go:build windows

package launcher

import (
	"os"
	"syscall"
)

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{}
}

func signalGroup(p *os.Process, sig os.Signal) error {
	if sig == os.Interrupt {
		// Windows has no SIGINT delivery to other processes.
		return p.Kill()
	}
	return p.Signal(sig)
}

func statusOf(state *os.ProcessState, err error) Status {
	if state == nil {
		return Status{Code: -1}
	}
	return Status{Code: state.ExitCode()}
}
