//go:build !windows

package lifecycle

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// ForwardedSignals are the host signals relayed to the agent by default.
var ForwardedSignals = []os.Signal{unix.SIGINT, unix.SIGTERM, unix.SIGHUP, unix.SIGQUIT}

// ParseSignal accepts "TERM", "SIGTERM", "term" or a signal number.
func ParseSignal(name string) (os.Signal, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == "" {
		return unix.SIGTERM, nil
	}
	if num, err := strconv.Atoi(n); err == nil {
		if num <= 0 || num >= 65 {
			return nil, fmt.Errorf("invalid signal number %d", num)
		}
		return syscall.Signal(num), nil
	}
	if !strings.HasPrefix(n, "SIG") {
		n = "SIG" + n
	}
	sig := unix.SignalNum(n)
	if sig == 0 {
		return nil, fmt.Errorf("unknown signal %q", name)
	}
	return sig, nil
}

// SignalName returns the conventional name, e.g. "SIGTERM".
func SignalName(sig syscall.Signal) string {
	if name := unix.SignalName(sig); name != "" {
		return name
	}
	return "SIG" + strconv.Itoa(int(sig))
}
