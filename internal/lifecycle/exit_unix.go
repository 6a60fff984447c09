//go:build !windows

package lifecycle

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// reraisable signals terminate a Go process once their handler is reset.
// Others (SIGSEGV, SIGQUIT...) are owned by the runtime and map to 128+N.
var reraisable = map[syscall.Signal]bool{
	unix.SIGHUP:  true,
	unix.SIGINT:  true,
	unix.SIGTERM: true,
	unix.SIGKILL: true,
	unix.SIGPIPE: true,
	unix.SIGALRM: true,
	unix.SIGUSR1: true,
	unix.SIGUSR2: true,
}

// exitPlan decides how the host ends: re-raise sig, or exit with code.
func exitPlan(r Result) (sig syscall.Signal, reraise bool, code int) {
	code = r.ExitCode()
	if r.Exited && r.Status.Signaled && reraisable[r.Status.Signal] {
		return r.Status.Signal, true, code
	}
	return 0, false, code
}

// Exit terminates the host the way the session ended: the agent's exit
// code, or the agent's terminating signal re-raised on the host.
func Exit(r Result) {
	sig, reraise, code := exitPlan(r)
	if reraise {
		signal.Reset(sig)
		_ = unix.Kill(os.Getpid(), sig)
		// Delivery is asynchronous.
		time.Sleep(100 * time.Millisecond)
	}
	os.Exit(code)
}
