package lifecycle

import (
	"fmt"
	"os"
	"strings"
	"syscall"
)

// ForwardedSignals are the host signals relayed to the agent by default.
var ForwardedSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// ParseSignal accepts INT, TERM and KILL with or without the SIG prefix.
func ParseSignal(name string) (os.Signal, error) {
	switch strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(name)), "SIG") {
	case "", "TERM":
		return syscall.SIGTERM, nil
	case "INT":
		return os.Interrupt, nil
	case "KILL":
		return os.Kill, nil
	}
	return nil, fmt.Errorf("unknown signal %q", name)
}

// SignalName returns the signal's description.
func SignalName(sig syscall.Signal) string {
	return sig.String()
}
