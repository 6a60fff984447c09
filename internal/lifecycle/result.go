package lifecycle

import (
	"github.com/GriffinCanCode/termbridge/internal/launcher"
	"github.com/GriffinCanCode/termbridge/internal/shared/id"
)

// Result is how a session ended.
type Result struct {
	SessionID id.SessionID `json:"session_id"`
	Cause     Cause        `json:"cause"`

	// Exited is set once the agent's termination status was observed.
	Exited bool            `json:"exited"`
	Status launcher.Status `json:"status"`

	// Err is the failure that ended the session, or an *UnexpectedExit.
	Err error `json:"-"`

	Transitions []Transition `json:"transitions"`
}

// ExitCode is the code the host should exit with. A signal death maps to
// 128+N for hosts that cannot re-raise it.
func (r Result) ExitCode() int {
	switch {
	case r.Exited && r.Status.Signaled:
		return 128 + int(r.Status.Signal)
	case r.Exited:
		return r.Status.Code
	case r.Err != nil:
		return 1
	default:
		return 0
	}
}

// ErrorText is Err as a string, empty when nil.
func (r Result) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
