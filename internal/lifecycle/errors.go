package lifecycle

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/termbridge/internal/launcher"
)

// ErrAlreadyRun is returned by a second Run. A reset needs a new Controller.
var ErrAlreadyRun = errors.New("controller already run")

// Cause says why a session ended.
type Cause string

const (
	CauseChildExit  Cause = "child-exit"
	CauseUserQuit   Cause = "user-quit"
	CauseSignal     Cause = "signal"
	CauseCancelled  Cause = "cancelled"
	CauseAllocation Cause = "allocation-failed"
	CauseSmoke      Cause = "smoke-failed"
	CauseResolution Cause = "resolution-failed"
	CauseLaunch     Cause = "launch-failed"
)

// SmokeError reports a smoke test that ran but did not pass.
type SmokeError struct {
	Reason string
	Output string
}

func (e *SmokeError) Error() string {
	return "smoke test failed: " + e.Reason
}

// UnexpectedExit is a non-zero agent exit the user did not ask for. It is
// informational: the session still ended normally.
type UnexpectedExit struct {
	Status launcher.Status
}

func (e *UnexpectedExit) Error() string {
	return fmt.Sprintf("agent ended unexpectedly: %s", e.Status)
}
