package lifecycle

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GriffinCanCode/termbridge/internal/launcher"
)

func TestResultExitCode(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want int
	}{
		{name: "clean exit", res: Result{Exited: true}, want: 0},
		{name: "exit code", res: Result{Exited: true, Status: launcher.Status{Code: 42}}, want: 42},
		{name: "signal", res: Result{Exited: true, Status: launcher.Status{Signaled: true, Signal: syscall.SIGTERM}}, want: 128 + 15},
		{name: "failure before agent", res: Result{Cause: CauseResolution, Err: errors.New("not found")}, want: 1},
		{name: "quit before agent", res: Result{Cause: CauseUserQuit}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.res.ExitCode())
		})
	}
}

func TestResultErrorText(t *testing.T) {
	assert.Empty(t, Result{}.ErrorText())
	assert.Equal(t, "agent ended unexpectedly: exit status 2",
		Result{Err: &UnexpectedExit{Status: launcher.Status{Code: 2}}}.ErrorText())
}

func TestSmokeErrorMessage(t *testing.T) {
	err := &SmokeError{Reason: "echo pty ok (exit status 1)"}
	assert.Equal(t, "smoke test failed: echo pty ok (exit status 1)", err.Error())
}
