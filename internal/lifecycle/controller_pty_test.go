//go:build !windows

package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/termbridge/internal/bridge"
	"github.com/GriffinCanCode/termbridge/internal/launcher"
	"github.com/GriffinCanCode/termbridge/internal/surface"
	"github.com/GriffinCanCode/termbridge/internal/terminal"
	tu "github.com/GriffinCanCode/termbridge/internal/testutil"
)

func newPTYController(t *testing.T, script string, smoke bool) (*Controller, *bridge.PTY, *tu.Surface) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	b := bridge.NewPTY(terminal.NewAllocator(logger, nil), launcher.New(logger, nil), logger)
	t.Cleanup(func() { _ = b.Close() })
	s := tu.NewSurface()

	opts := Options{
		Geometry: terminal.Geometry{Cols: 120, Rows: 32},
		Agent:    launcher.Command{Path: "/bin/sh", Args: []string{"-c", script}},
		Smoke: SmokeOptions{
			Enabled: smoke,
			Command: launcher.Command{Path: "echo", Args: []string{"pty ok"}},
			Expect:  "pty ok",
			Timeout: 5 * time.Second,
		},
		KillGrace: 2 * time.Second,
	}
	return New(b, s, opts, logger, nil), b, s
}

func TestSmokeTestThenAgentExits(t *testing.T) {
	c, _, s := newPTYController(t, "printf agent-ran; exit 0", true)

	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, fullPath, states(res))
	assert.Equal(t, CauseChildExit, res.Cause)
	assert.Equal(t, launcher.Status{}, res.Status)
	assert.Equal(t, 0, res.ExitCode())
	assert.Contains(t, s.Output(), "agent-ran")
	assert.NotContains(t, s.Output(), "pty ok")
}

func TestAgentExitCodeIsMirrored(t *testing.T) {
	c, _, s := newPTYController(t, "exit 7", true)

	res, err := c.Run(context.Background())
	require.NoError(t, err)

	var unexpected *UnexpectedExit
	require.True(t, errors.As(res.Err, &unexpected))
	assert.Equal(t, 7, unexpected.Status.Code)
	assert.Equal(t, 7, res.ExitCode())
	assert.Contains(t, s.Output(), "agent exit status 7\r\n")
}

func TestAgentOutputArrivesIntact(t *testing.T) {
	payload := make([]byte, 48*1024)
	for i := range payload {
		if i%64 == 63 {
			payload[i] = '\n'
		} else {
			payload[i] = byte('A' + i%26)
		}
	}
	file := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(file, payload, 0o600))

	c, _, s := newPTYController(t, "cat "+file, false)
	res, err := c.Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.Status.Success())

	assert.Equal(t, string(payload), s.Output())
}

func TestUserQuitStopsRealAgent(t *testing.T) {
	c, _, s := newPTYController(t, "sleep 30", true)
	done := start(context.Background(), c)
	waitState(t, c, Running)

	s.Emit(surface.Quit("quit key"))
	o := await(t, done)

	require.NoError(t, o.err)
	assert.Equal(t, CauseUserQuit, o.res.Cause)
	assert.Equal(t, launcher.Status{Signaled: true, Signal: syscall.SIGTERM}, o.res.Status)
	assert.Equal(t, fullPath, states(o.res))
}

func TestStubbornAgentIsKilled(t *testing.T) {
	c, _, s := newPTYController(t, `trap "" TERM; printf armed; while :; do sleep 1; done`, false)
	c.opts.KillGrace = 200 * time.Millisecond
	done := start(context.Background(), c)

	s.WaitForOutput(t, "armed", 5*time.Second)
	c.Quit("test")
	o := await(t, done)

	assert.Equal(t, launcher.Status{Signaled: true, Signal: syscall.SIGKILL}, o.res.Status)
}

func TestRealAgentSeesInputAndGeometry(t *testing.T) {
	c, b, s := newPTYController(t, `read line; stty size; echo "got:$line"; sleep 30`, true)
	done := start(context.Background(), c)
	waitState(t, c, Running)

	s.Emit(surface.Resize(100, 40))
	require.Eventually(t, func() bool { return b.Geometry() == terminal.Geometry{Cols: 100, Rows: 40} },
		5*time.Second, 5*time.Millisecond)

	// Raw mode: a carriage return does not end a line, a newline does.
	s.Emit(surface.Input([]byte("hello\n")))
	s.WaitForOutput(t, "got:hello", 5*time.Second)
	assert.Contains(t, s.Output(), "40 100")
	assert.Equal(t, 1, strings.Count(s.Output(), "hello"), "no kernel echo")

	c.Quit("done")
	o := await(t, done)
	assert.Equal(t, CauseUserQuit, o.res.Cause)
}

func TestRealSmokeFailures(t *testing.T) {
	tests := []struct {
		name    string
		command launcher.Command
		check   func(t *testing.T, err error)
	}{
		{
			name:    "exits non-zero",
			command: launcher.Command{Path: "/bin/sh", Args: []string{"-c", "echo pty ok; exit 2"}},
			check: func(t *testing.T, err error) {
				var smokeErr *SmokeError
				assert.True(t, errors.As(err, &smokeErr))
			},
		},
		{
			name:    "missing binary",
			command: launcher.Command{Path: "/nonexistent/echo"},
			check: func(t *testing.T, err error) {
				var launchErr *launcher.LaunchError
				assert.True(t, errors.As(err, &launchErr))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, s := newPTYController(t, "exit 0", true)
			c.opts.Smoke.Command = tt.command

			res, err := c.Run(context.Background())
			tt.check(t, err)
			assert.Equal(t, []State{Idle, SmokeTesting, Closed}, states(res))
			assert.True(t, strings.HasPrefix(s.Output(), "ERR: "), s.Output())
		})
	}
}
