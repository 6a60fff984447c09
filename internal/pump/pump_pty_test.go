//go:build !windows

package pump

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/termbridge/internal/launcher"
	"github.com/GriffinCanCode/termbridge/internal/terminal"
)

func printable(n int) []byte {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	out := make([]byte, n)
	for i := range out {
		if i%80 == 79 {
			out[i] = '\n'
			continue
		}
		out[i] = alphabet[i%len(alphabet)]
	}
	return out
}

func TestOutputRelaysChildPayloadThroughPTY(t *testing.T) {
	logger := zaptest.NewLogger(t)
	payload := printable(64 * 1024)
	file := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(file, payload, 0o600))

	session, err := terminal.NewAllocator(logger, nil).Allocate(terminal.Geometry{Cols: 80, Rows: 24})
	require.NoError(t, err)
	defer session.Close()

	sink := &syncBuffer{}
	out := NewOutput(session.Master(), sink, session.Gate(), logger, nil)
	out.Start()

	slave, err := session.Slave()
	require.NoError(t, err)
	child, err := launcher.New(logger, nil).Launch(launcher.Command{Path: "cat", Args: []string{file}}, slave)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	status, err := child.Wait(ctx)
	require.NoError(t, err)
	require.True(t, status.Success())

	require.NoError(t, session.ReleaseSlave())
	waitDone(t, out)

	assert.NoError(t, out.Err())
	assert.Equal(t, len(payload), len(sink.Bytes()))
	assert.Equal(t, payload, sink.Bytes())
}

func TestInputReachesChildThroughPTY(t *testing.T) {
	logger := zaptest.NewLogger(t)
	session, err := terminal.NewAllocator(logger, nil).Allocate(terminal.Geometry{Cols: 80, Rows: 24})
	require.NoError(t, err)
	defer session.Close()

	sink := &syncBuffer{}
	out := NewOutput(session.Master(), sink, session.Gate(), logger, nil)
	out.Start()
	in := NewInput(session.Master(), logger, nil)

	slave, err := session.Slave()
	require.NoError(t, err)
	child, err := launcher.New(logger, nil).Launch(launcher.Command{Path: "cat"}, slave)
	require.NoError(t, err)
	defer func() { _ = child.Kill() }()

	assert.True(t, in.Send([]byte("ping\n")))
	assert.Eventually(t, func() bool { return strings.Contains(sink.String(), "ping") },
		5*time.Second, 10*time.Millisecond)

	// Raw mode: no echo, so the line appears exactly once.
	assert.Equal(t, 1, strings.Count(sink.String(), "ping"))

	require.NoError(t, session.Close())
	waitDone(t, out)
	assert.NoError(t, out.Err())
}
