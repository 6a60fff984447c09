package tty

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/termbridge/internal/surface"
)

func TestParseQuitKey(t *testing.T) {
	tests := []struct {
		name    string
		want    byte
		wantErr bool
	}{
		{name: "ctrl-]", want: 0x1d},
		{name: "CTRL-Q", want: 0x11},
		{name: "ctrl-\\", want: 0x1c},
		{name: "^c", want: 0x03},
		{name: "", want: 0},
		{name: "none", want: 0},
		{name: "ctrl-1", wantErr: true},
		{name: "alt-x", wantErr: true},
		{name: "ctrl-ab", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuitKey(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func next(t *testing.T, s *Surface) (surface.Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		return ev, ok
	case <-time.After(5 * time.Second):
		t.Fatal("no event")
		return surface.Event{}, false
	}
}

func openPiped(t *testing.T, quitKey byte) (*Surface, *os.File, *os.File) {
	t.Helper()
	inR, inW, err := os.Pipe()
	require.NoError(t, err)
	outR, outW, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = inW.Close()
		_ = inR.Close()
		_ = outR.Close()
		_ = outW.Close()
	})

	s, err := Open(inR, outW, quitKey, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, inW, outR
}

func TestSurfaceRelaysInputAndQuitKey(t *testing.T) {
	s, in, _ := openPiped(t, 0x1d)

	_, err := in.Write([]byte("ls\r"))
	require.NoError(t, err)
	ev, ok := next(t, s)
	require.True(t, ok)
	assert.Equal(t, surface.Input([]byte("ls\r")), ev)

	_, err = in.Write([]byte("q\x1dignored"))
	require.NoError(t, err)
	ev, _ = next(t, s)
	assert.Equal(t, surface.Input([]byte("q")), ev)
	ev, _ = next(t, s)
	assert.Equal(t, surface.KindQuit, ev.Kind)

	_, ok = next(t, s)
	assert.False(t, ok, "events close after quit")
}

func TestSurfaceQuitsWhenStdinEnds(t *testing.T) {
	s, in, _ := openPiped(t, 0)
	require.NoError(t, in.Close())

	ev, ok := next(t, s)
	require.True(t, ok)
	assert.Equal(t, surface.KindQuit, ev.Kind)
	assert.Equal(t, "stdin closed", ev.Reason)
}

func TestSurfaceWrite(t *testing.T) {
	s, _, out := openPiped(t, 0)

	n, err := s.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	_, err = out.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
