package pump

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/termbridge/internal/infrastructure/monitoring"
)

// syncBuffer is a goroutine-safe sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func (b *syncBuffer) String() string {
	return string(b.Bytes())
}

// chunkReader returns data in uneven slices.
type chunkReader struct {
	data   []byte
	sizes  []int
	i      int
	finish error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.finish
	}
	n := r.sizes[r.i%len(r.sizes)]
	r.i++
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func pattern(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i % 251)
	}
	return out
}

func waitDone(t *testing.T, o *Output) {
	t.Helper()
	select {
	case <-o.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("output relay did not stop")
	}
}

func TestOutputPreservesOrderAcrossReads(t *testing.T) {
	payload := pattern(3*BufferSize + 17)
	sink := &syncBuffer{}
	metrics := monitoring.NewMetrics()

	o := NewOutput(&chunkReader{data: append([]byte(nil), payload...), sizes: []int{1, 7, 4096, 3, 9000}, finish: io.EOF},
		sink, nil, zaptest.NewLogger(t), metrics)
	o.Start()
	waitDone(t, o)

	assert.NoError(t, o.Err())
	assert.Equal(t, payload, sink.Bytes())
	assert.Equal(t, int64(len(payload)), o.Forwarded())
	assert.Equal(t, float64(len(payload)), testutil.ToFloat64(metrics.OutputBytes))
}

func TestOutputStopConditions(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		finish  error
		wantErr bool
	}{
		{name: "eof", finish: io.EOF},
		{name: "empty read", finish: nil},
		{name: "read error", finish: boom, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &syncBuffer{}
			o := NewOutput(&chunkReader{data: []byte("tail"), sizes: []int{2}, finish: tt.finish},
				sink, nil, zaptest.NewLogger(t), nil)
			o.Start()
			waitDone(t, o)

			assert.Equal(t, "tail", sink.String())
			if tt.wantErr {
				var ioErr *RuntimeIOError
				require.True(t, errors.As(o.Err(), &ioErr))
				assert.Equal(t, "read", ioErr.Op)
				assert.ErrorIs(t, o.Err(), boom)
			} else {
				assert.NoError(t, o.Err())
			}
		})
	}
}

type failingWriter struct {
	calls atomic.Int32
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls.Add(1)
	return 0, errors.New("surface gone")
}

func TestOutputSurvivesSinkErrors(t *testing.T) {
	sink := &failingWriter{}
	metrics := monitoring.NewMetrics()

	o := NewOutput(&chunkReader{data: []byte("abcdef"), sizes: []int{2}, finish: io.EOF},
		sink, nil, zaptest.NewLogger(t), metrics)
	o.Start()
	waitDone(t, o)

	assert.NoError(t, o.Err())
	assert.Equal(t, int32(3), sink.calls.Load())
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.SurfaceErrors))
}

func TestOutputStartIsIdempotent(t *testing.T) {
	sink := &syncBuffer{}
	o := NewOutput(&chunkReader{data: []byte("once"), sizes: []int{4}, finish: io.EOF},
		sink, nil, zaptest.NewLogger(t), nil)
	o.Start()
	o.Start()
	waitDone(t, o)
	assert.Equal(t, "once", sink.String())
}

func TestOutputErrBeforeDone(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	o := NewOutput(r, nil, nil, zaptest.NewLogger(t), nil)
	o.Start()
	assert.NoError(t, o.Err())

	require.NoError(t, w.CloseWithError(errors.New("late")))
	waitDone(t, o)
	assert.Error(t, o.Err())
}

func TestOutputSwitchSink(t *testing.T) {
	r, w := io.Pipe()
	first, second := &syncBuffer{}, &syncBuffer{}

	o := NewOutput(r, first, nil, zaptest.NewLogger(t), nil)
	o.Start()

	_, err := w.Write([]byte("smoke"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return first.String() == "smoke" }, 5*time.Second, 5*time.Millisecond)

	o.Switch(second)
	_, err = w.Write([]byte("agent"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	waitDone(t, o)

	assert.Equal(t, "smoke", first.String())
	assert.Equal(t, "agent", second.String())
}

func TestOutputHonorsGate(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	gate := &sync.Mutex{}
	sink := &syncBuffer{}
	o := NewOutput(r, sink, gate, zaptest.NewLogger(t), nil)
	o.Start()

	gate.Lock()
	go func() { _, _ = w.Write([]byte("after-resize")) }()

	// Read has happened but the forward waits for the gate.
	assert.Never(t, func() bool { return sink.String() != "" }, 100*time.Millisecond, 10*time.Millisecond)
	gate.Unlock()

	assert.Eventually(t, func() bool { return sink.String() == "after-resize" }, 5*time.Second, 5*time.Millisecond)
}

func TestEndOfStream(t *testing.T) {
	assert.True(t, endOfStream(io.EOF))
	assert.False(t, endOfStream(errors.New("other")))
}

type serialWriter struct {
	inside  atomic.Int32
	overlap atomic.Bool
	buf     syncBuffer
}

func (w *serialWriter) Write(p []byte) (int, error) {
	if w.inside.Add(1) > 1 {
		w.overlap.Store(true)
	}
	defer w.inside.Add(-1)
	time.Sleep(time.Millisecond)
	return w.buf.Write(p)
}

func TestInputSerializesWrites(t *testing.T) {
	dst := &serialWriter{}
	metrics := monitoring.NewMetrics()
	in := NewInput(dst, zaptest.NewLogger(t), metrics)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, in.Send([]byte("key")))
		}()
	}
	wg.Wait()

	assert.False(t, dst.overlap.Load())
	assert.Len(t, dst.buf.Bytes(), 16*3)
	assert.Equal(t, float64(48), testutil.ToFloat64(metrics.InputBytes))
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }

func TestInputSwallowsFailures(t *testing.T) {
	tests := []struct {
		name string
		dst  io.Writer
	}{
		{name: "write error", dst: &failingWriter{}},
		{name: "short write", dst: shortWriter{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := monitoring.NewMetrics()
			in := NewInput(tt.dst, zaptest.NewLogger(t), metrics)

			assert.NotPanics(t, func() {
				assert.False(t, in.Send([]byte("lost")))
			})
			assert.Equal(t, float64(1), testutil.ToFloat64(metrics.InputErrors))
		})
	}
}

func TestInputClose(t *testing.T) {
	dst := &syncBuffer{}
	in := NewInput(dst, zaptest.NewLogger(t), nil)

	assert.True(t, in.Send(nil))
	assert.True(t, in.Send([]byte("a")))
	in.Close()
	assert.False(t, in.Send([]byte("b")))
	assert.Equal(t, "a", dst.String())
}
