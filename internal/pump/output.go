package pump

import (
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/termbridge/internal/infrastructure/monitoring"
)

// BufferSize is the read size used by the output relay.
const BufferSize = 8192

// Output is the master → surface relay.
type Output struct {
	src  io.Reader
	gate sync.Locker

	// sink is guarded by gate.
	sink io.Writer

	started atomic.Bool
	done    chan struct{}
	err     error
	total   atomic.Int64

	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewOutput creates a relay from src to sink. gate is held around every
// forward, so whoever else holds it (a resize, a sink switch) is ordered
// against the stream. A nil gate gets a private mutex.
func NewOutput(src io.Reader, sink io.Writer, gate sync.Locker, logger *zap.Logger, metrics *monitoring.Metrics) *Output {
	if gate == nil {
		gate = &sync.Mutex{}
	}
	if sink == nil {
		sink = io.Discard
	}
	return &Output{
		src:     src,
		sink:    sink,
		gate:    gate,
		done:    make(chan struct{}),
		logger:  logger.Named("output"),
		metrics: metrics,
	}
}

// Start launches the relay goroutine. Calling it again is a no-op.
func (o *Output) Start() {
	if o.started.CompareAndSwap(false, true) {
		go o.run()
	}
}

// Done is closed once the relay has stopped.
func (o *Output) Done() <-chan struct{} {
	return o.done
}

// Err returns the read error that stopped the relay. End of stream and a
// closed master are clean stops and yield nil. Only valid after Done.
func (o *Output) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// Forwarded returns the number of bytes read from the source so far.
func (o *Output) Forwarded() int64 {
	return o.total.Load()
}

// Switch replaces the sink. Bytes read after Switch returns go to w.
func (o *Output) Switch(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	o.gate.Lock()
	o.sink = w
	o.gate.Unlock()
}

func (o *Output) run() {
	defer close(o.done)

	buf := make([]byte, BufferSize)
	for {
		n, err := o.src.Read(buf)
		if n > 0 {
			o.forward(buf[:n])
		}
		if err != nil {
			if !endOfStream(err) {
				o.err = &RuntimeIOError{Op: "read", Err: err}
				o.logger.Debug("output relay stopped", zap.Error(err))
			} else {
				o.logger.Debug("output closed", zap.Int64("bytes", o.total.Load()))
			}
			return
		}
		if n == 0 {
			o.logger.Debug("output closed on empty read", zap.Int64("bytes", o.total.Load()))
			return
		}
	}
}

func (o *Output) forward(p []byte) {
	o.total.Add(int64(len(p)))
	o.metrics.AddOutput(len(p))

	o.gate.Lock()
	_, err := o.sink.Write(p)
	o.gate.Unlock()

	if err != nil {
		o.metrics.IncSurfaceErrors()
		o.logger.Debug("surface write failed",
			zap.Error(&RuntimeIOError{Op: "forward", Err: err}))
	}
}

// endOfStream reports the ways a master read ends once the slave side is
// gone or the master itself was closed. Linux reports a hung-up pty as EIO.
func endOfStream(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, syscall.EIO)
}
