package pump

import (
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/termbridge/internal/infrastructure/monitoring"
)

// Input is the surface → master relay. All writes to the master go through
// one Input.
type Input struct {
	mu     sync.Mutex
	dst    io.Writer
	closed bool

	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewInput creates a relay writing to dst.
func NewInput(dst io.Writer, logger *zap.Logger, metrics *monitoring.Metrics) *Input {
	return &Input{
		dst:     dst,
		logger:  logger.Named("input"),
		metrics: metrics,
	}
}

// Send writes p verbatim. It reports whether every byte was written; a
// failure is logged and counted but otherwise ignored.
func (in *Input) Send(p []byte) bool {
	if len(p) == 0 {
		return true
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return false
	}

	n, err := in.dst.Write(p)
	if n > 0 {
		in.metrics.AddInput(n)
	}
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		in.metrics.IncInputErrors()
		in.logger.Debug("input dropped",
			zap.Int("bytes", len(p)-n),
			zap.Error(&RuntimeIOError{Op: "write", Err: err}))
		return false
	}
	return true
}

// Close stops the relay. Later sends are dropped.
func (in *Input) Close() {
	in.mu.Lock()
	in.closed = true
	in.mu.Unlock()
}
