package lifecycle

import (
	"os"
	"os/signal"
)

// Forward intercepts sigs on the host and hands them to c instead of letting
// them terminate the supervisor. Call the returned function to stop.
func Forward(c *Controller, sigs ...os.Signal) (stop func()) {
	if len(sigs) == 0 {
		sigs = ForwardedSignals
	}
	ch := make(chan os.Signal, 4)
	done := make(chan struct{})
	signal.Notify(ch, sigs...)

	go func() {
		for {
			select {
			case sig := <-ch:
				c.Signal(sig)
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
