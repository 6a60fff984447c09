package pump

import "fmt"

// RuntimeIOError is a relay I/O failure. It is logged and counted, never
// surfaced to the user.
type RuntimeIOError struct {
	Op  string // "read", "write" or "forward"
	Err error
}

func (e *RuntimeIOError) Error() string {
	return fmt.Sprintf("pty %s: %v", e.Op, e.Err)
}

func (e *RuntimeIOError) Unwrap() error { return e.Err }
