package lifecycle

import "os"

// Exit terminates the host with the session's exit code.
func Exit(r Result) {
	os.Exit(r.ExitCode())
}
