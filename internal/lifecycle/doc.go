// Package lifecycle drives one embedded session from allocation to teardown.
//
// The Controller owns the state machine
//
//	Idle → SmokeTesting → Ready → Launching → Running → Closing → Closed
//
// and is the only component allowed to close the bridge. A smoke test runs a
// trivial command through the PTY before the agent is resolved and launched.
// While the agent runs, surface events feed the input relay and the geometry,
// host signals are forwarded to the child's process group, and the child's
// termination status becomes the session result.
package lifecycle
