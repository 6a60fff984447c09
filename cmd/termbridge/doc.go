// Package main runs an agent inside a PTY with the host terminal as the
// display surface.
//
// The supervisor allocates a PTY, checks it with a smoke command, resolves
// and launches the agent, and relays bytes both ways until the agent exits
// or the user presses the quit key. It then exits the way the agent did:
// the same exit code, or the same terminating signal.
//
// Logs go to $TMPDIR/termbridge.log (LOG_OUTPUT overrides) since stdout
// belongs to the session.
//
// Usage:
//
//	BRIDGE_AGENT_SECRET=... ./termbridge -- --model o4-mini
//	./termbridge -agent ./target/debug/codex -no-smoke
package main
