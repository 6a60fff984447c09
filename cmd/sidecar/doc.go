// Package main is the sidecar entry point: one embedded terminal session
// served to a webview over a websocket.
//
// The host application (a desktop shell) spawns the sidecar, connects to
// /pty and renders the byte stream in its terminal widget.
//
//	webview ⇄ websocket ⇄ sidecar ⇄ PTY master ⇄ agent
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	./sidecar -port 8787
//
//	# Development mode (colored logs, debug level)
//	./sidecar -dev
//
// Signals:
//   - With BRIDGE_EXIT_WITH_SESSION, SIGINT/SIGTERM/SIGHUP/SIGQUIT go to the
//     attached agent and the sidecar exits the way the agent did
//   - Otherwise, and with no session attached: graceful shutdown
package main
