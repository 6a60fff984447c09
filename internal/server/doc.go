// Package server is the sidecar: an HTTP front end that hands one embedded
// terminal session to a webview over a websocket.
//
// Routes:
//   - GET /pty?cols=&rows=  websocket display surface for a new session
//   - GET /session          current state, transition history, last result
//   - GET /health           liveness
//   - GET /metrics          prometheus exposition
//
// Only one session may be attached at a time; a second /pty request gets
// 409. When the session ends the client receives a final exit frame. With
// ExitWithSession the server accepts no further sessions and publishes the
// result on Done so the process can mirror it; otherwise the next connection
// starts a fresh state machine.
//
// Server Lifecycle:
//  1. NewServer builds the router and middleware stack
//  2. Run listens until its context is cancelled
//  3. Shutdown cancels the active session, waits for it, then stops HTTP
package server
