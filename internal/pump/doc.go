// Package pump relays bytes between a PTY master and a display surface.
//
// Output forwards everything read from the master, in order and without
// interpretation, to a sink. Input serializes writes from the surface onto
// the master and swallows write failures: session end is decided by the
// lifecycle controller, never by a failed write.
package pump
