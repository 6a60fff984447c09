// Package surface defines the display surface boundary: the host that
// renders output bytes and produces input, resize and quit events.
package surface

import (
	"fmt"
	"io"
)

// Kind distinguishes surface events.
type Kind int

const (
	// KindInput carries raw bytes (keystrokes, paste).
	KindInput Kind = iota
	// KindResize carries a new column/row count.
	KindResize
	// KindQuit is an explicit user quit (quit key, window close).
	KindQuit
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindResize:
		return "resize"
	case KindQuit:
		return "quit"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one thing the surface produced.
type Event struct {
	Kind   Kind
	Data   []byte
	Cols   int
	Rows   int
	Reason string
}

// Input builds an input event.
func Input(p []byte) Event {
	return Event{Kind: KindInput, Data: p}
}

// Resize builds a resize event.
func Resize(cols, rows int) Event {
	return Event{Kind: KindResize, Cols: cols, Rows: rows}
}

// Quit builds a quit event.
func Quit(reason string) Event {
	return Event{Kind: KindQuit, Reason: reason}
}

// Surface renders output and emits events. The events channel is closed
// when the surface goes away, which the controller treats as a quit.
type Surface interface {
	io.Writer
	Events() <-chan Event
}
