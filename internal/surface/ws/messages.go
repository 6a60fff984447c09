package ws

import "time"

// Control message types.
const (
	TypeInput  = "input"
	TypeResize = "resize"
	TypeQuit   = "quit"
	TypePing   = "ping"
	TypePong   = "pong"
	TypeExit   = "exit"
	TypeError  = "error"
)

// ControlMessage is an inbound text frame.
type ControlMessage struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Cols int    `json:"cols,omitempty"`
	Rows int    `json:"rows,omitempty"`
}

// ExitMessage is the last frame of a session.
type ExitMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Code      int    `json:"code"`
	Signal    string `json:"signal,omitempty"`
	Cause     string `json:"cause"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewExitMessage stamps an exit frame.
func NewExitMessage(sessionID string, code int, signal, cause string, err error) ExitMessage {
	msg := ExitMessage{
		Type:      TypeExit,
		SessionID: sessionID,
		Code:      code,
		Signal:    signal,
		Cause:     cause,
		Timestamp: time.Now().Unix(),
	}
	if err != nil {
		msg.Error = err.Error()
	}
	return msg
}

type errorMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type pongMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}
