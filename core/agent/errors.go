package agent

import (
	"errors"
	"fmt"

	"github.com/koscakluka/ema-sphere/core/credentials"
)

var (
	ErrNotConnected = errors.New("agent socket is not connected")
	ErrConnect      = errors.New("failed to connect to agent")
	ErrAborted      = errors.New("agent connection aborted")
	// ErrTransport wraps socket failures after the connection was open.
	ErrTransport = errors.New("agent connection error")
	// ErrAgent is the parent of every error reported by the backend that is
	// not a credential rejection.
	ErrAgent = errors.New("agent error")
)

// Error is an error message sent by the backend.
type Error struct {
	Message string
	Code    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("agent error %s: %s", e.Code, e.Message)
	}
	return "agent error: " + e.Message
}

func (e *Error) Unwrap() error {
	if e.Code == CodeInvalidToken {
		return credentials.ErrRejected
	}
	return ErrAgent
}
