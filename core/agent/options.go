package agent

import (
	"time"

	"github.com/gorilla/websocket"
)

type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

type ConnectOptions struct {
	StateCallback         func(state ConnectionState)
	ConnectionAckCallback func(connectionID string)
	AudioChunkCallback    func(audio []byte)
	// AudioCompleteCallback receives the optional text of the spoken reply.
	AudioCompleteCallback func(message string)
	AgentResponseCallback func(message string)
	// ErrorCallback receives backend errors as *Error and transport failures
	// wrapping ErrTransport.
	ErrorCallback func(err error)
}

type ConnectOption func(*ConnectOptions)

func WithStateCallback(callback func(state ConnectionState)) ConnectOption {
	return func(o *ConnectOptions) {
		o.StateCallback = callback
	}
}

func WithConnectionAckCallback(callback func(connectionID string)) ConnectOption {
	return func(o *ConnectOptions) {
		o.ConnectionAckCallback = callback
	}
}

func WithAudioChunkCallback(callback func(audio []byte)) ConnectOption {
	return func(o *ConnectOptions) {
		o.AudioChunkCallback = callback
	}
}

func WithAudioCompleteCallback(callback func(message string)) ConnectOption {
	return func(o *ConnectOptions) {
		o.AudioCompleteCallback = callback
	}
}

func WithAgentResponseCallback(callback func(message string)) ConnectOption {
	return func(o *ConnectOptions) {
		o.AgentResponseCallback = callback
	}
}

func WithErrorCallback(callback func(err error)) ConnectOption {
	return func(o *ConnectOptions) {
		o.ErrorCallback = callback
	}
}

func newConnectOptions(opts ...ConnectOption) ConnectOptions {
	options := ConnectOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	if options.StateCallback == nil {
		options.StateCallback = func(ConnectionState) {}
	}
	if options.ConnectionAckCallback == nil {
		options.ConnectionAckCallback = func(string) {}
	}
	if options.AudioChunkCallback == nil {
		options.AudioChunkCallback = func([]byte) {}
	}
	if options.AudioCompleteCallback == nil {
		options.AudioCompleteCallback = func(string) {}
	}
	if options.AgentResponseCallback == nil {
		options.AgentResponseCallback = func(string) {}
	}
	if options.ErrorCallback == nil {
		options.ErrorCallback = func(error) {}
	}
	return options
}

type SessionOption func(*Session)

func WithDialer(dialer *websocket.Dialer) SessionOption {
	return func(s *Session) {
		if dialer != nil {
			s.dialer = dialer
		}
	}
}

func WithConnectTimeout(timeout time.Duration) SessionOption {
	return func(s *Session) {
		if timeout > 0 {
			s.connectTimeout = timeout
		}
	}
}

// WithMessageContext sets the context object sent with every utterance.
func WithMessageContext(context map[string]any) SessionOption {
	return func(s *Session) {
		s.messageContext = context
	}
}
