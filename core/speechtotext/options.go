package speechtotext

import (
	"time"

	"github.com/gorilla/websocket"
)

type TranscriptionOptions struct {
	PartialTranscriptionCallback   func(transcript string)
	CommittedTranscriptionCallback func(transcript string)

	// ErrorCallback receives provider reported errors. The socket stays open.
	ErrorCallback func(err error)
	// ClosedCallback fires when the socket closes without Finalize having
	// been called.
	ClosedCallback func(err error)
}

type TranscriptionOption func(*TranscriptionOptions)

func WithPartialTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.PartialTranscriptionCallback = callback
	}
}

func WithCommittedTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.CommittedTranscriptionCallback = callback
	}
}

func WithErrorCallback(callback func(err error)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.ErrorCallback = callback
	}
}

func WithClosedCallback(callback func(err error)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.ClosedCallback = callback
	}
}

func newTranscriptionOptions(opts ...TranscriptionOption) TranscriptionOptions {
	options := TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	if options.PartialTranscriptionCallback == nil {
		options.PartialTranscriptionCallback = func(string) {}
	}
	if options.CommittedTranscriptionCallback == nil {
		options.CommittedTranscriptionCallback = func(string) {}
	}
	if options.ErrorCallback == nil {
		options.ErrorCallback = func(error) {}
	}
	if options.ClosedCallback == nil {
		options.ClosedCallback = func(error) {}
	}
	return options
}

// SessionOption configures a [Session] at construction.
type SessionOption func(*Session)

// WithConnectTimeout bounds a whole Start attempt, token fetch included.
// Non-positive values keep the default.
func WithConnectTimeout(timeout time.Duration) SessionOption {
	return func(s *Session) {
		if timeout > 0 {
			s.connectTimeout = timeout
		}
	}
}

// WithTokenReuse keeps a fetched token for later connections instead of
// fetching a new one every time. The token is still dropped whenever the
// socket closes while a listening episode is active.
func WithTokenReuse(reuse bool) SessionOption {
	return func(s *Session) {
		s.reuseToken = reuse
	}
}

func WithDialer(dialer *websocket.Dialer) SessionOption {
	return func(s *Session) {
		if dialer != nil {
			s.dialer = dialer
		}
	}
}
