package speechtotext

import "errors"

var (
	ErrNotOpen        = errors.New("transcription socket is not open")
	ErrAlreadyStarted = errors.New("transcription session already started")
	ErrAborted        = errors.New("transcription session finalized while connecting")

	ErrTokenFetch     = errors.New("failed to fetch transcription token")
	ErrConnect        = errors.New("failed to connect to transcription service")
	ErrConnectTimeout = errors.New("timed out connecting to transcription service")

	// ErrProvider wraps errors reported by the provider over an open socket.
	ErrProvider = errors.New("transcription provider error")
)
