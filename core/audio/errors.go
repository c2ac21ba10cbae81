package audio

import "errors"

var (
	// ErrAccessDenied is returned when the input device refuses to open.
	ErrAccessDenied = errors.New("microphone access denied")
	// ErrInsecureContext is returned when capture is requested while talking
	// to the backend over a non-secure transport.
	ErrInsecureContext = errors.New("microphone access requires a secure connection")
	// ErrUnsupported is returned when no capture device is available.
	ErrUnsupported = errors.New("audio capture not supported")

	ErrDeviceNotInitialized = errors.New("device not initialized")
	ErrDecode               = errors.New("failed to decode audio clip")
)
