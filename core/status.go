package orchestration

// Status lines shown to the user.
const (
	StatusClickToStart      = "Click the sphere to start"
	StatusConnecting        = "Connecting..."
	StatusReady             = "Ready to chat!"
	StatusWaitForConnection = "Please wait, connecting..."
	StatusNoToken           = "No token available"
	StatusTokenRejected     = "Invalid token. Please enter a new one."
	StatusDisconnected      = "Disconnected"
	StatusConnectionError   = "Connection error"

	StatusMicrophoneDenied   = "Could not access microphone"
	StatusInsecureContext    = "Microphone access requires a secure connection"
	StatusSpeechToTextFailed = "Could not connect to STT service"
	StatusCaptureFailed      = "Could not start audio capture"
	StatusListening          = "Listening... (will auto-send after silence)"
	StatusThinking           = "Thinking..."
	StatusNoSpeech           = "No speech detected"
	StatusSpeaking           = "Agent speaking..."
)

func errorStatus(message string) string {
	return "Error: " + message
}
