package agent

// Inbound message discriminators.
const (
	TypeConnectionAck = "connection_ack"
	TypeAudioChunk    = "audio_chunk"
	TypeAudioComplete = "audio_complete"
	TypeAgentResponse = "agent_response"
	TypeError         = "error"
)

// CodeInvalidToken is the error code the backend sends when the bearer
// credential is invalid or expired.
const CodeInvalidToken = "INVALID_TOKEN"

// UserMessage is the single outbound envelope: one finalized utterance.
type UserMessage struct {
	Message     string         `json:"message"`
	Context     map[string]any `json:"context"`
	SessionID   *string        `json:"session_id"`
	StreamAudio bool           `json:"stream_audio"`
}

type envelope struct {
	Type string `json:"type"`
}

type ConnectionAck struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id"`
}

type AudioChunk struct {
	Type  string `json:"type"`
	Audio string `json:"audio" jsonschema:"description=Base64 encoded slice of an mp3 or wav clip"`
}

type AudioComplete struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type AgentResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
