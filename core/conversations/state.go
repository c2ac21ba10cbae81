package conversations

// SphereState is the phase of the conversation. Exactly one is current.
type SphereState string

const (
	SphereIdle      SphereState = "idle"
	SphereListening SphereState = "listening"
	SphereThinking  SphereState = "thinking"
	SphereSpeaking  SphereState = "speaking"
)

func (s SphereState) String() string {
	return string(s)
}
