package conversations

// ActiveContextV0 exposes live conversation context for event handlers.
type ActiveContextV0 interface {
	// Logged entries only. Ordering: oldest -> newest.
	History() []TranscriptEntry

	// Current phase of the conversation.
	SphereState() SphereState

	// Interim and committed text of the episode being listened to; empty
	// outside listening.
	Listening() (interim string, committed string)
}
