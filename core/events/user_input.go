package events

const (
	// KindUserTranscriptInterimUpdated identifies mutable interim transcript snapshots.
	KindUserTranscriptInterimUpdated Kind = "user_input.transcript_interim_updated"
	// KindUserTranscriptSegment identifies committed transcript segments.
	KindUserTranscriptSegment Kind = "user_input.transcript_segment"
	// KindUserTranscriptFinal identifies the finalized utterance.
	KindUserTranscriptFinal Kind = "user_input.transcript_final"
)

// UserTranscriptInterimUpdated carries the current uncommitted transcript.
type UserTranscriptInterimUpdated struct {
	Base
	Transcript string
}

// NewUserTranscriptInterimUpdated creates an interim transcript updated event.
func NewUserTranscriptInterimUpdated(transcript string) UserTranscriptInterimUpdated {
	return UserTranscriptInterimUpdated{Base: NewBase(KindUserTranscriptInterimUpdated), Transcript: transcript}
}

// UserTranscriptSegment carries one committed segment together with the
// utterance accumulated so far.
type UserTranscriptSegment struct {
	Base
	Segment   string
	Utterance string
}

// NewUserTranscriptSegment creates a committed transcript segment event.
func NewUserTranscriptSegment(segment, utterance string) UserTranscriptSegment {
	return UserTranscriptSegment{Base: NewBase(KindUserTranscriptSegment), Segment: segment, Utterance: utterance}
}

// UserTranscriptFinal carries the utterance sent to the agent.
type UserTranscriptFinal struct {
	Base
	Transcript string
}

// NewUserTranscriptFinal creates a final transcript event.
func NewUserTranscriptFinal(transcript string) UserTranscriptFinal {
	return UserTranscriptFinal{Base: NewBase(KindUserTranscriptFinal), Transcript: transcript}
}
