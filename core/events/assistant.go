package events

const (
	// KindAssistantResponseFinal identifies the end of an agent reply.
	KindAssistantResponseFinal Kind = "assistant_response.final"
	// KindAssistantPlaybackFrame identifies a reply audio chunk queued for playback.
	KindAssistantPlaybackFrame Kind = "assistant_playback.frame"
	// KindAssistantPlaybackStarted identifies playback start for the current reply.
	KindAssistantPlaybackStarted Kind = "assistant_playback.started"
	// KindAssistantPlaybackEnded identifies the playback completion milestone.
	KindAssistantPlaybackEnded Kind = "assistant_playback.ended"
)

// AssistantResponseFinal carries the agent's reply text.
type AssistantResponseFinal struct {
	Base
	Text   string
	Spoken bool
}

// NewAssistantResponseFinal creates an assistant response final event.
func NewAssistantResponseFinal(text string, spoken bool) AssistantResponseFinal {
	return AssistantResponseFinal{Base: NewBase(KindAssistantResponseFinal), Text: text, Spoken: spoken}
}

// AssistantPlaybackFrame carries one queued reply audio chunk.
type AssistantPlaybackFrame struct {
	Base
	Audio []byte
}

// NewAssistantPlaybackFrame creates an assistant playback frame event.
func NewAssistantPlaybackFrame(audio []byte) AssistantPlaybackFrame {
	return AssistantPlaybackFrame{Base: NewBase(KindAssistantPlaybackFrame), Audio: audio}
}

// AssistantPlaybackStarted marks the start of reply playback.
type AssistantPlaybackStarted struct{ Base }

// NewAssistantPlaybackStarted creates an assistant playback started event.
func NewAssistantPlaybackStarted() AssistantPlaybackStarted {
	return AssistantPlaybackStarted{Base: NewBase(KindAssistantPlaybackStarted)}
}

// AssistantPlaybackEnded marks the end of reply playback. Err is set when the
// clip could not be decoded or played.
type AssistantPlaybackEnded struct {
	Base
	Err error
}

// NewAssistantPlaybackEnded creates an assistant playback ended event.
func NewAssistantPlaybackEnded(err error) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{Base: NewBase(KindAssistantPlaybackEnded), Err: err}
}
