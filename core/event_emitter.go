package orchestration

import (
	"github.com/koscakluka/ema-sphere/core/agent"
	"github.com/koscakluka/ema-sphere/core/conversations"
	events "github.com/koscakluka/ema-sphere/core/events"
)

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts OrchestrateOptions) eventEmitter {
	return func(event events.Event) {
		switch typedEvent := event.(type) {
		case events.SphereStateChanged:
			if opts.onSphereStateChanged != nil {
				opts.onSphereStateChanged(conversations.SphereState(typedEvent.To))
			}
		case events.ConnectionStateChanged:
			if opts.onConnectionStateChanged != nil {
				opts.onConnectionStateChanged(agent.ConnectionState(typedEvent.State))
			}
		case events.StatusUpdated:
			if opts.onStatus != nil {
				opts.onStatus(typedEvent.Status)
			}
		case events.UserTranscriptInterimUpdated:
			if opts.onInterimTranscription != nil {
				opts.onInterimTranscription(typedEvent.Transcript)
			}
		case events.UserTranscriptSegment:
			if opts.onPartialTranscription != nil {
				opts.onPartialTranscription(typedEvent.Segment)
			}
		case events.UserTranscriptFinal:
			if opts.onTranscription != nil {
				opts.onTranscription(typedEvent.Transcript)
			}
		case events.TranscriptEntryAppended:
			if opts.onTranscriptEntry != nil {
				opts.onTranscriptEntry(conversations.TranscriptEntry{
					ID:        typedEvent.ID,
					Sender:    conversations.Sender(typedEvent.Sender),
					Text:      typedEvent.Text,
					CreatedAt: typedEvent.CreatedAt,
				})
			}
		case events.AssistantResponseFinal:
			if opts.onResponse != nil {
				opts.onResponse(typedEvent.Text)
			}
		case events.AssistantPlaybackFrame:
			if opts.onAudio != nil {
				opts.onAudio(typedEvent.Audio)
			}
		case events.AssistantPlaybackEnded:
			if opts.onAudioEnded != nil {
				opts.onAudioEnded(typedEvent.Err)
			}
		case events.ErrorReported:
			if opts.onError != nil {
				opts.onError(typedEvent.Category, typedEvent.Err)
			}
		case events.CredentialRejected:
			if opts.onCredentialRejected != nil {
				opts.onCredentialRejected()
			}
		}
	}
}
