package orchestration

import (
	"context"
	"time"

	"github.com/faiface/beep"
	"github.com/koscakluka/ema-sphere/core/agent"
	"github.com/koscakluka/ema-sphere/core/audio"
	"github.com/koscakluka/ema-sphere/core/conversations"
	"github.com/koscakluka/ema-sphere/core/events"
	"github.com/koscakluka/ema-sphere/core/speechtotext"
)

type OrchestratorOption func(*Orchestrator)

// AudioInput is a microphone device delivering normalized float frames.
type AudioInput interface {
	RequestAccess(ctx context.Context) error
	StartCapture(ctx context.Context, onFrame func(frame []float32)) error
	StopCapture() error
	Release() error
}

func WithAudioInput(client AudioInput) OrchestratorOption {
	return func(o *Orchestrator) { o.audioInput.set(client) }
}

// AudioOutput plays one decoded clip to completion.
type AudioOutput interface {
	Play(ctx context.Context, streamer beep.Streamer, format beep.Format) error
}

func WithAudioOutput(client AudioOutput) OrchestratorOption {
	return func(o *Orchestrator) { o.audioOutput.output = client }
}

// WithClipDecoder replaces the decoder used for reply audio. Defaults to
// [audio.DecodeClip].
func WithClipDecoder(decoder audio.ClipDecoder) OrchestratorOption {
	return func(o *Orchestrator) {
		if decoder != nil {
			o.audioOutput.decode = decoder
		}
	}
}

type SpeechToText interface {
	Start(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(pcm []byte) error
	Finalize() string
}

func WithSpeechToTextClient(client SpeechToText) OrchestratorOption {
	return func(o *Orchestrator) { o.speechToText.set(client) }
}

type Agent interface {
	Connect(ctx context.Context, opts ...agent.ConnectOption) error
	Send(ctx context.Context, text string) error
	Disconnect() error
	State() agent.ConnectionState
}

func WithAgentClient(client Agent) OrchestratorOption {
	return func(o *Orchestrator) { o.agent = client }
}

// WithSilenceDelay sets how long after the last committed transcript the
// utterance is sent automatically.
func WithSilenceDelay(delay time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if delay > 0 {
			o.silenceDelay = delay
		}
	}
}

// WithSilenceThreshold sets the peak amplitude under which captured frames
// are dropped instead of being sent for transcription.
func WithSilenceThreshold(threshold float32) OrchestratorOption {
	return func(o *Orchestrator) {
		if threshold >= 0 {
			o.audioInput.silenceThreshold = threshold
		}
	}
}

// WithSecureContext declares whether the backend is reached over a secure
// transport. Microphone access is refused otherwise. Defaults to true.
func WithSecureContext(secure bool) OrchestratorOption {
	return func(o *Orchestrator) { o.audioInput.secure = secure }
}

// EventHandlerV0 receives every conversation event on the orchestrator's event
// loop. Handlers must not block.
type EventHandlerV0 interface {
	HandleV0(event events.Event, conversation conversations.ActiveContextV0)
}

type EventHandlerFuncV0 func(event events.Event, conversation conversations.ActiveContextV0)

func (f EventHandlerFuncV0) HandleV0(event events.Event, conversation conversations.ActiveContextV0) {
	f(event, conversation)
}

func WithEventHandlerV0(handler EventHandlerV0) OrchestratorOption {
	return func(o *Orchestrator) { o.eventHandler = handler }
}

type OrchestrateOptions struct {
	onSphereStateChanged     func(state conversations.SphereState)
	onConnectionStateChanged func(state agent.ConnectionState)
	onStatus                 func(status string)
	onInterimTranscription   func(transcript string)
	onPartialTranscription   func(transcript string)
	onTranscription          func(transcript string)
	onTranscriptEntry        func(entry conversations.TranscriptEntry)
	onResponse               func(response string)
	onAudio                  func(audio []byte)
	onAudioEnded             func(err error)
	onError                  func(category events.ErrorCategory, err error)
	onCredentialRejected     func()
}

type OrchestrateOption func(*OrchestrateOptions)

func WithSphereStateCallback(callback func(state conversations.SphereState)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onSphereStateChanged = callback
	}
}

func WithConnectionStateCallback(callback func(state agent.ConnectionState)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onConnectionStateChanged = callback
	}
}

// WithStatusCallback registers a callback for the human readable status line.
func WithStatusCallback(callback func(status string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onStatus = callback
	}
}

// WithInterimTranscriptionCallback registers a callback for interim
// transcripts of the utterance being listened to. An empty transcript clears
// the previous one.
func WithInterimTranscriptionCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onInterimTranscription = callback
	}
}

// WithPartialTranscriptionCallback registers a callback for committed
// transcript segments.
func WithPartialTranscriptionCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onPartialTranscription = callback
	}
}

// WithTranscriptionCallback registers a callback for finalized utterances
// that are sent to the agent.
func WithTranscriptionCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onTranscription = callback
	}
}

func WithTranscriptEntryCallback(callback func(entry conversations.TranscriptEntry)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onTranscriptEntry = callback
	}
}

func WithResponseCallback(callback func(response string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onResponse = callback
	}
}

// WithAudioCallback registers a callback for reply audio chunks as they are
// queued. The slice is passed through as-is.
func WithAudioCallback(callback func(audio []byte)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onAudio = callback
	}
}

func WithAudioEndedCallback(callback func(err error)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onAudioEnded = callback
	}
}

func WithErrorCallback(callback func(category events.ErrorCategory, err error)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onError = callback
	}
}

// WithCredentialRejectedCallback registers a callback for when the backend
// refuses the stored credential. A new credential must be stored before
// calling [Orchestrator.Connect] again.
func WithCredentialRejectedCallback(callback func()) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onCredentialRejected = callback
	}
}
