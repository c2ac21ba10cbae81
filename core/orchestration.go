package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-sphere/core/agent"
	"github.com/koscakluka/ema-sphere/core/audio"
	"github.com/koscakluka/ema-sphere/core/conversations"
	"github.com/koscakluka/ema-sphere/core/credentials"
	"github.com/koscakluka/ema-sphere/core/events"
	"github.com/koscakluka/ema-sphere/core/speechtotext"
	"go.opentelemetry.io/otel/codes"
)

const DefaultSilenceDelay = 1500 * time.Millisecond

var ErrAlreadyRunning = errors.New("orchestrator is already running")

// Orchestrator drives one voice conversation: it listens to the user, sends
// the finished utterance to the agent and plays the spoken reply back.
//
// Every state change happens on a single event loop started by Run. Public
// methods only post work to that loop and never block on it.
type Orchestrator struct {
	baseContext context.Context
	running     atomic.Bool

	loop         *eventLoop
	conversation *conversation

	audioInput   audioCapture
	audioOutput  audioPlayback
	speechToText speechToText
	agent        Agent

	silence      silenceTimer
	silenceDelay time.Duration

	// Owned by the event loop.
	episode            uint64
	episodeStarted     time.Time
	credentialRejected bool

	eventHandler EventHandlerV0
	emitEvent    eventEmitter
}

// Snapshot is a point in time copy of the conversation for display.
type Snapshot struct {
	Sphere     conversations.SphereState
	Connection agent.ConnectionState
	Status     string

	// Interim and committed text of the utterance being listened to.
	Interim   string
	Committed string

	Transcript   []conversations.TranscriptEntry
	Playing      bool
	QueuedChunks int
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		loop:         newEventLoop(),
		conversation: newConversation(),
		audioInput:   newAudioCapture(),
		audioOutput:  newAudioPlayback(),
		speechToText: newSpeechToText(),
		silenceDelay: DefaultSilenceDelay,
		emitEvent:    noopEventEmitter,
	}

	for _, opt := range opts {
		opt(o)
	}

	o.audioOutput.onPlayStart = func() { o.loop.post(o.handlePlaybackStarted) }
	o.audioOutput.onPlayEnd = func(err error) {
		o.loop.post(func() { o.handlePlaybackEnded(err) })
	}

	return o
}

// Run connects to the agent and processes conversation events until ctx is
// done or Close is called. Devices and sockets are released before it
// returns. An orchestrator can only be run once.
func (o *Orchestrator) Run(ctx context.Context, opts ...OrchestrateOption) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	options := OrchestrateOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	o.emitEvent = newCallbackEventEmitter(options)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.baseContext = ctx

	o.loop.post(func() {
		o.setStatus(StatusClickToStart)
		o.connect()
	})
	err := o.loop.run(ctx)

	cancel()
	if teardownErr := o.teardown(); teardownErr != nil {
		logger.Error("failed to tear down conversation", "error", teardownErr)
		err = errors.Join(err, teardownErr)
	}
	return err
}

// Activate is the single user gesture: it starts listening when idle and
// sends what was heard when already listening. It is ignored while the agent
// is thinking or speaking.
func (o *Orchestrator) Activate() {
	o.loop.post(o.handleActivate)
}

// Connect opens the agent connection if it is not open or opening already,
// e.g. after a new credential was stored.
func (o *Orchestrator) Connect() {
	o.loop.post(o.connect)
}

// Close stops Run. It is safe to call more than once.
func (o *Orchestrator) Close() {
	o.loop.close()
}

func (o *Orchestrator) Snapshot() Snapshot {
	snapshot := o.conversation.snapshot()
	snapshot.Playing = o.audioOutput.IsPlaying()
	snapshot.QueuedChunks = o.audioOutput.QueueLength()
	return snapshot
}

func (o *Orchestrator) Transcript() []conversations.TranscriptEntry {
	return o.conversation.History()
}

func (o *Orchestrator) ClearTranscript() {
	o.loop.post(o.conversation.transcript.Clear)
}

func (o *Orchestrator) teardown() error {
	o.silence.stop()

	var errs []error
	if err := o.audioInput.Release(); err != nil {
		errs = append(errs, fmt.Errorf("failed to release audio input: %w", err))
	}
	o.speechToText.Finalize()
	if o.agent != nil {
		if err := o.agent.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("failed to disconnect agent: %w", err))
		}
	}
	o.audioOutput.Clear()

	return errors.Join(errs...)
}

func (o *Orchestrator) handleActivate() {
	switch state := o.conversation.SphereState(); state {
	case conversations.SphereListening:
		o.finishListening("manual")
		return
	case conversations.SphereThinking, conversations.SphereSpeaking:
		logger.Debug("activation ignored", "sphere_state", state)
		return
	}

	if o.agent == nil || o.agent.State() != agent.StateConnected {
		o.setStatus(StatusWaitForConnection)
		o.connect()
		return
	}
	if o.audioOutput.IsPlaying() {
		return
	}

	o.startListening()
}

func (o *Orchestrator) startListening() {
	ctx, span := tracer.Start(o.currentContext(), "start listening")
	defer span.End()

	fail := func(category events.ErrorCategory, status string, err error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		metricEpisodes.WithLabelValues("start_failed").Inc()
		o.reportError(category, err)
		o.setStatus(status)
	}

	if err := o.audioInput.RequestAccess(ctx); err != nil {
		status := StatusMicrophoneDenied
		if errors.Is(err, audio.ErrInsecureContext) {
			status = StatusInsecureContext
		}
		fail(events.ErrorCategoryPermission, status, err)
		return
	}

	o.episode++
	o.conversation.resetListening()
	if err := o.speechToText.Start(ctx, o.transcriptionOptions(o.episode)...); err != nil {
		category := events.ErrorCategoryTransport
		if errors.Is(err, credentials.ErrRejected) {
			category = events.ErrorCategoryCredential
		}
		fail(category, StatusSpeechToTextFailed, err)
		return
	}

	if err := o.audioInput.Start(ctx, o.forwardFrame); err != nil {
		o.speechToText.Finalize()
		fail(events.ErrorCategoryPermission, StatusCaptureFailed, err)
		return
	}

	o.episodeStarted = time.Now()
	o.setSphereState(conversations.SphereListening)
	o.setStatus(StatusListening)
}

// forwardFrame runs on the capture device's goroutine so frames reach the
// transcription socket in capture order.
func (o *Orchestrator) forwardFrame(pcm []byte) {
	if err := o.speechToText.SendAudio(pcm); err != nil && !errors.Is(err, speechtotext.ErrNotOpen) {
		logger.Warn("failed to send audio frame", "error", err)
	}
}

func (o *Orchestrator) transcriptionOptions(episode uint64) []speechtotext.TranscriptionOption {
	return []speechtotext.TranscriptionOption{
		speechtotext.WithPartialTranscriptionCallback(func(transcript string) {
			o.loop.post(func() { o.handleInterimTranscript(episode, transcript) })
		}),
		speechtotext.WithCommittedTranscriptionCallback(func(transcript string) {
			o.loop.post(func() { o.handleCommittedTranscript(episode, transcript) })
		}),
		speechtotext.WithErrorCallback(func(err error) {
			o.loop.post(func() { o.handleTranscriptionError(episode, err) })
		}),
		speechtotext.WithClosedCallback(func(err error) {
			o.loop.post(func() { o.handleTranscriptionClosed(episode, err) })
		}),
	}
}

func (o *Orchestrator) isListeningTo(episode uint64) bool {
	return episode == o.episode && o.conversation.SphereState() == conversations.SphereListening
}

func (o *Orchestrator) handleInterimTranscript(episode uint64, transcript string) {
	if !o.isListeningTo(episode) {
		return
	}
	o.conversation.setInterim(transcript)
	o.emit(events.NewUserTranscriptInterimUpdated(transcript))
}

func (o *Orchestrator) handleCommittedTranscript(episode uint64, transcript string) {
	if !o.isListeningTo(episode) {
		return
	}

	utterance := o.conversation.commit(transcript)
	o.emit(events.NewUserTranscriptInterimUpdated(""))
	o.emit(events.NewUserTranscriptSegment(transcript, utterance))

	o.silence.arm(o.silenceDelay, func(generation uint64) {
		o.loop.post(func() { o.handleSilence(generation) })
	})
}

func (o *Orchestrator) handleSilence(generation uint64) {
	if !o.silence.isCurrent(generation) || o.conversation.SphereState() != conversations.SphereListening {
		return
	}
	o.finishListening("silence")
}

func (o *Orchestrator) handleTranscriptionError(episode uint64, err error) {
	if episode != o.episode {
		return
	}
	o.reportError(events.ErrorCategoryProvider, err)
	if o.conversation.SphereState() == conversations.SphereListening {
		o.setStatus(errorStatus(providerMessage(err)))
	}
}

// providerMessage strips the session's wrapping so the status line shows
// what the provider said.
func providerMessage(err error) string {
	return strings.TrimPrefix(err.Error(), speechtotext.ErrProvider.Error()+": ")
}

func (o *Orchestrator) handleTranscriptionClosed(episode uint64, err error) {
	if !o.isListeningTo(episode) {
		return
	}
	o.reportError(events.ErrorCategoryTransport, err)
	o.finishListening("closed")
}

// finishListening ends the current episode and sends whatever was committed.
func (o *Orchestrator) finishListening(trigger string) {
	utterance := o.stopListening()
	logger.Info("listening finished", "trigger", trigger, "utterance_length", len(utterance))

	if utterance == "" {
		metricEpisodes.WithLabelValues("empty").Inc()
		o.setSphereState(conversations.SphereIdle)
		o.setStatus(StatusNoSpeech)
		return
	}

	o.appendEntry(conversations.SenderUser, utterance)
	o.emit(events.NewUserTranscriptFinal(utterance))
	o.setSphereState(conversations.SphereThinking)
	o.setStatus(StatusThinking)

	if err := o.sendUtterance(utterance); err != nil {
		metricEpisodes.WithLabelValues("send_failed").Inc()
		o.reportError(events.ErrorCategoryTransport, err)
		o.setSphereState(conversations.SphereIdle)
		o.setStatus(errorStatus(err.Error()))
		return
	}
	metricEpisodes.WithLabelValues("sent").Inc()
}

// stopListening stops the timer, capture and transcription of the current
// episode and returns the finalized utterance.
func (o *Orchestrator) stopListening() string {
	o.silence.stop()
	if err := o.audioInput.Stop(); err != nil {
		logger.Warn("failed to stop audio capture", "error", err)
	}
	utterance := o.speechToText.Finalize()
	o.conversation.resetListening()

	if !o.episodeStarted.IsZero() {
		metricEpisodeMS.Observe(float64(time.Since(o.episodeStarted).Milliseconds()))
		o.episodeStarted = time.Time{}
	}
	return utterance
}

func (o *Orchestrator) sendUtterance(utterance string) error {
	if o.agent == nil {
		return agent.ErrNotConnected
	}
	return o.agent.Send(o.currentContext(), utterance)
}

func (o *Orchestrator) connect() {
	if o.agent == nil || o.agent.State() != agent.StateDisconnected {
		return
	}
	o.credentialRejected = false

	ctx := o.currentContext()
	opts := []agent.ConnectOption{
		agent.WithStateCallback(func(state agent.ConnectionState) {
			o.loop.post(func() { o.handleConnectionState(state) })
		}),
		agent.WithConnectionAckCallback(func(connectionID string) {
			o.loop.post(func() { o.emit(events.NewConnectionAcknowledged(connectionID)) })
		}),
		agent.WithAudioChunkCallback(func(chunk []byte) {
			o.loop.post(func() { o.handleAudioChunk(chunk) })
		}),
		agent.WithAudioCompleteCallback(func(message string) {
			o.loop.post(func() { o.handleAudioComplete(message) })
		}),
		agent.WithAgentResponseCallback(func(message string) {
			o.loop.post(func() { o.handleAgentResponse(message) })
		}),
		agent.WithErrorCallback(func(err error) {
			o.loop.post(func() { o.handleAgentError(err) })
		}),
	}

	go func() {
		if err := o.agent.Connect(ctx, opts...); err != nil {
			o.loop.post(func() { o.handleConnectFailed(err) })
		}
	}()
}

func (o *Orchestrator) handleConnectFailed(err error) {
	switch {
	case errors.Is(err, agent.ErrAborted), errors.Is(err, context.Canceled):
		return
	case errors.Is(err, credentials.ErrMissing):
		o.reportError(events.ErrorCategoryCredential, err)
		o.setStatus(StatusNoToken)
	case errors.Is(err, credentials.ErrRejected):
		o.rejectCredential(err)
		o.setStatus(StatusTokenRejected)
	default:
		o.reportError(events.ErrorCategoryTransport, err)
		o.setStatus(StatusConnectionError)
	}
}

func (o *Orchestrator) handleConnectionState(state agent.ConnectionState) {
	previous := o.conversation.connectionState()
	if previous == state {
		return
	}
	o.conversation.setConnection(state)
	o.emit(events.NewConnectionStateChanged(string(state)))

	switch state {
	case agent.StateConnecting:
		o.setStatus(StatusConnecting)
	case agent.StateConnected:
		if o.conversation.SphereState() == conversations.SphereIdle {
			o.setStatus(StatusReady)
		}
	case agent.StateDisconnected:
		if !o.credentialRejected {
			o.setStatus(StatusDisconnected)
		}
		if o.conversation.SphereState() == conversations.SphereThinking {
			o.setSphereState(conversations.SphereIdle)
		}
	}
}

func (o *Orchestrator) handleAgentError(err error) {
	var agentErr *agent.Error
	switch {
	case errors.Is(err, credentials.ErrRejected):
		o.rejectCredential(err)
		if errors.As(err, &agentErr) {
			o.setStatus(errorStatus(agentErr.Message))
		} else {
			o.setStatus(StatusTokenRejected)
		}
	case errors.As(err, &agentErr):
		o.reportError(events.ErrorCategoryProvider, err)
		o.setStatus(errorStatus(agentErr.Message))
	default:
		o.reportError(events.ErrorCategoryTransport, err)
		o.setStatus(StatusConnectionError)
	}

	if o.conversation.SphereState() == conversations.SphereThinking {
		o.setSphereState(conversations.SphereIdle)
	}
}

func (o *Orchestrator) rejectCredential(err error) {
	o.credentialRejected = true
	o.reportError(events.ErrorCategoryCredential, err)
	o.emit(events.NewCredentialRejected(err.Error()))
}

func (o *Orchestrator) handleAudioChunk(chunk []byte) {
	o.audioOutput.Enqueue(chunk)
	o.emit(events.NewAssistantPlaybackFrame(chunk))
}

func (o *Orchestrator) handleAudioComplete(message string) {
	if message != "" {
		o.appendEntry(conversations.SenderAgent, message)
		o.emit(events.NewAssistantResponseFinal(message, true))
	}
	o.startPlayback()
}

func (o *Orchestrator) startPlayback() {
	clip, ok := o.audioOutput.take()
	if !ok {
		metricPlayback.WithLabelValues(string(PlaybackSkipped)).Inc()
		if !o.audioOutput.IsPlaying() && o.conversation.SphereState() == conversations.SphereThinking {
			o.setSphereState(conversations.SphereIdle)
			o.setStatus(StatusReady)
		}
		return
	}

	ctx := o.currentContext()
	go func() {
		// Failures are reported through onPlayEnd.
		_, _ = o.audioOutput.play(ctx, clip)
	}()
}

func (o *Orchestrator) handlePlaybackStarted() {
	if o.conversation.SphereState() == conversations.SphereListening {
		o.stopListening()
		metricEpisodes.WithLabelValues("aborted").Inc()
	}

	o.setSphereState(conversations.SphereSpeaking)
	o.setStatus(StatusSpeaking)
	o.emit(events.NewAssistantPlaybackStarted())
}

func (o *Orchestrator) handlePlaybackEnded(err error) {
	if err != nil {
		o.reportError(events.ErrorCategoryPlayback, err)
	}
	o.emit(events.NewAssistantPlaybackEnded(err))

	if o.conversation.SphereState() == conversations.SphereSpeaking {
		o.setSphereState(conversations.SphereIdle)
		o.setStatus(StatusReady)
	}
}

func (o *Orchestrator) handleAgentResponse(message string) {
	o.appendEntry(conversations.SenderAgent, message)
	o.emit(events.NewAssistantResponseFinal(message, false))

	switch o.conversation.SphereState() {
	case conversations.SphereThinking:
		o.setSphereState(conversations.SphereIdle)
		o.setStatus(StatusReady)
	case conversations.SphereIdle:
		o.setStatus(StatusReady)
	}
}

func (o *Orchestrator) appendEntry(sender conversations.Sender, text string) {
	entry := conversations.NewTranscriptEntry(sender, text)
	o.conversation.transcript.Append(entry)
	o.emit(events.NewTranscriptEntryAppended(entry.ID, string(entry.Sender), entry.Text, entry.CreatedAt))
}

func (o *Orchestrator) setSphereState(state conversations.SphereState) {
	previous := o.conversation.setSphere(state)
	if previous == state {
		return
	}
	metricTransitions.WithLabelValues(string(state)).Inc()
	logger.Debug("sphere state changed", "from", previous, "to", state)
	o.emit(events.NewSphereStateChanged(string(previous), string(state)))
}

func (o *Orchestrator) setStatus(status string) {
	o.conversation.setStatus(status)
	o.emit(events.NewStatusUpdated(status))
}

func (o *Orchestrator) reportError(category events.ErrorCategory, err error) {
	logger.Warn("conversation error", "category", category, "error", err)
	o.emit(events.NewErrorReported(category, err))
}

func (o *Orchestrator) emit(event events.Event) {
	o.emitEvent(event)
	if o.eventHandler != nil {
		o.eventHandler.HandleV0(event, o.conversation)
	}
}
