package orchestration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/koscakluka/ema-sphere/core/agent"
	"github.com/koscakluka/ema-sphere/core/conversations"
	"github.com/koscakluka/ema-sphere/core/events"
	"github.com/koscakluka/ema-sphere/core/speechtotext"
)

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

type stubAudioInput struct {
	accessErr error
	startErr  error

	requests atomic.Int32
	starts   atomic.Int32
	stops    atomic.Int32
	releases atomic.Int32

	mu      sync.Mutex
	onFrame func([]float32)
}

func (s *stubAudioInput) RequestAccess(context.Context) error {
	s.requests.Add(1)
	return s.accessErr
}

func (s *stubAudioInput) StartCapture(_ context.Context, onFrame func([]float32)) error {
	s.starts.Add(1)
	if s.startErr != nil {
		return s.startErr
	}
	s.mu.Lock()
	s.onFrame = onFrame
	s.mu.Unlock()
	return nil
}

// StopCapture keeps the callback around so tests can deliver frames that
// were already in flight when capture stopped.
func (s *stubAudioInput) StopCapture() error {
	s.stops.Add(1)
	return nil
}

func (s *stubAudioInput) Release() error {
	s.releases.Add(1)
	return nil
}

func (s *stubAudioInput) emit(samples []float32) {
	s.mu.Lock()
	onFrame := s.onFrame
	s.mu.Unlock()
	if onFrame != nil {
		onFrame(samples)
	}
}

type stubSpeechToText struct {
	startErr error

	starts    atomic.Int32
	finalizes atomic.Int32

	mu        sync.Mutex
	options   speechtotext.TranscriptionOptions
	committed []string
	frames    [][]byte
}

func (s *stubSpeechToText) Start(_ context.Context, opts ...speechtotext.TranscriptionOption) error {
	s.starts.Add(1)
	if s.startErr != nil {
		return s.startErr
	}

	options := speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	s.mu.Lock()
	s.options = options
	s.committed = nil
	s.mu.Unlock()
	return nil
}

func (s *stubSpeechToText) SendAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, append([]byte(nil), pcm...))
	return nil
}

func (s *stubSpeechToText) Finalize() string {
	s.finalizes.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	utterance := strings.TrimSpace(strings.Join(s.committed, " "))
	s.committed = nil
	return utterance
}

func (s *stubSpeechToText) partial(text string) {
	s.mu.Lock()
	callback := s.options.PartialTranscriptionCallback
	s.mu.Unlock()
	if callback != nil {
		callback(text)
	}
}

func (s *stubSpeechToText) commit(text string) {
	s.mu.Lock()
	s.committed = append(s.committed, text)
	callback := s.options.CommittedTranscriptionCallback
	s.mu.Unlock()
	if callback != nil {
		callback(text)
	}
}

func (s *stubSpeechToText) fail(err error) {
	s.mu.Lock()
	callback := s.options.ErrorCallback
	s.mu.Unlock()
	if callback != nil {
		callback(err)
	}
}

func (s *stubSpeechToText) closeUnexpectedly(err error) {
	s.mu.Lock()
	callback := s.options.ClosedCallback
	s.mu.Unlock()
	if callback != nil {
		callback(err)
	}
}

func (s *stubSpeechToText) sentFrames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames...)
}

type stubAgent struct {
	// manual keeps Connect from opening the connection.
	manual  bool
	sendErr error

	connects    atomic.Int32
	disconnects atomic.Int32

	mu      sync.Mutex
	state   agent.ConnectionState
	options agent.ConnectOptions
	sent    []string
}

func (s *stubAgent) Connect(_ context.Context, opts ...agent.ConnectOption) error {
	s.connects.Add(1)

	s.mu.Lock()
	if s.state != "" && s.state != agent.StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	options := agent.ConnectOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	s.options = options
	if s.manual {
		s.mu.Unlock()
		return nil
	}
	s.state = agent.StateConnected
	s.mu.Unlock()

	options.StateCallback(agent.StateConnecting)
	options.StateCallback(agent.StateConnected)
	options.ConnectionAckCallback("conn-1")
	return nil
}

func (s *stubAgent) Send(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, text)
	return nil
}

func (s *stubAgent) Disconnect() error {
	s.disconnects.Add(1)
	s.mu.Lock()
	s.state = agent.StateDisconnected
	s.mu.Unlock()
	return nil
}

func (s *stubAgent) State() agent.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == "" {
		return agent.StateDisconnected
	}
	return s.state
}

func (s *stubAgent) callbacks() agent.ConnectOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options
}

func (s *stubAgent) dropConnection() {
	s.mu.Lock()
	s.state = agent.StateDisconnected
	s.mu.Unlock()
	s.callbacks().StateCallback(agent.StateDisconnected)
}

func (s *stubAgent) sentMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type stubAudioOutput struct {
	release chan struct{}
	plays   atomic.Int32
}

func newStubAudioOutput() *stubAudioOutput {
	return &stubAudioOutput{release: make(chan struct{})}
}

func (s *stubAudioOutput) Play(ctx context.Context, _ beep.Streamer, _ beep.Format) error {
	s.plays.Add(1)
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type silentClip struct{}

func (silentClip) Stream([][2]float64) (int, bool) { return 0, false }
func (silentClip) Err() error                      { return nil }
func (silentClip) Len() int                        { return 0 }
func (silentClip) Position() int                   { return 0 }
func (silentClip) Seek(int) error                  { return nil }
func (silentClip) Close() error                    { return nil }

type stubDecoder struct {
	err error

	mu    sync.Mutex
	clips [][]byte
}

func (d *stubDecoder) decode(clip []byte) (beep.StreamSeekCloser, beep.Format, error) {
	d.mu.Lock()
	d.clips = append(d.clips, append([]byte(nil), clip...))
	d.mu.Unlock()
	if d.err != nil {
		return nil, beep.Format{}, d.err
	}
	return silentClip{}, beep.Format{SampleRate: 16000, NumChannels: 1, Precision: 2}, nil
}

func (d *stubDecoder) decoded() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.clips...)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) HandleV0(event events.Event, _ conversations.ActiveContextV0) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) recorded() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func (r *eventRecorder) indexOf(kind events.Kind) int {
	for i, event := range r.recorded() {
		if event.Kind() == kind {
			return i
		}
	}
	return -1
}

type harness struct {
	orchestrator *Orchestrator
	input        *stubAudioInput
	stt          *stubSpeechToText
	agent        *stubAgent
	output       *stubAudioOutput
	decoder      *stubDecoder
	recorder     *eventRecorder
	done         chan error
}

func startHarness(t *testing.T, h *harness, opts ...OrchestratorOption) *harness {
	t.Helper()

	if h == nil {
		h = &harness{}
	}
	if h.input == nil {
		h.input = &stubAudioInput{}
	}
	if h.stt == nil {
		h.stt = &stubSpeechToText{}
	}
	if h.agent == nil {
		h.agent = &stubAgent{}
	}
	if h.output == nil {
		h.output = newStubAudioOutput()
	}
	if h.decoder == nil {
		h.decoder = &stubDecoder{}
	}
	h.recorder = &eventRecorder{}

	opts = append([]OrchestratorOption{
		WithAudioInput(h.input),
		WithAudioOutput(h.output),
		WithClipDecoder(h.decoder.decode),
		WithSpeechToTextClient(h.stt),
		WithAgentClient(h.agent),
		WithEventHandlerV0(h.recorder),
	}, opts...)
	h.orchestrator = NewOrchestrator(opts...)

	ctx, cancel := context.WithCancel(context.Background())
	h.done = make(chan error, 1)
	go func() { h.done <- h.orchestrator.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-h.done:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("unexpected run error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("timed out waiting for orchestrator to stop")
		}
	})

	return h
}

func (h *harness) sphere() conversations.SphereState {
	return h.orchestrator.Snapshot().Sphere
}

func (h *harness) status() string {
	return h.orchestrator.Snapshot().Status
}

func (h *harness) waitForSphere(t *testing.T, state conversations.SphereState) {
	t.Helper()
	waitForCondition(t, 2*time.Second, "sphere state "+string(state), func() bool {
		return h.sphere() == state
	})
}

func (h *harness) waitForStatus(t *testing.T, status string) {
	t.Helper()
	waitForCondition(t, 2*time.Second, "status "+status, func() bool {
		return h.status() == status
	})
}

// startListening activates from idle once the agent is connected and waits
// until the episode is live.
func (h *harness) startListening(t *testing.T) {
	t.Helper()
	h.waitForStatus(t, StatusReady)
	h.orchestrator.Activate()
	h.waitForSphere(t, conversations.SphereListening)
}

// speak commits text and waits until the orchestrator has shown it.
func (h *harness) speak(t *testing.T, text string) {
	t.Helper()
	h.stt.commit(text)
	waitForCondition(t, 2*time.Second, "committed transcript "+text, func() bool {
		return strings.HasSuffix(h.orchestrator.Snapshot().Committed, text)
	})
}
