package agent

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-sphere/core/credentials"
)

func TestConnectIsGuardedAgainstDuplicates(t *testing.T) {
	server := newAgentServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connection_ack","connection_id":"conn-1"}`))
	})
	session := NewSession(server.url, credentials.NewMemoryStore("secret"))
	defer session.Disconnect()

	states := &stateRecorder{}
	acks := atomic.Int32{}
	if err := session.Connect(context.Background(),
		WithStateCallback(states.record),
		WithConnectionAckCallback(func(string) { acks.Add(1) }),
	); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("expected duplicate connect to be a no-op, got %v", err)
	}

	waitForCondition(t, time.Second, "connection ack", func() bool { return acks.Load() == 1 })
	if got := session.ConnectionID(); got != "conn-1" {
		t.Fatalf("expected connection id conn-1, got %q", got)
	}
	if got := server.connections.Load(); got != 1 {
		t.Fatalf("expected exactly one socket, got %d", got)
	}
	if got := server.lastToken(); got != "secret" {
		t.Fatalf("expected credential in query, got %q", got)
	}
	if got := states.snapshot(); len(got) != 2 || got[0] != StateConnecting || got[1] != StateConnected {
		t.Fatalf("expected connecting then connected, got %v", got)
	}
}

func TestConnectWithoutCredentialDoesNotDial(t *testing.T) {
	server := newAgentServer(t, nil)
	session := NewSession(server.url, credentials.NewMemoryStore(""))

	if err := session.Connect(context.Background()); !errors.Is(err, credentials.ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
	if got := session.State(); got != StateDisconnected {
		t.Fatalf("expected disconnected state, got %s", got)
	}
	if got := server.connections.Load(); got != 0 {
		t.Fatalf("expected no socket, got %d", got)
	}
}

func TestAudioChunksAreDecodedInOrder(t *testing.T) {
	server := newAgentServer(t, func(conn *websocket.Conn) {
		for _, chunk := range []string{"AQ==", "Ag==", "Aw=="} {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"audio_chunk","audio":"`+chunk+`"}`))
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"audio_complete","message":"ok"}`))
	})
	session := NewSession(server.url, credentials.NewMemoryStore("secret"))
	defer session.Disconnect()

	var mu sync.Mutex
	var received []byte
	var completed atomic.Value
	if err := session.Connect(context.Background(),
		WithAudioChunkCallback(func(audio []byte) {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, audio...)
		}),
		WithAudioCompleteCallback(func(message string) { completed.Store(message) }),
	); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}

	waitForCondition(t, time.Second, "audio complete", func() bool { return completed.Load() != nil })
	mu.Lock()
	defer mu.Unlock()
	if string(received) != string([]byte{1, 2, 3}) {
		t.Fatalf("expected chunks 1,2,3 in order, got %v", received)
	}
	if got := completed.Load().(string); got != "ok" {
		t.Fatalf("expected audio complete message ok, got %q", got)
	}
}

func TestMalformedMessagesAreDropped(t *testing.T) {
	server := newAgentServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"audio_chunk","audio":"%%%"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"something_new"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"agent_response","message":"text only"}`))
	})
	session := NewSession(server.url, credentials.NewMemoryStore("secret"))
	defer session.Disconnect()

	chunks := atomic.Int32{}
	errs := atomic.Int32{}
	var response atomic.Value
	if err := session.Connect(context.Background(),
		WithAudioChunkCallback(func([]byte) { chunks.Add(1) }),
		WithErrorCallback(func(error) { errs.Add(1) }),
		WithAgentResponseCallback(func(message string) { response.Store(message) }),
	); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}

	waitForCondition(t, time.Second, "agent response", func() bool { return response.Load() != nil })
	if got := response.Load().(string); got != "text only" {
		t.Fatalf("expected agent response text only, got %q", got)
	}
	if chunks.Load() != 0 || errs.Load() != 0 {
		t.Fatalf("expected malformed messages to be swallowed, got %d chunks and %d errors", chunks.Load(), errs.Load())
	}
	if got := session.State(); got != StateConnected {
		t.Fatalf("expected session to stay connected, got %s", got)
	}
}

func TestInvalidTokenErrorDisconnectsAndClearsCredential(t *testing.T) {
	server := newAgentServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","error":"Token expired","code":"INVALID_TOKEN"}`))
	})
	store := credentials.NewMemoryStore("expired")
	session := NewSession(server.url, store)

	states := &stateRecorder{}
	var reported atomic.Value
	if err := session.Connect(context.Background(),
		WithStateCallback(states.record),
		WithErrorCallback(func(err error) { reported.Store(err) }),
	); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}

	waitForCondition(t, time.Second, "disconnect", func() bool { return session.State() == StateDisconnected })
	waitForCondition(t, time.Second, "error report", func() bool { return reported.Load() != nil })

	err := reported.Load().(error)
	if !errors.Is(err, credentials.ErrRejected) {
		t.Fatalf("expected credential rejection, got %v", err)
	}
	var agentErr *Error
	if !errors.As(err, &agentErr) || agentErr.Message != "Token expired" {
		t.Fatalf("expected agent error with message, got %v", err)
	}
	if _, ok := store.Get(); ok {
		t.Fatalf("expected rejected credential to be cleared")
	}
	waitForCondition(t, time.Second, "disconnected state callback", func() bool {
		got := states.snapshot()
		return len(got) == 3 && got[2] == StateDisconnected
	})
	if err := session.Send(context.Background(), "hello"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after rejection, got %v", err)
	}
}

func TestOtherErrorCodesAreOnlyReported(t *testing.T) {
	server := newAgentServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","error":"model overloaded","code":"UPSTREAM"}`))
	})
	store := credentials.NewMemoryStore("secret")
	session := NewSession(server.url, store)
	defer session.Disconnect()

	var reported atomic.Value
	if err := session.Connect(context.Background(), WithErrorCallback(func(err error) { reported.Store(err) })); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}

	waitForCondition(t, time.Second, "error report", func() bool { return reported.Load() != nil })
	err := reported.Load().(error)
	if !errors.Is(err, ErrAgent) || errors.Is(err, credentials.ErrRejected) {
		t.Fatalf("expected transient agent error, got %v", err)
	}
	if got := session.State(); got != StateConnected {
		t.Fatalf("expected session to stay connected, got %s", got)
	}
	if _, ok := store.Get(); !ok {
		t.Fatalf("expected credential to be kept")
	}
}

func TestSendWrapsUtteranceInSingleEnvelope(t *testing.T) {
	server := newAgentServer(t, nil)
	session := NewSession(server.url, credentials.NewMemoryStore("secret"))

	if err := session.Send(context.Background(), "hello"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected before connect, got %v", err)
	}

	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	defer session.Disconnect()
	if err := session.Send(context.Background(), "hello world"); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	waitForCondition(t, time.Second, "outbound message", func() bool { return len(server.messages()) == 1 })
	var decoded map[string]any
	if err := sonic.Unmarshal(server.messages()[0], &decoded); err != nil {
		t.Fatalf("invalid outbound message: %v", err)
	}
	if decoded["message"] != "hello world" || decoded["stream_audio"] != true {
		t.Fatalf("unexpected envelope %v", decoded)
	}
	if messageContext, ok := decoded["context"].(map[string]any); !ok || len(messageContext) != 0 {
		t.Fatalf("expected empty context object, got %v", decoded["context"])
	}
	if value, ok := decoded["session_id"]; !ok || value != nil {
		t.Fatalf("expected null session id, got %v", value)
	}
}

func TestServerDropReportsTransportError(t *testing.T) {
	server := newAgentServer(t, func(conn *websocket.Conn) {
		conn.Close()
	})
	session := NewSession(server.url, credentials.NewMemoryStore("secret"))

	var reported atomic.Value
	if err := session.Connect(context.Background(), WithErrorCallback(func(err error) { reported.Store(err) })); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}

	waitForCondition(t, time.Second, "transport error", func() bool { return reported.Load() != nil })
	if err := reported.Load().(error); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if got := session.State(); got != StateDisconnected {
		t.Fatalf("expected disconnected state, got %s", got)
	}
}

func TestHandshakeRejectionClearsCredential(t *testing.T) {
	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer httpServer.Close()

	store := credentials.NewMemoryStore("stale")
	session := NewSession("ws"+strings.TrimPrefix(httpServer.URL, "http"), store)

	err := session.Connect(context.Background())
	if !errors.Is(err, credentials.ErrRejected) || !errors.Is(err, ErrConnect) {
		t.Fatalf("expected rejected connect, got %v", err)
	}
	if _, ok := store.Get(); ok {
		t.Fatalf("expected credential to be cleared")
	}
	if got := session.State(); got != StateDisconnected {
		t.Fatalf("expected disconnected state, got %s", got)
	}
}

func TestDisconnectNotifiesState(t *testing.T) {
	server := newAgentServer(t, nil)
	session := NewSession(server.url, credentials.NewMemoryStore("secret"))

	states := &stateRecorder{}
	if err := session.Connect(context.Background(), WithStateCallback(states.record)); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}
	if err := session.Disconnect(); err != nil {
		t.Fatalf("unexpected disconnect error: %v", err)
	}
	if err := session.Disconnect(); err != nil {
		t.Fatalf("expected second disconnect to be a no-op, got %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	got := states.snapshot()
	if len(got) != 3 || got[2] != StateDisconnected {
		t.Fatalf("expected a single disconnected transition, got %v", got)
	}
}

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

type stateRecorder struct {
	mu     sync.Mutex
	states []ConnectionState
}

func (r *stateRecorder) record(state ConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *stateRecorder) snapshot() []ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ConnectionState(nil), r.states...)
}

type agentServer struct {
	url         string
	connections atomic.Int32

	mu       sync.Mutex
	tokens   []string
	received [][]byte
}

func newAgentServer(t *testing.T, onConnect func(conn *websocket.Conn)) *agentServer {
	t.Helper()

	server := &agentServer{}
	upgrader := websocket.Upgrader{}
	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != agentPath {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		server.mu.Lock()
		server.tokens = append(server.tokens, r.URL.Query().Get("token"))
		server.mu.Unlock()
		server.connections.Add(1)

		if onConnect != nil {
			onConnect(conn)
		}

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			server.mu.Lock()
			server.received = append(server.received, msg)
			server.mu.Unlock()
		}
	}))
	t.Cleanup(httpServer.Close)

	server.url = "ws" + strings.TrimPrefix(httpServer.URL, "http")
	return server
}

func (s *agentServer) lastToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tokens) == 0 {
		return ""
	}
	return s.tokens[len(s.tokens)-1]
}

func (s *agentServer) messages() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.received...)
}
