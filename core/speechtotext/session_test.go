package speechtotext

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-sphere/core/credentials"
)

func TestSessionFinalizeJoinsCommittedTranscripts(t *testing.T) {
	server := newTranscriptionServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("partial:hel"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("committed:hello"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("partial:wor"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("committed:world"))
	})

	partials := atomic.Int32{}
	committed := atomic.Int32{}
	session := NewSession(&stubTokenSource{}, &lineProvider{endpoint: server.url})
	if err := session.Start(context.Background(),
		WithPartialTranscriptionCallback(func(string) { partials.Add(1) }),
		WithCommittedTranscriptionCallback(func(string) { committed.Add(1) }),
	); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if got := session.State(); got != StateOpen {
		t.Fatalf("expected open state, got %s", got)
	}

	waitForCondition(t, time.Second, "committed transcripts", func() bool {
		return committed.Load() == 2
	})
	if got := partials.Load(); got != 2 {
		t.Fatalf("expected 2 partial callbacks, got %d", got)
	}
	if got := session.Interim(); got != "" {
		t.Fatalf("expected committed transcript to clear interim, got %q", got)
	}

	if got := session.Finalize(); got != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", got)
	}
	waitForCondition(t, time.Second, "end of utterance", func() bool {
		return server.count("eof") == 1
	})

	if got := session.Finalize(); got != "" {
		t.Fatalf("expected second finalize to return empty utterance, got %q", got)
	}
	time.Sleep(50 * time.Millisecond)
	if got := server.count("eof"); got != 1 {
		t.Fatalf("expected no further socket activity, got %d end of utterance messages", got)
	}
	if got := session.State(); got != StateClosed {
		t.Fatalf("expected closed state, got %s", got)
	}
}

func TestSessionFinalizeWithoutStartReturnsEmpty(t *testing.T) {
	session := NewSession(&stubTokenSource{}, &lineProvider{})
	if got := session.Finalize(); got != "" {
		t.Fatalf("expected empty utterance, got %q", got)
	}
	if got := session.State(); got != StateIdle {
		t.Fatalf("expected idle state, got %s", got)
	}
}

func TestSessionSendAudioRequiresOpenSocket(t *testing.T) {
	server := newTranscriptionServer(t, nil)
	session := NewSession(&stubTokenSource{}, &lineProvider{endpoint: server.url})

	if err := session.SendAudio([]byte{1, 2}); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen before start, got %v", err)
	}

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	for _, frame := range [][]byte{{1}, {2}, {3}} {
		if err := session.SendAudio(frame); err != nil {
			t.Fatalf("unexpected send error: %v", err)
		}
	}
	waitForCondition(t, time.Second, "audio frames", func() bool {
		return len(server.frames()) == 3
	})
	for i, frame := range server.frames() {
		if len(frame) != 1 || frame[0] != byte(i+1) {
			t.Fatalf("expected frame %d to be [%d], got %v", i, i+1, frame)
		}
	}

	session.Finalize()
	if err := session.SendAudio([]byte{4}); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen after finalize, got %v", err)
	}
}

func TestSessionStartTwiceIsRejected(t *testing.T) {
	server := newTranscriptionServer(t, nil)
	session := NewSession(&stubTokenSource{}, &lineProvider{endpoint: server.url})
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer session.Close()

	if err := session.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
	if got := server.connections.Load(); got != 1 {
		t.Fatalf("expected a single socket, got %d", got)
	}
}

func TestSessionSingleUseTokenIsFetchedPerConnection(t *testing.T) {
	server := newTranscriptionServer(t, nil)
	tokens := &stubTokenSource{}
	session := NewSession(tokens, &lineProvider{endpoint: server.url})

	for range 2 {
		if err := session.Start(context.Background()); err != nil {
			t.Fatalf("unexpected start error: %v", err)
		}
		session.Finalize()
	}

	if got := tokens.calls.Load(); got != 2 {
		t.Fatalf("expected a token fetch per connection, got %d", got)
	}
}

func TestSessionReusedTokenIsDiscardedOnUnexpectedClose(t *testing.T) {
	server := newTranscriptionServer(t, nil)
	tokens := &stubTokenSource{}
	session := NewSession(tokens, &lineProvider{endpoint: server.url}, WithTokenReuse(true))

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	session.Finalize()
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if got := tokens.calls.Load(); got != 1 {
		t.Fatalf("expected token to be reused, got %d fetches", got)
	}

	closed := atomic.Int32{}
	session.Finalize()
	if err := session.Start(context.Background(), WithClosedCallback(func(error) { closed.Add(1) })); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	waitForCondition(t, time.Second, "third socket", func() bool {
		return server.connections.Load() == 3
	})
	server.closeAll()
	waitForCondition(t, time.Second, "unexpected close", func() bool {
		return closed.Load() == 1
	})
	if got := session.State(); got != StateClosed {
		t.Fatalf("expected closed state after unexpected close, got %s", got)
	}

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer session.Close()
	if got := tokens.calls.Load(); got != 2 {
		t.Fatalf("expected a fresh token after unexpected close, got %d fetches", got)
	}
}

func TestSessionTokenFailureAbortsWithoutDialing(t *testing.T) {
	server := newTranscriptionServer(t, nil)
	tokens := &stubTokenSource{err: errors.New("backend unavailable")}
	session := NewSession(tokens, &lineProvider{endpoint: server.url})

	err := session.Start(context.Background())
	if !errors.Is(err, ErrTokenFetch) {
		t.Fatalf("expected ErrTokenFetch, got %v", err)
	}
	if got := session.State(); got != StateIdle {
		t.Fatalf("expected idle state, got %s", got)
	}
	if got := server.connections.Load(); got != 0 {
		t.Fatalf("expected no socket to be opened, got %d", got)
	}
}

func TestSessionConnectTimeout(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer listener.Close()

	var held []net.Conn
	var heldMu sync.Mutex
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			heldMu.Lock()
			held = append(held, conn)
			heldMu.Unlock()
		}
	}()
	defer func() {
		heldMu.Lock()
		defer heldMu.Unlock()
		for _, conn := range held {
			conn.Close()
		}
	}()

	session := NewSession(&stubTokenSource{}, &lineProvider{endpoint: "ws://" + listener.Addr().String()},
		WithConnectTimeout(50*time.Millisecond))

	startedAt := time.Now()
	err = session.Start(context.Background())
	if !errors.Is(err, ErrConnectTimeout) {
		t.Fatalf("expected ErrConnectTimeout, got %v", err)
	}
	if elapsed := time.Since(startedAt); elapsed > time.Second {
		t.Fatalf("expected start to give up quickly, took %s", elapsed)
	}
	if got := session.State(); got != StateIdle {
		t.Fatalf("expected idle state, got %s", got)
	}
}

func TestSessionStalledTokenFetchTimesOut(t *testing.T) {
	release := make(chan struct{})
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer tokenServer.Close()
	defer close(release)

	server := newTranscriptionServer(t, nil)
	tokens := NewTokenClient(tokenServer.URL, credentials.NewMemoryStore("secret"))
	session := NewSession(tokens, &lineProvider{endpoint: server.url}, WithConnectTimeout(100*time.Millisecond))

	startedAt := time.Now()
	err := session.Start(context.Background())
	if !errors.Is(err, ErrTokenFetch) || !errors.Is(err, ErrConnectTimeout) {
		t.Fatalf("expected token fetch timeout, got %v", err)
	}
	if elapsed := time.Since(startedAt); elapsed > time.Second {
		t.Fatalf("expected start to give up quickly, took %s", elapsed)
	}
	if got := session.State(); got != StateIdle {
		t.Fatalf("expected idle state, got %s", got)
	}
	if got := server.connections.Load(); got != 0 {
		t.Fatalf("expected no socket to be opened, got %d", got)
	}
}

func TestSessionReportsProviderErrorsAndSkipsMalformedMessages(t *testing.T) {
	server := newTranscriptionServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("garbage"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("error:quota exceeded"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("committed:still here"))
	})

	var reported atomic.Value
	committed := atomic.Int32{}
	session := NewSession(&stubTokenSource{}, &lineProvider{endpoint: server.url})
	if err := session.Start(context.Background(),
		WithErrorCallback(func(err error) { reported.Store(err) }),
		WithCommittedTranscriptionCallback(func(string) { committed.Add(1) }),
	); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	waitForCondition(t, time.Second, "committed transcript", func() bool {
		return committed.Load() == 1
	})
	err, _ := reported.Load().(error)
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("expected provider error to be reported, got %v", err)
	}
	if got := session.Finalize(); got != "still here" {
		t.Fatalf("expected %q, got %q", "still here", got)
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

type stubTokenSource struct {
	err   error
	calls atomic.Int32
}

func (s *stubTokenSource) FetchToken(context.Context) (*Token, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &Token{Value: "stt-token", Config: Config{LanguageCode: "en", SampleRate: 16000}}, nil
}

// lineProvider is a plain text dialect: "kind:text" inbound, binary audio and
// an "eof" text message outbound.
type lineProvider struct {
	endpoint string
}

func (p *lineProvider) Name() string { return "line" }

func (p *lineProvider) Endpoint(token Token) (string, http.Header, error) {
	return p.endpoint + "?token=" + token.Value, nil, nil
}

func (p *lineProvider) AudioMessage(pcm []byte) (int, []byte, error) {
	return websocket.BinaryMessage, pcm, nil
}

func (p *lineProvider) EndOfUtterance() (int, []byte, error) {
	return websocket.TextMessage, []byte("eof"), nil
}

func (p *lineProvider) ParseMessage(msg []byte) (Message, error) {
	kind, text, ok := strings.Cut(string(msg), ":")
	if !ok {
		return Message{}, errors.New("missing kind")
	}
	switch kind {
	case "partial":
		return Message{Kind: MessagePartial, Text: text}, nil
	case "committed":
		return Message{Kind: MessageCommitted, Text: text}, nil
	case "error":
		return Message{Kind: MessageError, Err: errors.Join(ErrProvider, errors.New(text))}, nil
	}
	return Message{Kind: MessageIgnored}, nil
}

type transcriptionServer struct {
	url         string
	connections atomic.Int32

	mu       sync.Mutex
	conns    []*websocket.Conn
	received [][]byte
	texts    []string
}

func newTranscriptionServer(t *testing.T, onConnect func(conn *websocket.Conn)) *transcriptionServer {
	t.Helper()

	server := &transcriptionServer{}
	upgrader := websocket.Upgrader{}
	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		server.mu.Lock()
		server.conns = append(server.conns, conn)
		server.mu.Unlock()
		server.connections.Add(1)
		defer conn.Close()

		if onConnect != nil {
			onConnect(conn)
		}

		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			server.mu.Lock()
			if msgType == websocket.BinaryMessage {
				server.received = append(server.received, msg)
			} else {
				server.texts = append(server.texts, string(msg))
			}
			server.mu.Unlock()
		}
	}))
	t.Cleanup(httpServer.Close)

	server.url = "ws" + strings.TrimPrefix(httpServer.URL, "http")
	return server
}

func (s *transcriptionServer) frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.received...)
}

func (s *transcriptionServer) count(text string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, received := range s.texts {
		if received == text {
			n++
		}
	}
	return n
}

func (s *transcriptionServer) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.conns = nil
}
