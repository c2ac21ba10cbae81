package speechtotext

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultConnectTimeout = 5 * time.Second

type State string

const (
	StateIdle       State = "idle"
	StateTokenFetch State = "token_fetch"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
)

// Session is one realtime transcription socket at a time. Each Start opens a
// socket for a listening episode and Finalize closes it, returning the
// committed utterance.
type Session struct {
	tokens         TokenSource
	provider       Provider
	dialer         *websocket.Dialer
	connectTimeout time.Duration
	reuseToken     bool

	state     State
	conn      *websocket.Conn
	token     *Token
	committed []string
	interim   string
	mu        sync.Mutex

	writeMu sync.Mutex
}

func NewSession(tokens TokenSource, provider Provider, opts ...SessionOption) *Session {
	s := &Session{
		tokens:         tokens,
		provider:       provider,
		dialer:         websocket.DefaultDialer,
		connectTimeout: DefaultConnectTimeout,
		state:          StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start fetches a token when none is cached, opens the provider socket and
// begins delivering transcripts to the callbacks in opts. It blocks until the
// socket is open or the connect timeout elapses. The timeout covers the token
// fetch and the handshake together.
func (s *Session) Start(ctx context.Context, opts ...TranscriptionOption) (err error) {
	ctx, span := tracer.Start(ctx, "start transcription")
	defer span.End()
	span.SetAttributes(attribute.String("stt.provider", s.provider.Name()))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	options := newTranscriptionOptions(opts...)
	startedAt := time.Now()

	s.mu.Lock()
	switch s.state {
	case StateTokenFetch, StateConnecting, StateOpen:
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.committed = nil
	s.interim = ""
	token := s.token
	if token == nil {
		s.state = StateTokenFetch
	}
	s.mu.Unlock()

	attemptCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	fetched := token == nil
	if fetched {
		if token, err = s.tokens.FetchToken(attemptCtx); err != nil {
			s.setState(StateIdle)
			if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
				metricConnectFailures.WithLabelValues("timeout").Inc()
				return fmt.Errorf("%w: %w after %s", ErrTokenFetch, ErrConnectTimeout, s.connectTimeout)
			}
			metricConnectFailures.WithLabelValues("token").Inc()
			return fmt.Errorf("%w: %w", ErrTokenFetch, err)
		}
	}

	s.mu.Lock()
	if fetched && s.state != StateTokenFetch {
		s.mu.Unlock()
		return ErrAborted
	}
	if s.reuseToken {
		s.token = token
	} else {
		s.token = nil
	}
	s.state = StateConnecting
	s.mu.Unlock()

	conn, err := s.dial(attemptCtx, *token)
	if err != nil {
		s.mu.Lock()
		s.token = nil
		if s.state == StateConnecting {
			s.state = StateIdle
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		conn.Close()
		return ErrAborted
	}
	s.state = StateOpen
	s.conn = conn
	s.mu.Unlock()

	gaugeSessions.Inc()
	metricConnectMS.Observe(float64(time.Since(startedAt).Milliseconds()))
	go s.readMessages(conn, options)

	return nil
}

func (s *Session) dial(ctx context.Context, token Token) (*websocket.Conn, error) {
	ctx, span := tracer.Start(ctx, "connect transcription socket")
	defer span.End()

	endpoint, header, err := s.provider.Endpoint(token)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrConnect, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	conn, _, err := s.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		var netErr net.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			metricConnectFailures.WithLabelValues("timeout").Inc()
			err = fmt.Errorf("%w after %s", ErrConnectTimeout, s.connectTimeout)
		} else {
			metricConnectFailures.WithLabelValues("dial").Inc()
			err = fmt.Errorf("%w: %w", ErrConnect, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return conn, nil
}

func (s *Session) readMessages(conn *websocket.Conn, options TranscriptionOptions) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			if s.conn != conn {
				// Finalize already detached this socket.
				s.mu.Unlock()
				return
			}
			s.conn = nil
			s.state = StateClosed
			s.token = nil
			s.mu.Unlock()

			gaugeSessions.Dec()
			metricUnexpectedCloses.Inc()
			conn.Close()
			if err.Error() != "websocket: close 1000 (normal)" {
				logger.Warn("transcription socket closed unexpectedly", "provider", s.provider.Name(), "error", err)
			}
			options.ClosedCallback(err)
			return
		}

		parsed, err := s.provider.ParseMessage(msg)
		if err != nil {
			metricProtocolErrors.Inc()
			logger.Warn("failed to parse transcription message", "provider", s.provider.Name(), "error", err)
			continue
		}
		metricMessages.WithLabelValues(parsed.Kind.String()).Inc()

		switch parsed.Kind {
		case MessagePartial:
			if !s.apply(conn, func() { s.interim = parsed.Text }) {
				return
			}
			options.PartialTranscriptionCallback(parsed.Text)

		case MessageCommitted:
			if !s.apply(conn, func() {
				s.committed = append(s.committed, parsed.Text)
				s.interim = ""
			}) {
				return
			}
			options.CommittedTranscriptionCallback(parsed.Text)

		case MessageError:
			logger.Warn("transcription provider reported an error", "provider", s.provider.Name(), "error", parsed.Err)
			options.ErrorCallback(parsed.Err)
		}
	}
}

// apply mutates the accumulation only while conn is still the live socket.
func (s *Session) apply(conn *websocket.Conn, update func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != conn {
		return false
	}
	update()
	return true
}

// SendAudio forwards one PCM16 frame. Frames are written in call order.
func (s *Session) SendAudio(pcm []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotOpen
	}

	msgType, payload, err := s.provider.AudioMessage(pcm)
	if err != nil {
		return fmt.Errorf("failed to encode audio frame: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.WriteMessage(msgType, payload); err != nil {
		return fmt.Errorf("failed to write to %s socket: %w", s.provider.Name(), err)
	}

	metricFrames.Inc()
	metricAudioBytes.Add(float64(len(pcm)))
	return nil
}

// Finalize ends the episode: it signals end of utterance, closes the socket
// and returns the trimmed committed utterance. Calling it again, or without a
// prior Start, returns an empty string and touches no socket.
func (s *Session) Finalize() string {
	s.mu.Lock()
	conn := s.conn
	utterance := strings.TrimSpace(strings.Join(s.committed, " "))
	s.conn = nil
	s.committed = nil
	s.interim = ""
	switch s.state {
	case StateOpen:
		s.state = StateClosed
	case StateTokenFetch, StateConnecting:
		s.state = StateIdle
	}
	s.mu.Unlock()

	if conn == nil {
		return utterance
	}

	s.writeMu.Lock()
	if msgType, payload, err := s.provider.EndOfUtterance(); err != nil {
		logger.Warn("failed to encode end of utterance", "provider", s.provider.Name(), "error", err)
	} else if err := conn.WriteMessage(msgType, payload); err != nil {
		logger.Warn("failed to send end of utterance", "provider", s.provider.Name(), "error", err)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()

	gaugeSessions.Dec()
	conn.Close()
	return utterance
}

// Close drops any open socket without returning the utterance.
func (s *Session) Close() error {
	_ = s.Finalize()
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Utterance is the committed text accumulated so far in this episode.
func (s *Session) Utterance() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(strings.Join(s.committed, " "))
}

func (s *Session) Interim() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interim
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}
