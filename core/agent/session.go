package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-sphere/core/audio"
	"github.com/koscakluka/ema-sphere/core/credentials"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	agentPath             = "/agent/ws"
	defaultConnectTimeout = 10 * time.Second
)

// Session is the persistent socket to the conversational backend. It never
// reconnects on its own; callers decide when to Connect again.
type Session struct {
	wsBaseURL      string
	credentials    credentials.Store
	dialer         *websocket.Dialer
	connectTimeout time.Duration
	messageContext map[string]any

	state        ConnectionState
	conn         *websocket.Conn
	connectionID string
	options      ConnectOptions
	mu           sync.Mutex

	writeMu sync.Mutex
}

func NewSession(wsBaseURL string, store credentials.Store, opts ...SessionOption) *Session {
	s := &Session{
		wsBaseURL:      strings.TrimRight(wsBaseURL, "/"),
		credentials:    store,
		dialer:         websocket.DefaultDialer,
		connectTimeout: defaultConnectTimeout,
		messageContext: map[string]any{},
		state:          StateDisconnected,
		options:        newConnectOptions(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens the agent socket with the stored credential. It is a no-op
// while a socket is already open or being opened.
func (s *Session) Connect(ctx context.Context, opts ...ConnectOption) (err error) {
	ctx, span := tracer.Start(ctx, "connect agent")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		span.AddEvent("already connecting or connected")
		return nil
	}

	credential, ok := s.credentials.Get()
	if !ok {
		s.mu.Unlock()
		return credentials.ErrMissing
	}

	options := newConnectOptions(opts...)
	s.options = options
	s.state = StateConnecting
	s.connectionID = ""
	s.mu.Unlock()
	options.StateCallback(StateConnecting)

	conn, err := s.dial(ctx, credential)
	if err != nil {
		s.mu.Lock()
		reset := s.state == StateConnecting
		if reset {
			s.state = StateDisconnected
		}
		s.mu.Unlock()
		if reset {
			options.StateCallback(StateDisconnected)
		}
		return err
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		conn.Close()
		return ErrAborted
	}
	s.state = StateConnected
	s.conn = conn
	s.mu.Unlock()

	metricConnects.WithLabelValues("ok").Inc()
	options.StateCallback(StateConnected)
	go s.readMessages(conn, options)

	return nil
}

func (s *Session) dial(ctx context.Context, credential string) (*websocket.Conn, error) {
	target, err := url.Parse(s.wsBaseURL + agentPath)
	if err != nil {
		metricConnects.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: invalid url: %w", ErrConnect, err)
	}
	queryParams := target.Query()
	queryParams.Set("token", credential)
	target.RawQuery = queryParams.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	conn, resp, err := s.dialer.DialContext(dialCtx, target.String(), nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			metricConnects.WithLabelValues("rejected").Inc()
			s.clearCredential()
			return nil, fmt.Errorf("%w: %w: %s", ErrConnect, credentials.ErrRejected, resp.Status)
		}
		metricConnects.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	return conn, nil
}

func (s *Session) readMessages(conn *websocket.Conn, options ConnectOptions) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !s.detach(conn) {
				return
			}

			conn.Close()
			if err.Error() != "websocket: close 1000 (normal)" {
				logger.Warn("agent socket closed", "error", err)
				options.ErrorCallback(fmt.Errorf("%w: %w", ErrTransport, err))
			}
			options.StateCallback(StateDisconnected)
			return
		}

		if !s.processMessage(conn, msg, options) {
			return
		}
	}
}

// processMessage dispatches one inbound message. It returns false once the
// socket has been torn down because of it.
func (s *Session) processMessage(conn *websocket.Conn, msg []byte, options ConnectOptions) bool {
	var parsedMsg envelope
	if err := sonic.Unmarshal(msg, &parsedMsg); err != nil {
		metricProtocolErrors.Inc()
		logger.Warn("failed to unmarshal agent message", "error", err)
		return true
	}
	metricMessages.WithLabelValues(parsedMsg.Type).Inc()

	switch parsedMsg.Type {
	case TypeConnectionAck:
		var ack ConnectionAck
		if err := sonic.Unmarshal(msg, &ack); err != nil {
			metricProtocolErrors.Inc()
			logger.Warn("failed to unmarshal connection ack", "error", err)
			return true
		}
		s.mu.Lock()
		s.connectionID = ack.ConnectionID
		s.mu.Unlock()
		logger.Info("agent connection acknowledged", "connection_id", ack.ConnectionID)
		options.ConnectionAckCallback(ack.ConnectionID)

	case TypeAudioChunk:
		var chunk AudioChunk
		if err := sonic.Unmarshal(msg, &chunk); err != nil {
			metricProtocolErrors.Inc()
			logger.Warn("failed to unmarshal audio chunk", "error", err)
			return true
		}
		decoded, err := audio.DecodeFrame(chunk.Audio)
		if err != nil {
			metricProtocolErrors.Inc()
			logger.Warn("failed to decode audio chunk", "error", err)
			return true
		}
		metricAudioBytes.Add(float64(len(decoded)))
		options.AudioChunkCallback(decoded)

	case TypeAudioComplete:
		var complete AudioComplete
		if err := sonic.Unmarshal(msg, &complete); err != nil {
			metricProtocolErrors.Inc()
			logger.Warn("failed to unmarshal audio complete", "error", err)
			return true
		}
		options.AudioCompleteCallback(complete.Message)

	case TypeAgentResponse:
		var response AgentResponse
		if err := sonic.Unmarshal(msg, &response); err != nil {
			metricProtocolErrors.Inc()
			logger.Warn("failed to unmarshal agent response", "error", err)
			return true
		}
		options.AgentResponseCallback(response.Message)

	case TypeError:
		var errMsg ErrorMessage
		if err := sonic.Unmarshal(msg, &errMsg); err != nil {
			metricProtocolErrors.Inc()
			logger.Warn("failed to unmarshal agent error", "error", err)
			return true
		}
		agentErr := &Error{Message: errMsg.Error, Code: errMsg.Code}
		logger.Warn("agent reported an error", "code", errMsg.Code, "error", errMsg.Error)

		if errMsg.Code != CodeInvalidToken {
			options.ErrorCallback(agentErr)
			return true
		}

		metricCredentialRejections.Inc()
		if s.detach(conn) {
			_ = conn.Close()
			s.clearCredential()
			options.ErrorCallback(agentErr)
			options.StateCallback(StateDisconnected)
		}
		return false

	default:
		logger.Debug("ignoring agent message", "type", parsedMsg.Type)
	}

	return true
}

// detach forgets conn if it is still the live socket and reports whether it
// was.
func (s *Session) detach(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != conn {
		return false
	}
	s.conn = nil
	s.state = StateDisconnected
	return true
}

func (s *Session) clearCredential() {
	if err := s.credentials.Clear(); err != nil {
		logger.Error("failed to clear rejected credential", "error", err)
	}
}

// Send transmits one finalized utterance as a single message.
func (s *Session) Send(ctx context.Context, text string) error {
	_, span := tracer.Start(ctx, "send utterance")
	defer span.End()
	span.SetAttributes(attribute.Int("utterance.length", len(text)))

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		span.RecordError(ErrNotConnected)
		span.SetStatus(codes.Error, ErrNotConnected.Error())
		return ErrNotConnected
	}

	payload, err := sonic.Marshal(UserMessage{
		Message:     text,
		Context:     s.messageContext,
		SessionID:   nil,
		StreamAudio: true,
	})
	if err != nil {
		err = fmt.Errorf("error marshalling JSON: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		err = fmt.Errorf("%w: %w", ErrTransport, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	metricUtterancesSent.Inc()
	return nil
}

// Disconnect closes the socket. The state callback of the last Connect sees
// the transition to disconnected.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	conn := s.conn
	previous := s.state
	options := s.options
	s.conn = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	if previous != StateDisconnected {
		options.StateCallback(StateDisconnected)
	}
	if conn == nil {
		return nil
	}

	s.writeMu.Lock()
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()

	return errors.Join(err, conn.Close())
}

func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConnectionID is the id from the last connection_ack, empty until one
// arrives.
func (s *Session) ConnectionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectionID
}
