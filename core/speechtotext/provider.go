package speechtotext

import "net/http"

type MessageKind int

const (
	MessageIgnored MessageKind = iota
	MessagePartial
	MessageCommitted
	MessageError
)

func (k MessageKind) String() string {
	switch k {
	case MessagePartial:
		return "partial_transcript"
	case MessageCommitted:
		return "committed_transcript"
	case MessageError:
		return "error"
	}
	return "ignored"
}

// Message is an inbound provider message reduced to what a session acts on.
type Message struct {
	Kind MessageKind
	Text string
	Err  error
}

// Provider is the wire dialect of one realtime transcription service.
type Provider interface {
	Name() string
	// Endpoint builds the socket target and handshake headers. Providers that
	// take credentials in the URL return a nil header.
	Endpoint(token Token) (string, http.Header, error)
	// AudioMessage wraps one PCM16 frame for the wire and returns the
	// websocket message type to send it with.
	AudioMessage(pcm []byte) (int, []byte, error)
	EndOfUtterance() (int, []byte, error)
	ParseMessage(msg []byte) (Message, error)
}
