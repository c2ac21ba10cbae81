// Package elevenlabs speaks the ElevenLabs realtime speech-to-text dialect.
package elevenlabs

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-sphere/core/audio"
	"github.com/koscakluka/ema-sphere/core/speechtotext"
)

const (
	defaultEndpoint     = "wss://api.elevenlabs.io/v1/speech-to-text/realtime"
	defaultModel        = "scribe_v2_realtime"
	defaultLanguageCode = "en"
)

type Provider struct {
	endpoint string
	model    string
}

type ProviderOption func(*Provider)

func WithEndpoint(endpoint string) ProviderOption {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{endpoint: defaultEndpoint, model: defaultModel}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Name() string { return "elevenlabs" }

func (p *Provider) Endpoint(token speechtotext.Token) (string, http.Header, error) {
	target, err := url.Parse(p.endpoint)
	if err != nil {
		return "", nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	sampleRate := token.Config.SampleRate
	if sampleRate == 0 {
		sampleRate = audio.DefaultSampleRate
	}
	languageCode := token.Config.LanguageCode
	if languageCode == "" {
		languageCode = defaultLanguageCode
	}

	queryParams := target.Query()
	queryParams.Set("model_id", p.model)
	queryParams.Set("token", token.Value)
	queryParams.Set("sample_rate", strconv.Itoa(sampleRate))
	queryParams.Set("language_code", languageCode)
	target.RawQuery = queryParams.Encode()

	return target.String(), nil, nil
}

type audioMessage struct {
	Audio string `json:"audio"`
}

type endOfStreamMessage struct {
	EOF bool `json:"eof"`
}

func (p *Provider) AudioMessage(pcm []byte) (int, []byte, error) {
	payload, err := sonic.Marshal(audioMessage{Audio: audio.EncodeFrame(pcm)})
	if err != nil {
		return 0, nil, err
	}
	return websocket.TextMessage, payload, nil
}

func (p *Provider) EndOfUtterance() (int, []byte, error) {
	payload, err := sonic.Marshal(endOfStreamMessage{EOF: true})
	if err != nil {
		return 0, nil, err
	}
	return websocket.TextMessage, payload, nil
}

type inboundMessage struct {
	MessageType string `json:"message_type"`
	Type        string `json:"type"`
	Text        string `json:"text"`
	Error       string `json:"error"`
	Message     string `json:"message"`
}

func (p *Provider) ParseMessage(msg []byte) (speechtotext.Message, error) {
	var parsed inboundMessage
	if err := sonic.Unmarshal(msg, &parsed); err != nil {
		return speechtotext.Message{}, fmt.Errorf("failed to unmarshal elevenlabs message: %w", err)
	}

	switch {
	case parsed.MessageType == "partial_transcript":
		return speechtotext.Message{Kind: speechtotext.MessagePartial, Text: parsed.Text}, nil
	case parsed.MessageType == "committed_transcript":
		return speechtotext.Message{Kind: speechtotext.MessageCommitted, Text: parsed.Text}, nil
	case parsed.MessageType == "error", parsed.Type == "error":
		reason := parsed.Error
		if reason == "" {
			reason = parsed.Message
		}
		return speechtotext.Message{
			Kind: speechtotext.MessageError,
			Err:  fmt.Errorf("%w: %s", speechtotext.ErrProvider, reason),
		}, nil
	}

	return speechtotext.Message{Kind: speechtotext.MessageIgnored}, nil
}
