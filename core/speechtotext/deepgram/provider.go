// Package deepgram speaks the Deepgram live transcription dialect.
package deepgram

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-sphere/core/speechtotext"
)

const (
	defaultEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel    = "nova-3"
	defaultLanguage = "en-US"

	typeErrorResponse = "Error"
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

func (p *Provider) Name() string { return "deepgram" }

// Endpoint authenticates with the issued token as a Deepgram key.
func (p *Provider) Endpoint(token speechtotext.Token) (string, http.Header, error) {
	encoding, err := convertEncoding(encodingFromConfig(token.Config.SampleRate, token.Config.AudioFormat))
	if err != nil {
		return "", nil, fmt.Errorf("invalid encoding: %w", err)
	}

	listenUrl, err := url.Parse(p.endpoint)
	if err != nil {
		return "", nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	language := token.Config.LanguageCode
	if language == "" {
		language = defaultLanguage
	}

	queryParams := listenUrl.Query()
	queryParams.Set("encoding", encoding.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", p.model)
	queryParams.Set("language", language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("endpointing", "300")
	listenUrl.RawQuery = queryParams.Encode()

	return listenUrl.String(), http.Header{"Authorization": {"Token " + token.Value}}, nil
}

func (p *Provider) AudioMessage(pcm []byte) (int, []byte, error) {
	return websocket.BinaryMessage, pcm, nil
}

func (p *Provider) EndOfUtterance() (int, []byte, error) {
	payload, err := sonic.Marshal(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)})
	if err != nil {
		return 0, nil, err
	}
	return websocket.TextMessage, payload, nil
}

func (p *Provider) ParseMessage(msg []byte) (speechtotext.Message, error) {
	var parsedMsg struct {
		Type        string `json:"type"`
		Description string `json:"description"`
		Message     string `json:"message"`
	}
	if err := sonic.Unmarshal(msg, &parsedMsg); err != nil {
		return speechtotext.Message{}, fmt.Errorf("failed to unmarshal deepgram message: %w", err)
	}

	switch parsedMsg.Type {
	case string(api.TypeMessageResponse):
		var msgResp api.MessageResponse
		if err := sonic.Unmarshal(msg, &msgResp); err != nil {
			return speechtotext.Message{}, fmt.Errorf("failed to unmarshal deepgram results: %w", err)
		}
		if len(msgResp.Channel.Alternatives) == 0 {
			return speechtotext.Message{Kind: speechtotext.MessageIgnored}, nil
		}

		transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		if msgResp.IsFinal {
			if transcript == "" {
				return speechtotext.Message{Kind: speechtotext.MessageIgnored}, nil
			}
			return speechtotext.Message{Kind: speechtotext.MessageCommitted, Text: transcript}, nil
		}
		return speechtotext.Message{Kind: speechtotext.MessagePartial, Text: transcript}, nil

	case typeErrorResponse:
		reason := parsedMsg.Description
		if reason == "" {
			reason = parsedMsg.Message
		}
		return speechtotext.Message{
			Kind: speechtotext.MessageError,
			Err:  fmt.Errorf("%w: %s", speechtotext.ErrProvider, reason),
		}, nil
	}

	return speechtotext.Message{Kind: speechtotext.MessageIgnored}, nil
}
