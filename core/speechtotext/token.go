package speechtotext

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/koscakluka/ema-sphere/core/credentials"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	tokenPath           = "/agent/stt/token"
	defaultTokenTimeout = 10 * time.Second
)

type Config struct {
	LanguageCode string `json:"language_code"`
	SampleRate   int    `json:"sample_rate"`
	AudioFormat  string `json:"audio_format"`
}

// Token is a short lived transcription credential together with the stream
// configuration the backend issued it for.
type Token struct {
	Value  string `json:"token"`
	Config Config `json:"config"`
}

type TokenSource interface {
	FetchToken(ctx context.Context) (*Token, error)
}

// TokenClient exchanges the user's bearer credential for transcription tokens
// at the backend.
type TokenClient struct {
	baseURL     string
	credentials credentials.Store
	httpClient  *http.Client
}

type TokenClientOption func(*TokenClient)

func WithHTTPClient(client *http.Client) TokenClientOption {
	return func(c *TokenClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewTokenClient(baseURL string, store credentials.Store, opts ...TokenClientOption) *TokenClient {
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
			return operationName + " " + request.URL.Path
		}),
	)
	client := &TokenClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		credentials: store,
		httpClient:  &http.Client{Transport: transport, Timeout: defaultTokenTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *TokenClient) FetchToken(ctx context.Context) (*Token, error) {
	ctx, span := tracer.Start(ctx, "fetch stt token")
	defer span.End()

	credential, ok := c.credentials.Get()
	if !ok {
		span.RecordError(credentials.ErrMissing)
		span.SetStatus(codes.Error, credentials.ErrMissing.Error())
		return nil, credentials.ErrMissing
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, nil)
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("error reading response body: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		err = fmt.Errorf("%w: %s", credentials.ErrRejected, resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		span.SetAttributes(attribute.String("response.error", string(body)))
		err = fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var token Token
	if err := sonic.Unmarshal(body, &token); err != nil {
		err = fmt.Errorf("error unmarshalling JSON: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if token.Value == "" {
		err := fmt.Errorf("token response without token")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("stt.language_code", token.Config.LanguageCode),
		attribute.Int("stt.sample_rate", token.Config.SampleRate),
	)
	return &token, nil
}
