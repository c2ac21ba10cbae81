package miniaudio

import (
	"context"
	"fmt"

	"github.com/faiface/beep"
	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-sphere/core/audio"
)

// Client owns one miniaudio context with a lazily opened capture device and
// an always-on playback device.
type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	frameSize    int

	playbackClient
	captureClient
}

type ClientOption func(*Client)

// WithFrameSize sets how many samples are delivered per captured frame.
func WithFrameSize(samples int) ClientOption {
	return func(c *Client) {
		if samples > 0 {
			c.frameSize = samples
		}
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", audio.ErrUnsupported, err)
	}

	client := Client{
		audioContext: audioCtx,
		frameSize:    audio.DefaultFrameSize,
	}
	for _, opt := range opts {
		opt(&client)
	}

	if err := client.playbackClient.Init(audioCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if err := client.playbackClient.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	return &client, nil
}

// RequestAccess opens the capture device. It is idempotent.
func (c *Client) RequestAccess(_ context.Context) error {
	return c.captureClient.Init(c.audioContext, c.frameSize)
}

func (c *Client) StartCapture(_ context.Context, onFrame func(frame []float32)) error {
	return c.captureClient.Start(onFrame)
}

func (c *Client) StopCapture() error {
	return c.captureClient.Stop()
}

// Release closes the capture device; RequestAccess may open it again.
func (c *Client) Release() error {
	return c.captureClient.Uninit()
}

func (c *Client) Play(ctx context.Context, streamer beep.Streamer, format beep.Format) error {
	return c.playbackClient.Play(ctx, streamer, format)
}

func (c *Client) Close() {
	_ = c.captureClient.Uninit()
	_ = c.playbackClient.Uninit()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}
