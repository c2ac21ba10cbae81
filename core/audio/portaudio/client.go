package portaudio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-sphere/core/audio"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var logger = otelslog.NewLogger("github.com/koscakluka/ema-sphere/core/audio/portaudio")

// Client captures audio through PortAudio's blocking stream API. It is an
// alternative input for hosts where miniaudio cannot open the microphone.
type Client struct {
	frameSize int
	stream    *portaudio.Stream
	in        []float32

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

func NewClient(frameSize int) (*Client, error) {
	if frameSize <= 0 {
		frameSize = audio.DefaultFrameSize
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %w", audio.ErrUnsupported, err)
	}

	return &Client{frameSize: frameSize}, nil
}

// RequestAccess opens the default input stream. It is idempotent.
func (c *Client) RequestAccess(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return nil
	}

	in := make([]float32, c.frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, audio.DefaultSampleRate, c.frameSize, in)
	if err != nil {
		return fmt.Errorf("%w: %w", audio.ErrAccessDenied, err)
	}

	c.stream = stream
	c.in = in
	return nil
}

func (c *Client) StartCapture(ctx context.Context, onFrame func(frame []float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return audio.ErrDeviceNotInitialized
	} else if c.cancel != nil {
		return nil
	}

	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.readLoop(ctx, c.stream, c.in, onFrame, c.done)
	return nil
}

func (c *Client) readLoop(ctx context.Context, stream *portaudio.Stream, in []float32, onFrame func([]float32), done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := stream.Read(); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("failed to read from input stream", slog.String("error", err.Error()))
			continue
		}

		frame := make([]float32, len(in))
		copy(frame, in)
		onFrame(frame)
	}
}

func (c *Client) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return nil
	}

	c.cancel()
	c.cancel = nil
	err := c.stream.Stop()
	<-c.done
	if err != nil {
		return fmt.Errorf("failed to stop input stream: %w", err)
	}
	return nil
}

// Release closes the input stream; RequestAccess may open it again.
func (c *Client) Release() error {
	if err := c.StopCapture(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return nil
	}
	err := c.stream.Close()
	c.stream = nil
	return err
}

func (c *Client) Close() {
	_ = c.Release()
	_ = portaudio.Terminate()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}
