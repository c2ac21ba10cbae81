package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-sphere/core/audio"
)

type captureClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig
	frameSize    int

	pending []float32
	onFrame func(frame []float32)

	mu      sync.Mutex
	frameMu sync.Mutex
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext, frameSize int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		return nil
	}

	format := malgo.FormatF32
	channels := 1
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Capture)
	c.config.SampleRate = uint32(audio.DefaultSampleRate)
	c.config.Capture.Format = format
	c.config.Capture.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PerformanceProfile = malgo.LowLatency
	c.config.PeriodSizeInFrames = 480
	c.config.Periods = 3

	c.audioContext = audioContext
	c.frameSize = frameSize

	var err error
	c.device, err = malgo.InitDevice(c.audioContext.Context, c.config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			c.collect(audio.Float32FromBytes(pInput[:n]))
		},
	})
	if err != nil {
		c.device = nil
		return fmt.Errorf("%w: %w", audio.ErrAccessDenied, err)
	}

	return nil
}

// collect buffers device periods until a whole frame is available. Frames are
// delivered on the device thread in capture order.
func (c *captureClient) collect(samples []float32) {
	c.frameMu.Lock()
	defer c.frameMu.Unlock()
	if c.onFrame == nil {
		return
	}

	c.pending = append(c.pending, samples...)
	for len(c.pending) >= c.frameSize {
		frame := make([]float32, c.frameSize)
		copy(frame, c.pending[:c.frameSize])
		c.pending = c.pending[c.frameSize:]
		c.onFrame(frame)
	}
}

func (c *captureClient) Start(onFrame func(frame []float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return audio.ErrDeviceNotInitialized
	} else if c.device.IsStarted() {
		return nil
	}

	c.frameMu.Lock()
	c.pending = nil
	c.onFrame = onFrame
	c.frameMu.Unlock()

	if err := c.device.Start(); err != nil {
		c.detach()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	return nil
}

func (c *captureClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detach()
	if c.device == nil || !c.device.IsStarted() {
		return nil
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}

	return nil
}

func (c *captureClient) detach() {
	c.frameMu.Lock()
	c.onFrame = nil
	c.pending = nil
	c.frameMu.Unlock()
}

func (c *captureClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detach()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}

	return nil
}
