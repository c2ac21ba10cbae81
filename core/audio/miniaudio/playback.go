package miniaudio

import (
	"context"
	"fmt"
	"sync"

	"github.com/faiface/beep"
	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-sphere/core/audio"
)

const (
	playbackSampleRate = 48000
	playbackChannels   = 2
)

type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	current *activeClip
	samples [][2]float64

	mu     sync.Mutex
	clipMu sync.Mutex
}

type activeClip struct {
	streamer beep.Streamer
	done     chan struct{}
	once     sync.Once
}

func (a *activeClip) finish() {
	a.once.Do(func() { close(a.done) })
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	format := malgo.FormatF32

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = playbackSampleRate
	c.config.Playback.Format = format
	c.config.Playback.Channels = playbackChannels
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = playbackSampleRate / 10 // ~100ms of audio
	c.config.Periods = 4

	c.audioContext = audioContext

	var err error
	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio},
	); err != nil {
		return err
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return audio.ErrDeviceNotInitialized
	} else if c.device.IsStarted() {
		return nil
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

// Play streams one decoded clip to the output device and blocks until the
// clip runs out or ctx is cancelled. Only one clip plays at a time.
func (c *playbackClient) Play(ctx context.Context, streamer beep.Streamer, format beep.Format) error {
	if c.device == nil {
		return audio.ErrDeviceNotInitialized
	}

	if format.SampleRate != playbackSampleRate {
		streamer = beep.Resample(4, format.SampleRate, playbackSampleRate, streamer)
	}
	clip := &activeClip{streamer: streamer, done: make(chan struct{})}

	c.clipMu.Lock()
	if c.current != nil {
		c.current.finish()
	}
	c.current = clip
	c.clipMu.Unlock()

	defer func() {
		c.clipMu.Lock()
		if c.current == clip {
			c.current = nil
		}
		c.clipMu.Unlock()
	}()

	select {
	case <-clip.done:
		return nil
	case <-ctx.Done():
		clip.finish()
		return ctx.Err()
	}
}

func (c *playbackClient) processAudio(pOutput, _ []byte, frameCount uint32) {
	c.clipMu.Lock()
	defer c.clipMu.Unlock()

	clear(pOutput)
	if c.current == nil {
		return
	}

	if cap(c.samples) < int(frameCount) {
		c.samples = make([][2]float64, frameCount)
	}
	samples := c.samples[:frameCount]
	n, ok := c.current.streamer.Stream(samples)

	interleaved := make([]float32, 0, n*playbackChannels)
	for _, sample := range samples[:n] {
		interleaved = append(interleaved, float32(sample[0]), float32(sample[1]))
	}
	audio.PutFloat32(pOutput, interleaved)

	if !ok || n < int(frameCount) {
		c.current.finish()
		c.current = nil
	}
}

func (c *playbackClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return audio.ErrDeviceNotInitialized
	}

	c.clipMu.Lock()
	if c.current != nil {
		c.current.finish()
		c.current = nil
	}
	c.clipMu.Unlock()

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}
	return nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return audio.ErrDeviceNotInitialized
	}

	c.device.Uninit()
	c.device = nil

	return nil
}
