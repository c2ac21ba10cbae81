package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-sphere/core/audio"
)

// audioCapture gates a microphone device: it holds the device handle between
// RequestAccess and Release and forwards PCM16 frames while capture is live.
type audioCapture struct {
	device           AudioInput
	secure           bool
	silenceThreshold float32

	mu      sync.Mutex
	granted bool

	live atomic.Bool
}

func newAudioCapture() audioCapture {
	return audioCapture{
		secure:           true,
		silenceThreshold: audio.DefaultSilenceThreshold,
	}
}

func (c *audioCapture) set(device AudioInput) {
	c.device = device
}

func (c *audioCapture) isConfigured() bool {
	return c != nil && c.device != nil
}

func (c *audioCapture) RequestAccess(ctx context.Context) error {
	if !c.isConfigured() {
		return audio.ErrUnsupported
	}
	if !c.secure {
		return audio.ErrInsecureContext
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.granted {
		return nil
	}

	if err := c.device.RequestAccess(ctx); err != nil {
		if errors.Is(err, audio.ErrAccessDenied) || errors.Is(err, audio.ErrUnsupported) {
			return err
		}
		return fmt.Errorf("%w: %w", audio.ErrAccessDenied, err)
	}
	c.granted = true
	return nil
}

// Start begins forwarding frames to onFrame. Frames that arrive after Stop are
// dropped even if the device had already scheduled them.
func (c *audioCapture) Start(ctx context.Context, onFrame func(pcm []byte)) error {
	if !c.isConfigured() {
		return audio.ErrUnsupported
	}

	c.mu.Lock()
	granted := c.granted
	c.mu.Unlock()
	if !granted {
		return audio.ErrDeviceNotInitialized
	}

	if !c.live.CompareAndSwap(false, true) {
		return nil
	}

	threshold := c.silenceThreshold
	err := c.device.StartCapture(ctx, func(samples []float32) {
		if !c.live.Load() {
			return
		}
		if audio.IsNearSilent(samples, threshold) {
			metricSilentFrames.Inc()
			return
		}
		metricCapturedFrames.Inc()
		onFrame(audio.FloatToPCM16(samples))
	})
	if err != nil {
		c.live.Store(false)
		return err
	}
	return nil
}

func (c *audioCapture) Stop() error {
	if !c.isConfigured() || !c.live.Swap(false) {
		return nil
	}
	return c.device.StopCapture()
}

func (c *audioCapture) Release() error {
	if !c.isConfigured() {
		return nil
	}

	stopErr := c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.granted {
		return stopErr
	}
	c.granted = false
	return errors.Join(stopErr, c.device.Release())
}

func (c *audioCapture) IsCapturing() bool {
	return c.live.Load()
}
