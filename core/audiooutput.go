package orchestration

import (
	"context"
	"errors"
	"sync"

	"github.com/koscakluka/ema-sphere/core/audio"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrNoAudioOutput = errors.New("no audio output configured")

type PlaybackResult string

const (
	PlaybackPlayed  PlaybackResult = "played"
	PlaybackSkipped PlaybackResult = "skipped"
	PlaybackFailed  PlaybackResult = "failed"
)

// audioPlayback queues reply audio chunks and plays them as one clip.
type audioPlayback struct {
	output AudioOutput
	decode audio.ClipDecoder

	onPlayStart func()
	onPlayEnd   func(err error)

	mu      sync.Mutex
	queue   [][]byte
	playing bool
}

func newAudioPlayback() audioPlayback {
	return audioPlayback{decode: audio.DecodeClip}
}

// Enqueue appends chunk to the pending clip. The slice is retained.
func (p *audioPlayback) Enqueue(chunk []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, chunk)
}

// FlushAndPlay plays every queued chunk as one clip and blocks until it ends.
// It skips when a clip is already playing or nothing is queued.
func (p *audioPlayback) FlushAndPlay(ctx context.Context) (PlaybackResult, error) {
	clip, ok := p.take()
	if !ok {
		metricPlayback.WithLabelValues(string(PlaybackSkipped)).Inc()
		return PlaybackSkipped, nil
	}
	return p.play(ctx, clip)
}

// take marks playback as started and empties the queue into one contiguous
// clip. It reports false, leaving the queue alone, when playback is already
// running or nothing is queued.
func (p *audioPlayback) take() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing || len(p.queue) == 0 {
		return nil, false
	}

	size := 0
	for _, chunk := range p.queue {
		size += len(chunk)
	}
	clip := make([]byte, 0, size)
	for _, chunk := range p.queue {
		clip = append(clip, chunk...)
	}
	p.queue = nil
	p.playing = true
	return clip, true
}

func (p *audioPlayback) play(ctx context.Context, clip []byte) (result PlaybackResult, err error) {
	ctx, span := tracer.Start(ctx, "play reply audio")
	span.SetAttributes(attribute.Int("clip.bytes", len(clip)))
	defer span.End()
	metricPlaybackBytes.Observe(float64(len(clip)))

	if p.onPlayStart != nil {
		p.onPlayStart()
	}
	defer func() {
		p.mu.Lock()
		p.playing = false
		p.mu.Unlock()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "playback failed")
		}
		metricPlayback.WithLabelValues(string(result)).Inc()
		if p.onPlayEnd != nil {
			p.onPlayEnd(err)
		}
	}()

	if p.output == nil {
		return PlaybackFailed, ErrNoAudioOutput
	}

	streamer, format, err := p.decode(clip)
	if err != nil {
		return PlaybackFailed, err
	}
	defer streamer.Close()

	if err := p.output.Play(ctx, streamer, format); err != nil {
		return PlaybackFailed, err
	}
	return PlaybackPlayed, nil
}

func (p *audioPlayback) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *audioPlayback) QueueLength() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Clear drops queued chunks. A clip that is already playing is unaffected.
func (p *audioPlayback) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = nil
}
