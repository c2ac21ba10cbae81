package main

import (
	"fmt"

	orchestration "github.com/koscakluka/ema-sphere/core"
	"github.com/koscakluka/ema-sphere/core/audio/miniaudio"
	"github.com/koscakluka/ema-sphere/core/audio/portaudio"
	"github.com/koscakluka/ema-sphere/core/credentials"
	"github.com/koscakluka/ema-sphere/core/speechtotext"
	"github.com/koscakluka/ema-sphere/core/speechtotext/deepgram"
	"github.com/koscakluka/ema-sphere/core/speechtotext/elevenlabs"
	"github.com/koscakluka/ema-sphere/internal/config"
)

func newCredentialStore(cfg config.Config) (credentials.Store, error) {
	path := cfg.Credentials.File
	if path == "" {
		defaultPath, err := credentials.DefaultFilePath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	store := credentials.NewFileStore(path)
	if cfg.Credentials.Token != "" {
		if err := store.Set(cfg.Credentials.Token); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func newSpeechToTextProvider(cfg config.Config) (speechtotext.Provider, error) {
	switch cfg.STT.Provider {
	case "", "elevenlabs":
		return elevenlabs.NewProvider(elevenlabs.WithModel(cfg.STT.Model)), nil
	case "deepgram":
		return deepgram.NewProvider(deepgram.WithModel(cfg.STT.Model)), nil
	default:
		return nil, fmt.Errorf("unknown speech to text provider %q", cfg.STT.Provider)
	}
}

type audioDevices struct {
	input   orchestration.AudioInput
	output  orchestration.AudioOutput
	closers []func()
}

// newAudioDevices always plays through miniaudio. Capture uses the configured
// backend.
func newAudioDevices(cfg config.Config) (*audioDevices, error) {
	client, err := miniaudio.NewClient(miniaudio.WithFrameSize(cfg.Audio.FrameSize))
	if err != nil {
		return nil, fmt.Errorf("failed to open audio output: %w", err)
	}
	devices := &audioDevices{input: client, output: client, closers: []func(){client.Close}}

	switch cfg.Audio.Backend {
	case "", "miniaudio":
	case "portaudio":
		capture, err := portaudio.NewClient(cfg.Audio.FrameSize)
		if err != nil {
			devices.Close()
			return nil, fmt.Errorf("failed to open portaudio: %w", err)
		}
		devices.input = capture
		devices.closers = append(devices.closers, capture.Close)
	default:
		devices.Close()
		return nil, fmt.Errorf("unknown audio backend %q", cfg.Audio.Backend)
	}

	return devices, nil
}

func (d *audioDevices) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}
