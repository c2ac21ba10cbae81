package orchestration

import (
	"context"
	"errors"

	"github.com/koscakluka/ema-sphere/core/speechtotext"
)

var ErrNoSpeechToText = errors.New("no speech to text client configured")

type speechToText struct {
	client SpeechToText
}

func newSpeechToText() speechToText {
	return speechToText{}
}

func (s *speechToText) set(client SpeechToText) {
	s.client = client
}

func (s *speechToText) isConfigured() bool {
	return s != nil && s.client != nil
}

func (s *speechToText) Start(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	if !s.isConfigured() {
		return ErrNoSpeechToText
	}
	return s.client.Start(ctx, opts...)
}

func (s *speechToText) SendAudio(pcm []byte) error {
	if !s.isConfigured() {
		return ErrNoSpeechToText
	}
	return s.client.SendAudio(pcm)
}

func (s *speechToText) Finalize() string {
	if !s.isConfigured() {
		return ""
	}
	return s.client.Finalize()
}
