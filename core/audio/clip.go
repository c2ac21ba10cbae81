package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// ClipDecoder turns one complete encoded clip into a playable stream.
type ClipDecoder func(clip []byte) (beep.StreamSeekCloser, beep.Format, error)

// DecodeClip decodes a complete WAV or MP3 clip. The container is sniffed
// from the first bytes; anything that is not RIFF/WAVE is treated as MP3.
func DecodeClip(clip []byte) (beep.StreamSeekCloser, beep.Format, error) {
	if len(clip) == 0 {
		return nil, beep.Format{}, fmt.Errorf("%w: empty clip", ErrDecode)
	}

	if isWave(clip) {
		streamer, format, err := wav.Decode(bytes.NewReader(clip))
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("%w: wav: %w", ErrDecode, err)
		}
		return streamer, format, nil
	}

	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(clip)))
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: mp3: %w", ErrDecode, err)
	}
	return streamer, format, nil
}

func isWave(clip []byte) bool {
	return len(clip) >= 12 && string(clip[0:4]) == "RIFF" && string(clip[8:12]) == "WAVE"
}
