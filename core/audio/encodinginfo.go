package audio

const (
	DefaultSampleRate = 16000
	DefaultFormat     = "linear16"
	// DefaultFrameSize is the number of samples in one captured frame.
	DefaultFrameSize = 4096
	// DefaultSilenceThreshold is the peak amplitude (fraction of full scale)
	// below which a captured frame is dropped.
	DefaultSilenceThreshold = 0.001
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: EncodingLinear16, Channels: 1}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
	Channels   int
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// BytesPerFrame is the encoded size of a frame of the given sample count.
func (e EncodingInfo) BytesPerFrame(samples int) int {
	channels := e.Channels
	if channels == 0 {
		channels = 1
	}
	return samples * channels * e.Format.ByteSize()
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	case EncodingFloat32:
		return 4
	}
	return -1
}

// ParseFormat maps a provider supplied audio format name (for example
// "pcm_16000" or "linear16") onto a known encoding.
func ParseFormat(name string) (encodingFormat, bool) {
	switch name {
	case "linear16", "pcm", "pcm_s16le", "pcm_16000", "pcm_16khz":
		return EncodingLinear16, true
	case "mulaw", "ulaw", "ulaw_8000":
		return EncodingMulaw, true
	case "alaw":
		return EncodingALaw, true
	case "float32":
		return EncodingFloat32, true
	}
	return "", false
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
	EncodingFloat32  encodingFormat = "float32"
)
