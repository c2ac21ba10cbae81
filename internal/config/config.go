package config

import (
	"strings"
	"time"

	"github.com/koscakluka/ema-sphere/core/audio"
	"github.com/spf13/viper"
)

type Config struct {
	API struct {
		BaseURL   string
		WSBaseURL string
	}
	STT struct {
		Provider string
		// Model overrides the provider's default model when set.
		Model          string
		ConnectTimeout time.Duration
		ReuseToken     bool
	}
	Conversation struct {
		SilenceDelay time.Duration
	}
	Audio struct {
		Backend          string
		FrameSize        int
		SilenceThreshold float32
	}
	Credentials struct {
		File  string
		Token string
	}
	Metrics struct {
		Addr string
	}
	Log struct {
		File string
	}
}

// Load reads configuration from EMA_* environment variables on top of the
// defaults below.
func Load() Config {
	return load(viper.New())
}

func load(v *viper.Viper) Config {
	v.SetEnvPrefix("ema")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("stt.provider", "elevenlabs")
	v.SetDefault("stt.connect_timeout", 5*time.Second)
	v.SetDefault("stt.reuse_token", false)
	v.SetDefault("conversation.silence_delay", 1500*time.Millisecond)
	v.SetDefault("audio.backend", "miniaudio")
	v.SetDefault("audio.frame_size", audio.DefaultFrameSize)
	v.SetDefault("audio.silence_threshold", audio.DefaultSilenceThreshold)
	v.SetDefault("log.file", "ema-sphere.log")

	// Map envs
	v.BindEnv("api.base_url", "EMA_API_BASE_URL")
	v.BindEnv("api.ws_base_url", "EMA_WS_BASE_URL")
	v.BindEnv("stt.provider", "EMA_STT_PROVIDER")
	v.BindEnv("stt.model", "EMA_STT_MODEL")
	v.BindEnv("stt.connect_timeout", "EMA_STT_CONNECT_TIMEOUT")
	v.BindEnv("stt.reuse_token", "EMA_STT_REUSE_TOKEN")
	v.BindEnv("conversation.silence_delay", "EMA_SILENCE_DELAY")
	v.BindEnv("audio.backend", "EMA_AUDIO_BACKEND")
	v.BindEnv("audio.frame_size", "EMA_AUDIO_FRAME_SIZE")
	v.BindEnv("audio.silence_threshold", "EMA_AUDIO_SILENCE_THRESHOLD")
	v.BindEnv("credentials.file", "EMA_CREDENTIALS_FILE")
	v.BindEnv("credentials.token", "EMA_TOKEN")
	v.BindEnv("metrics.addr", "EMA_METRICS_ADDR")
	v.BindEnv("log.file", "EMA_LOG_FILE")

	var c Config
	c.API.BaseURL = strings.TrimRight(v.GetString("api.base_url"), "/")
	c.API.WSBaseURL = strings.TrimRight(v.GetString("api.ws_base_url"), "/")
	if c.API.WSBaseURL == "" {
		c.API.WSBaseURL = websocketURL(c.API.BaseURL)
	}

	c.STT.Provider = strings.ToLower(v.GetString("stt.provider"))
	c.STT.Model = v.GetString("stt.model")
	c.STT.ConnectTimeout = v.GetDuration("stt.connect_timeout")
	c.STT.ReuseToken = v.GetBool("stt.reuse_token")

	c.Conversation.SilenceDelay = v.GetDuration("conversation.silence_delay")

	c.Audio.Backend = strings.ToLower(v.GetString("audio.backend"))
	c.Audio.FrameSize = v.GetInt("audio.frame_size")
	c.Audio.SilenceThreshold = float32(v.GetFloat64("audio.silence_threshold"))

	c.Credentials.File = v.GetString("credentials.file")
	c.Credentials.Token = v.GetString("credentials.token")

	c.Metrics.Addr = v.GetString("metrics.addr")
	c.Log.File = v.GetString("log.file")

	return c
}

// websocketURL derives the agent socket base from the HTTP API base, keeping
// the transport security of the original scheme.
func websocketURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	default:
		return baseURL
	}
}
