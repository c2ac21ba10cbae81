package speechtotext

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricAudioBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_audio_bytes_total",
		Help: "Total PCM bytes sent to the transcription provider",
	})

	metricFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_frames_total",
		Help: "Total audio frames sent to the transcription provider",
	})

	metricConnectMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stt_connect_ms",
		Help:    "Time to fetch a token and open the provider socket (ms)",
		Buckets: prometheus.ExponentialBuckets(10, 1.8, 10),
	})

	metricConnectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_connect_failures_total",
		Help: "Failed session starts by stage",
	}, []string{"stage"}) // token, dial, timeout

	metricMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stt_messages_total",
		Help: "Inbound provider messages by kind",
	}, []string{"kind"})

	metricProtocolErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_protocol_errors_total",
		Help: "Inbound provider messages that could not be parsed",
	})

	metricUnexpectedCloses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_unexpected_closes_total",
		Help: "Provider sockets closed while listening was still active",
	})

	gaugeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stt_sessions_active",
		Help: "Open transcription sockets",
	})
)
