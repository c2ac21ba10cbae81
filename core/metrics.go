package orchestration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricEpisodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sphere_episodes_total",
		Help: "Listening episodes by outcome",
	}, []string{"outcome"}) // sent, empty, send_failed, aborted, start_failed

	metricEpisodeMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sphere_episode_listening_ms",
		Help:    "Time spent listening per episode (ms)",
		Buckets: prometheus.ExponentialBuckets(250, 1.8, 10),
	})

	metricTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sphere_state_transitions_total",
		Help: "Sphere state transitions by target state",
	}, []string{"to"})

	metricCapturedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sphere_captured_frames_total",
		Help: "Captured frames forwarded for transcription",
	})

	metricSilentFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sphere_silent_frames_dropped_total",
		Help: "Captured frames dropped as near-silent",
	})

	metricPlayback = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sphere_playback_total",
		Help: "Playback attempts by result",
	}, []string{"result"}) // played, skipped, failed

	metricPlaybackBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sphere_playback_clip_bytes",
		Help:    "Size of concatenated reply clips handed to the decoder",
		Buckets: prometheus.ExponentialBuckets(1024, 2, 12),
	})

	metricHandlerPanics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sphere_event_handler_panics_total",
		Help: "Event loop handlers that panicked",
	})
)
