package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_messages_total",
		Help: "Inbound agent messages by type",
	}, []string{"type"})

	metricProtocolErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_protocol_errors_total",
		Help: "Inbound agent messages dropped because they could not be decoded",
	})

	metricAudioBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_audio_bytes_total",
		Help: "Decoded reply audio bytes received from the agent",
	})

	metricUtterancesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_utterances_sent_total",
		Help: "User utterances sent to the agent",
	})

	metricConnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_connects_total",
		Help: "Agent connection attempts by result",
	}, []string{"result"}) // ok, failed, rejected

	metricCredentialRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agent_credential_rejections_total",
		Help: "Connections closed because the backend rejected the credential",
	})
)
