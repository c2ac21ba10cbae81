package orchestration

import (
	"sync"

	"github.com/koscakluka/ema-sphere/core/agent"
	"github.com/koscakluka/ema-sphere/core/conversations"
)

// conversation is the orchestrator's observable state. The event loop is its
// only writer; readers may call in from any goroutine.
type conversation struct {
	mu         sync.RWMutex
	sphere     conversations.SphereState
	connection agent.ConnectionState
	status     string
	interim    string
	committed  string

	transcript conversations.Log
}

func newConversation() *conversation {
	return &conversation{
		sphere:     conversations.SphereIdle,
		connection: agent.StateDisconnected,
		status:     StatusClickToStart,
	}
}

func (c *conversation) History() []conversations.TranscriptEntry {
	return c.transcript.Entries()
}

func (c *conversation) SphereState() conversations.SphereState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sphere
}

func (c *conversation) Listening() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.interim, c.committed
}

func (c *conversation) setSphere(state conversations.SphereState) (previous conversations.SphereState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous, c.sphere = c.sphere, state
	return previous
}

func (c *conversation) setConnection(state agent.ConnectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connection = state
}

func (c *conversation) connectionState() agent.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connection
}

func (c *conversation) setStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

func (c *conversation) setInterim(interim string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interim = interim
}

// commit appends a committed segment to the displayed utterance and returns
// the utterance so far.
func (c *conversation) commit(segment string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interim = ""
	if c.committed == "" {
		c.committed = segment
	} else {
		c.committed += " " + segment
	}
	return c.committed
}

func (c *conversation) resetListening() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interim = ""
	c.committed = ""
}

func (c *conversation) snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		Sphere:     c.sphere,
		Connection: c.connection,
		Status:     c.status,
		Interim:    c.interim,
		Committed:  c.committed,
		Transcript: c.transcript.Entries(),
	}
}
