package conversations

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// TranscriptEntry is an immutable record in the conversation log.
type TranscriptEntry struct {
	ID        string
	Sender    Sender
	Text      string
	CreatedAt time.Time
}

func NewTranscriptEntry(sender Sender, text string) TranscriptEntry {
	return TranscriptEntry{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// Log is an append-only, insertion ordered transcript.
type Log struct {
	entries []TranscriptEntry
	mu      sync.RWMutex
}

func (l *Log) Append(entry TranscriptEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Entries returns a copy that callers may keep and modify freely.
func (l *Log) Entries() []TranscriptEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return append([]TranscriptEntry{}, l.entries...)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clear drops every entry. Entries already handed out are unaffected.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
