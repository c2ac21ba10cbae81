package events

import "time"

const KindTranscriptEntryAppended Kind = "transcript.entry_appended"

// TranscriptEntryAppended mirrors an entry added to the conversation log.
type TranscriptEntryAppended struct {
	Base
	ID        string
	Sender    string
	Text      string
	CreatedAt time.Time
}

func NewTranscriptEntryAppended(id, sender, text string, createdAt time.Time) TranscriptEntryAppended {
	return TranscriptEntryAppended{
		Base:      NewBase(KindTranscriptEntryAppended),
		ID:        id,
		Sender:    sender,
		Text:      text,
		CreatedAt: createdAt,
	}
}
