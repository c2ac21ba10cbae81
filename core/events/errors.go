package events

const KindErrorReported Kind = "error.reported"

// ErrorCategory tells the receiver how a failure can be recovered from.
type ErrorCategory string

const (
	// ErrorCategoryPermission covers microphone denial and insecure contexts;
	// the user must fix the precondition and retry.
	ErrorCategoryPermission ErrorCategory = "permission"
	// ErrorCategoryCredential requires a new credential.
	ErrorCategoryCredential ErrorCategory = "credential"
	// ErrorCategoryTransport covers socket failures; reconnecting recovers.
	ErrorCategoryTransport ErrorCategory = "transport"
	// ErrorCategoryProvider covers errors reported by the agent or the
	// transcription provider over an open socket.
	ErrorCategoryProvider ErrorCategory = "provider"
	// ErrorCategoryPlayback covers clip decoding and output failures.
	ErrorCategoryPlayback ErrorCategory = "playback"
)

type ErrorReported struct {
	Base
	Category ErrorCategory
	Err      error
}

func NewErrorReported(category ErrorCategory, err error) ErrorReported {
	return ErrorReported{Base: NewBase(KindErrorReported), Category: category, Err: err}
}
