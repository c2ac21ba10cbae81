package events

const (
	// KindConnectionStateChanged identifies agent socket state transitions.
	KindConnectionStateChanged Kind = "connection.state_changed"
	// KindConnectionAcknowledged identifies the backend's connection ack.
	KindConnectionAcknowledged Kind = "connection.acknowledged"
	// KindCredentialRejected identifies a credential refused by the backend.
	KindCredentialRejected Kind = "connection.credential_rejected"
)

// ConnectionStateChanged carries the new agent connection state.
type ConnectionStateChanged struct {
	Base
	State string
}

// NewConnectionStateChanged creates a connection state changed event.
func NewConnectionStateChanged(state string) ConnectionStateChanged {
	return ConnectionStateChanged{Base: NewBase(KindConnectionStateChanged), State: state}
}

// ConnectionAcknowledged carries the id the backend assigned to the socket.
type ConnectionAcknowledged struct {
	Base
	ConnectionID string
}

// NewConnectionAcknowledged creates a connection acknowledged event.
func NewConnectionAcknowledged(connectionID string) ConnectionAcknowledged {
	return ConnectionAcknowledged{Base: NewBase(KindConnectionAcknowledged), ConnectionID: connectionID}
}

// CredentialRejected marks that the stored credential was cleared.
type CredentialRejected struct {
	Base
	Reason string
}

// NewCredentialRejected creates a credential rejected event.
func NewCredentialRejected(reason string) CredentialRejected {
	return CredentialRejected{Base: NewBase(KindCredentialRejected), Reason: reason}
}
