// Package events defines the typed conversation event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - sphere.*
//   - connection.*
//   - status.*
//   - user_input.*
//   - assistant_response.*
//   - assistant_playback.*
//   - transcript.*
//   - error.*
//
// Semantics used across the package:
//
//   - Frame: binary audio frame/chunk payload.
//   - Segment: append-only text piece emitted in stream order.
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Final: terminal immutable text for the current episode.
//   - Changed: a state machine moved from one value to another.
//
// sphere events
//
//   - SphereStateChanged (sphere.state_changed): the conversation moved between
//     idle, listening, thinking and speaking.
//
// connection events
//
//   - ConnectionStateChanged (connection.state_changed): the agent socket moved
//     between disconnected, connecting and connected.
//   - ConnectionAcknowledged (connection.acknowledged): the backend assigned a
//     connection id.
//   - CredentialRejected (connection.credential_rejected): the backend refused
//     the stored credential; a new one must be supplied before reconnecting.
//
// status events
//
//   - StatusUpdated (status.updated): the single human readable status line
//     changed.
//
// user_input events
//
//   - UserTranscriptInterimUpdated (user_input.transcript_interim_updated):
//     mutable interim transcript snapshot.
//   - UserTranscriptSegment (user_input.transcript_segment): committed,
//     append-only transcript segment.
//   - UserTranscriptFinal (user_input.transcript_final): terminal utterance
//     sent to the agent.
//
// assistant_response events
//
//   - AssistantResponseFinal (assistant_response.final): the agent finished
//     replying; Spoken tells whether audio accompanies the text.
//
// assistant_playback events
//
//   - AssistantPlaybackFrame (assistant_playback.frame): reply audio chunk
//     queued for playback.
//   - AssistantPlaybackStarted (assistant_playback.started): the queued reply
//     started playing.
//   - AssistantPlaybackEnded (assistant_playback.ended): playback finished or
//     failed.
//
// transcript events
//
//   - TranscriptEntryAppended (transcript.entry_appended): an immutable entry
//     was added to the conversation log.
//
// error events
//
//   - ErrorReported (error.reported): a component failure, tagged with its
//     category.
package events
