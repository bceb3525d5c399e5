package live

import (
	"github.com/vango-go/vai-assist/pkg/core/types"
)

// Event is the interface for all session events.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// StateChangedEvent is emitted when the session state changes.
type StateChangedEvent struct {
	From SessionState `json:"from"`
	To   SessionState `json:"to"`
}

func (e *StateChangedEvent) EventType() string { return "state.changed" }

// MessageAddedEvent is emitted when a message is appended to the session list.
type MessageAddedEvent struct {
	Message types.Message `json:"message"`
}

func (e *MessageAddedEvent) EventType() string { return "message.added" }

// TranscriptDeltaEvent is emitted as streaming transcription updates arrive.
type TranscriptDeltaEvent struct {
	Speaker types.Speaker `json:"speaker"`
	Text    string        `json:"text"`
}

func (e *TranscriptDeltaEvent) EventType() string { return "transcript.delta" }

// ToolCallStartedEvent is emitted when a function call begins resolving.
type ToolCallStartedEvent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (e *ToolCallStartedEvent) EventType() string { return "tool_call.started" }

// ToolCallFinishedEvent is emitted when a function call's response has been sent.
type ToolCallFinishedEvent struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsError bool   `json:"is_error,omitempty"`
}

func (e *ToolCallFinishedEvent) EventType() string { return "tool_call.finished" }

// MuteChangedEvent is emitted when the microphone mute flag flips.
type MuteChangedEvent struct {
	Muted bool `json:"muted"`
}

func (e *MuteChangedEvent) EventType() string { return "mute.changed" }

// ErrorEvent is emitted when a failure has been recorded on the session.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (e *ErrorEvent) EventType() string { return "error" }

// ClosedEvent is emitted after teardown completes.
type ClosedEvent struct{}

func (e *ClosedEvent) EventType() string { return "session.closed" }
