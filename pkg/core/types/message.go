package types

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Speaker identifies which side of the conversation produced a message.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// ErrEmptyParts is returned when a message is constructed without parts.
// An empty parts sequence is invalid and must never be appended.
var ErrEmptyParts = errors.New("message must contain at least one part")

// Message represents a single finalized entry in a conversation.
// Messages are immutable once appended to a session's message list.
type Message struct {
	ID      string  `json:"id"`
	Speaker Speaker `json:"speaker"`
	Parts   []Part  `json:"parts"`
}

// NewMessage creates a message with a fresh opaque ID.
// It returns ErrEmptyParts when no parts are supplied.
func NewMessage(speaker Speaker, parts ...Part) (Message, error) {
	if len(parts) == 0 {
		return Message{}, ErrEmptyParts
	}
	return Message{
		ID:      uuid.NewString(),
		Speaker: speaker,
		Parts:   parts,
	}, nil
}

// UnmarshalJSON decodes a message, resolving the tagged part union.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID      string          `json:"id"`
		Speaker Speaker         `json:"speaker"`
		Parts   json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.ID = raw.ID
	m.Speaker = raw.Speaker
	m.Parts = nil
	if len(raw.Parts) == 0 {
		return nil
	}

	parts, err := UnmarshalParts(raw.Parts)
	if err != nil {
		return err
	}
	m.Parts = parts
	return nil
}

// TextContent concatenates the message's text parts.
func (m *Message) TextContent() string {
	var sb strings.Builder
	for _, part := range m.Parts {
		if tp, ok := part.(TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}
