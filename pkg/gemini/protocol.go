package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownServerMessage marks a frame that decoded as JSON but carried no
// known envelope field. The read loop skips such frames so server-side
// protocol additions do not end live conversations.
var ErrUnknownServerMessage = errors.New("gemini: unknown server frame")

// Wire types for the BidiGenerateContent WebSocket protocol. Field names
// follow the service's camelCase JSON. Client messages carry exactly one of
// setup, realtimeInput, or toolResponse; server messages carry exactly one
// of setupComplete, serverContent, toolCall, toolCallCancellation, or goAway.

const (
	// AudioInputMIMEType is the wire encoding for captured microphone audio:
	// 16-bit little-endian PCM, mono, 16 kHz.
	AudioInputMIMEType = "audio/pcm;rate=16000"

	// AudioOutputSampleRate is the sample rate of synthesized audio returned
	// in serverContent inlineData parts (16-bit LE PCM, mono).
	AudioOutputSampleRate = 24000
)

// --- Client messages ---

// Setup is the first frame sent on a new connection. The server replies
// with setupComplete before any other traffic.
type Setup struct {
	Model                    string            `json:"model"`
	GenerationConfig         *GenerationConfig `json:"generationConfig,omitempty"`
	SystemInstruction        *Content          `json:"systemInstruction,omitempty"`
	Tools                    []Tool            `json:"tools,omitempty"`
	InputAudioTranscription  *struct{}         `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}         `json:"outputAudioTranscription,omitempty"`
}

// GenerationConfig selects response modalities and voice.
type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

// SpeechConfig configures synthesized speech.
type SpeechConfig struct {
	VoiceConfig  *VoiceConfig `json:"voiceConfig,omitempty"`
	LanguageCode string       `json:"languageCode,omitempty"`
}

// VoiceConfig selects the synthesis voice.
type VoiceConfig struct {
	PrebuiltVoiceConfig *PrebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

// PrebuiltVoiceConfig names a stock voice.
type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName,omitempty"`
}

// Content is a sequence of parts attributed to a role.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts,omitempty"`
}

// Part is one unit of content: text or inline binary data.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

// Blob is base64-encoded binary data with its MIME type.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Tool declares callable functions to the model.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
}

// FunctionDeclaration describes one callable function.
type FunctionDeclaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// Schema is a JSON-schema subset accepted for function parameters.
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
}

// RealtimeInput streams captured media to the model. Audio chunks are
// base64 PCM with AudioInputMIMEType.
type RealtimeInput struct {
	MediaChunks []Blob `json:"mediaChunks,omitempty"`
}

// ToolResponse returns function results to the model.
type ToolResponse struct {
	FunctionResponses []FunctionResponse `json:"functionResponses,omitempty"`
}

// FunctionResponse is the result of one function call. Response carries
// either an "output" or an "error" entry.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name,omitempty"`
	Response map[string]any `json:"response,omitempty"`
}

type setupMessage struct {
	Setup *Setup `json:"setup"`
}

type realtimeInputMessage struct {
	RealtimeInput *RealtimeInput `json:"realtimeInput"`
}

type toolResponseMessage struct {
	ToolResponse *ToolResponse `json:"toolResponse"`
}

// --- Server messages ---

// ServerContent carries one increment of the model's turn: synthesized
// audio parts, transcription deltas for either direction, and turn markers.
type ServerContent struct {
	ModelTurn           *Content       `json:"modelTurn,omitempty"`
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	GenerationComplete  bool           `json:"generationComplete,omitempty"`
}

// Transcription is a streamed transcription delta.
type Transcription struct {
	Text string `json:"text,omitempty"`
}

// FunctionCall is one function invocation requested by the model.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type serverEnvelope struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *ServerContent `json:"serverContent,omitempty"`
	ToolCall      *struct {
		FunctionCalls []FunctionCall `json:"functionCalls,omitempty"`
	} `json:"toolCall,omitempty"`
	ToolCallCancellation *struct {
		IDs []string `json:"ids,omitempty"`
	} `json:"toolCallCancellation,omitempty"`
	GoAway *struct {
		TimeLeft string `json:"timeLeft,omitempty"`
	} `json:"goAway,omitempty"`
}

// ServerEvent is a decoded frame from the live connection.
type ServerEvent interface {
	serverEventType() string
}

// SetupCompleteEvent acknowledges the setup frame.
type SetupCompleteEvent struct{}

func (e SetupCompleteEvent) serverEventType() string { return "setup_complete" }

// ContentEvent wraps a serverContent frame.
type ContentEvent struct {
	Content ServerContent
}

func (e ContentEvent) serverEventType() string { return "server_content" }

// ToolCallEvent wraps a toolCall frame. Calls preserve the order received.
type ToolCallEvent struct {
	Calls []FunctionCall
}

func (e ToolCallEvent) serverEventType() string { return "tool_call" }

// ToolCancelEvent wraps a toolCallCancellation frame.
type ToolCancelEvent struct {
	IDs []string
}

func (e ToolCancelEvent) serverEventType() string { return "tool_cancel" }

// GoAwayEvent warns that the server will close the connection soon.
type GoAwayEvent struct {
	TimeLeft string
}

func (e GoAwayEvent) serverEventType() string { return "go_away" }

// ClosedEvent is the terminal event emitted before the event channel
// closes. Err is nil for a clean close.
type ClosedEvent struct {
	Err error
}

func (e ClosedEvent) serverEventType() string { return "closed" }

// DecodeServerMessage decodes one server frame into a ServerEvent.
func DecodeServerMessage(data []byte) (ServerEvent, error) {
	var envelope serverEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode server frame: %w", err)
	}

	switch {
	case envelope.SetupComplete != nil:
		return SetupCompleteEvent{}, nil
	case envelope.ServerContent != nil:
		return ContentEvent{Content: *envelope.ServerContent}, nil
	case envelope.ToolCall != nil:
		return ToolCallEvent{Calls: envelope.ToolCall.FunctionCalls}, nil
	case envelope.ToolCallCancellation != nil:
		return ToolCancelEvent{IDs: envelope.ToolCallCancellation.IDs}, nil
	case envelope.GoAway != nil:
		return GoAwayEvent{TimeLeft: envelope.GoAway.TimeLeft}, nil
	default:
		return nil, ErrUnknownServerMessage
	}
}

// AudioParts extracts decoded PCM audio from a modelTurn, in part order.
func (c *ServerContent) AudioParts() [][]byte {
	if c == nil || c.ModelTurn == nil {
		return nil
	}
	var chunks [][]byte
	for _, part := range c.ModelTurn.Parts {
		if part.InlineData == nil || part.InlineData.Data == "" {
			continue
		}
		raw, err := decodeBase64(part.InlineData.Data)
		if err != nil {
			continue
		}
		chunks = append(chunks, raw)
	}
	return chunks
}
