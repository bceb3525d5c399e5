package live

import (
	"time"

	"github.com/vango-go/vai-assist/pkg/core/types"
	"github.com/vango-go/vai-assist/pkg/gemini"
)

// SessionState represents the current state of the assistant session.
type SessionState int

const (
	// StateIdle is the resting state before start and after teardown.
	StateIdle SessionState = iota
	// StateConnecting is while the live connection is being established.
	StateConnecting
	// StateListening is when the session is waiting for user speech.
	StateListening
	// StateSpeaking is while synthesized audio is scheduled or playing.
	StateSpeaking
	// StateThinking is while a tool-call batch is being resolved.
	StateThinking
	// StateError is passed through during a failure teardown.
	StateError
)

// String returns a human-readable state name.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateListening:
		return "LISTENING"
	case StateSpeaking:
		return "SPEAKING"
	case StateThinking:
		return "THINKING"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// AudioConfig specifies PCM format parameters.
type AudioConfig struct {
	// SampleRate in Hz. Capture uses 16000, playback 24000.
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int

	// BitsPerSample: typically 16 for PCM.
	BitsPerSample int
}

// DefaultInputAudioConfig returns the capture format the live endpoint expects.
func DefaultInputAudioConfig() AudioConfig {
	return AudioConfig{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
}

// DefaultOutputAudioConfig returns the playback format the live endpoint produces.
func DefaultOutputAudioConfig() AudioConfig {
	return AudioConfig{SampleRate: gemini.AudioOutputSampleRate, Channels: 1, BitsPerSample: 16}
}

// BytesPerSecond returns the audio byte rate.
func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// Duration returns the play time of the given byte count.
func (c AudioConfig) Duration(bytes int) time.Duration {
	bps := c.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(bytes) * time.Second / time.Duration(bps)
}

// BytesFor returns the byte count covering the given duration.
func (c AudioConfig) BytesFor(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(int64(c.BytesPerSecond()) * int64(d) / int64(time.Second))
}

// SessionConfig holds configuration for a Session.
type SessionConfig struct {
	// APIKey authenticates against the live endpoint. Required unless a
	// custom Connect dependency is injected.
	APIKey string

	// Model is the live model name. Default: gemini.DefaultLiveModel.
	Model string

	// Voice selects the prebuilt synthesis voice. Empty uses the server default.
	Voice string

	// EventBufferSize is the capacity of the Events channel. Default: 100.
	EventBufferSize int

	// CaptureFrameDuration is the microphone frame size. Default: 20ms.
	CaptureFrameDuration time.Duration

	// PlaybackTick is the playback bookkeeping interval. Default: 20ms.
	PlaybackTick time.Duration

	// DialTimeout bounds the live connection handshake. Zero uses the
	// transport default.
	DialTimeout time.Duration
}

func (c *SessionConfig) applyDefaults() {
	if c.Model == "" {
		c.Model = gemini.DefaultLiveModel
	}
	if c.EventBufferSize <= 0 {
		c.EventBufferSize = 100
	}
	if c.CaptureFrameDuration <= 0 {
		c.CaptureFrameDuration = 20 * time.Millisecond
	}
	if c.PlaybackTick <= 0 {
		c.PlaybackTick = 20 * time.Millisecond
	}
}

// StartOptions carries the per-conversation inputs to Session.Start.
type StartOptions struct {
	// History is prior conversation context folded into the system
	// instruction. Only text parts are summarized; it is never replayed
	// as live audio.
	History []types.Message

	// Topic steers the assistant ("general", "cooking", ...). Default: "general".
	Topic string

	// Language is the BCP-47 conversation language. Default: "en-US".
	Language string

	// LeadingImage, when set, is appended as a user message as soon as the
	// connection opens, before any transcript arrives.
	LeadingImage *types.ImagePart
}
