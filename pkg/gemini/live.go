// Package gemini implements a WebSocket client for the Gemini Live API
// (BidiGenerateContent): bidirectional realtime audio with streamed
// transcription and model-initiated function calling.
//
// Usage:
//
//	sess, err := gemini.Connect(ctx, gemini.LiveConfig{
//	    APIKey: os.Getenv("GEMINI_API_KEY"),
//	    Model:  gemini.DefaultLiveModel,
//	})
//	if err != nil { ... }
//	defer sess.Close()
//
//	go func() {
//	    for frame := range micFrames {
//	        _ = sess.SendAudio(frame)
//	    }
//	}()
//	for ev := range sess.Events() {
//	    switch e := ev.(type) {
//	    case gemini.ContentEvent:
//	        // transcripts, synthesized audio, turn markers
//	    case gemini.ToolCallEvent:
//	        // run tools, then sess.SendToolResponse(...)
//	    }
//	}
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// DefaultLiveModel is the live-audio model used when none is configured.
	DefaultLiveModel = "gemini-2.0-flash-live-001"

	defaultBaseURL        = "wss://generativelanguage.googleapis.com"
	bidiGeneratePath      = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	defaultConnectTimeout = 15 * time.Second
	defaultEventBuffer    = 256
)

// ErrMissingAPIKey is returned by Connect before any network activity when
// no API key is configured.
var ErrMissingAPIKey = errors.New("gemini: api key is required")

// ErrSessionClosed is returned by send operations after Close.
var ErrSessionClosed = errors.New("gemini: live session is closed")

// LiveConfig configures a live connection.
type LiveConfig struct {
	// APIKey authenticates the connection. Required.
	APIKey string

	// Model is the live-audio model. Defaults to DefaultLiveModel.
	Model string

	// BaseURL overrides the service endpoint (ws:// or wss://). Used by
	// tests; defaults to the public Gemini endpoint.
	BaseURL string

	// SystemInstruction seeds the model's behavior for the session.
	SystemInstruction string

	// Tools declares the functions the model may call.
	Tools []Tool

	// Voice selects a prebuilt synthesis voice. Optional.
	Voice string

	// Language is a BCP-47 code for speech synthesis. Optional.
	Language string

	// ConnectTimeout bounds the dial plus setup handshake. Default 15s.
	ConnectTimeout time.Duration

	// EventBuffer is the Events() channel capacity. Default 256.
	EventBuffer int
}

// LiveSession is an open live connection.
type LiveSession struct {
	conn *websocket.Conn

	events  chan ServerEvent
	closing chan struct{}
	done    chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error
}

// Connect dials the live endpoint, sends the setup frame, and waits for
// setupComplete. A missing API key fails before any network activity.
func Connect(ctx context.Context, cfg LiveConfig) (*LiveSession, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultLiveModel
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	eventBuffer := cfg.EventBuffer
	if eventBuffer <= 0 {
		eventBuffer = defaultEventBuffer
	}

	endpoint, err := liveEndpoint(baseURL, cfg.APIKey)
	if err != nil {
		return nil, err
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
	}

	dialer := websocket.Dialer{HandshakeTimeout: connectTimeout}
	conn, resp, err := dialer.DialContext(dialCtx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("gemini: dial live endpoint (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("gemini: dial live endpoint: %w", err)
	}

	setup := buildSetup(model, cfg)
	if err := conn.WriteJSON(setupMessage{Setup: &setup}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("gemini: send setup: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(connectTimeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("gemini: read setup ack: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	first, err := DecodeServerMessage(payload)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, ok := first.(SetupCompleteEvent); !ok {
		_ = conn.Close()
		return nil, fmt.Errorf("gemini: unexpected first frame %q", first.serverEventType())
	}

	session := &LiveSession{
		conn:    conn,
		events:  make(chan ServerEvent, eventBuffer),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go session.readLoop()
	return session, nil
}

func buildSetup(model string, cfg LiveConfig) Setup {
	setup := Setup{
		Model: normalizeModel(model),
		GenerationConfig: &GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
		},
		Tools:                    cfg.Tools,
		InputAudioTranscription:  &struct{}{},
		OutputAudioTranscription: &struct{}{},
	}
	if cfg.Voice != "" || cfg.Language != "" {
		speech := &SpeechConfig{LanguageCode: strings.TrimSpace(cfg.Language)}
		if voice := strings.TrimSpace(cfg.Voice); voice != "" {
			speech.VoiceConfig = &VoiceConfig{
				PrebuiltVoiceConfig: &PrebuiltVoiceConfig{VoiceName: voice},
			}
		}
		setup.GenerationConfig.SpeechConfig = speech
	}
	if system := strings.TrimSpace(cfg.SystemInstruction); system != "" {
		setup.SystemInstruction = &Content{Parts: []Part{{Text: system}}}
	}
	return setup
}

// normalizeModel prefixes bare model names with "models/" as the wire
// protocol requires fully qualified names.
func normalizeModel(model string) string {
	if strings.Contains(model, "/") {
		return model
	}
	return "models/" + model
}

func liveEndpoint(baseURL, apiKey string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("gemini: invalid base URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("gemini: base URL must use ws(s) or http(s), got %q", u.Scheme)
	}
	u.Path = bidiGeneratePath
	q := u.Query()
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Events yields decoded server events. The channel closes after a terminal
// ClosedEvent is emitted.
func (s *LiveSession) Events() <-chan ServerEvent {
	if s == nil {
		return nil
	}
	return s.events
}

// SendAudio streams one captured PCM frame (16-bit LE, mono, 16 kHz).
func (s *LiveSession) SendAudio(pcm []byte) error {
	if s == nil {
		return fmt.Errorf("gemini: session must not be nil")
	}
	msg := realtimeInputMessage{
		RealtimeInput: &RealtimeInput{
			MediaChunks: []Blob{{
				MIMEType: AudioInputMIMEType,
				Data:     base64.StdEncoding.EncodeToString(pcm),
			}},
		},
	}
	return s.sendJSON(msg)
}

// SendToolResponse returns one or more function results to the model.
func (s *LiveSession) SendToolResponse(responses ...FunctionResponse) error {
	if s == nil {
		return fmt.Errorf("gemini: session must not be nil")
	}
	if len(responses) == 0 {
		return nil
	}
	msg := toolResponseMessage{
		ToolResponse: &ToolResponse{FunctionResponses: responses},
	}
	return s.sendJSON(msg)
}

func (s *LiveSession) sendJSON(v any) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return s.conn.WriteJSON(v)
}

// Close shuts the connection down. Safe to call multiple times and
// concurrently with in-flight sends.
func (s *LiveSession) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closing)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

// Err returns the terminal session error, nil for a clean close. Blocks
// until the session has fully shut down.
func (s *LiveSession) Err() error {
	if s == nil {
		return nil
	}
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *LiveSession) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *LiveSession) readLoop() {
	defer close(s.done)
	defer close(s.events)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.emit(ClosedEvent{})
				return
			}
			s.setErr(err)
			s.emit(ClosedEvent{Err: err})
			return
		}

		event, err := DecodeServerMessage(data)
		if err != nil {
			if errors.Is(err, ErrUnknownServerMessage) {
				// Not ours to understand yet; the conversation goes on.
				continue
			}
			s.setErr(err)
			s.emit(ClosedEvent{Err: err})
			return
		}
		s.emit(event)
	}
}

// emit delivers an event without wedging the read loop when the consumer
// has gone away mid-close.
func (s *LiveSession) emit(event ServerEvent) {
	select {
	case s.events <- event:
	case <-s.closing:
	}
}

func decodeBase64(data string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(data)
}
