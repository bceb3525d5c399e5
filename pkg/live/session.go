package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vango-go/vai-assist/pkg/core"
	"github.com/vango-go/vai-assist/pkg/core/types"
	"github.com/vango-go/vai-assist/pkg/gemini"
)

// Transport is the bidirectional live connection as the session sees it.
// Implementations must not retain the audio slice after SendAudio returns.
type Transport interface {
	SendAudio(pcm []byte) error
	SendToolResponse(responses ...gemini.FunctionResponse) error
	Events() <-chan gemini.ServerEvent
	Close() error
}

// ConnectFunc opens a Transport for one session cycle.
type ConnectFunc func(ctx context.Context, config gemini.LiveConfig) (Transport, error)

// Dependencies carries the injectable collaborators for a Session.
type Dependencies struct {
	// Connect opens the live transport. Nil uses the Gemini Live endpoint.
	Connect ConnectFunc

	// Tools are the external capabilities available to the model.
	Tools Toolset

	// OpenMic acquires the microphone for one session cycle. The returned
	// reader must deliver 16kHz mono 16-bit little-endian PCM and block
	// until data is available or the reader is closed.
	OpenMic func() (io.ReadCloser, error)

	// OpenSpeaker acquires the playback device for one session cycle. It
	// receives 24kHz mono 16-bit little-endian PCM.
	OpenSpeaker func() (Speaker, error)

	// Logger receives session diagnostics. Nil uses slog.Default().
	Logger *slog.Logger

	// Now is the playback clock source. Nil uses time.Now.
	Now func() time.Time
}

// activeConn bundles the resources of one session cycle: one transport, one
// microphone stream, one playback schedule, one set of transcript buffers.
// All asynchronous continuations compare this pointer against Session.active
// and no-op when the cycle they belong to has been torn down.
type activeConn struct {
	transport  Transport
	mic        io.ReadCloser
	player     *player
	transcript *transcript
}

// shutdown releases the cycle's resources: remote connection first, then the
// microphone, then playback.
func (a *activeConn) shutdown(logger *slog.Logger) {
	if err := a.transport.Close(); err != nil {
		logger.Debug("transport close", "error", err)
	}
	if err := a.mic.Close(); err != nil {
		logger.Debug("microphone close", "error", err)
	}
	if err := a.player.Interrupt(); err != nil {
		logger.Debug("playback reset", "error", err)
	}
	if err := a.player.Close(); err != nil {
		logger.Debug("speaker close", "error", err)
	}
}

// Session orchestrates one voice conversation at a time: lifecycle, audio
// capture, playback scheduling, transcription assembly, and tool dispatch.
// A Session outlives its connections; after Close it can be started again.
type Session struct {
	config SessionConfig
	deps   Dependencies
	logger *slog.Logger

	// lifecycleMu serializes Start and teardown end to end, so a new
	// connection can never open before the previous one's teardown
	// completes.
	lifecycleMu sync.Mutex

	mu       sync.RWMutex
	state    SessionState
	errMsg   string
	messages []types.Message
	muted    bool
	active   *activeConn

	events chan Event
}

// New creates a Session. The microphone and speaker dependencies are
// required; everything else has a default.
func New(config SessionConfig, deps Dependencies) (*Session, error) {
	config.applyDefaults()

	if deps.OpenMic == nil {
		return nil, core.NewConfigError("microphone dependency is required")
	}
	if deps.OpenSpeaker == nil {
		return nil, core.NewConfigError("speaker dependency is required")
	}
	if deps.Connect == nil {
		deps.Connect = func(ctx context.Context, cfg gemini.LiveConfig) (Transport, error) {
			session, err := gemini.Connect(ctx, cfg)
			if err != nil {
				return nil, err
			}
			return session, nil
		}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Session{
		config: config,
		deps:   deps,
		logger: deps.Logger,
		state:  StateIdle,
		events: make(chan Event, config.EventBufferSize),
	}, nil
}

// Events returns the channel session events are delivered on. The channel is
// never closed; a ClosedEvent marks the end of each cycle. Events are dropped
// rather than blocking the session when the consumer falls behind.
func (s *Session) Events() <-chan Event {
	return s.events
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the recorded failure as a display string, or "" when none.
func (s *Session) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// Connected reports whether a live connection is currently open.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active != nil
}

// Muted reports whether microphone frames are currently being dropped.
func (s *Session) Muted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.muted
}

// Messages returns a copy of the conversation assembled so far this session.
func (s *Session) Messages() []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// ClearMessages drops the in-memory conversation list.
func (s *Session) ClearMessages() {
	s.mu.Lock()
	s.messages = nil
	s.mu.Unlock()
}

// ToggleMute flips the mute flag and returns the new value. Muting takes
// effect on the next captured frame; there is no ramp.
func (s *Session) ToggleMute() bool {
	s.mu.Lock()
	s.muted = !s.muted
	muted := s.muted
	s.mu.Unlock()

	s.emit(&MuteChangedEvent{Muted: muted})
	return muted
}

// SetMuted sets the mute flag directly.
func (s *Session) SetMuted(muted bool) {
	s.mu.Lock()
	changed := s.muted != muted
	s.muted = muted
	s.mu.Unlock()

	if changed {
		s.emit(&MuteChangedEvent{Muted: muted})
	}
}

// Start opens a live connection and begins capturing. It is a no-op when a
// session is already connected; the previous conversation's messages and any
// recorded error are cleared before connecting. Failures are recorded on the
// session (visible through Err) and returned.
func (s *Session) Start(ctx context.Context, opts StartOptions) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return nil
	}
	s.messages = nil
	s.errMsg = ""
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	transport, err := s.deps.Connect(ctx, s.liveConfig(opts))
	if err != nil {
		if errors.Is(err, gemini.ErrMissingAPIKey) {
			return s.failStart(core.NewConfigError("missing API key for the live endpoint"))
		}
		return s.failStart(core.NewTransportError("could not open the live session", err))
	}

	if opts.LeadingImage != nil {
		s.appendMessage(nil, types.SpeakerUser, types.NewImagePart(opts.LeadingImage.URI, opts.LeadingImage.Alt))
	}

	mic, err := s.deps.OpenMic()
	if err != nil {
		if cerr := transport.Close(); cerr != nil {
			s.logger.Debug("transport close", "error", cerr)
		}
		return s.failStart(core.NewDeviceError("microphone unavailable", err))
	}

	speaker, err := s.deps.OpenSpeaker()
	if err != nil {
		if cerr := mic.Close(); cerr != nil {
			s.logger.Debug("microphone close", "error", cerr)
		}
		if cerr := transport.Close(); cerr != nil {
			s.logger.Debug("transport close", "error", cerr)
		}
		return s.failStart(core.NewDeviceError("speaker unavailable", err))
	}

	a := &activeConn{
		transport:  transport,
		mic:        mic,
		player:     newPlayer(speaker, DefaultOutputAudioConfig(), s.deps.Now),
		transcript: &transcript{},
	}

	s.mu.Lock()
	s.active = a
	s.setStateLocked(StateListening)
	s.mu.Unlock()

	go s.run(a)
	go s.capture(a)

	s.logger.Info("session started", "model", s.config.Model)
	return nil
}

// failStart records a connect-phase failure: state passes through error on
// the way back to idle and the message stays visible through Err.
func (s *Session) failStart(cause error) error {
	display := core.Display(cause)
	s.logger.Warn("session start failed", "error", cause)

	s.mu.Lock()
	s.errMsg = display
	s.emit(&ErrorEvent{Message: display})
	s.setStateLocked(StateError)
	s.setStateLocked(StateIdle)
	s.mu.Unlock()

	return cause
}

// Close tears the session down and releases the audio devices. It is
// idempotent, clears any recorded error, and never reports teardown problems
// to the caller; close errors are logged and swallowed.
func (s *Session) Close() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	s.teardown(nil)
	return nil
}

// stopCycle is the failure-side entry to teardown, used by the run loop and
// the capture loop. It only acts if the given cycle is still the active one.
func (s *Session) stopCycle(a *activeConn, cause error) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.mu.RLock()
	current := s.active == a
	s.mu.RUnlock()
	if !current {
		return
	}
	s.teardown(cause)
}

// teardown is the single teardown path for user stops, transport failures,
// and device failures. Callers hold lifecycleMu. A nil cause is a
// user-initiated stop and clears any recorded error; a non-nil cause is
// recorded and stays visible after the session settles back to idle.
func (s *Session) teardown(cause error) {
	s.mu.Lock()
	a := s.active
	s.active = nil
	if a == nil {
		// Already stopped. A user stop still dismisses a leftover failure.
		if cause == nil {
			s.errMsg = ""
		}
		s.mu.Unlock()
		return
	}
	if cause != nil {
		s.errMsg = core.Display(cause)
		s.logger.Warn("session failed", "error", cause)
		s.emit(&ErrorEvent{Message: s.errMsg})
		s.setStateLocked(StateError)
	}
	s.mu.Unlock()

	a.shutdown(s.logger)

	s.mu.Lock()
	if cause == nil {
		s.errMsg = ""
	}
	s.setStateLocked(StateIdle)
	s.mu.Unlock()

	s.emit(&ClosedEvent{})
	s.logger.Info("session stopped")
}

// run consumes transport events and drives playback bookkeeping for one
// cycle. It exits when the transport's event channel closes.
func (s *Session) run(a *activeConn) {
	ticker := time.NewTicker(s.config.PlaybackTick)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-a.transport.Events():
			if !ok {
				return
			}
			switch e := event.(type) {
			case gemini.ContentEvent:
				s.handleContent(a, &e.Content)
			case gemini.ToolCallEvent:
				s.handleToolCall(a, e.Calls)
			case gemini.ToolCancelEvent:
				s.logger.Debug("tool calls cancelled by server", "ids", e.IDs)
			case gemini.GoAwayEvent:
				s.logger.Warn("live connection ending soon", "time_left", e.TimeLeft)
			case gemini.ClosedEvent:
				s.stopCycle(a, core.NewTransportError("live connection closed", e.Err))
				return
			}
		case <-ticker.C:
			s.expirePlayback(a)
		}
	}
}

// handleContent folds one serverContent event into the session: barge-in,
// transcription deltas, synthesized audio, and turn boundaries.
func (s *Session) handleContent(a *activeConn, content *gemini.ServerContent) {
	if content == nil {
		return
	}

	if content.Interrupted {
		if err := a.player.Interrupt(); err != nil {
			s.logger.Warn("playback interrupt", "error", err)
		}
		s.mu.Lock()
		if s.active == a && s.state == StateSpeaking {
			s.setStateLocked(StateListening)
		}
		s.mu.Unlock()
	}

	if t := content.InputTranscription; t != nil && t.Text != "" {
		a.transcript.AddInput(t.Text)
		s.emit(&TranscriptDeltaEvent{Speaker: types.SpeakerUser, Text: t.Text})
	}
	if t := content.OutputTranscription; t != nil && t.Text != "" {
		a.transcript.AddOutput(t.Text)
		s.emit(&TranscriptDeltaEvent{Speaker: types.SpeakerAssistant, Text: t.Text})
	}

	for _, pcm := range content.AudioParts() {
		if err := a.player.Enqueue(pcm); err != nil {
			s.logger.Warn("speaker write", "error", err)
			continue
		}
		s.mu.Lock()
		if s.active == a && (s.state == StateListening || s.state == StateThinking) {
			s.setStateLocked(StateSpeaking)
		}
		s.mu.Unlock()
	}

	if content.TurnComplete {
		for _, msg := range a.transcript.FlushTurn() {
			s.appendBuilt(a, msg)
		}
		s.mu.Lock()
		if s.active == a && s.state == StateSpeaking && !a.player.Playing() {
			s.setStateLocked(StateListening)
		}
		s.mu.Unlock()
	}
}

// handleToolCall moves the session to thinking and resolves the batch in its
// own goroutine so the run loop keeps consuming transport events.
func (s *Session) handleToolCall(a *activeConn, calls []gemini.FunctionCall) {
	if len(calls) == 0 {
		return
	}

	s.mu.Lock()
	if s.active != a {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(StateThinking)
	s.mu.Unlock()

	go s.dispatchTools(a, calls)
}

// expirePlayback drops finished playback chunks; when the schedule drains
// while the session is speaking, it reverts to listening (an underrun during
// an ongoing turn means waiting, not done).
func (s *Session) expirePlayback(a *activeConn) {
	if a.player.ExpireFinished() > 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != a {
		return
	}
	if s.state == StateSpeaking {
		s.setStateLocked(StateListening)
	}
}

// appendMessage builds a message and adds it to the session list. A nil
// cycle skips the currency check (used for the leading image during Start).
func (s *Session) appendMessage(a *activeConn, speaker types.Speaker, parts ...types.Part) {
	msg, err := types.NewMessage(speaker, parts...)
	if err != nil {
		s.logger.Warn("dropping message with no parts", "speaker", speaker)
		return
	}
	s.appendBuilt(a, msg)
}

func (s *Session) appendBuilt(a *activeConn, msg types.Message) {
	s.mu.Lock()
	if a != nil && s.active != a {
		// The cycle this message belongs to is gone.
		s.mu.Unlock()
		return
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.emit(&MessageAddedEvent{Message: msg})
}

func (s *Session) isCurrent(a *activeConn) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active == a
}

// setStateLocked updates the state and emits a change event. Callers hold mu.
func (s *Session) setStateLocked(next SessionState) {
	if s.state == next {
		return
	}
	prev := s.state
	s.state = next
	s.logger.Debug("state changed", "from", prev.String(), "to", next.String())
	s.emit(&StateChangedEvent{From: prev, To: next})
}

// emit delivers an event without ever blocking the session.
func (s *Session) emit(event Event) {
	select {
	case s.events <- event:
	default:
		// Slow consumer; drop rather than stall.
	}
}

// liveConfig assembles the connection setup for one cycle.
func (s *Session) liveConfig(opts StartOptions) gemini.LiveConfig {
	return gemini.LiveConfig{
		APIKey:            s.config.APIKey,
		Model:             s.config.Model,
		SystemInstruction: buildSystemInstruction(opts),
		Tools:             toolDeclarations(),
		Voice:             s.config.Voice,
		Language:          conversationLanguage(opts),
		ConnectTimeout:    s.config.DialTimeout,
	}
}

func conversationLanguage(opts StartOptions) string {
	if opts.Language != "" {
		return opts.Language
	}
	return "en-US"
}

// buildSystemInstruction composes the per-conversation steering text from the
// topic, the language, and a serialized summary of prior text messages.
func buildSystemInstruction(opts StartOptions) string {
	topic := opts.Topic
	if topic == "" {
		topic = "general"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a helpful voice assistant. The conversation topic is %s. Respond in %s.", topic, conversationLanguage(opts))
	if summary := historySummary(opts.History); summary != "" {
		b.WriteString("\n\nEarlier conversation:\n")
		b.WriteString(summary)
	}
	return b.String()
}

// historySummary serializes the text parts of prior messages, one line per
// message, so the model can pick the conversation back up.
func historySummary(history []types.Message) string {
	var lines []string
	for _, msg := range history {
		text := strings.TrimSpace(msg.TextContent())
		if text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", msg.Speaker, text))
	}
	return strings.Join(lines, "\n")
}
