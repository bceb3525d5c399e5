package main

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gen2brain/malgo"

	"github.com/vango-go/vai-assist/pkg/live"
)

// audioSystem owns the process-wide audio contexts. Microphone devices are
// created per session, but oto permits a single context per process, so both
// contexts are initialized once and shared across session restarts.
type audioSystem struct {
	malgoCtx *malgo.AllocatedContext
	otoCtx   *oto.Context
}

// initAudio sets up the capture and playback contexts.
// Returns the audio system and a cleanup function.
func initAudio() (*audioSystem, func()) {
	malgoConfig := malgo.ContextConfig{}
	malgoConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	malgoCtx, err := malgo.InitContext(nil, malgoConfig, nil)
	if err != nil {
		log.Fatalf("Failed to init audio context: %v", err)
	}

	out := live.DefaultOutputAudioConfig()
	otoOpts := &oto.NewContextOptions{
		SampleRate:   out.SampleRate,
		ChannelCount: out.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   100 * time.Millisecond, // small buffer keeps barge-in snappy
	}
	otoCtx, ready, err := oto.NewContext(otoOpts)
	if err != nil {
		log.Fatalf("Failed to init speaker: %v", err)
	}
	<-ready

	sys := &audioSystem{malgoCtx: malgoCtx, otoCtx: otoCtx}
	cleanup := func() {
		_ = sys.malgoCtx.Uninit()
	}
	return sys, cleanup
}

func (a *audioSystem) openMic() (io.ReadCloser, error) {
	return newMicReader(a.malgoCtx.Context, live.DefaultInputAudioConfig())
}

func (a *audioSystem) openSpeaker() (live.Speaker, error) {
	return newSpeakerWriter(a.otoCtx, live.DefaultOutputAudioConfig()), nil
}

// micReader captures audio from the default microphone.
type micReader struct {
	device *malgo.Device
	buf    []byte
	mu     sync.Mutex
	cond   *sync.Cond
	closed bool
}

func newMicReader(ctx malgo.Context, format live.AudioConfig) (*micReader, error) {
	m := &micReader{
		buf: make([]byte, 0, format.BytesPerSecond()),
	}
	m.cond = sync.NewCond(&m.mu)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			m.mu.Lock()
			m.buf = append(m.buf, pInputSamples...)
			m.mu.Unlock()
			m.cond.Signal()
		},
	}

	device, err := malgo.InitDevice(ctx, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("init microphone: %w", err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("start microphone: %w", err)
	}
	return m, nil
}

func (m *micReader) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.buf) == 0 && !m.closed {
		m.cond.Wait()
	}
	if m.closed && len(m.buf) == 0 {
		return 0, io.EOF
	}

	n := copy(p, m.buf)
	m.buf = m.buf[n:]
	return n, nil
}

func (m *micReader) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cond.Broadcast()
	device := m.device
	m.device = nil
	m.mu.Unlock()

	if device != nil {
		_ = device.Stop()
		device.Uninit()
	}
	return nil
}

// speakerWriter plays audio through the speaker. It implements live.Speaker
// on top of an oto player that pulls from an internal buffer.
type speakerWriter struct {
	otoCtx  *oto.Context
	player  *oto.Player
	buf     []byte
	mu      sync.Mutex
	cond    *sync.Cond
	playing bool
	closed  bool
}

func newSpeakerWriter(ctx *oto.Context, format live.AudioConfig) *speakerWriter {
	s := &speakerWriter{
		otoCtx: ctx,
		buf:    make([]byte, 0, format.BytesPerSecond()*2),
	}
	s.cond = sync.NewCond(&s.mu)
	// The player is created lazily on the first Write so oto never pulls
	// from an empty source at startup.
	return s
}

// Write queues PCM and starts the player if it is not running.
func (s *speakerWriter) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("speaker closed")
	}
	s.buf = append(s.buf, pcm...)

	if !s.playing {
		s.playing = true
		s.player = s.otoCtx.NewPlayer(s)
		s.player.Play()
	}

	s.cond.Signal()
	return nil
}

// Read implements io.Reader for oto.Player. oto calls it to pull audio.
func (s *speakerWriter) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.closed && len(s.buf) == 0 {
		// Return silence so oto drains gracefully.
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Reset discards all queued audio and stops the current player. The next
// Write starts a fresh player.
func (s *speakerWriter) Reset() error {
	s.mu.Lock()
	s.buf = s.buf[:0]

	if s.player != nil && s.playing {
		s.playing = false
		player := s.player
		s.player = nil
		s.mu.Unlock()

		// Pause stops output immediately; Reset drops what oto has
		// already pulled from us.
		player.Pause()
		player.Reset()
		player.Close()
		return nil
	}
	s.mu.Unlock()
	return nil
}

func (s *speakerWriter) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cond.Broadcast()
	player := s.player
	s.player = nil
	s.mu.Unlock()

	if player != nil {
		player.Close()
	}
	return nil
}
