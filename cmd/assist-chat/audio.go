package main

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"

	"github.com/vango-go/vai-assist/pkg/live"
)

// ffmpegMic captures microphone audio by reading an ffmpeg subprocess's
// stdout. The stream is raw s16le at the live input rate.
type ffmpegMic struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

func newFFmpegMic(device string) (*ffmpegMic, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, errors.New("ffmpeg is required for microphone capture (install ffmpeg and ensure it is in PATH)")
	}
	args, err := micCaptureArgs(runtime.GOOS, device, live.DefaultInputAudioConfig())
	if err != nil {
		return nil, err
	}
	cmd := exec.Command("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg mic capture: %w", err)
	}
	return &ffmpegMic{cmd: cmd, stdout: stdout}, nil
}

func micCaptureArgs(goos, device string, format live.AudioConfig) ([]string, error) {
	rate := fmt.Sprintf("%d", format.SampleRate)
	channels := fmt.Sprintf("%d", format.Channels)

	switch goos {
	case "darwin":
		if device == "" {
			device = ":0"
		}
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "avfoundation", "-i", device,
			"-ac", channels, "-ar", rate,
			"-f", "s16le", "-",
		}, nil
	case "linux":
		if device == "" {
			device = "default"
		}
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "pulse", "-i", device,
			"-ac", channels, "-ar", rate,
			"-f", "s16le", "-",
		}, nil
	case "windows":
		if device == "" {
			return nil, errors.New("windows capture needs --mic-device with a dshow device name (list with: ffmpeg -list_devices true -f dshow -i dummy)")
		}
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "dshow", "-i", "audio=" + device,
			"-ac", channels, "-ar", rate,
			"-f", "s16le", "-",
		}, nil
	default:
		return nil, fmt.Errorf("microphone capture is not implemented for %s; supported platforms: darwin, linux, windows", goos)
	}
}

func (m *ffmpegMic) Read(p []byte) (int, error) {
	if m == nil || m.stdout == nil {
		return 0, io.EOF
	}
	return m.stdout.Read(p)
}

func (m *ffmpegMic) Close() error {
	if m == nil {
		return nil
	}
	if m.cmd != nil && m.cmd.Process != nil {
		_ = m.cmd.Process.Kill()
		_ = m.cmd.Wait()
	}
	return nil
}

// ffplaySpeaker plays PCM by writing to an ffplay subprocess's stdin. Reset
// restarts the subprocess, which drops everything buffered ahead of the
// playhead.
type ffplaySpeaker struct {
	mu     sync.Mutex
	format live.AudioConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
}

func newFFplaySpeaker() (*ffplaySpeaker, error) {
	if _, err := exec.LookPath("ffplay"); err != nil {
		return nil, errors.New("ffplay is required for playback (install ffmpeg/ffplay and ensure it is in PATH)")
	}
	s := &ffplaySpeaker{format: live.DefaultOutputAudioConfig()}
	if err := s.startLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ffplaySpeaker) startLocked() error {
	s.cmd = exec.Command("ffplay",
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", s.format.SampleRate),
		"-ac", fmt.Sprintf("%d", s.format.Channels),
		"-i", "pipe:0",
	)
	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open ffplay stdin: %w", err)
	}
	s.cmd.Stdout = io.Discard
	s.cmd.Stderr = io.Discard
	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("start ffplay: %w", err)
	}
	s.stdin = stdin
	return nil
}

func (s *ffplaySpeaker) Write(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stdin == nil {
		return errors.New("ffplay stdin is not initialized")
	}
	_, err := s.stdin.Write(pcm)
	return err
}

func (s *ffplaySpeaker) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	return s.startLocked()
}

func (s *ffplaySpeaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	return nil
}

func (s *ffplaySpeaker) stopLocked() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	s.stdin = nil
}
