package main

import (
	"strings"
	"testing"

	"github.com/vango-go/vai-assist/pkg/gemini"
	"github.com/vango-go/vai-assist/pkg/live"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func TestParseAssistConfig_DefaultsAndEnv(t *testing.T) {
	t.Parallel()

	cfg, err := parseAssistConfig(nil, envMap(map[string]string{
		"GEMINI_API_KEY":  "gk-test",
		"YOUTUBE_API_KEY": "yt-test",
	}))
	if err != nil {
		t.Fatalf("parseAssistConfig error: %v", err)
	}

	if cfg.Model != gemini.DefaultLiveModel {
		t.Fatalf("Model=%q, want %q", cfg.Model, gemini.DefaultLiveModel)
	}
	if cfg.Voice != defaultVoice {
		t.Fatalf("Voice=%q, want %q", cfg.Voice, defaultVoice)
	}
	if cfg.Topic != "" {
		t.Fatalf("Topic=%q, want empty", cfg.Topic)
	}
	if cfg.Language != "" {
		t.Fatalf("Language=%q, want empty", cfg.Language)
	}
	if cfg.StartMuted {
		t.Fatalf("StartMuted=true, want false")
	}
	if cfg.GeminiAPIKey != "gk-test" {
		t.Fatalf("GeminiAPIKey=%q, want %q", cfg.GeminiAPIKey, "gk-test")
	}
	if cfg.YouTubeAPIKey != "yt-test" {
		t.Fatalf("YouTubeAPIKey=%q, want %q", cfg.YouTubeAPIKey, "yt-test")
	}
}

func TestParseAssistConfig_FlagOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := parseAssistConfig([]string{
		"--model", "gemini-2.5-flash-native-audio",
		"--voice", "Kore",
		"--topic", "cooking",
		"--language", "fr-FR",
		"--mic-device", "hw:1",
		"--muted",
		"--verbose",
	}, envMap(map[string]string{
		"GEMINI_API_KEY": "gk-test",
	}))
	if err != nil {
		t.Fatalf("parseAssistConfig error: %v", err)
	}

	if cfg.Model != "gemini-2.5-flash-native-audio" {
		t.Fatalf("Model=%q", cfg.Model)
	}
	if cfg.Voice != "Kore" {
		t.Fatalf("Voice=%q", cfg.Voice)
	}
	if cfg.Topic != "cooking" {
		t.Fatalf("Topic=%q", cfg.Topic)
	}
	if cfg.Language != "fr-FR" {
		t.Fatalf("Language=%q", cfg.Language)
	}
	if cfg.MicDevice != "hw:1" {
		t.Fatalf("MicDevice=%q", cfg.MicDevice)
	}
	if !cfg.StartMuted {
		t.Fatalf("StartMuted=false, want true")
	}
	if !cfg.Verbose {
		t.Fatalf("Verbose=false, want true")
	}
}

func TestParseAssistConfig_MissingGeminiKey(t *testing.T) {
	t.Parallel()

	_, err := parseAssistConfig(nil, envMap(map[string]string{
		"YOUTUBE_API_KEY": "yt-test",
	}))
	if err == nil {
		t.Fatalf("expected error when GEMINI_API_KEY is missing")
	}
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("error=%q, expected GEMINI_API_KEY mention", err.Error())
	}
}

func TestParseAssistConfig_GoogleKeyFallback(t *testing.T) {
	t.Parallel()

	cfg, err := parseAssistConfig(nil, envMap(map[string]string{
		"GOOGLE_API_KEY": "google-key",
	}))
	if err != nil {
		t.Fatalf("parseAssistConfig error: %v", err)
	}
	if cfg.GeminiAPIKey != "google-key" {
		t.Fatalf("GeminiAPIKey fallback=%q, want %q", cfg.GeminiAPIKey, "google-key")
	}

	cfg, err = parseAssistConfig(nil, envMap(map[string]string{
		"GEMINI_API_KEY": "gemini-key",
		"GOOGLE_API_KEY": "google-key",
	}))
	if err != nil {
		t.Fatalf("parseAssistConfig error: %v", err)
	}
	if cfg.GeminiAPIKey != "gemini-key" {
		t.Fatalf("GeminiAPIKey precedence=%q, want %q", cfg.GeminiAPIKey, "gemini-key")
	}
}

func TestParseAssistConfig_EmptyModelRejected(t *testing.T) {
	t.Parallel()

	_, err := parseAssistConfig([]string{"--model", ""}, envMap(map[string]string{
		"GEMINI_API_KEY": "gk-test",
	}))
	if err == nil || !strings.Contains(err.Error(), "model") {
		t.Fatalf("expected model validation error, got %v", err)
	}
}

func TestMicCaptureArgs_PerPlatform(t *testing.T) {
	t.Parallel()

	format := live.DefaultInputAudioConfig()

	args, err := micCaptureArgs("darwin", "", format)
	if err != nil {
		t.Fatalf("darwin args error: %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-f avfoundation -i :0") {
		t.Fatalf("darwin args=%q, expected avfoundation default device", joined)
	}
	if !strings.Contains(joined, "-ar 16000") || !strings.Contains(joined, "s16le") {
		t.Fatalf("darwin args=%q, expected 16000 Hz s16le", joined)
	}

	args, err = micCaptureArgs("linux", "", format)
	if err != nil {
		t.Fatalf("linux args error: %v", err)
	}
	joined = strings.Join(args, " ")
	if !strings.Contains(joined, "-f pulse -i default") {
		t.Fatalf("linux args=%q, expected pulse default device", joined)
	}

	args, err = micCaptureArgs("linux", "alsa_input.usb-mic", format)
	if err != nil {
		t.Fatalf("linux custom device error: %v", err)
	}
	if !strings.Contains(strings.Join(args, " "), "-i alsa_input.usb-mic") {
		t.Fatalf("linux custom device args=%q", strings.Join(args, " "))
	}

	args, err = micCaptureArgs("windows", "Headset Microphone", format)
	if err != nil {
		t.Fatalf("windows args error: %v", err)
	}
	if !strings.Contains(strings.Join(args, " "), "audio=Headset Microphone") {
		t.Fatalf("windows args=%q, expected dshow audio device", strings.Join(args, " "))
	}

	if _, err := micCaptureArgs("windows", "", format); err == nil {
		t.Fatalf("expected error for windows without --mic-device")
	}

	if _, err := micCaptureArgs("plan9", "", format); err == nil || !strings.Contains(err.Error(), "plan9") {
		t.Fatalf("expected unsupported platform error, got %v", err)
	}
}
