// Command assist-chat is an interactive voice assistant for the terminal.
//
// It captures microphone audio through an ffmpeg subprocess, streams it to
// the Gemini live endpoint, and plays synthesized replies through ffplay.
// Transcripts, tool activity, and generated content are printed as the
// conversation progresses.
//
// Configuration comes from flags and the environment (a .env file is loaded
// when present). GEMINI_API_KEY is required; YOUTUBE_API_KEY enables video
// search.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/vango-go/vai-assist/internal/dotenv"
	"github.com/vango-go/vai-assist/pkg/adapters/googleai"
	"github.com/vango-go/vai-assist/pkg/adapters/youtube"
	"github.com/vango-go/vai-assist/pkg/gemini"
	"github.com/vango-go/vai-assist/pkg/live"
)

const defaultVoice = "Puck"

type assistConfig struct {
	Model      string
	Voice      string
	Topic      string
	Language   string
	MicDevice  string
	StartMuted bool
	Verbose    bool

	GeminiAPIKey  string
	YouTubeAPIKey string
}

func parseAssistConfig(args []string, getenv func(string) string) (assistConfig, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := assistConfig{}
	fs := flag.NewFlagSet("assist-chat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Model, "model", gemini.DefaultLiveModel, "live-audio model name")
	fs.StringVar(&cfg.Voice, "voice", defaultVoice, "prebuilt synthesis voice")
	fs.StringVar(&cfg.Topic, "topic", "", "conversation topic for the system instruction")
	fs.StringVar(&cfg.Language, "language", "", "BCP-47 conversation language (default en-US)")
	fs.StringVar(&cfg.MicDevice, "mic-device", "", "capture device passed to ffmpeg (default per platform)")
	fs.BoolVar(&cfg.StartMuted, "muted", false, "start with the microphone muted")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return assistConfig{}, err
	}

	cfg.GeminiAPIKey = strings.TrimSpace(getenv("GEMINI_API_KEY"))
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = strings.TrimSpace(getenv("GOOGLE_API_KEY"))
	}
	cfg.YouTubeAPIKey = strings.TrimSpace(getenv("YOUTUBE_API_KEY"))

	if err := validateAssistConfig(cfg); err != nil {
		return assistConfig{}, err
	}
	return cfg, nil
}

func validateAssistConfig(cfg assistConfig) error {
	if strings.TrimSpace(cfg.Model) == "" {
		return errors.New("model must not be empty")
	}
	if strings.TrimSpace(cfg.Voice) == "" {
		return errors.New("voice must not be empty")
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return errors.New("GEMINI_API_KEY is required (or GOOGLE_API_KEY)")
	}
	return nil
}

// buildAssistToolset wires the image, search, and video capabilities. Video
// search is left out when no YouTube key is configured.
func buildAssistToolset(ctx context.Context, cfg assistConfig, out io.Writer) (live.Toolset, error) {
	ai, err := googleai.New(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return live.Toolset{}, err
	}

	tools := live.Toolset{
		Images: ai,
		Search: ai,
	}
	if cfg.YouTubeAPIKey != "" {
		tools.Videos = youtube.NewSearch(cfg.YouTubeAPIKey)
	} else {
		fmt.Fprintln(out, "YOUTUBE_API_KEY not set - video search disabled")
	}
	return tools, nil
}

func runAssist(ctx context.Context, cfg assistConfig, in io.Reader, out io.Writer, errOut io.Writer) error {
	if err := validateAssistConfig(cfg); err != nil {
		return err
	}
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	tools, err := buildAssistToolset(ctx, cfg, out)
	if err != nil {
		return err
	}

	session, err := live.New(live.SessionConfig{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.Model,
		Voice:  cfg.Voice,
	}, live.Dependencies{
		Tools: tools,
		OpenMic: func() (io.ReadCloser, error) {
			return newFFmpegMic(cfg.MicDevice)
		},
		OpenSpeaker: func() (live.Speaker, error) {
			return newFFplaySpeaker()
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	if cfg.StartMuted {
		session.SetMuted(true)
	}

	printer := newEventPrinter(out, errOut)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			case event := <-session.Events():
				printer.handle(event)
			}
		}
	}()
	defer func() {
		close(done)
		wg.Wait()
	}()

	fmt.Fprintf(out, "Connecting to %s (%s voice)...\n", cfg.Model, cfg.Voice)
	if err := session.Start(ctx, live.StartOptions{Topic: cfg.Topic, Language: cfg.Language}); err != nil {
		return err
	}
	fmt.Fprintln(out, "Listening. Speak naturally. Commands: m (mute), c (clear), q (quit).")

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nShutting down...")
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				fmt.Fprintln(out)
				return nil
			}
			if line == "" {
				continue
			}
			switch strings.ToLower(line) {
			case "q", "quit", "/exit", "/quit":
				fmt.Fprintln(out, "bye")
				return nil
			case "m":
				session.ToggleMute()
			case "c":
				session.ClearMessages()
				fmt.Fprintln(out, "conversation cleared")
			default:
				fmt.Fprintln(out, "commands: m (toggle mute), c (clear conversation), q (quit)")
			}
		}
	}
}

func main() {
	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "assist-chat: %v\n", err)
		os.Exit(1)
	}

	cfg, err := parseAssistConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "assist-chat: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runAssist(ctx, cfg, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "assist-chat: %v\n", err)
		os.Exit(1)
	}
}
