// Package main provides a minimal terminal demo for live voice conversations.
//
// The demo opens the default microphone and speaker, connects a live session
// to the Gemini realtime endpoint, and prints the conversation as it happens.
// Speak naturally; the service detects turn boundaries and barge-in.
//
// Usage:
//
//	go run ./demo/live
//
// Environment variables:
//
//	GEMINI_API_KEY  - Required for the live endpoint and the image/search tools
//	YOUTUBE_API_KEY - Optional; enables video search when set
//
// Controls:
//
//	m - Toggle microphone mute
//	c - Clear the conversation
//	q - Quit the demo
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vango-go/vai-assist/pkg/adapters/googleai"
	"github.com/vango-go/vai-assist/pkg/adapters/youtube"
	"github.com/vango-go/vai-assist/pkg/core/types"
	"github.com/vango-go/vai-assist/pkg/live"
)

func main() {
	_ = godotenv.Load()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal("GEMINI_API_KEY required")
	}

	fmt.Println("╔════════════════════════════════════════════════════════════╗")
	fmt.Println("║              Voice Assistant Live Demo                     ║")
	fmt.Println("╠════════════════════════════════════════════════════════════╣")
	fmt.Println("║  Speak naturally - automatic turn detection is enabled.    ║")
	fmt.Println("║  Ask for images, web facts, or videos to trigger tools.    ║")
	fmt.Println("║                                                            ║")
	fmt.Println("║  Commands:                                                 ║")
	fmt.Println("║    m               Toggle microphone mute                  ║")
	fmt.Println("║    c               Clear the conversation                  ║")
	fmt.Println("║    q               Quit                                    ║")
	fmt.Println("╚════════════════════════════════════════════════════════════╝")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tools, err := buildToolset(ctx, apiKey)
	if err != nil {
		log.Fatalf("Failed to init tools: %v", err)
	}

	sys, cleanup := initAudio()
	defer cleanup()

	session, err := live.New(live.SessionConfig{APIKey: apiKey}, live.Dependencies{
		Tools:       tools,
		OpenMic:     sys.openMic,
		OpenSpeaker: sys.openSpeaker,
		Logger:      slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	})
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	defer session.Close()

	go printEvents(session)

	if err := session.Start(ctx, live.StartOptions{}); err != nil {
		log.Fatalf("Failed to start live session: %v", err)
	}

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		session.Close()
		os.Exit(0)
	}()

	fmt.Println("Listening... (m = mute, c = clear, q = quit)")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "q":
			return
		case "m":
			session.ToggleMute()
		case "c":
			session.ClearMessages()
			fmt.Println("[INFO] Conversation cleared")
		default:
			fmt.Println("[INFO] Commands: m (mute), c (clear), q (quit)")
		}
	}
}

// buildToolset wires the image, search, and video capabilities. Video search
// is left out when YOUTUBE_API_KEY is not set.
func buildToolset(ctx context.Context, geminiKey string) (live.Toolset, error) {
	ai, err := googleai.New(ctx, geminiKey)
	if err != nil {
		return live.Toolset{}, err
	}

	tools := live.Toolset{
		Images: ai,
		Search: ai,
	}
	if key := os.Getenv("YOUTUBE_API_KEY"); key != "" {
		tools.Videos = youtube.NewSearch(key)
	} else {
		fmt.Println("[INFO] YOUTUBE_API_KEY not set - video search disabled")
	}
	return tools, nil
}

// printEvents renders session events until the process exits.
func printEvents(session *live.Session) {
	for event := range session.Events() {
		switch e := event.(type) {
		case *live.MessageAddedEvent:
			printMessage(e.Message)
		case *live.ToolCallStartedEvent:
			fmt.Printf("[TOOL] %s...\n", e.Name)
		case *live.ToolCallFinishedEvent:
			if e.IsError {
				fmt.Printf("[TOOL] %s failed\n", e.Name)
			}
		case *live.MuteChangedEvent:
			if e.Muted {
				fmt.Println("[MIC] Muted")
			} else {
				fmt.Println("[MIC] Live")
			}
		case *live.ErrorEvent:
			fmt.Printf("\n[ERROR] %s\n", e.Message)
		case *live.ClosedEvent:
			fmt.Println("[SESSION] Closed")
		}
	}
}

// printMessage renders one complete message with all of its parts.
func printMessage(msg types.Message) {
	label := "YOU"
	if msg.Speaker == types.SpeakerAssistant {
		label = "GEMINI"
	}

	for _, part := range msg.Parts {
		switch p := part.(type) {
		case types.TextPart:
			fmt.Printf("[%s] %s\n", label, p.Text)
		case types.ImagePart:
			if strings.HasPrefix(p.URI, "data:") {
				fmt.Printf("[%s] (image) %s\n", label, p.Alt)
			} else {
				fmt.Printf("[%s] (image) %s\n", label, p.URI)
			}
		case types.SourcesPart:
			for _, src := range p.Items {
				fmt.Printf("   source: %s <%s>\n", src.Title, src.URI)
			}
		case types.VideoResultsPart:
			for _, v := range p.Items {
				fmt.Printf("   video: %s (%s) https://www.youtube.com/watch?v=%s\n", v.Title, v.Channel, v.ID)
			}
		}
	}
}
