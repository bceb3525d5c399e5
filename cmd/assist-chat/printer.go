package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/vango-go/vai-assist/pkg/core/types"
	"github.com/vango-go/vai-assist/pkg/live"
)

// eventPrinter renders session events for the terminal. Assistant speech is
// streamed as transcript deltas arrive; user speech is printed once per turn
// when the assembled message lands. Handle is called from a single goroutine.
type eventPrinter struct {
	out    io.Writer
	errOut io.Writer

	// assistantOpen reports that a streamed assistant line has been started
	// and not yet terminated with a newline.
	assistantOpen bool
}

func newEventPrinter(out, errOut io.Writer) *eventPrinter {
	return &eventPrinter{out: out, errOut: errOut}
}

func (p *eventPrinter) handle(event live.Event) {
	switch e := event.(type) {
	case *live.TranscriptDeltaEvent:
		if e.Speaker != types.SpeakerAssistant {
			return
		}
		if !p.assistantOpen {
			fmt.Fprint(p.out, "[assistant] ")
			p.assistantOpen = true
		}
		fmt.Fprint(p.out, e.Text)
	case *live.MessageAddedEvent:
		p.printMessage(e.Message)
	case *live.ToolCallStartedEvent:
		p.closeLine()
		fmt.Fprintf(p.out, "[tool] %s\n", e.Name)
	case *live.ToolCallFinishedEvent:
		if e.IsError {
			fmt.Fprintf(p.out, "[tool] %s failed\n", e.Name)
		}
	case *live.MuteChangedEvent:
		p.closeLine()
		if e.Muted {
			fmt.Fprintln(p.out, "[mic] muted")
		} else {
			fmt.Fprintln(p.out, "[mic] live")
		}
	case *live.ErrorEvent:
		p.closeLine()
		fmt.Fprintf(p.errOut, "session error: %s\n", e.Message)
	case *live.ClosedEvent:
		p.closeLine()
		fmt.Fprintln(p.out, "[session] closed")
	}
}

// closeLine terminates a streamed assistant line, if one is open.
func (p *eventPrinter) closeLine() {
	if p.assistantOpen {
		fmt.Fprintln(p.out)
		p.assistantOpen = false
	}
}

func (p *eventPrinter) printMessage(msg types.Message) {
	// Text-only assistant messages that arrive while a streamed line is
	// open are the assembled form of what was already printed.
	if msg.Speaker == types.SpeakerAssistant && p.assistantOpen && textOnly(msg) {
		p.closeLine()
		return
	}
	p.closeLine()

	label := "you"
	if msg.Speaker == types.SpeakerAssistant {
		label = "assistant"
	}

	for _, part := range msg.Parts {
		switch v := part.(type) {
		case types.TextPart:
			fmt.Fprintf(p.out, "[%s] %s\n", label, v.Text)
		case types.ImagePart:
			if strings.HasPrefix(v.URI, "data:") {
				fmt.Fprintf(p.out, "[%s] (image) %s\n", label, v.Alt)
			} else {
				fmt.Fprintf(p.out, "[%s] (image) %s\n", label, v.URI)
			}
		case types.SourcesPart:
			for _, src := range v.Items {
				fmt.Fprintf(p.out, "   source: %s <%s>\n", src.Title, src.URI)
			}
		case types.VideoResultsPart:
			for _, vid := range v.Items {
				fmt.Fprintf(p.out, "   video: %s (%s) https://www.youtube.com/watch?v=%s\n", vid.Title, vid.Channel, vid.ID)
			}
		}
	}
}

func textOnly(msg types.Message) bool {
	if len(msg.Parts) == 0 {
		return false
	}
	for _, part := range msg.Parts {
		if _, ok := part.(types.TextPart); !ok {
			return false
		}
	}
	return true
}
