package live

import (
	"strings"
	"sync"

	"github.com/vango-go/vai-assist/pkg/core/types"
)

// transcript accumulates streamed transcription deltas for the current turn.
// Both buffers are cleared at connect time and at each turn boundary.
type transcript struct {
	mu     sync.Mutex
	input  strings.Builder
	output strings.Builder
}

func (t *transcript) AddInput(text string) {
	t.mu.Lock()
	t.input.WriteString(text)
	t.mu.Unlock()
}

func (t *transcript) AddOutput(text string) {
	t.mu.Lock()
	t.output.WriteString(text)
	t.mu.Unlock()
}

// Snapshot returns the current accumulator contents without clearing them.
func (t *transcript) Snapshot() (input, output string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.input.String(), t.output.String()
}

// FlushTurn converts the accumulated transcriptions into finalized messages,
// user speech first, and clears both buffers. Blank accumulators produce no
// message.
func (t *transcript) FlushTurn() []types.Message {
	t.mu.Lock()
	input := strings.TrimSpace(t.input.String())
	output := strings.TrimSpace(t.output.String())
	t.input.Reset()
	t.output.Reset()
	t.mu.Unlock()

	var messages []types.Message
	if input != "" {
		msg, err := types.NewMessage(types.SpeakerUser, types.NewTextPart(input))
		if err == nil {
			messages = append(messages, msg)
		}
	}
	if output != "" {
		msg, err := types.NewMessage(types.SpeakerAssistant, types.NewTextPart(output))
		if err == nil {
			messages = append(messages, msg)
		}
	}
	return messages
}
