package live

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/vango-go/vai-assist/pkg/core"
	"github.com/vango-go/vai-assist/pkg/core/types"
	"github.com/vango-go/vai-assist/pkg/gemini"
)

// Wire names of the functions advertised to the model.
const (
	toolGenerateImage = "generateImage"
	toolGoogleSearch  = "googleSearch"
	toolYoutubeSearch = "youtubeSearch"
)

const maxVideoResults = 5

// Fallback texts used when a capability succeeds but has nothing to show.
const (
	searchFallbackText = "I couldn't find any information on that."
	videoFallbackText  = "I couldn't find any videos for that."
)

// ImageGenerator produces one image from a text prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (GeneratedImage, error)
}

// AnswerProvider answers a query with web-grounded text and citations.
type AnswerProvider interface {
	GroundedAnswer(ctx context.Context, query string) (Answer, error)
}

// VideoSearcher finds embeddable videos for a query.
type VideoSearcher interface {
	SearchVideos(ctx context.Context, query string, max int) ([]types.VideoResult, error)
}

// Toolset bundles the external capabilities the assistant can invoke. Any
// field may be nil; invoking a missing capability yields a recoverable tool
// error rather than a teardown.
type Toolset struct {
	Images ImageGenerator
	Search AnswerProvider
	Videos VideoSearcher
}

// GeneratedImage is one encoded image returned by an ImageGenerator.
type GeneratedImage struct {
	MIMEType string
	Data     []byte
}

// DataURI renders the image as a data URI suitable for an ImagePart.
func (g GeneratedImage) DataURI() string {
	return "data:" + g.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(g.Data)
}

// Answer is a grounded-search result: answer text plus the web citations that
// back it.
type Answer struct {
	Text    string
	Sources []types.Source
}

// toolDeclarations describes the callable surface advertised at connect time.
func toolDeclarations() []gemini.Tool {
	return []gemini.Tool{{
		FunctionDeclarations: []gemini.FunctionDeclaration{
			{
				Name:        toolGenerateImage,
				Description: "Generates an image from a text prompt and shows it to the user.",
				Parameters: &gemini.Schema{
					Type: "OBJECT",
					Properties: map[string]*gemini.Schema{
						"prompt": {Type: "STRING", Description: "Description of the image to generate."},
					},
					Required: []string{"prompt"},
				},
			},
			{
				Name:        toolGoogleSearch,
				Description: "Searches the web and returns a grounded answer with source links.",
				Parameters: &gemini.Schema{
					Type: "OBJECT",
					Properties: map[string]*gemini.Schema{
						"query": {Type: "STRING", Description: "The search query."},
					},
					Required: []string{"query"},
				},
			},
			{
				Name:        toolYoutubeSearch,
				Description: "Searches YouTube for embeddable videos and shows them to the user.",
				Parameters: &gemini.Schema{
					Type: "OBJECT",
					Properties: map[string]*gemini.Schema{
						"query": {Type: "STRING", Description: "The video search query."},
					},
					Required: []string{"query"},
				},
			},
		},
	}}
}

// dispatchTools resolves one tool-call batch. Calls are processed strictly in
// the order received; each sends exactly one response before the next starts.
// Failures stay localized to their call and never tear the session down.
func (s *Session) dispatchTools(a *activeConn, calls []gemini.FunctionCall) {
	for _, call := range calls {
		s.emit(&ToolCallStartedEvent{ID: call.ID, Name: call.Name})

		response, isErr := s.resolveToolCall(a, call)
		if err := a.transport.SendToolResponse(gemini.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: response,
		}); err != nil {
			// The transport closed under us; the result is discarded.
			s.logger.Debug("tool response dropped", "tool", call.Name, "error", err)
		}

		s.emit(&ToolCallFinishedEvent{ID: call.ID, Name: call.Name, IsError: isErr})
	}
	s.settleAfterTools(a)
}

// resolveToolCall invokes the capability matching the call and returns the
// response payload for the model.
func (s *Session) resolveToolCall(a *activeConn, call gemini.FunctionCall) (map[string]any, bool) {
	// Invocations are not hard-cancelled: stopping the session leaves an
	// in-flight call to finish, and its response send then no-ops.
	ctx := context.Background()

	switch call.Name {
	case toolGenerateImage:
		return s.runGenerateImage(ctx, a, stringArg(call.Args, "prompt"))
	case toolGoogleSearch:
		return s.runGoogleSearch(ctx, a, stringArg(call.Args, "query"))
	case toolYoutubeSearch:
		return s.runYoutubeSearch(ctx, a, stringArg(call.Args, "query"))
	default:
		// Reply anyway so the model is never left waiting on a name we
		// don't recognize. No message is appended.
		s.logger.Warn("unknown tool requested", "tool", call.Name)
		return map[string]any{"error": fmt.Sprintf("tool %q is not available", call.Name)}, true
	}
}

func (s *Session) runGenerateImage(ctx context.Context, a *activeConn, prompt string) (map[string]any, bool) {
	if s.deps.Tools.Images == nil {
		return s.toolFailure(a, toolGenerateImage, core.NewToolError(toolGenerateImage, "image generation is not configured", nil))
	}

	img, err := s.deps.Tools.Images.GenerateImage(ctx, prompt)
	if err != nil {
		return s.toolFailure(a, toolGenerateImage, err)
	}

	s.appendMessage(a, types.SpeakerAssistant, types.NewImagePart(img.DataURI(), prompt))
	return map[string]any{"output": "Image generated and shown to the user."}, false
}

func (s *Session) runGoogleSearch(ctx context.Context, a *activeConn, query string) (map[string]any, bool) {
	if s.deps.Tools.Search == nil {
		return s.toolFailure(a, toolGoogleSearch, core.NewToolError(toolGoogleSearch, "web search is not configured", nil))
	}

	answer, err := s.deps.Tools.Search.GroundedAnswer(ctx, query)
	if err != nil {
		return s.toolFailure(a, toolGoogleSearch, err)
	}

	text := strings.TrimSpace(answer.Text)
	var sources []types.Source
	for _, src := range answer.Sources {
		// A citation is only useful when it can be both shown and followed.
		if src.URI != "" && src.Title != "" {
			sources = append(sources, src)
		}
	}

	if text == "" && len(sources) == 0 {
		text = searchFallbackText
	}

	var parts []types.Part
	if text != "" {
		parts = append(parts, types.NewTextPart(text))
	}
	if len(sources) > 0 {
		parts = append(parts, types.NewSourcesPart(sources))
	}
	s.appendMessage(a, types.SpeakerAssistant, parts...)

	return map[string]any{"output": text}, false
}

func (s *Session) runYoutubeSearch(ctx context.Context, a *activeConn, query string) (map[string]any, bool) {
	if s.deps.Tools.Videos == nil {
		return s.toolFailure(a, toolYoutubeSearch, core.NewToolError(toolYoutubeSearch, "video search is not configured", nil))
	}

	results, err := s.deps.Tools.Videos.SearchVideos(ctx, query, maxVideoResults)
	if err != nil {
		return s.toolFailure(a, toolYoutubeSearch, err)
	}
	if len(results) > maxVideoResults {
		results = results[:maxVideoResults]
	}

	if len(results) == 0 {
		s.appendMessage(a, types.SpeakerAssistant, types.NewTextPart(videoFallbackText))
		return map[string]any{"output": videoFallbackText}, false
	}

	summary := fmt.Sprintf("Found %d videos for %q.", len(results), query)
	s.appendMessage(a, types.SpeakerAssistant,
		types.NewTextPart(summary),
		types.NewVideoResultsPart(results),
	)
	return map[string]any{"output": summary}, false
}

// toolFailure records a per-call failure: the error is normalized to a
// display string, surfaced through Err and an ErrorEvent, appended as an
// assistant-visible message, and reported to the model as a structured
// failure. The session stays connected.
func (s *Session) toolFailure(a *activeConn, name string, err error) (map[string]any, bool) {
	display := core.Display(err)
	s.logger.Warn("tool call failed", "tool", name, "error", err)

	s.mu.Lock()
	s.errMsg = display
	s.mu.Unlock()
	s.emit(&ErrorEvent{Message: display})

	s.appendMessage(a, types.SpeakerAssistant, types.NewTextPart(fmt.Sprintf("%s failed: %s", name, display)))
	return map[string]any{"error": display}, true
}

// settleAfterTools restores the post-batch state: speaking when audio is
// still scheduled, listening otherwise.
func (s *Session) settleAfterTools(a *activeConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != a {
		return
	}
	if a.player.Playing() {
		s.setStateLocked(StateSpeaking)
	} else {
		s.setStateLocked(StateListening)
	}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
