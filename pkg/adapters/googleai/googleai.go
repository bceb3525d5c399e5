// Package googleai adapts the Gemini API, via the official Go SDK, to the
// assistant's image generation and grounded web search tools.
//
// A single Client serves both capabilities:
//
//	import "github.com/vango-go/vai-assist/pkg/adapters/googleai"
//
//	ai, err := googleai.New(ctx, os.Getenv("GEMINI_API_KEY"))
//	if err != nil { ... }
//	session, err := live.New(cfg, live.Dependencies{
//	    Tools: live.Toolset{Images: ai, Search: ai},
//	    ...
//	})
package googleai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/vango-go/vai-assist/pkg/core/types"
	"github.com/vango-go/vai-assist/pkg/live"
)

const (
	defaultImageModel = "imagen-3.0-generate-002"
	defaultTextModel  = "gemini-2.5-flash"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	imageModel string
	textModel  string
	httpClient *http.Client
}

// WithImageModel overrides the image generation model.
func WithImageModel(model string) Option {
	return func(o *options) { o.imageModel = model }
}

// WithTextModel overrides the model used for grounded answers.
func WithTextModel(model string) Option {
	return func(o *options) { o.textModel = model }
}

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// Client implements live.ImageGenerator and live.AnswerProvider on top of
// the Gemini API.
type Client struct {
	client     *genai.Client
	imageModel string
	textModel  string
}

// New creates a Gemini-backed tool client. An empty apiKey falls back to the
// SDK's environment resolution.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	o := &options{
		imageModel: defaultImageModel,
		textModel:  defaultTextModel,
	}
	for _, opt := range opts {
		opt(o)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("googleai: create client: %w", err)
	}

	return &Client{
		client:     client,
		imageModel: o.imageModel,
		textModel:  o.textModel,
	}, nil
}

// GenerateImage implements live.ImageGenerator.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (live.GeneratedImage, error) {
	resp, err := c.client.Models.GenerateImages(ctx, c.imageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		return live.GeneratedImage{}, fmt.Errorf("googleai: generate image: %w", err)
	}
	return imageFromResponse(resp)
}

// GroundedAnswer implements live.AnswerProvider. The query runs with Google
// Search grounding enabled so the answer carries web citations.
func (c *Client) GroundedAnswer(ctx context.Context, query string) (live.Answer, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.textModel, []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: query}}},
	}, &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		return live.Answer{}, fmt.Errorf("googleai: grounded answer: %w", err)
	}
	return answerFromResponse(resp), nil
}

// imageFromResponse extracts the first generated image. A response with no
// image (filtered or empty) is an error so the tool call reports a failure
// instead of showing nothing.
func imageFromResponse(resp *genai.GenerateImagesResponse) (live.GeneratedImage, error) {
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return live.GeneratedImage{}, fmt.Errorf("googleai: no image in response")
	}
	img := resp.GeneratedImages[0].Image
	if img == nil || len(img.ImageBytes) == 0 {
		return live.GeneratedImage{}, fmt.Errorf("googleai: no image in response")
	}

	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return live.GeneratedImage{MIMEType: mime, Data: img.ImageBytes}, nil
}

// answerFromResponse folds the first candidate into an Answer: text parts
// concatenated, grounding chunks mapped to sources with one entry per URI.
// An empty candidate set yields an empty answer; the caller decides how to
// present that.
func answerFromResponse(resp *genai.GenerateContentResponse) live.Answer {
	if resp == nil || len(resp.Candidates) == 0 {
		return live.Answer{}
	}
	candidate := resp.Candidates[0]

	var sb strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
	}

	var sources []types.Source
	if candidate.GroundingMetadata != nil {
		seen := make(map[string]bool)
		for _, chunk := range candidate.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil || seen[chunk.Web.URI] {
				continue
			}
			seen[chunk.Web.URI] = true
			sources = append(sources, types.Source{
				URI:   chunk.Web.URI,
				Title: chunk.Web.Title,
			})
		}
	}

	return live.Answer{Text: sb.String(), Sources: sources}
}
