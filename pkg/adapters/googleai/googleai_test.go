package googleai

import (
	"context"
	"testing"

	"google.golang.org/genai"
)

func TestNewAppliesOptions(t *testing.T) {
	c, err := New(context.Background(), "test-key",
		WithImageModel("imagen-test"),
		WithTextModel("gemini-test"),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if c.imageModel != "imagen-test" {
		t.Errorf("expected image model 'imagen-test', got %q", c.imageModel)
	}
	if c.textModel != "gemini-test" {
		t.Errorf("expected text model 'gemini-test', got %q", c.textModel)
	}
}

func TestNewDefaults(t *testing.T) {
	c, err := New(context.Background(), "test-key")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if c.imageModel != defaultImageModel {
		t.Errorf("expected default image model, got %q", c.imageModel)
	}
	if c.textModel != defaultTextModel {
		t.Errorf("expected default text model, got %q", c.textModel)
	}
}

func TestAnswerFromResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "Paris is the capital "},
				{Text: "of France."},
			}},
			GroundingMetadata: &genai.GroundingMetadata{
				GroundingChunks: []*genai.GroundingChunk{
					{Web: &genai.GroundingChunkWeb{URI: "https://example.com/paris", Title: "Paris"}},
					{Web: nil},
					nil,
				},
			},
		}},
	}

	answer := answerFromResponse(resp)
	if answer.Text != "Paris is the capital of France." {
		t.Errorf("expected concatenated text, got %q", answer.Text)
	}
	if len(answer.Sources) != 1 {
		t.Fatalf("expected 1 source, got %d", len(answer.Sources))
	}
	if answer.Sources[0].URI != "https://example.com/paris" || answer.Sources[0].Title != "Paris" {
		t.Errorf("unexpected source %+v", answer.Sources[0])
	}
}

func TestAnswerFromResponseDeduplicatesSources(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			GroundingMetadata: &genai.GroundingMetadata{
				GroundingChunks: []*genai.GroundingChunk{
					{Web: &genai.GroundingChunkWeb{URI: "https://a.example", Title: "A"}},
					{Web: &genai.GroundingChunkWeb{URI: "https://a.example", Title: "A again"}},
					{Web: &genai.GroundingChunkWeb{URI: "https://b.example", Title: "B"}},
				},
			},
		}},
	}

	answer := answerFromResponse(resp)
	if len(answer.Sources) != 2 {
		t.Fatalf("expected 2 sources after de-duplication, got %d: %+v", len(answer.Sources), answer.Sources)
	}
	if answer.Sources[0].URI != "https://a.example" || answer.Sources[0].Title != "A" {
		t.Errorf("first citation for a URI should win, got %+v", answer.Sources[0])
	}
	if answer.Sources[1].URI != "https://b.example" {
		t.Errorf("unexpected second source %+v", answer.Sources[1])
	}
}

func TestAnswerFromResponseEmpty(t *testing.T) {
	if got := answerFromResponse(nil); got.Text != "" || got.Sources != nil {
		t.Errorf("expected empty answer for nil response, got %+v", got)
	}
	if got := answerFromResponse(&genai.GenerateContentResponse{}); got.Text != "" || got.Sources != nil {
		t.Errorf("expected empty answer for no candidates, got %+v", got)
	}
}

func TestImageFromResponse(t *testing.T) {
	resp := &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{{
			Image: &genai.Image{ImageBytes: []byte{1, 2, 3}, MIMEType: "image/jpeg"},
		}},
	}

	img, err := imageFromResponse(resp)
	if err != nil {
		t.Fatalf("imageFromResponse failed: %v", err)
	}
	if img.MIMEType != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", img.MIMEType)
	}
	if len(img.Data) != 3 {
		t.Errorf("expected 3 bytes, got %d", len(img.Data))
	}
}

func TestImageFromResponseDefaultsMIME(t *testing.T) {
	resp := &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{{
			Image: &genai.Image{ImageBytes: []byte{1}},
		}},
	}

	img, err := imageFromResponse(resp)
	if err != nil {
		t.Fatalf("imageFromResponse failed: %v", err)
	}
	if img.MIMEType != "image/png" {
		t.Errorf("expected image/png fallback, got %q", img.MIMEType)
	}
}

func TestImageFromResponseEmpty(t *testing.T) {
	if _, err := imageFromResponse(nil); err == nil {
		t.Error("expected error for nil response")
	}
	if _, err := imageFromResponse(&genai.GenerateImagesResponse{}); err == nil {
		t.Error("expected error for empty response")
	}
	noBytes := &genai.GenerateImagesResponse{
		GeneratedImages: []*genai.GeneratedImage{{Image: &genai.Image{}}},
	}
	if _, err := imageFromResponse(noBytes); err == nil {
		t.Error("expected error for image without bytes")
	}
}
