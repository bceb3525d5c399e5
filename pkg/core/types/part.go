package types

import (
	"encoding/json"
	"fmt"
)

// Part is the interface for all message part variants.
// A message's parts preserve chronological assembly order:
// text, image, sources, video_results.
type Part interface {
	PartType() string
}

// TextPart represents text content.
type TextPart struct {
	Type string `json:"type"` // "text"
	Text string `json:"text"`
}

func (p TextPart) PartType() string { return "text" }

// NewTextPart creates a text part.
func NewTextPart(text string) TextPart {
	return TextPart{Type: "text", Text: text}
}

// ImagePart represents a rendered image. URI is either a data URI
// (base64-embedded) or a remote URL.
type ImagePart struct {
	Type string `json:"type"` // "image"
	URI  string `json:"uri"`
	Alt  string `json:"alt,omitempty"`
}

func (p ImagePart) PartType() string { return "image" }

// NewImagePart creates an image part.
func NewImagePart(uri, alt string) ImagePart {
	return ImagePart{Type: "image", URI: uri, Alt: alt}
}

// Source is a single web citation.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// SourcesPart lists the web citations backing an answer.
// Items is non-empty whenever the part is present.
type SourcesPart struct {
	Type  string   `json:"type"` // "sources"
	Items []Source `json:"items"`
}

func (p SourcesPart) PartType() string { return "sources" }

// NewSourcesPart creates a sources part.
func NewSourcesPart(items []Source) SourcesPart {
	return SourcesPart{Type: "sources", Items: items}
}

// VideoResult is a single video search hit.
type VideoResult struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Channel     string `json:"channel"`
	Description string `json:"description,omitempty"`
}

// VideoResultsPart lists video search hits in ranking order.
type VideoResultsPart struct {
	Type  string        `json:"type"` // "video_results"
	Items []VideoResult `json:"items"`
}

func (p VideoResultsPart) PartType() string { return "video_results" }

// NewVideoResultsPart creates a video results part.
func NewVideoResultsPart(items []VideoResult) VideoResultsPart {
	return VideoResultsPart{Type: "video_results", Items: items}
}

// UnmarshalPart deserializes a message part from JSON.
func UnmarshalPart(data []byte) (Part, error) {
	var typeHolder struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &typeHolder); err != nil {
		return nil, err
	}

	switch typeHolder.Type {
	case "text":
		var part TextPart
		if err := json.Unmarshal(data, &part); err != nil {
			return nil, err
		}
		return part, nil

	case "image":
		var part ImagePart
		if err := json.Unmarshal(data, &part); err != nil {
			return nil, err
		}
		return part, nil

	case "sources":
		var part SourcesPart
		if err := json.Unmarshal(data, &part); err != nil {
			return nil, err
		}
		return part, nil

	case "video_results":
		var part VideoResultsPart
		if err := json.Unmarshal(data, &part); err != nil {
			return nil, err
		}
		return part, nil

	default:
		return nil, fmt.Errorf("unknown part type: %q", typeHolder.Type)
	}
}

// UnmarshalParts deserializes an array of message parts from JSON.
func UnmarshalParts(data []byte) ([]Part, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	parts := make([]Part, 0, len(raw))
	for _, r := range raw {
		part, err := UnmarshalPart(r)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, nil
}
