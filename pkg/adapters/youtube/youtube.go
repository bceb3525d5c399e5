// Package youtube provides a YouTube Data API adapter for the assistant's
// video search tool.
//
// Results are restricted to embeddable videos so a client can render them
// inline.
//
// Usage:
//
//	import "github.com/vango-go/vai-assist/pkg/adapters/youtube"
//
//	videos := youtube.NewSearch(os.Getenv("YOUTUBE_API_KEY"))
//	session, err := live.New(cfg, live.Dependencies{
//	    Tools: live.Toolset{Videos: videos},
//	    ...
//	})
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vango-go/vai-assist/pkg/core/types"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// Option configures a YouTube client.
type Option func(*options)

type options struct {
	baseURL    string
	httpClient *http.Client
}

// WithBaseURL overrides the YouTube Data API base URL.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// Search implements live.VideoSearcher using the YouTube Data API v3
// search endpoint.
type Search struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSearch creates a new YouTube video search provider.
func NewSearch(apiKey string, opts ...Option) *Search {
	o := &options{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Search{
		apiKey:  apiKey,
		baseURL: o.baseURL,
		client:  o.httpClient,
	}
}

// ytSearchResponse is the /search response body.
type ytSearchResponse struct {
	Items []ytSearchItem `json:"items"`
}

// ytSearchItem is a single search result.
type ytSearchItem struct {
	ID      ytVideoID `json:"id"`
	Snippet ytSnippet `json:"snippet"`
}

// ytVideoID identifies the matched resource; only video ids are requested.
type ytVideoID struct {
	Kind    string `json:"kind"`
	VideoID string `json:"videoId"`
}

// ytSnippet carries the display metadata for a result.
type ytSnippet struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ChannelTitle string `json:"channelTitle"`
}

// SearchVideos implements live.VideoSearcher.
func (s *Search) SearchVideos(ctx context.Context, query string, max int) ([]types.VideoResult, error) {
	if max <= 0 {
		max = 5
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("videoEmbeddable", "true")
	params.Set("maxResults", strconv.Itoa(max))
	params.Set("key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("youtube: create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("youtube: API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var ytResp ytSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&ytResp); err != nil {
		return nil, fmt.Errorf("youtube: decode response: %w", err)
	}

	results := make([]types.VideoResult, 0, len(ytResp.Items))
	for _, item := range ytResp.Items {
		// Channel and playlist matches carry no videoId.
		if item.ID.VideoID == "" {
			continue
		}
		results = append(results, types.VideoResult{
			ID:          item.ID.VideoID,
			Title:       item.Snippet.Title,
			Channel:     item.Snippet.ChannelTitle,
			Description: item.Snippet.Description,
		})
	}

	return results, nil
}
