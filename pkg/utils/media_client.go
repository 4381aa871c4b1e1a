package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// MediaKind identifies a class of generated media. Each kind carries its
// own timeout budget because video generation is far slower than image or
// audio generation.
type MediaKind string

const (
	// MediaImage is still-image generation
	MediaImage MediaKind = "image"
	// MediaVideo is video generation
	MediaVideo MediaKind = "video"
	// MediaAudio is audio/voiceover generation
	MediaAudio MediaKind = "audio"
)

// Timeout budgets per media kind
const (
	ImageTimeout = 2 * time.Minute
	VideoTimeout = 10 * time.Minute
	AudioTimeout = 3 * time.Minute
)

// Budget returns the timeout budget for the kind
func (k MediaKind) Budget() time.Duration {
	switch k {
	case MediaVideo:
		return VideoTimeout
	case MediaAudio:
		return AudioTimeout
	default:
		return ImageTimeout
	}
}

// MediaClient calls the image/video/audio generation provider
type MediaClient struct {
	httpClient *HTTPClient
	apiKey     string
	baseURL    string
}

// MediaRequest describes one generation call
type MediaRequest struct {
	Kind    MediaKind              `json:"kind"`
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// MediaResponse is the provider's settled result
type MediaResponse struct {
	URL      string                 `json:"url"`
	Kind     MediaKind              `json:"kind"`
	Model    string                 `json:"model,omitempty"`
	Duration float64                `json:"duration,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewMediaClient creates a media-generation client against baseURL
func NewMediaClient(apiKey, baseURL string) *MediaClient {
	client := NewHTTPClient()
	// The outer per-request context enforces the real budget; the inner
	// client timeout just has to be no tighter than the longest one.
	client.SetTimeout(VideoTimeout + time.Minute)
	return &MediaClient{
		httpClient: client,
		apiKey:     apiKey,
		baseURL:    baseURL,
	}
}

// Generate submits a generation request and waits for the provider to
// settle it, within the kind's timeout budget. Exceeding the budget is
// reported as a context deadline error distinguishable via IsTimeout.
func (c *MediaClient) Generate(ctx context.Context, request MediaRequest) (*MediaResponse, error) {
	budget := request.Kind.Budget()
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	body := map[string]interface{}{
		"model":  request.Model,
		"prompt": request.Prompt,
	}
	for key, value := range request.Options {
		body[key] = value
	}

	resp, err := c.httpClient.Do(ctx, &HTTPRequest{
		URL:    fmt.Sprintf("%s/generate/%s", c.baseURL, request.Kind),
		Method: "POST",
		Body:   body,
		Auth:   map[string]interface{}{"token": c.apiKey},
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("media generation returned status %d: %s", resp.StatusCode, string(resp.RawBody))
	}

	var parsed struct {
		URL      string                 `json:"url"`
		Model    string                 `json:"model"`
		Duration float64                `json:"duration"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	if err := json.Unmarshal(resp.RawBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse media response: %w", err)
	}
	if parsed.URL == "" {
		return nil, fmt.Errorf("media generation response contained no url")
	}

	return &MediaResponse{
		URL:      parsed.URL,
		Kind:     request.Kind,
		Model:    parsed.Model,
		Duration: parsed.Duration,
		Metadata: parsed.Metadata,
	}, nil
}
