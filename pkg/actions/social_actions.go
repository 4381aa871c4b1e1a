package actions

import (
	"context"
	"fmt"

	"github.com/reelflow/reelflow/pkg/engine"
	"github.com/reelflow/reelflow/pkg/utils"
	"github.com/reelflow/reelflow/pkg/workflow"
)

// SocialClient calls the social-scraping API
type SocialClient struct {
	httpClient *utils.HTTPClient
	baseURL    string
	apiKey     string
}

// NewSocialClient creates a scraping client against baseURL
func NewSocialClient(apiKey, baseURL string) *SocialClient {
	return &SocialClient{
		httpClient: utils.NewHTTPClient(),
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

func (c *SocialClient) get(ctx context.Context, path string, query map[string]string) (*utils.HTTPResponse, error) {
	resp, err := c.httpClient.Do(ctx, &utils.HTTPRequest{
		URL:         c.baseURL + path,
		QueryParams: query,
		Auth:        map[string]interface{}{"api_key": c.apiKey},
	})
	if err != nil {
		if utils.IsTimeout(err) {
			return nil, &engine.TimeoutError{Provider: "social", Budget: "30s"}
		}
		return nil, &engine.ProviderError{Provider: "social", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &engine.ProviderError{Provider: "social", Err: fmt.Errorf("scrape returned status %d", resp.StatusCode)}
	}
	return resp, nil
}

// scrapeProfile pulls recent posts for a profile
func (p Providers) scrapeProfile(ctx context.Context, req engine.ActionRequest, wctx *workflow.Context) (map[string]interface{}, error) {
	if p.Social == nil {
		return nil, &engine.ValidationError{NodeID: req.NodeID, Reason: "no social provider configured"}
	}
	username, _ := req.Config["username"].(string)
	if username == "" {
		return nil, &engine.ValidationError{NodeID: req.NodeID, Reason: "profile scrape requires a username"}
	}

	query := map[string]string{}
	if count, ok := req.Config["count"].(float64); ok && count > 0 {
		query["count"] = fmt.Sprintf("%d", int(count))
	}

	resp, err := p.Social.get(ctx, "/profile/"+username, query)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"type":     workflow.ResultTypeSocialPost,
		"username": username,
		"posts":    resp.Body,
	}, nil
}

// scrapeTrending pulls the current trending feed for a region or category
func (p Providers) scrapeTrending(ctx context.Context, req engine.ActionRequest, wctx *workflow.Context) (map[string]interface{}, error) {
	if p.Social == nil {
		return nil, &engine.ValidationError{NodeID: req.NodeID, Reason: "no social provider configured"}
	}

	query := map[string]string{}
	if region, ok := req.Config["region"].(string); ok && region != "" {
		query["region"] = region
	}
	if category, ok := req.Config["category"].(string); ok && category != "" {
		query["category"] = category
	}

	resp, err := p.Social.get(ctx, "/trending", query)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"type":   workflow.ResultTypeMetrics,
		"source": "trending",
		"query":  query,
		"items":  resp.Body,
	}, nil
}
