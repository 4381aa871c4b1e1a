// Package utils provides the shared provider clients: HTTP plumbing, the
// text-generation client, the media-generation client, email, and prompt
// templating.
package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient is a reusable JSON-oriented HTTP client shared by the
// provider clients
type HTTPClient struct {
	client *http.Client
}

// HTTPRequest describes a single outbound request
type HTTPRequest struct {
	URL         string                 `json:"url"`
	Method      string                 `json:"method"`
	Headers     map[string]string      `json:"headers,omitempty"`
	QueryParams map[string]string      `json:"query_params,omitempty"`
	Body        interface{}            `json:"body,omitempty"`
	Auth        map[string]interface{} `json:"auth,omitempty"`
}

// HTTPResponse is the parsed outcome of a request
type HTTPResponse struct {
	StatusCode int                    `json:"status_code"`
	Headers    map[string][]string    `json:"headers"`
	Body       interface{}            `json:"body"`
	RawBody    []byte                 `json:"raw_body,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewHTTPClient creates a client with a 30 second default timeout. Callers
// with tighter or looser budgets pass a deadline on the request context.
func NewHTTPClient() *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetTimeout overrides the default client timeout
func (c *HTTPClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// IsTimeout reports whether an error from Do was caused by the context
// deadline or the client timeout rather than the remote end
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

// Do executes a request. JSON bodies are marshaled automatically; JSON
// responses are parsed into Body with the raw bytes kept alongside.
func (c *HTTPClient) Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if req.Body != nil {
		switch body := req.Body.(type) {
		case string:
			bodyReader = strings.NewReader(body)
		case []byte:
			bodyReader = bytes.NewReader(body)
		default:
			jsonBody, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request body: %w", err)
			}
			bodyReader = bytes.NewReader(jsonBody)
		}
	}

	parsedURL, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if len(req.QueryParams) > 0 {
		q := parsedURL.Query()
		for key, value := range req.QueryParams {
			q.Set(key, value)
		}
		parsedURL.RawQuery = q.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, parsedURL.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if req.Auth != nil {
		if username, ok := req.Auth["username"].(string); ok {
			if password, ok := req.Auth["password"].(string); ok {
				httpReq.SetBasicAuth(username, password)
			}
		} else if token, ok := req.Auth["token"].(string); ok {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		} else if apiKey, ok := req.Auth["api_key"].(string); ok {
			if keyName, ok := req.Auth["key_name"].(string); ok {
				httpReq.Header.Set(keyName, apiKey)
			} else {
				httpReq.Header.Set("X-API-Key", apiKey)
			}
		}
	}

	startTime := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsedBody interface{}
	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		if err := json.Unmarshal(rawBody, &parsedBody); err != nil {
			parsedBody = string(rawBody)
		}
	} else {
		parsedBody = string(rawBody)
	}

	return &HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       parsedBody,
		RawBody:    rawBody,
		Metadata: map[string]interface{}{
			"content_type":   contentType,
			"request_url":    req.URL,
			"request_method": method,
			"timing_ms":      time.Since(startTime).Milliseconds(),
		},
	}, nil
}
