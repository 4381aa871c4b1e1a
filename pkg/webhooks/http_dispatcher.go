package webhooks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/reelflow/reelflow/pkg/logging"
)

// DefaultRetryConfig is used when no retry settings are provided
var DefaultRetryConfig = RetryConfig{
	MaxRetries:    3,
	InitialDelay:  500 * time.Millisecond,
	MaxDelay:      10 * time.Second,
	BackoffFactor: 2.0,
}

// HTTPDispatcher implements the WebhookDispatcher interface delivering
// events as JSON POST requests
type HTTPDispatcher struct {
	client *http.Client
	retry  RetryConfig
	logger logging.Logger

	mu sync.RWMutex
	// global endpoints are notified on every event
	global []string
	// registered maps workflowID/nodeID to endpoints
	registered map[string][]string
}

// NewHTTPDispatcher creates a dispatcher. Global endpoints receive all
// events in addition to any registered per workflow or node.
func NewHTTPDispatcher(globalEndpoints []string, retry RetryConfig, logger logging.Logger) *HTTPDispatcher {
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig
	}
	if retry.InitialDelay <= 0 {
		retry.InitialDelay = DefaultRetryConfig.InitialDelay
	}
	if retry.MaxDelay <= 0 {
		retry.MaxDelay = DefaultRetryConfig.MaxDelay
	}
	if retry.BackoffFactor <= 1 {
		retry.BackoffFactor = DefaultRetryConfig.BackoffFactor
	}

	return &HTTPDispatcher{
		client:     &http.Client{Timeout: 15 * time.Second},
		retry:      retry,
		logger:     logger,
		global:     append([]string(nil), globalEndpoints...),
		registered: make(map[string][]string),
	}
}

// SendRunCompleted notifies when a workflow run completes
func (d *HTTPDispatcher) SendRunCompleted(workflowID string, runID string, result map[string]interface{}) error {
	event := WebhookEvent{
		Type:       "run.completed",
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		RunID:      runID,
		Data:       result,
	}
	return d.deliver(d.endpoints(workflowID, ""), event)
}

// SendNodeCompleted notifies when a node completes
func (d *HTTPDispatcher) SendNodeCompleted(workflowID string, runID string, nodeID string, result interface{}) error {
	event := WebhookEvent{
		Type:       "node.completed",
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		RunID:      runID,
		NodeID:     nodeID,
		Data:       map[string]interface{}{"result": result},
	}
	return d.deliver(d.endpoints(workflowID, nodeID), event)
}

// RegisterWebhook adds a webhook URL for a workflow or node
func (d *HTTPDispatcher) RegisterWebhook(workflowID string, nodeID string, url string) error {
	if url == "" {
		return fmt.Errorf("webhook URL is required")
	}

	key := registrationKey(workflowID, nodeID)
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.registered[key] {
		if existing == url {
			return nil
		}
	}
	d.registered[key] = append(d.registered[key], url)
	return nil
}

// UnregisterWebhook removes a webhook URL
func (d *HTTPDispatcher) UnregisterWebhook(workflowID string, nodeID string, url string) error {
	key := registrationKey(workflowID, nodeID)
	d.mu.Lock()
	defer d.mu.Unlock()

	urls := d.registered[key]
	for i, existing := range urls {
		if existing == url {
			d.registered[key] = append(urls[:i], urls[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("webhook not found: %s", url)
}

// ListWebhooks returns all webhook URLs for a workflow or node
func (d *HTTPDispatcher) ListWebhooks(workflowID string, nodeID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	urls := d.registered[registrationKey(workflowID, nodeID)]
	return append([]string(nil), urls...), nil
}

// endpoints collects the global endpoints plus any registered for the
// workflow and node
func (d *HTTPDispatcher) endpoints(workflowID, nodeID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	urls := append([]string(nil), d.global...)
	urls = append(urls, d.registered[registrationKey(workflowID, "")]...)
	if nodeID != "" {
		urls = append(urls, d.registered[registrationKey(workflowID, nodeID)]...)
	}
	return urls
}

// deliver posts an event to each endpoint, retrying with exponential
// backoff. Delivery runs in the background; an error is returned only
// when the event cannot be serialized.
func (d *HTTPDispatcher) deliver(urls []string, event WebhookEvent) error {
	if len(urls) == 0 {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	for _, url := range urls {
		go d.post(url, event.Type, payload)
	}
	return nil
}

func (d *HTTPDispatcher) post(url, eventType string, payload []byte) {
	delay := d.retry.InitialDelay

	for attempt := 0; attempt <= d.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay = time.Duration(float64(delay) * d.retry.BackoffFactor)
			if delay > d.retry.MaxDelay {
				delay = d.retry.MaxDelay
			}
		}

		resp, err := d.client.Post(url, "application/json", bytes.NewReader(payload))
		if err != nil {
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return
		}
	}

	d.logger.Warn("webhook delivery failed",
		logging.Field{Key: "url", Value: url},
		logging.Field{Key: "event", Value: eventType},
		logging.Field{Key: "attempts", Value: d.retry.MaxRetries + 1},
	)
}

func registrationKey(workflowID, nodeID string) string {
	if nodeID == "" {
		return workflowID
	}
	return workflowID + "/" + nodeID
}
