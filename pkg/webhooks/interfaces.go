// Package webhooks provides functionality for sending HTTP callbacks.
package webhooks

import (
	"time"
)

// WebhookDispatcher sends HTTP callbacks
type WebhookDispatcher interface {
	// SendRunCompleted notifies when a workflow run completes
	SendRunCompleted(workflowID string, runID string, result map[string]interface{}) error

	// SendNodeCompleted notifies when a node completes
	SendNodeCompleted(workflowID string, runID string, nodeID string, result interface{}) error

	// RegisterWebhook adds a webhook URL for a workflow or node
	RegisterWebhook(workflowID string, nodeID string, url string) error

	// UnregisterWebhook removes a webhook URL
	UnregisterWebhook(workflowID string, nodeID string, url string) error

	// ListWebhooks returns all webhook URLs for a workflow or node
	ListWebhooks(workflowID string, nodeID string) ([]string, error)
}

// RetryConfig contains retry settings for webhook delivery
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts
	MaxRetries int `json:"max_retries"`

	// InitialDelay is the initial delay before the first retry
	InitialDelay time.Duration `json:"initial_delay"`

	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration `json:"max_delay"`

	// BackoffFactor is the multiplier for the delay between retries
	BackoffFactor float64 `json:"backoff_factor"`
}

// WebhookEvent represents an event that triggers a webhook
type WebhookEvent struct {
	// Type of the event
	Type string `json:"type"` // "run.completed", "node.completed"

	// Timestamp of the event
	Timestamp time.Time `json:"timestamp"`

	// WorkflowID is the ID of the workflow
	WorkflowID string `json:"workflow_id"`

	// RunID is the ID of the run
	RunID string `json:"run_id"`

	// NodeID is the ID of the node (if applicable)
	NodeID string `json:"node_id,omitempty"`

	// Data contains event-specific information
	Data map[string]interface{} `json:"data,omitempty"`
}
