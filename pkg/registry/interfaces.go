// Package registry provides functionality for managing workflow definitions.
package registry

import (
	"time"

	"github.com/reelflow/reelflow/pkg/workflow"
)

// WorkflowRegistry manages workflow definitions
type WorkflowRegistry interface {
	// Create stores a new workflow definition from a YAML or JSON document
	Create(name string, content []byte) (string, error)

	// Get retrieves a workflow definition by ID
	Get(id string) (*workflow.Definition, error)

	// List returns metadata for all stored workflows
	List() ([]WorkflowInfo, error)

	// Update replaces an existing workflow definition
	Update(id string, content []byte) error

	// Delete removes a workflow definition
	Delete(id string) error
}

// WorkflowInfo contains metadata about a stored workflow
type WorkflowInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	NodeCount   int       `json:"node_count"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
