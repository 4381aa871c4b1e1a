// Package storage provides interfaces for persistent storage of workflow
// definitions and run records.
package storage

import (
	"errors"
	"time"

	"github.com/reelflow/reelflow/pkg/workflow"
)

// Errors returned by storage providers
var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrRunNotFound      = errors.New("run not found")
)

// Run status values
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// StorageProvider defines the interface for persistence backends
type StorageProvider interface {
	// Initialize sets up the storage backend
	Initialize() error

	// Close cleans up resources
	Close() error

	// GetWorkflowStore returns a store for workflow definitions
	GetWorkflowStore() WorkflowStore

	// GetRunStore returns a store for run records
	GetRunStore() RunStore
}

// WorkflowRecord is a stored workflow definition with metadata
type WorkflowRecord struct {
	// ID of the workflow
	ID string `json:"id"`

	// Name of the workflow
	Name string `json:"name"`

	// Description of the workflow
	Description string `json:"description,omitempty"`

	// Definition is the node graph
	Definition workflow.Definition `json:"definition"`

	// Version increments on every save
	Version int `json:"version"`

	// CreatedAt is when the workflow was first saved
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the workflow was last saved
	UpdatedAt time.Time `json:"updated_at"`
}

// RunRecord captures the outcome of a single workflow execution
type RunRecord struct {
	// ID of the run
	ID string `json:"id"`

	// WorkflowID is the workflow this run executed
	WorkflowID string `json:"workflow_id"`

	// Status is one of pending, running, succeeded, failed
	Status string `json:"status"`

	// Task is the input the run was started with
	Task string `json:"task,omitempty"`

	// StartedAt is when the run began
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the run finished, zero while running
	CompletedAt time.Time `json:"completed_at,omitempty"`

	// Results maps node IDs to their recorded outputs
	Results map[string]map[string]interface{} `json:"results,omitempty"`

	// Summary aggregates result counts by type
	Summary map[string]interface{} `json:"summary,omitempty"`

	// Error holds the failure message for failed runs
	Error string `json:"error,omitempty"`
}

// WorkflowStore manages workflow definition persistence
type WorkflowStore interface {
	// SaveWorkflow persists a workflow record, incrementing its version
	SaveWorkflow(record WorkflowRecord) error

	// GetWorkflow retrieves a workflow by ID
	GetWorkflow(id string) (WorkflowRecord, error)

	// ListWorkflows returns all stored workflows
	ListWorkflows() ([]WorkflowRecord, error)

	// DeleteWorkflow removes a workflow
	DeleteWorkflow(id string) error
}

// RunStore manages run record persistence
type RunStore interface {
	// SaveRun persists a run record, overwriting any existing record
	// with the same ID
	SaveRun(record RunRecord) error

	// GetRun retrieves a run by ID
	GetRun(id string) (RunRecord, error)

	// ListRuns returns runs for a workflow, or all runs when the
	// workflow ID is empty, newest first
	ListRuns(workflowID string) ([]RunRecord, error)

	// DeleteRun removes a run record
	DeleteRun(id string) error
}
