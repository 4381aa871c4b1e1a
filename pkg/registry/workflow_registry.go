package registry

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/reelflow/reelflow/pkg/loader"
	"github.com/reelflow/reelflow/pkg/storage"
	"github.com/reelflow/reelflow/pkg/workflow"
)

// Errors returned by the workflow registry
var (
	ErrWorkflowNotFound  = errors.New("workflow not found")
	ErrInvalidDefinition = errors.New("invalid workflow definition")
)

// WorkflowRegistryService implements the WorkflowRegistry interface
type WorkflowRegistryService struct {
	store  storage.WorkflowStore
	loader loader.Loader
}

// NewWorkflowRegistry creates a new workflow registry service
func NewWorkflowRegistry(store storage.WorkflowStore, l loader.Loader) *WorkflowRegistryService {
	return &WorkflowRegistryService{
		store:  store,
		loader: l,
	}
}

// Create stores a new workflow definition from a YAML or JSON document
func (r *WorkflowRegistryService) Create(name string, content []byte) (string, error) {
	def, err := r.loader.Parse(content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	id := uuid.New().String()
	def.ID = id
	if name == "" {
		name = def.Name
	}

	record := storage.WorkflowRecord{
		ID:         id,
		Name:       name,
		Definition: *def,
	}
	if err := r.store.SaveWorkflow(record); err != nil {
		return "", fmt.Errorf("failed to save workflow: %w", err)
	}

	return id, nil
}

// Get retrieves a workflow definition by ID
func (r *WorkflowRegistryService) Get(id string) (*workflow.Definition, error) {
	record, err := r.store.GetWorkflow(id)
	if errors.Is(err, storage.ErrWorkflowNotFound) {
		return nil, ErrWorkflowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	def := record.Definition
	return &def, nil
}

// List returns metadata for all stored workflows
func (r *WorkflowRegistryService) List() ([]WorkflowInfo, error) {
	records, err := r.store.ListWorkflows()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	infos := make([]WorkflowInfo, len(records))
	for i, record := range records {
		infos[i] = WorkflowInfo{
			ID:          record.ID,
			Name:        record.Name,
			Description: record.Description,
			NodeCount:   len(record.Definition.Nodes),
			Version:     record.Version,
			CreatedAt:   record.CreatedAt,
			UpdatedAt:   record.UpdatedAt,
		}
	}
	return infos, nil
}

// Update replaces an existing workflow definition
func (r *WorkflowRegistryService) Update(id string, content []byte) error {
	record, err := r.store.GetWorkflow(id)
	if errors.Is(err, storage.ErrWorkflowNotFound) {
		return ErrWorkflowNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get workflow: %w", err)
	}

	def, err := r.loader.Parse(content)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	def.ID = id
	record.Name = def.Name
	record.Definition = *def

	if err := r.store.SaveWorkflow(record); err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}
	return nil
}

// Delete removes a workflow definition
func (r *WorkflowRegistryService) Delete(id string) error {
	err := r.store.DeleteWorkflow(id)
	if errors.Is(err, storage.ErrWorkflowNotFound) {
		return ErrWorkflowNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	return nil
}
