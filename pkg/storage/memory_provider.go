package storage

import (
	"sort"
	"sync"
	"time"
)

// MemoryProvider implements the StorageProvider interface using in-memory storage
type MemoryProvider struct {
	workflowStore *MemoryWorkflowStore
	runStore      *MemoryRunStore
}

// NewMemoryProvider creates a new in-memory storage provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		workflowStore: NewMemoryWorkflowStore(),
		runStore:      NewMemoryRunStore(),
	}
}

// Initialize sets up the storage backend
func (p *MemoryProvider) Initialize() error {
	// Nothing to initialize for in-memory storage
	return nil
}

// Close cleans up resources
func (p *MemoryProvider) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

// GetWorkflowStore returns a store for workflow definitions
func (p *MemoryProvider) GetWorkflowStore() WorkflowStore {
	return p.workflowStore
}

// GetRunStore returns a store for run records
func (p *MemoryProvider) GetRunStore() RunStore {
	return p.runStore
}

// MemoryWorkflowStore implements the WorkflowStore interface using an in-memory map
type MemoryWorkflowStore struct {
	mu        sync.RWMutex
	workflows map[string]WorkflowRecord
}

// NewMemoryWorkflowStore creates a new in-memory workflow store
func NewMemoryWorkflowStore() *MemoryWorkflowStore {
	return &MemoryWorkflowStore{
		workflows: make(map[string]WorkflowRecord),
	}
}

// SaveWorkflow persists a workflow record, incrementing its version
func (s *MemoryWorkflowStore) SaveWorkflow(record WorkflowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.workflows[record.ID]; ok {
		record.Version = existing.Version + 1
		record.CreatedAt = existing.CreatedAt
	} else {
		record.Version = 1
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	s.workflows[record.ID] = record
	return nil
}

// GetWorkflow retrieves a workflow by ID
func (s *MemoryWorkflowStore) GetWorkflow(id string) (WorkflowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.workflows[id]
	if !ok {
		return WorkflowRecord{}, ErrWorkflowNotFound
	}
	return record, nil
}

// ListWorkflows returns all stored workflows sorted by name
func (s *MemoryWorkflowStore) ListWorkflows() ([]WorkflowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]WorkflowRecord, 0, len(s.workflows))
	for _, record := range s.workflows {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
	return records, nil
}

// DeleteWorkflow removes a workflow
func (s *MemoryWorkflowStore) DeleteWorkflow(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[id]; !ok {
		return ErrWorkflowNotFound
	}
	delete(s.workflows, id)
	return nil
}

// MemoryRunStore implements the RunStore interface using an in-memory map
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]RunRecord
}

// NewMemoryRunStore creates a new in-memory run store
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{
		runs: make(map[string]RunRecord),
	}
}

// SaveRun persists a run record
func (s *MemoryRunStore) SaveRun(record RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[record.ID] = record
	return nil
}

// GetRun retrieves a run by ID
func (s *MemoryRunStore) GetRun(id string) (RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.runs[id]
	if !ok {
		return RunRecord{}, ErrRunNotFound
	}
	return record, nil
}

// ListRuns returns runs for a workflow, newest first
func (s *MemoryRunStore) ListRuns(workflowID string) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]RunRecord, 0, len(s.runs))
	for _, record := range s.runs {
		if workflowID != "" && record.WorkflowID != workflowID {
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records, nil
}

// DeleteRun removes a run record
func (s *MemoryRunStore) DeleteRun(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return ErrRunNotFound
	}
	delete(s.runs, id)
	return nil
}
