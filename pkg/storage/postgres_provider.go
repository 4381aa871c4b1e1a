package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgreSQLProvider implements the StorageProvider interface using PostgreSQL
type PostgreSQLProvider struct {
	db            *sql.DB
	workflowStore *PostgreSQLWorkflowStore
	runStore      *PostgreSQLRunStore
}

// PostgreSQLProviderConfig contains configuration for the PostgreSQL provider
type PostgreSQLProviderConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewPostgreSQLProvider creates a new PostgreSQL storage provider
func NewPostgreSQLProvider(config PostgreSQLProviderConfig) (*PostgreSQLProvider, error) {
	if config.Port == 0 {
		config.Port = 5432
	}
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.Database, config.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	provider := &PostgreSQLProvider{
		db: db,
	}
	provider.workflowStore = NewPostgreSQLWorkflowStore(db)
	provider.runStore = NewPostgreSQLRunStore(db)

	return provider, nil
}

// Initialize sets up the storage backend
func (p *PostgreSQLProvider) Initialize() error {
	if err := p.workflowStore.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize workflow store: %w", err)
	}

	if err := p.runStore.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize run store: %w", err)
	}

	return nil
}

// Close cleans up resources
func (p *PostgreSQLProvider) Close() error {
	return p.db.Close()
}

// GetWorkflowStore returns a store for workflow definitions
func (p *PostgreSQLProvider) GetWorkflowStore() WorkflowStore {
	return p.workflowStore
}

// GetRunStore returns a store for run records
func (p *PostgreSQLProvider) GetRunStore() RunStore {
	return p.runStore
}

// PostgreSQLWorkflowStore implements the WorkflowStore interface using PostgreSQL
type PostgreSQLWorkflowStore struct {
	db *sql.DB
}

// NewPostgreSQLWorkflowStore creates a new PostgreSQL workflow store
func NewPostgreSQLWorkflowStore(db *sql.DB) *PostgreSQLWorkflowStore {
	return &PostgreSQLWorkflowStore{db: db}
}

// Initialize creates the workflows table if it doesn't exist
func (s *PostgreSQLWorkflowStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			definition JSONB NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create workflows table: %w", err)
	}
	return nil
}

// SaveWorkflow persists a workflow record, incrementing its version
func (s *PostgreSQLWorkflowStore) SaveWorkflow(record WorkflowRecord) error {
	definition, err := json.Marshal(record.Definition)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.db.Exec(`
		INSERT INTO workflows (id, name, description, definition, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			definition = EXCLUDED.definition,
			version = workflows.version + 1,
			updated_at = EXCLUDED.updated_at
	`, record.ID, record.Name, record.Description, definition, now)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by ID
func (s *PostgreSQLWorkflowStore) GetWorkflow(id string) (WorkflowRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, name, description, definition, version, created_at, updated_at
		FROM workflows WHERE id = $1
	`, id)

	record, err := scanWorkflowRecord(row)
	if err == sql.ErrNoRows {
		return WorkflowRecord{}, ErrWorkflowNotFound
	}
	if err != nil {
		return WorkflowRecord{}, fmt.Errorf("failed to get workflow: %w", err)
	}
	return record, nil
}

// ListWorkflows returns all stored workflows sorted by name
func (s *PostgreSQLWorkflowStore) ListWorkflows() ([]WorkflowRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, name, description, definition, version, created_at, updated_at
		FROM workflows ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var records []WorkflowRecord
	for rows.Next() {
		record, err := scanWorkflowRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// DeleteWorkflow removes a workflow
func (s *PostgreSQLWorkflowStore) DeleteWorkflow(id string) error {
	result, err := s.db.Exec(`DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrWorkflowNotFound
	}
	return nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkflowRecord(row rowScanner) (WorkflowRecord, error) {
	var record WorkflowRecord
	var definition []byte

	err := row.Scan(
		&record.ID,
		&record.Name,
		&record.Description,
		&definition,
		&record.Version,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return WorkflowRecord{}, err
	}

	if err := json.Unmarshal(definition, &record.Definition); err != nil {
		return WorkflowRecord{}, fmt.Errorf("failed to unmarshal definition: %w", err)
	}
	return record, nil
}

// PostgreSQLRunStore implements the RunStore interface using PostgreSQL
type PostgreSQLRunStore struct {
	db *sql.DB
}

// NewPostgreSQLRunStore creates a new PostgreSQL run store
func NewPostgreSQLRunStore(db *sql.DB) *PostgreSQLRunStore {
	return &PostgreSQLRunStore{db: db}
}

// Initialize creates the runs table if it doesn't exist
func (s *PostgreSQLRunStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			status TEXT NOT NULL,
			task TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ,
			results JSONB,
			summary JSONB,
			error TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS runs_workflow_id_idx ON runs (workflow_id, started_at DESC)`)
	if err != nil {
		return fmt.Errorf("failed to create runs index: %w", err)
	}
	return nil
}

// SaveRun persists a run record
func (s *PostgreSQLRunStore) SaveRun(record RunRecord) error {
	results, err := json.Marshal(record.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	summary, err := json.Marshal(record.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	var completedAt interface{}
	if !record.CompletedAt.IsZero() {
		completedAt = record.CompletedAt
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (id, workflow_id, status, task, started_at, completed_at, results, summary, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			results = EXCLUDED.results,
			summary = EXCLUDED.summary,
			error = EXCLUDED.error
	`, record.ID, record.WorkflowID, record.Status, record.Task, record.StartedAt, completedAt, results, summary, record.Error)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (s *PostgreSQLRunStore) GetRun(id string) (RunRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, workflow_id, status, task, started_at, completed_at, results, summary, error
		FROM runs WHERE id = $1
	`, id)

	record, err := scanRunRecord(row)
	if err == sql.ErrNoRows {
		return RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to get run: %w", err)
	}
	return record, nil
}

// ListRuns returns runs for a workflow, newest first
func (s *PostgreSQLRunStore) ListRuns(workflowID string) ([]RunRecord, error) {
	query := `
		SELECT id, workflow_id, status, task, started_at, completed_at, results, summary, error
		FROM runs
	`
	var args []interface{}
	if workflowID != "" {
		query += ` WHERE workflow_id = $1`
		args = append(args, workflowID)
	}
	query += ` ORDER BY started_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		record, err := scanRunRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// DeleteRun removes a run record
func (s *PostgreSQLRunStore) DeleteRun(id string) error {
	result, err := s.db.Exec(`DELETE FROM runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrRunNotFound
	}
	return nil
}

func scanRunRecord(row rowScanner) (RunRecord, error) {
	var record RunRecord
	var completedAt sql.NullTime
	var results, summary []byte

	err := row.Scan(
		&record.ID,
		&record.WorkflowID,
		&record.Status,
		&record.Task,
		&record.StartedAt,
		&completedAt,
		&results,
		&summary,
		&record.Error,
	)
	if err != nil {
		return RunRecord{}, err
	}

	if completedAt.Valid {
		record.CompletedAt = completedAt.Time
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &record.Results); err != nil {
			return RunRecord{}, fmt.Errorf("failed to unmarshal results: %w", err)
		}
	}
	if len(summary) > 0 {
		if err := json.Unmarshal(summary, &record.Summary); err != nil {
			return RunRecord{}, fmt.Errorf("failed to unmarshal summary: %w", err)
		}
	}
	return record, nil
}
