package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/aws/aws-sdk-go/service/dynamodb/expression"

	"github.com/reelflow/reelflow/pkg/workflow"
)

// DynamoDBProvider implements the StorageProvider interface using DynamoDB
type DynamoDBProvider struct {
	client        dynamodbiface.DynamoDBAPI
	workflowStore *DynamoDBWorkflowStore
	runStore      *DynamoDBRunStore
	tablePrefix   string
}

// DynamoDBProviderConfig contains configuration for the DynamoDB provider
type DynamoDBProviderConfig struct {
	Region      string
	AccessKey   string
	SecretKey   string
	TablePrefix string
	Endpoint    string // Optional, for local DynamoDB
}

// NewDynamoDBProvider creates a new DynamoDB storage provider
func NewDynamoDBProvider(config DynamoDBProviderConfig) (*DynamoDBProvider, error) {
	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}

	if config.AccessKey != "" && config.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			config.AccessKey,
			config.SecretKey,
			"",
		)
	}

	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewDynamoDBProviderWithClient(dynamodb.New(sess), config.TablePrefix), nil
}

// NewDynamoDBProviderWithClient creates a new DynamoDB storage provider with a
// custom client. This is primarily used for testing with mock clients.
func NewDynamoDBProviderWithClient(client dynamodbiface.DynamoDBAPI, tablePrefix string) *DynamoDBProvider {
	provider := &DynamoDBProvider{
		client:      client,
		tablePrefix: tablePrefix,
	}
	provider.workflowStore = NewDynamoDBWorkflowStore(client, tablePrefix)
	provider.runStore = NewDynamoDBRunStore(client, tablePrefix)

	return provider
}

// Initialize sets up the storage backend
func (p *DynamoDBProvider) Initialize() error {
	if err := p.workflowStore.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize workflow store: %w", err)
	}

	if err := p.runStore.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize run store: %w", err)
	}

	return nil
}

// Close cleans up resources
func (p *DynamoDBProvider) Close() error {
	// The DynamoDB client does not hold persistent connections
	return nil
}

// GetWorkflowStore returns a store for workflow definitions
func (p *DynamoDBProvider) GetWorkflowStore() WorkflowStore {
	return p.workflowStore
}

// GetRunStore returns a store for run records
func (p *DynamoDBProvider) GetRunStore() RunStore {
	return p.runStore
}

// ensureTable creates a simple hash-keyed table if it doesn't exist
func ensureTable(client dynamodbiface.DynamoDBAPI, tableName, hashKey string) error {
	_, err := client.DescribeTable(&dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err == nil {
		return nil
	}

	if aerr, ok := err.(awserr.Error); ok && aerr.Code() == dynamodb.ErrCodeResourceNotFoundException {
		_, err = client.CreateTable(&dynamodb.CreateTableInput{
			TableName: aws.String(tableName),
			AttributeDefinitions: []*dynamodb.AttributeDefinition{
				{
					AttributeName: aws.String(hashKey),
					AttributeType: aws.String("S"),
				},
			},
			KeySchema: []*dynamodb.KeySchemaElement{
				{
					AttributeName: aws.String(hashKey),
					KeyType:       aws.String("HASH"),
				},
			},
			BillingMode: aws.String("PAY_PER_REQUEST"),
		})
		if err != nil {
			return fmt.Errorf("failed to create table %s: %w", tableName, err)
		}

		err = client.WaitUntilTableExists(&dynamodb.DescribeTableInput{
			TableName: aws.String(tableName),
		})
		if err != nil {
			return fmt.Errorf("failed to wait for table creation: %w", err)
		}
		return nil
	}

	return fmt.Errorf("failed to check if table %s exists: %w", tableName, err)
}

// DynamoDBWorkflowStore implements the WorkflowStore interface using DynamoDB
type DynamoDBWorkflowStore struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
}

// NewDynamoDBWorkflowStore creates a new DynamoDB workflow store
func NewDynamoDBWorkflowStore(client dynamodbiface.DynamoDBAPI, tablePrefix string) *DynamoDBWorkflowStore {
	return &DynamoDBWorkflowStore{
		client:    client,
		tableName: tablePrefix + "workflows",
	}
}

// Initialize creates the workflows table if it doesn't exist
func (s *DynamoDBWorkflowStore) Initialize() error {
	return ensureTable(s.client, s.tableName, "ID")
}

// dynamoDBWorkflowItem represents a workflow item in DynamoDB. The
// definition is stored as a JSON string to keep the item schema flat.
type dynamoDBWorkflowItem struct {
	ID          string `json:"ID"`
	Name        string `json:"Name"`
	Description string `json:"Description"`
	Definition  string `json:"Definition"`
	Version     int    `json:"Version"`
	CreatedAt   int64  `json:"CreatedAt"`
	UpdatedAt   int64  `json:"UpdatedAt"`
}

// SaveWorkflow persists a workflow record, incrementing its version
func (s *DynamoDBWorkflowStore) SaveWorkflow(record WorkflowRecord) error {
	now := time.Now().UTC()

	version := 1
	createdAt := now
	if existing, err := s.GetWorkflow(record.ID); err == nil {
		version = existing.Version + 1
		createdAt = existing.CreatedAt
	}

	definition, err := json.Marshal(record.Definition)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}

	item, err := dynamodbattribute.MarshalMap(dynamoDBWorkflowItem{
		ID:          record.ID,
		Name:        record.Name,
		Description: record.Description,
		Definition:  string(definition),
		Version:     version,
		CreatedAt:   createdAt.Unix(),
		UpdatedAt:   now.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal workflow item: %w", err)
	}

	_, err = s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by ID
func (s *DynamoDBWorkflowStore) GetWorkflow(id string) (WorkflowRecord, error) {
	result, err := s.client.GetItem(&dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"ID": {S: aws.String(id)},
		},
	})
	if err != nil {
		return WorkflowRecord{}, fmt.Errorf("failed to get workflow: %w", err)
	}
	if result.Item == nil {
		return WorkflowRecord{}, ErrWorkflowNotFound
	}

	return unmarshalWorkflowItem(result.Item)
}

// ListWorkflows returns all stored workflows sorted by name
func (s *DynamoDBWorkflowStore) ListWorkflows() ([]WorkflowRecord, error) {
	var records []WorkflowRecord

	err := s.client.ScanPages(&dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
	}, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		for _, item := range page.Items {
			record, err := unmarshalWorkflowItem(item)
			if err != nil {
				continue
			}
			records = append(records, record)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
	return records, nil
}

// DeleteWorkflow removes a workflow
func (s *DynamoDBWorkflowStore) DeleteWorkflow(id string) error {
	if _, err := s.GetWorkflow(id); err != nil {
		return err
	}

	_, err := s.client.DeleteItem(&dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"ID": {S: aws.String(id)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	return nil
}

func unmarshalWorkflowItem(attrs map[string]*dynamodb.AttributeValue) (WorkflowRecord, error) {
	var item dynamoDBWorkflowItem
	if err := dynamodbattribute.UnmarshalMap(attrs, &item); err != nil {
		return WorkflowRecord{}, fmt.Errorf("failed to unmarshal workflow item: %w", err)
	}

	var definition workflow.Definition
	if item.Definition != "" {
		if err := json.Unmarshal([]byte(item.Definition), &definition); err != nil {
			return WorkflowRecord{}, fmt.Errorf("failed to unmarshal definition: %w", err)
		}
	}

	return WorkflowRecord{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Definition:  definition,
		Version:     item.Version,
		CreatedAt:   time.Unix(item.CreatedAt, 0).UTC(),
		UpdatedAt:   time.Unix(item.UpdatedAt, 0).UTC(),
	}, nil
}

// DynamoDBRunStore implements the RunStore interface using DynamoDB
type DynamoDBRunStore struct {
	client    dynamodbiface.DynamoDBAPI
	tableName string
}

// NewDynamoDBRunStore creates a new DynamoDB run store
func NewDynamoDBRunStore(client dynamodbiface.DynamoDBAPI, tablePrefix string) *DynamoDBRunStore {
	return &DynamoDBRunStore{
		client:    client,
		tableName: tablePrefix + "runs",
	}
}

// Initialize creates the runs table if it doesn't exist
func (s *DynamoDBRunStore) Initialize() error {
	return ensureTable(s.client, s.tableName, "ID")
}

// dynamoDBRunItem represents a run item in DynamoDB
type dynamoDBRunItem struct {
	ID          string `json:"ID"`
	WorkflowID  string `json:"WorkflowID"`
	Status      string `json:"Status"`
	Task        string `json:"Task"`
	StartedAt   int64  `json:"StartedAt"`
	CompletedAt int64  `json:"CompletedAt"`
	Results     string `json:"Results"`
	Summary     string `json:"Summary"`
	Error       string `json:"Error"`
}

// SaveRun persists a run record
func (s *DynamoDBRunStore) SaveRun(record RunRecord) error {
	results, err := json.Marshal(record.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	summary, err := json.Marshal(record.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	var completedAt int64
	if !record.CompletedAt.IsZero() {
		completedAt = record.CompletedAt.Unix()
	}

	item, err := dynamodbattribute.MarshalMap(dynamoDBRunItem{
		ID:          record.ID,
		WorkflowID:  record.WorkflowID,
		Status:      record.Status,
		Task:        record.Task,
		StartedAt:   record.StartedAt.Unix(),
		CompletedAt: completedAt,
		Results:     string(results),
		Summary:     string(summary),
		Error:       record.Error,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal run item: %w", err)
	}

	_, err = s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (s *DynamoDBRunStore) GetRun(id string) (RunRecord, error) {
	result, err := s.client.GetItem(&dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"ID": {S: aws.String(id)},
		},
	})
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to get run: %w", err)
	}
	if result.Item == nil {
		return RunRecord{}, ErrRunNotFound
	}

	return unmarshalRunItem(result.Item)
}

// ListRuns returns runs for a workflow, newest first
func (s *DynamoDBRunStore) ListRuns(workflowID string) ([]RunRecord, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
	}

	if workflowID != "" {
		filter := expression.Name("WorkflowID").Equal(expression.Value(workflowID))
		expr, err := expression.NewBuilder().WithFilter(filter).Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build filter expression: %w", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	var records []RunRecord
	err := s.client.ScanPages(input, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		for _, item := range page.Items {
			record, err := unmarshalRunItem(item)
			if err != nil {
				continue
			}
			records = append(records, record)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records, nil
}

// DeleteRun removes a run record
func (s *DynamoDBRunStore) DeleteRun(id string) error {
	if _, err := s.GetRun(id); err != nil {
		return err
	}

	_, err := s.client.DeleteItem(&dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"ID": {S: aws.String(id)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

func unmarshalRunItem(attrs map[string]*dynamodb.AttributeValue) (RunRecord, error) {
	var item dynamoDBRunItem
	if err := dynamodbattribute.UnmarshalMap(attrs, &item); err != nil {
		return RunRecord{}, fmt.Errorf("failed to unmarshal run item: %w", err)
	}

	record := RunRecord{
		ID:         item.ID,
		WorkflowID: item.WorkflowID,
		Status:     item.Status,
		Task:       item.Task,
		StartedAt:  time.Unix(item.StartedAt, 0).UTC(),
		Error:      item.Error,
	}
	if item.CompletedAt != 0 {
		record.CompletedAt = time.Unix(item.CompletedAt, 0).UTC()
	}

	if item.Results != "" && item.Results != "null" {
		if err := json.Unmarshal([]byte(item.Results), &record.Results); err != nil {
			return RunRecord{}, fmt.Errorf("failed to unmarshal results: %w", err)
		}
	}
	if item.Summary != "" && item.Summary != "null" {
		if err := json.Unmarshal([]byte(item.Summary), &record.Summary); err != nil {
			return RunRecord{}, fmt.Errorf("failed to unmarshal summary: %w", err)
		}
	}
	return record, nil
}
