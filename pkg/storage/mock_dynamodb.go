package storage

import (
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

// MockDynamoDBAPI implements the dynamodbiface.DynamoDBAPI interface for testing
type MockDynamoDBAPI struct {
	dynamodbiface.DynamoDBAPI
	mu     sync.RWMutex
	tables map[string]*MockTable
}

// MockTable represents a DynamoDB table in memory
type MockTable struct {
	Name        string
	HashKey     string
	Items       map[string]map[string]*dynamodb.AttributeValue
	TableStatus string
}

// NewMockDynamoDBAPI creates a new mock DynamoDB client
func NewMockDynamoDBAPI() *MockDynamoDBAPI {
	return &MockDynamoDBAPI{
		tables: make(map[string]*MockTable),
	}
}

// CreateTable creates a mock table
func (m *MockDynamoDBAPI) CreateTable(input *dynamodb.CreateTableInput) (*dynamodb.CreateTableOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tableName := aws.StringValue(input.TableName)
	if _, exists := m.tables[tableName]; exists {
		return nil, fmt.Errorf("table already exists: %s", tableName)
	}

	hashKey := ""
	for _, element := range input.KeySchema {
		if aws.StringValue(element.KeyType) == "HASH" {
			hashKey = aws.StringValue(element.AttributeName)
		}
	}

	m.tables[tableName] = &MockTable{
		Name:        tableName,
		HashKey:     hashKey,
		Items:       make(map[string]map[string]*dynamodb.AttributeValue),
		TableStatus: "ACTIVE",
	}

	return &dynamodb.CreateTableOutput{
		TableDescription: &dynamodb.TableDescription{
			TableName:   input.TableName,
			TableStatus: aws.String("ACTIVE"),
		},
	}, nil
}

// DescribeTable describes a mock table
func (m *MockDynamoDBAPI) DescribeTable(input *dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tableName := aws.StringValue(input.TableName)
	table, exists := m.tables[tableName]
	if !exists {
		return nil, awserr.New(dynamodb.ErrCodeResourceNotFoundException, "Requested resource not found", nil)
	}

	return &dynamodb.DescribeTableOutput{
		Table: &dynamodb.TableDescription{
			TableName:   aws.String(table.Name),
			TableStatus: aws.String(table.TableStatus),
		},
	}, nil
}

// WaitUntilTableExists returns immediately since mock tables are always active
func (m *MockDynamoDBAPI) WaitUntilTableExists(input *dynamodb.DescribeTableInput) error {
	_, err := m.DescribeTable(input)
	return err
}

// PutItem stores an item in a mock table
func (m *MockDynamoDBAPI) PutItem(input *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.table(aws.StringValue(input.TableName))
	if err != nil {
		return nil, err
	}

	key, err := table.itemKey(input.Item)
	if err != nil {
		return nil, err
	}

	table.Items[key] = input.Item
	return &dynamodb.PutItemOutput{}, nil
}

// GetItem retrieves an item from a mock table
func (m *MockDynamoDBAPI) GetItem(input *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	table, err := m.table(aws.StringValue(input.TableName))
	if err != nil {
		return nil, err
	}

	key, err := table.itemKey(input.Key)
	if err != nil {
		return nil, err
	}

	item, exists := table.Items[key]
	if !exists {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

// DeleteItem removes an item from a mock table
func (m *MockDynamoDBAPI) DeleteItem(input *dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, err := m.table(aws.StringValue(input.TableName))
	if err != nil {
		return nil, err
	}

	key, err := table.itemKey(input.Key)
	if err != nil {
		return nil, err
	}

	delete(table.Items, key)
	return &dynamodb.DeleteItemOutput{}, nil
}

// Scan returns items from a mock table, applying single-condition
// equality filters of the form "#0 = :0"
func (m *MockDynamoDBAPI) Scan(input *dynamodb.ScanInput) (*dynamodb.ScanOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	table, err := m.table(aws.StringValue(input.TableName))
	if err != nil {
		return nil, err
	}

	var items []map[string]*dynamodb.AttributeValue
	for _, item := range table.Items {
		if matchesFilter(item, input) {
			items = append(items, item)
		}
	}

	count := int64(len(items))
	return &dynamodb.ScanOutput{
		Items: items,
		Count: aws.Int64(count),
	}, nil
}

// ScanPages delivers all matching items in a single page
func (m *MockDynamoDBAPI) ScanPages(input *dynamodb.ScanInput, fn func(*dynamodb.ScanOutput, bool) bool) error {
	output, err := m.Scan(input)
	if err != nil {
		return err
	}
	fn(output, true)
	return nil
}

// table looks up a mock table; callers must hold the lock
func (m *MockDynamoDBAPI) table(name string) (*MockTable, error) {
	table, exists := m.tables[name]
	if !exists {
		return nil, awserr.New(dynamodb.ErrCodeResourceNotFoundException, "Requested resource not found", nil)
	}
	return table, nil
}

// itemKey derives the map key for an item from the table's hash key
func (t *MockTable) itemKey(attrs map[string]*dynamodb.AttributeValue) (string, error) {
	value, exists := attrs[t.HashKey]
	if !exists || value.S == nil {
		return "", fmt.Errorf("item is missing hash key %s", t.HashKey)
	}
	return aws.StringValue(value.S), nil
}

// matchesFilter evaluates a simple equality filter expression against an item
func matchesFilter(item map[string]*dynamodb.AttributeValue, input *dynamodb.ScanInput) bool {
	if input.FilterExpression == nil {
		return true
	}

	parts := strings.SplitN(aws.StringValue(input.FilterExpression), "=", 2)
	if len(parts) != 2 {
		return true
	}

	namePlaceholder := strings.TrimSpace(parts[0])
	valuePlaceholder := strings.TrimSpace(parts[1])

	attrName := aws.StringValue(input.ExpressionAttributeNames[namePlaceholder])
	expected := input.ExpressionAttributeValues[valuePlaceholder]
	if attrName == "" || expected == nil {
		return true
	}

	actual, exists := item[attrName]
	if !exists {
		return false
	}
	return aws.StringValue(actual.S) == aws.StringValue(expected.S)
}
