// Package config provides configuration handling for reelflow.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config represents the application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage"`

	// Redis configuration for the scheduler queue
	Redis RedisConfig `json:"redis"`

	// Providers configuration for external generation services
	Providers ProvidersConfig `json:"providers"`

	// Webhooks configuration
	Webhooks WebhooksConfig `json:"webhooks"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Host to bind to
	Host string `json:"host"`

	// Port to listen on
	Port int `json:"port"`
}

// StorageConfig contains storage settings
type StorageConfig struct {
	// Type of storage to use
	Type string `json:"type"` // "memory", "dynamodb", "postgresql"

	// DynamoDB configuration
	DynamoDB DynamoDBConfig `json:"dynamodb"`

	// Postgres configuration
	Postgres PostgresConfig `json:"postgres"`
}

// DynamoDBConfig contains DynamoDB settings
type DynamoDBConfig struct {
	// Region is the AWS region
	Region string `json:"region"`

	// Endpoint is the DynamoDB endpoint (for local development)
	Endpoint string `json:"endpoint"`

	// TablePrefix is the prefix for all tables
	TablePrefix string `json:"table_prefix"`
}

// PostgresConfig contains PostgreSQL settings
type PostgresConfig struct {
	// Host is the database host
	Host string `json:"host"`

	// Port is the database port
	Port int `json:"port"`

	// Database is the database name
	Database string `json:"database"`

	// User is the database user
	User string `json:"user"`

	// Password is the database password
	Password string `json:"password"`

	// SSLMode is the SSL mode
	SSLMode string `json:"ssl_mode"`
}

// RedisConfig contains Redis settings for scheduled job persistence
type RedisConfig struct {
	// Address is the Redis host:port
	Address string `json:"address"`

	// Password for the Redis instance, empty when not required
	Password string `json:"password"`

	// DB is the Redis database index
	DB int `json:"db"`
}

// ProvidersConfig contains settings for external generation services
type ProvidersConfig struct {
	// OpenAI text generation settings
	OpenAI LLMProviderConfig `json:"openai"`

	// Anthropic text generation settings
	Anthropic LLMProviderConfig `json:"anthropic"`

	// Media generation service settings
	Media ServiceConfig `json:"media"`

	// Social scraping service settings
	Social ServiceConfig `json:"social"`

	// Email settings for notification actions
	Email EmailConfig `json:"email"`
}

// LLMProviderConfig contains settings for a text generation provider
type LLMProviderConfig struct {
	// APIKey authenticates requests to the provider
	APIKey string `json:"api_key"`

	// BaseURL overrides the provider endpoint, empty for the default
	BaseURL string `json:"base_url"`
}

// ServiceConfig contains settings for an HTTP generation service
type ServiceConfig struct {
	// BaseURL is the service endpoint
	BaseURL string `json:"base_url"`

	// APIKey authenticates requests to the service
	APIKey string `json:"api_key"`
}

// EmailConfig contains SMTP and IMAP settings
type EmailConfig struct {
	// SMTPHost is the outgoing mail host
	SMTPHost string `json:"smtp_host"`

	// SMTPPort is the outgoing mail port
	SMTPPort int `json:"smtp_port"`

	// IMAPHost is the incoming mail host
	IMAPHost string `json:"imap_host"`

	// IMAPPort is the incoming mail port
	IMAPPort int `json:"imap_port"`

	// Username authenticates both SMTP and IMAP sessions
	Username string `json:"username"`

	// Password authenticates both SMTP and IMAP sessions
	Password string `json:"password"`

	// From is the sender address
	From string `json:"from"`
}

// WebhooksConfig contains outbound webhook settings
type WebhooksConfig struct {
	// Enabled indicates whether webhook delivery is active
	Enabled bool `json:"enabled"`

	// Endpoints are the URLs notified on run and node completion
	Endpoints []string `json:"endpoints"`

	// MaxRetries is the delivery attempt limit per event
	MaxRetries int `json:"max_retries"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	// Level is the logging level
	Level string `json:"level"` // "debug", "info", "warn", "error"

	// Format is the log format
	Format string `json:"format"` // "json", "text"

	// Output is the log output
	Output string `json:"output"` // "stdout", "file"

	// FilePath is the path to the log file
	FilePath string `json:"file_path"`
}

// LoadConfig loads the configuration from a file and applies
// environment overrides
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()
	return config, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Storage: StorageConfig{
			Type: "memory",
			DynamoDB: DynamoDBConfig{
				Region:      "us-west-2",
				TablePrefix: "reelflow_",
			},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "reelflow",
				User:     "reelflow",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		Providers: ProvidersConfig{
			Email: EmailConfig{
				SMTPPort: 587,
				IMAPPort: 993,
			},
		},
		Webhooks: WebhooksConfig{
			MaxRetries: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnv overrides settings from environment variables. Only keys
// that carry secrets or commonly vary between deployments are read.
func (c *Config) applyEnv() {
	if v := os.Getenv("REELFLOW_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("REELFLOW_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("REELFLOW_STORAGE_TYPE"); v != "" {
		c.Storage.Type = v
	}
	if v := os.Getenv("REELFLOW_POSTGRES_PASSWORD"); v != "" {
		c.Storage.Postgres.Password = v
	}
	if v := os.Getenv("REELFLOW_REDIS_ADDRESS"); v != "" {
		c.Redis.Address = v
	}
	if v := os.Getenv("REELFLOW_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Providers.OpenAI.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.Providers.Anthropic.APIKey = v
	}
	if v := os.Getenv("REELFLOW_MEDIA_API_KEY"); v != "" {
		c.Providers.Media.APIKey = v
	}
	if v := os.Getenv("REELFLOW_SOCIAL_API_KEY"); v != "" {
		c.Providers.Social.APIKey = v
	}
	if v := os.Getenv("REELFLOW_EMAIL_PASSWORD"); v != "" {
		c.Providers.Email.Password = v
	}
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
