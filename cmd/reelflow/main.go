// Package main is the entry point for the reelflow server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/reelflow/reelflow/pkg/actions"
	"github.com/reelflow/reelflow/pkg/api"
	"github.com/reelflow/reelflow/pkg/config"
	"github.com/reelflow/reelflow/pkg/engine"
	"github.com/reelflow/reelflow/pkg/loader"
	"github.com/reelflow/reelflow/pkg/logging"
	"github.com/reelflow/reelflow/pkg/registry"
	"github.com/reelflow/reelflow/pkg/scheduler"
	"github.com/reelflow/reelflow/pkg/scripting"
	"github.com/reelflow/reelflow/pkg/storage"
	"github.com/reelflow/reelflow/pkg/utils"
	"github.com/reelflow/reelflow/pkg/webhooks"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	version    = flag.Bool("version", false, "Print version information")
)

// Version information
const (
	AppVersion = "0.1.0"
	AppName    = "reelflow"
)

func main() {
	// Load environment variables from .env file
	_ = godotenv.Load()

	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", AppName, AppVersion)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Handle graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error)
	go func() {
		errCh <- app.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Application failed: %v", err)
		}
	case <-stop:
		log.Println("Shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			log.Fatalf("Error during shutdown: %v", err)
		}
	}
}

// loadConfig loads the configuration from the specified path or falls
// back to standard locations
func loadConfig() (*config.Config, error) {
	if *configPath != "" {
		cfg, err := config.LoadConfig(*configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", *configPath, err)
		}
		return cfg, nil
	}

	locations := []string{
		"./config.json",
		"./configs/config.json",
		filepath.Join(os.Getenv("HOME"), ".reelflow", "config.json"),
		"/etc/reelflow/config.json",
	}
	for _, path := range locations {
		if cfg, err := config.LoadConfig(path); err == nil {
			return cfg, nil
		}
	}

	// No config file found, run with defaults
	cfg := config.DefaultConfig()
	defaultPath := filepath.Join(os.Getenv("HOME"), ".reelflow", "config.json")
	if err := config.SaveConfig(cfg, defaultPath); err == nil {
		fmt.Printf("Created default configuration at %s\n", defaultPath)
	}
	return cfg, nil
}

// App represents the reelflow application
type App struct {
	config          *config.Config
	server          *api.Server
	scheduler       *scheduler.Scheduler
	storageProvider storage.StorageProvider
	logger          logging.Logger
}

// NewApp creates a new application instance
func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewLogger(logging.LogConfig{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		Output:   cfg.Logging.Output,
		FilePath: cfg.Logging.FilePath,
	})

	storageProvider, err := newStorageProvider(cfg)
	if err != nil {
		return nil, err
	}
	if err := storageProvider.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Wire action handlers to the configured providers
	actionRegistry := actions.NewDefaultRegistry(newProviders(cfg))

	// Build the engine with expression evaluation and result transforms
	eng := engine.New(actionRegistry)
	eng.SetEvaluator(scripting.NewJSExpressionEvaluator())
	eng.SetTransformer(scripting.NewResultTransformer())

	workflowLoader := loader.NewLoader(actionRegistry)
	workflowRegistry := registry.NewWorkflowRegistry(storageProvider.GetWorkflowStore(), workflowLoader)

	var dispatcher webhooks.WebhookDispatcher
	if cfg.Webhooks.Enabled {
		dispatcher = webhooks.NewHTTPDispatcher(cfg.Webhooks.Endpoints, webhooks.RetryConfig{
			MaxRetries: cfg.Webhooks.MaxRetries,
		}, logger)
	}

	wsManager := api.NewWebSocketManager(logger)
	sseStreamer := api.NewSSEStreamer()

	runService := api.NewRunService(
		workflowRegistry,
		eng,
		storageProvider.GetRunStore(),
		dispatcher,
		logger,
		wsManager,
		sseStreamer,
	)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	sched := scheduler.NewScheduler(redisClient, runService, logger)

	server := api.NewServer(cfg, workflowRegistry, runService, sched, dispatcher, wsManager, sseStreamer, logger)

	return &App{
		config:          cfg,
		server:          server,
		scheduler:       sched,
		storageProvider: storageProvider,
		logger:          logger,
	}, nil
}

// Start starts the scheduler and HTTP server
func (a *App) Start() error {
	if err := a.scheduler.Start(context.Background()); err != nil {
		// The scheduler is optional; run without it when Redis is down
		a.logger.Warn("scheduler disabled",
			logging.Field{Key: "error", Value: err.Error()},
		)
	}

	return a.server.Start()
}

// Stop shuts down the application gracefully
func (a *App) Stop(ctx context.Context) error {
	a.scheduler.Stop()

	if err := a.server.Stop(ctx); err != nil {
		return err
	}
	return a.storageProvider.Close()
}

// newStorageProvider builds the storage backend from configuration
func newStorageProvider(cfg *config.Config) (storage.StorageProvider, error) {
	switch cfg.Storage.Type {
	case "memory":
		return storage.NewMemoryProvider(), nil

	case "dynamodb":
		return storage.NewDynamoDBProvider(storage.DynamoDBProviderConfig{
			Region:      cfg.Storage.DynamoDB.Region,
			TablePrefix: cfg.Storage.DynamoDB.TablePrefix,
			Endpoint:    cfg.Storage.DynamoDB.Endpoint,
		})

	case "postgres", "postgresql":
		return storage.NewPostgreSQLProvider(storage.PostgreSQLProviderConfig{
			Host:     cfg.Storage.Postgres.Host,
			Port:     cfg.Storage.Postgres.Port,
			User:     cfg.Storage.Postgres.User,
			Password: cfg.Storage.Postgres.Password,
			Database: cfg.Storage.Postgres.Database,
			SSLMode:  cfg.Storage.Postgres.SSLMode,
		})

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// newProviders builds the external service clients from configuration
func newProviders(cfg *config.Config) actions.Providers {
	text := make(map[string]*utils.LLMClient)
	if cfg.Providers.OpenAI.APIKey != "" {
		text["openai"] = utils.NewLLMClient(utils.OpenAI, cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.BaseURL)
	}
	if cfg.Providers.Anthropic.APIKey != "" {
		text["anthropic"] = utils.NewLLMClient(utils.Anthropic, cfg.Providers.Anthropic.APIKey, cfg.Providers.Anthropic.BaseURL)
	}

	providers := actions.Providers{Text: text}
	if cfg.Providers.Media.BaseURL != "" {
		providers.Media = utils.NewMediaClient(cfg.Providers.Media.APIKey, cfg.Providers.Media.BaseURL)
	}
	if cfg.Providers.Social.BaseURL != "" {
		providers.Social = actions.NewSocialClient(cfg.Providers.Social.APIKey, cfg.Providers.Social.BaseURL)
	}
	if cfg.Providers.Email.SMTPHost != "" {
		providers.Email = utils.NewEmailClient(
			cfg.Providers.Email.SMTPHost,
			cfg.Providers.Email.SMTPPort,
			cfg.Providers.Email.IMAPHost,
			cfg.Providers.Email.IMAPPort,
			cfg.Providers.Email.Username,
			cfg.Providers.Email.Password,
		)
		providers.EmailFrom = cfg.Providers.Email.From
	}
	return providers
}
