// Package scheduler provides cron-based scheduling of workflow runs
// with Redis-backed persistence.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/reelflow/reelflow/pkg/logging"
)

const (
	scheduleKeyPrefix   = "schedule:job:"
	executionKeyPrefix  = "schedule:executions:"
	executionHistoryMax = 99
)

// RunStarter begins a workflow run. The API server's run service
// satisfies this interface.
type RunStarter interface {
	StartRun(ctx context.Context, workflowID string, task string) (string, error)
}

// Schedule represents a recurring workflow trigger
type Schedule struct {
	ID          string    `json:"id"`
	WorkflowID  string    `json:"workflow_id"`
	Cron        string    `json:"cron"`
	Task        string    `json:"task,omitempty"`
	NextRunTime time.Time `json:"next_run_time"`
	LastRunTime time.Time `json:"last_run_time,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Scheduler runs workflows on cron schedules persisted in Redis
type Scheduler struct {
	cron    *cron.Cron
	redis   *redis.Client
	starter RunStarter
	logger  logging.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewScheduler creates a scheduler. Schedules support both the
// five-field standard format and the six-field format with seconds.
func NewScheduler(redisClient *redis.Client, starter RunStarter, logger logging.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		redis:   redisClient,
		starter: starter,
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// Start verifies the Redis connection, restores persisted schedules and
// begins dispatching
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if err := s.loadExisting(ctx); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts dispatching and waits for in-flight jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Add persists a schedule and begins dispatching it. A missing ID is
// generated.
func (s *Scheduler) Add(ctx context.Context, schedule Schedule) (string, error) {
	if schedule.ID == "" {
		schedule.ID = uuid.New().String()
	}
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = time.Now().UTC()
	}

	spec, err := parseSpec(schedule.Cron)
	if err != nil {
		return "", fmt.Errorf("invalid cron expression %q: %w", schedule.Cron, err)
	}
	schedule.NextRunTime = spec.Next(time.Now())

	if err := s.persist(ctx, schedule); err != nil {
		return "", err
	}

	if err := s.register(schedule); err != nil {
		return "", err
	}
	return schedule.ID, nil
}

// Remove stops dispatching a schedule and deletes it from Redis
func (s *Scheduler) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if err := s.redis.Del(ctx, scheduleKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return nil
}

// List returns all persisted schedules
func (s *Scheduler) List(ctx context.Context) ([]Schedule, error) {
	keys, err := s.redis.Keys(ctx, scheduleKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	schedules := make([]Schedule, 0, len(keys))
	for _, key := range keys {
		data, err := s.redis.Get(ctx, key).Result()
		if err != nil {
			continue
		}

		var schedule Schedule
		if err := json.Unmarshal([]byte(data), &schedule); err != nil {
			continue
		}
		schedules = append(schedules, schedule)
	}
	return schedules, nil
}

// loadExisting restores persisted schedules into the cron dispatcher
func (s *Scheduler) loadExisting(ctx context.Context) error {
	schedules, err := s.List(ctx)
	if err != nil {
		return err
	}

	for _, schedule := range schedules {
		if err := s.register(schedule); err != nil {
			s.logger.Warn("failed to restore schedule",
				logging.Field{Key: "schedule_id", Value: schedule.ID},
				logging.Field{Key: "error", Value: err.Error()},
			)
		}
	}
	return nil
}

// register adds a schedule to the cron dispatcher
func (s *Scheduler) register(schedule Schedule) error {
	entryID, err := s.cron.AddFunc(normalizeSpec(schedule.Cron), func() {
		s.fire(schedule)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}

	s.mu.Lock()
	s.entries[schedule.ID] = entryID
	s.mu.Unlock()
	return nil
}

// fire starts a workflow run and records the execution
func (s *Scheduler) fire(schedule Schedule) {
	ctx := context.Background()

	schedule.LastRunTime = time.Now().UTC()
	if spec, err := parseSpec(schedule.Cron); err == nil {
		schedule.NextRunTime = spec.Next(time.Now())
	}
	if err := s.persist(ctx, schedule); err != nil {
		s.logger.Warn("failed to persist schedule state",
			logging.Field{Key: "schedule_id", Value: schedule.ID},
			logging.Field{Key: "error", Value: err.Error()},
		)
	}

	runID, err := s.starter.StartRun(ctx, schedule.WorkflowID, schedule.Task)
	if err != nil {
		s.logger.Error("scheduled run failed to start",
			logging.Field{Key: "schedule_id", Value: schedule.ID},
			logging.Field{Key: "workflow_id", Value: schedule.WorkflowID},
			logging.Field{Key: "error", Value: err.Error()},
		)
		return
	}

	s.logger.LogRunEvent(schedule.WorkflowID, runID, "scheduled_run_started", map[string]interface{}{
		"schedule_id": schedule.ID,
	})

	record := map[string]interface{}{
		"schedule_id": schedule.ID,
		"workflow_id": schedule.WorkflowID,
		"run_id":      runID,
		"executed_at": schedule.LastRunTime,
	}
	if data, err := json.Marshal(record); err == nil {
		key := executionKeyPrefix + schedule.ID
		s.redis.LPush(ctx, key, data)
		s.redis.LTrim(ctx, key, 0, executionHistoryMax)
	}
}

// persist saves a schedule to Redis
func (s *Scheduler) persist(ctx context.Context, schedule Schedule) error {
	data, err := json.Marshal(schedule)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}

	if err := s.redis.Set(ctx, scheduleKeyPrefix+schedule.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}

// parseSpec parses a cron expression, accepting five or six fields
func parseSpec(spec string) (cron.Schedule, error) {
	parsed, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(spec)
	if err == nil {
		return parsed, nil
	}
	return cron.ParseStandard(spec)
}

// normalizeSpec converts five-field expressions to the six-field form
// expected by the dispatcher
func normalizeSpec(spec string) string {
	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(spec); err == nil {
		return spec
	}
	return "0 " + spec
}
